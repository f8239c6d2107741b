package storage

import "github.com/cuemby/fleetguard/pkg/types"

// ChainStore persists each client's integrity chain: the ordered list of
// records the log receiver appends on every accepted batch. It is keyed
// by client_id and never rewrites or reorders existing records.
type ChainStore interface {
	// Append adds record to client's chain, returning the chain's new
	// length. Callers must hold the caller-side per-client lock; Append
	// itself only guarantees atomicity of the single persisted write.
	Append(clientID string, record types.ChainRecord) (int, error)

	// Chain returns the full chain for client, oldest first. An unknown
	// client_id returns an empty, non-nil slice.
	Chain(clientID string) ([]types.ChainRecord, error)

	// LastRecord returns the most recently appended record for client,
	// and false if the client has no chain yet.
	LastRecord(clientID string) (types.ChainRecord, bool, error)

	Close() error
}
