// Package storage provides fleetguard's two persistence primitives:
// ChainStore, a BoltDB-backed store for per-client integrity chains, and
// WriteJSONAtomic/ReadJSON, a crash-safe JSON document writer used for the
// metadata cache, rollout state, and the transparency log's root
// pointer. The chain store suits keyed, ever-growing lookup; the
// documents are each a single small value read-then-replaced wholesale,
// where temp-write-then-rename is simpler and matches the crash-recovery
// contract directly.
package storage
