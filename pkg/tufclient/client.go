package tufclient

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/fleetguard/pkg/fleetguarderr"
	"github.com/cuemby/fleetguard/pkg/log"
	"github.com/cuemby/fleetguard/pkg/sig"
	"github.com/cuemby/fleetguard/pkg/storage"
	"github.com/cuemby/fleetguard/pkg/types"
)

// Mode selects how InitializeRoot treats a candidate root.
type Mode int

const (
	// ModeBootstrap accepts a root on faith, from an out-of-band trust
	// anchor. Used only when the client has no trusted root yet.
	ModeBootstrap Mode = iota
	// ModeSelfUpgrade requires the candidate to be role-valid under both
	// its own embedded root role and the currently trusted root's.
	ModeSelfUpgrade
)

// rawEnvelope mirrors sig.Envelope but keeps Signed as the untouched
// wire bytes, so verification canonicalizes exactly what the server
// sent rather than a value re-derived from a typed struct.
type rawEnvelope struct {
	Signed     json.RawMessage  `json:"signed"`
	Signatures []sig.Signature  `json:"signatures"`
}

// Client drives the update verification pipeline: root trust, metadata
// refresh, and target download. Per the concurrency model (spec §5) a
// Client is driven by one logical task at a time; the mutex below
// guards against accidental concurrent misuse rather than enabling it.
type Client struct {
	source     MetadataSource
	cacheDir   string
	targetsDir string

	mu              sync.Mutex
	trustedRoot     *types.RootMetadata
	cachedTimestamp *types.TimestampMetadata
	cachedSnapshot  *types.SnapshotMetadata
	cachedTargets   *types.TargetsMetadata
	logger          zerolog.Logger
}

// NewClient builds a Client. cacheDir holds the last-verified metadata
// envelopes; targetsDir is where verified target artifacts land.
func NewClient(source MetadataSource, cacheDir, targetsDir string) *Client {
	return &Client{
		source:     source,
		cacheDir:   cacheDir,
		targetsDir: targetsDir,
		logger:     log.WithComponent("update"),
	}
}

// LoadCache populates the client's in-memory state from previously
// persisted metadata envelopes, without re-verifying them — they were
// verified when written. Absent cache files are not an error; the
// client simply starts uninitialized for whatever is missing.
func (c *Client) LoadCache() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if root, ok := c.tryLoadRoot(); ok {
		c.trustedRoot = root
	}
	if ts, ok := c.tryLoadTimestamp(); ok {
		c.cachedTimestamp = ts
	}
	if ss, ok := c.tryLoadSnapshot(); ok {
		c.cachedSnapshot = ss
	}
	if tg, ok := c.tryLoadTargets(); ok {
		c.cachedTargets = tg
	}
	return nil
}

func (c *Client) tryLoadRoot() (*types.RootMetadata, bool) {
	var env rawEnvelope
	if err := storage.ReadJSON(filepath.Join(c.cacheDir, "root.json"), &env); err != nil {
		return nil, false
	}
	var m types.RootMetadata
	if err := json.Unmarshal(env.Signed, &m); err != nil {
		return nil, false
	}
	return &m, true
}

func (c *Client) tryLoadTimestamp() (*types.TimestampMetadata, bool) {
	var env rawEnvelope
	if err := storage.ReadJSON(filepath.Join(c.cacheDir, "timestamp.json"), &env); err != nil {
		return nil, false
	}
	var m types.TimestampMetadata
	if err := json.Unmarshal(env.Signed, &m); err != nil {
		return nil, false
	}
	return &m, true
}

func (c *Client) tryLoadSnapshot() (*types.SnapshotMetadata, bool) {
	var env rawEnvelope
	if err := storage.ReadJSON(filepath.Join(c.cacheDir, "snapshot.json"), &env); err != nil {
		return nil, false
	}
	var m types.SnapshotMetadata
	if err := json.Unmarshal(env.Signed, &m); err != nil {
		return nil, false
	}
	return &m, true
}

func (c *Client) tryLoadTargets() (*types.TargetsMetadata, bool) {
	var env rawEnvelope
	if err := storage.ReadJSON(filepath.Join(c.cacheDir, "targets.json"), &env); err != nil {
		return nil, false
	}
	var m types.TargetsMetadata
	if err := json.Unmarshal(env.Signed, &m); err != nil {
		return nil, false
	}
	return &m, true
}

// roleSpecFrom builds the sig.RoleSpec for role out of root's embedded
// key table and role table.
func roleSpecFrom(root *types.RootMetadata, role types.Role) (sig.RoleSpec, error) {
	entry, ok := root.Roles[role]
	if !ok {
		return sig.RoleSpec{}, fleetguarderr.New("tufclient.roleSpecFrom", fleetguarderr.Malformed,
			fmt.Errorf("root metadata has no role entry for %q", role))
	}
	return sig.NewRoleSpec(root.Keys, entry.KeyIDs, entry.Threshold), nil
}

func decodeEnvelope(data []byte) (rawEnvelope, error) {
	var env rawEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return rawEnvelope{}, fleetguarderr.New("tufclient.decodeEnvelope", fleetguarderr.Malformed, err)
	}
	return env, nil
}

func asSigEnvelope(env rawEnvelope) sig.Envelope {
	return sig.Envelope{Signed: env.Signed, Signatures: env.Signatures}
}

// InitializeRoot establishes or upgrades the client's trusted root from
// rootBytes, the raw bytes of a root metadata envelope.
func (c *Client) InitializeRoot(ctx context.Context, rootBytes []byte, mode Mode) error {
	const op = "tufclient.InitializeRoot"

	c.mu.Lock()
	defer c.mu.Unlock()

	env, err := decodeEnvelope(rootBytes)
	if err != nil {
		return err
	}

	var candidate types.RootMetadata
	if err := json.Unmarshal(env.Signed, &candidate); err != nil {
		return fleetguarderr.New(op, fleetguarderr.Malformed, err)
	}

	selfSpec, err := roleSpecFrom(&candidate, types.RoleRoot)
	if err != nil {
		return err
	}
	if err := sig.VerifyEnvelope(asSigEnvelope(env), selfSpec); err != nil {
		return fleetguarderr.New(op, fleetguarderr.InvalidSignature, fmt.Errorf("root does not verify under its own embedded key set: %w", err))
	}

	switch mode {
	case ModeBootstrap:
		// Accepted on faith per spec — the caller supplied it
		// out-of-band and only self-validity is checked above.
	case ModeSelfUpgrade:
		if c.trustedRoot == nil {
			return fleetguarderr.New(op, fleetguarderr.NotInitialized, fmt.Errorf("no trusted root to upgrade from"))
		}
		currentSpec, err := roleSpecFrom(c.trustedRoot, types.RoleRoot)
		if err != nil {
			return err
		}
		if err := sig.VerifyEnvelope(asSigEnvelope(env), currentSpec); err != nil {
			return fleetguarderr.New(op, fleetguarderr.InvalidSignature, fmt.Errorf("candidate root does not verify under current trusted root: %w", err))
		}
		if candidate.Version != c.trustedRoot.Version+1 {
			return fleetguarderr.New(op, fleetguarderr.VersionRegression,
				fmt.Errorf("candidate root version %d is not exactly current version %d + 1", candidate.Version, c.trustedRoot.Version))
		}
	default:
		return fleetguarderr.New(op, fleetguarderr.Malformed, fmt.Errorf("unknown initialize mode %v", mode))
	}

	if err := storage.WriteJSONAtomic(filepath.Join(c.cacheDir, "root.json"), env); err != nil {
		return err
	}
	c.trustedRoot = &candidate
	c.logger.Info().Int("version", candidate.Version).Str("mode", modeName(mode)).Msg("root metadata installed")
	return nil
}

func modeName(m Mode) string {
	if m == ModeBootstrap {
		return "bootstrap"
	}
	return "self_upgrade"
}

func checkExpiry(op string, expires string) error {
	t, err := time.Parse(time.RFC3339, expires)
	if err != nil {
		return fleetguarderr.New(op, fleetguarderr.Malformed, fmt.Errorf("invalid expires timestamp %q: %w", expires, err))
	}
	if time.Now().After(t) {
		return fleetguarderr.New(op, fleetguarderr.ExpiredMetadata, fmt.Errorf("metadata expired at %s", expires))
	}
	return nil
}
