package tufclient

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/cuemby/fleetguard/pkg/canon"
	"github.com/cuemby/fleetguard/pkg/fleetguarderr"
	"github.com/cuemby/fleetguard/pkg/metrics"
	"github.com/cuemby/fleetguard/pkg/sig"
	"github.com/cuemby/fleetguard/pkg/storage"
	"github.com/cuemby/fleetguard/pkg/types"
)

// verifyReference checks that data matches the length and hash a
// referencing metadata file declared for it.
func verifyReference(op string, data []byte, ref types.FileReference) error {
	if len(data) != ref.Length {
		return fleetguarderr.New(op, fleetguarderr.LengthMismatch,
			fmt.Errorf("referenced file is %d bytes, expected %d", len(data), ref.Length))
	}
	if got := canon.SHA256Hex(data); got != ref.SHA256 {
		return fleetguarderr.New(op, fleetguarderr.HashMismatch,
			fmt.Errorf("referenced file hash %s does not match expected %s", got, ref.SHA256))
	}
	return nil
}

// RefreshMetadata runs the timestamp → snapshot → targets sequence: each
// document is fetched, checked against the hash/length its referrer
// declared, role-verified, and checked for version regression and
// expiration. Nothing is committed to the client's cache until every
// document in the chain has passed every check — a failed refresh
// leaves the previous cache untouched.
func (c *Client) RefreshMetadata(ctx context.Context) error {
	const op = "tufclient.RefreshMetadata"

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.UpdateRefreshDuration)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.trustedRoot == nil {
		return fleetguarderr.New(op, fleetguarderr.NotInitialized, fmt.Errorf("root metadata not initialized"))
	}

	tsData, err := c.source.FetchMetadata(ctx, "timestamp.json")
	if err != nil {
		return err
	}
	tsEnv, newTimestamp, err := c.verifyAndParse(op, tsData, types.RoleTimestamp, new(types.TimestampMetadata))
	if err != nil {
		return err
	}
	timestamp := newTimestamp.(*types.TimestampMetadata)
	if c.cachedTimestamp != nil && timestamp.Version < c.cachedTimestamp.Version {
		return fleetguarderr.New(op, fleetguarderr.VersionRegression,
			fmt.Errorf("timestamp version %d regresses from cached %d", timestamp.Version, c.cachedTimestamp.Version))
	}
	if err := checkExpiry(op, timestamp.Expires); err != nil {
		return err
	}

	snapRef, ok := timestamp.Meta["snapshot.json"]
	if !ok {
		return fleetguarderr.New(op, fleetguarderr.Malformed, fmt.Errorf("timestamp does not reference snapshot.json"))
	}

	snapData, err := c.source.FetchMetadata(ctx, "snapshot.json")
	if err != nil {
		return err
	}
	if err := verifyReference(op, snapData, snapRef); err != nil {
		return err
	}
	snapEnv, newSnapshot, err := c.verifyAndParse(op, snapData, types.RoleSnapshot, new(types.SnapshotMetadata))
	if err != nil {
		return err
	}
	snapshot := newSnapshot.(*types.SnapshotMetadata)
	if c.cachedSnapshot != nil {
		if snapshot.Version < c.cachedSnapshot.Version {
			return fleetguarderr.New(op, fleetguarderr.VersionRegression,
				fmt.Errorf("snapshot version %d regresses from cached %d", snapshot.Version, c.cachedSnapshot.Version))
		}
		for name, ref := range snapshot.Meta {
			if prev, ok := c.cachedSnapshot.Meta[name]; ok && ref.Version < prev.Version {
				return fleetguarderr.New(op, fleetguarderr.VersionRegression,
					fmt.Errorf("%s version %d regresses from cached %d", name, ref.Version, prev.Version))
			}
		}
	}
	if err := checkExpiry(op, snapshot.Expires); err != nil {
		return err
	}

	targetsRef, ok := snapshot.Meta["targets.json"]
	if !ok {
		return fleetguarderr.New(op, fleetguarderr.Malformed, fmt.Errorf("snapshot does not reference targets.json"))
	}

	targetsData, err := c.source.FetchMetadata(ctx, "targets.json")
	if err != nil {
		return err
	}
	if err := verifyReference(op, targetsData, targetsRef); err != nil {
		return err
	}
	targetsEnv, newTargets, err := c.verifyAndParse(op, targetsData, types.RoleTargets, new(types.TargetsMetadata))
	if err != nil {
		return err
	}
	targets := newTargets.(*types.TargetsMetadata)
	if c.cachedTargets != nil && targets.Version < c.cachedTargets.Version {
		return fleetguarderr.New(op, fleetguarderr.VersionRegression,
			fmt.Errorf("targets version %d regresses from cached %d", targets.Version, c.cachedTargets.Version))
	}
	if err := checkExpiry(op, targets.Expires); err != nil {
		return err
	}

	if err := storage.WriteJSONAtomic(filepath.Join(c.cacheDir, "timestamp.json"), tsEnv); err != nil {
		return err
	}
	if err := storage.WriteJSONAtomic(filepath.Join(c.cacheDir, "snapshot.json"), snapEnv); err != nil {
		return err
	}
	if err := storage.WriteJSONAtomic(filepath.Join(c.cacheDir, "targets.json"), targetsEnv); err != nil {
		return err
	}

	c.cachedTimestamp = timestamp
	c.cachedSnapshot = snapshot
	c.cachedTargets = targets

	c.logger.Info().
		Int("timestamp_version", timestamp.Version).
		Int("snapshot_version", snapshot.Version).
		Int("targets_version", targets.Version).
		Msg("metadata refreshed")
	return nil
}

// verifyAndParse decodes a wire envelope, verifies it under role using
// the trusted root's role table, and unmarshals the signed payload into
// out (a pointer). It returns the raw envelope (for cache persistence)
// and out, unchanged in type so callers can type-assert.
func (c *Client) verifyAndParse(op string, data []byte, role types.Role, out any) (rawEnvelope, any, error) {
	env, err := decodeEnvelope(data)
	if err != nil {
		metrics.UpdateVerificationsTotal.WithLabelValues(string(role), "malformed").Inc()
		return rawEnvelope{}, nil, err
	}
	spec, err := roleSpecFrom(c.trustedRoot, role)
	if err != nil {
		metrics.UpdateVerificationsTotal.WithLabelValues(string(role), "malformed").Inc()
		return rawEnvelope{}, nil, err
	}
	if err := sig.VerifyEnvelope(asSigEnvelope(env), spec); err != nil {
		metrics.UpdateVerificationsTotal.WithLabelValues(string(role), "invalid_signature").Inc()
		return rawEnvelope{}, nil, fleetguarderr.New(op, fleetguarderr.InvalidSignature,
			fmt.Errorf("%s metadata failed role verification: %w", role, err))
	}
	if err := json.Unmarshal(env.Signed, out); err != nil {
		metrics.UpdateVerificationsTotal.WithLabelValues(string(role), "malformed").Inc()
		return rawEnvelope{}, nil, fleetguarderr.New(op, fleetguarderr.Malformed, err)
	}
	metrics.UpdateVerificationsTotal.WithLabelValues(string(role), "verified").Inc()
	return env, out, nil
}
