package tufclient

import (
	"context"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/cuemby/fleetguard/pkg/fleetguarderr"
	"github.com/cuemby/fleetguard/pkg/metrics"
)

// FetchTarget downloads the named target, verifies its length and both
// hash digests against the currently cached targets metadata, and — only
// once every check passes — materializes it at <targetsDir>/<name>. The
// file is never observable at that path unless it passed verification.
func (c *Client) FetchTarget(ctx context.Context, name string) (string, error) {
	const op = "tufclient.FetchTarget"

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.TargetDownloadDuration)

	c.mu.Lock()
	targets := c.cachedTargets
	targetsDir := c.targetsDir
	logger := c.logger
	c.mu.Unlock()

	if targets == nil {
		return "", fleetguarderr.New(op, fleetguarderr.NotInitialized, fmt.Errorf("targets metadata not refreshed"))
	}
	info, ok := targets.Targets[name]
	if !ok {
		return "", fleetguarderr.New(op, fleetguarderr.UnknownTarget, fmt.Errorf("no such target %q", name))
	}
	if info.SHA256 == "" || info.SHA512 == "" {
		return "", fleetguarderr.New(op, fleetguarderr.Malformed, fmt.Errorf("target %q is missing a required hash", name))
	}

	stream, err := c.source.FetchTarget(ctx, name)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	if err := os.MkdirAll(targetsDir, 0700); err != nil {
		return "", fleetguarderr.New(op, fleetguarderr.Io, err)
	}
	tmp, err := os.CreateTemp(targetsDir, ".fetch-*")
	if err != nil {
		return "", fleetguarderr.New(op, fleetguarderr.Io, err)
	}
	tmpPath := tmp.Name()
	abort := func(err error) (string, error) {
		tmp.Close()
		os.Remove(tmpPath)
		return "", err
	}

	h256 := sha256.New()
	h512 := sha512.New()
	length := 0
	buf := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return abort(fleetguarderr.New(op, fleetguarderr.Cancelled, err))
		}
		n, readErr := stream.Read(buf)
		if n > 0 {
			length += n
			h256.Write(buf[:n])
			h512.Write(buf[:n])
			if _, werr := tmp.Write(buf[:n]); werr != nil {
				return abort(fleetguarderr.New(op, fleetguarderr.Io, werr))
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return abort(fleetguarderr.New(op, fleetguarderr.Network, readErr))
		}
	}

	if length != info.Length {
		return abort(fleetguarderr.New(op, fleetguarderr.LengthMismatch,
			fmt.Errorf("target %q is %d bytes, expected %d", name, length, info.Length)))
	}
	if got := hex.EncodeToString(h256.Sum(nil)); got != info.SHA256 {
		return abort(fleetguarderr.New(op, fleetguarderr.HashMismatch,
			fmt.Errorf("target %q sha256 %s does not match expected %s", name, got, info.SHA256)))
	}
	if got := hex.EncodeToString(h512.Sum(nil)); got != info.SHA512 {
		return abort(fleetguarderr.New(op, fleetguarderr.HashMismatch,
			fmt.Errorf("target %q sha512 %s does not match expected %s", name, got, info.SHA512)))
	}

	if err := tmp.Sync(); err != nil {
		return abort(fleetguarderr.New(op, fleetguarderr.Io, err))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fleetguarderr.New(op, fleetguarderr.Io, err)
	}

	finalPath := filepath.Join(targetsDir, name)
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return "", fleetguarderr.New(op, fleetguarderr.Io, err)
	}
	if dir, err := os.Open(targetsDir); err == nil {
		dir.Sync()
		dir.Close()
	}

	logger.Info().Str("target", name).Int("length", length).Msg("target materialized")
	return finalPath, nil
}
