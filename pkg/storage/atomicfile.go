package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cuemby/fleetguard/pkg/fleetguarderr"
)

// WriteJSONAtomic JSON-marshals v and writes it to path such that a
// crash at any point leaves either the old contents or the new contents
// at path, never a partial write. It writes to a temp file in the same
// directory, fsyncs it, renames over path, then fsyncs the directory so
// the rename itself survives a crash.
func WriteJSONAtomic(path string, v any) error {
	const op = "storage.WriteJSONAtomic"

	data, err := json.Marshal(v)
	if err != nil {
		return fleetguarderr.New(op, fleetguarderr.Malformed, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fleetguarderr.New(op, fleetguarderr.Io, fmt.Errorf("create %s: %w", dir, err))
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fleetguarderr.New(op, fleetguarderr.Io, fmt.Errorf("create temp file: %w", err))
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fleetguarderr.New(op, fleetguarderr.Io, fmt.Errorf("write temp file: %w", err))
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fleetguarderr.New(op, fleetguarderr.Io, fmt.Errorf("fsync temp file: %w", err))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fleetguarderr.New(op, fleetguarderr.Io, fmt.Errorf("close temp file: %w", err))
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fleetguarderr.New(op, fleetguarderr.Io, fmt.Errorf("rename into place: %w", err))
	}

	if dirFile, err := os.Open(dir); err == nil {
		dirFile.Sync()
		dirFile.Close()
	}

	return nil
}

// ReadJSON reads and unmarshals the JSON document at path into v.
func ReadJSON(path string, v any) error {
	const op = "storage.ReadJSON"

	data, err := os.ReadFile(path)
	if err != nil {
		return fleetguarderr.New(op, fleetguarderr.Io, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fleetguarderr.New(op, fleetguarderr.Malformed, err)
	}
	return nil
}

// AppendLineAtomic appends line (without a trailing newline, which this
// function adds) to the file at path, creating it if absent, and fsyncs
// before returning. Used for the transparency log's append-only journal,
// where each line must be durable before the in-memory tree advances.
func AppendLineAtomic(path string, line []byte) error {
	const op = "storage.AppendLineAtomic"

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fleetguarderr.New(op, fleetguarderr.Io, err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fleetguarderr.New(op, fleetguarderr.Io, err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fleetguarderr.New(op, fleetguarderr.Io, fmt.Errorf("append journal line: %w", err))
	}
	if err := f.Sync(); err != nil {
		return fleetguarderr.New(op, fleetguarderr.Io, fmt.Errorf("fsync journal: %w", err))
	}
	return nil
}
