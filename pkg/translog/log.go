package translog

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cuemby/fleetguard/pkg/canon"
	"github.com/cuemby/fleetguard/pkg/fleetguarderr"
	"github.com/cuemby/fleetguard/pkg/log"
	"github.com/cuemby/fleetguard/pkg/metrics"
	"github.com/cuemby/fleetguard/pkg/storage"
	"github.com/cuemby/fleetguard/pkg/types"
)

// Log is an append-only transparency log backed by a JSONL journal and a
// root pointer file, both under dir.
type Log struct {
	mu      sync.Mutex
	dir     string
	config  types.LogConfig
	entries []types.LogEntry
	levels  [][][]byte
	now     func() time.Time
	logger  zerolog.Logger
}

func (l *Log) entriesPath() string { return filepath.Join(l.dir, "entries.jsonl") }
func (l *Log) treePath() string    { return filepath.Join(l.dir, "merkle-tree.json") }
func (l *Log) configPath() string  { return filepath.Join(l.dir, "config.json") }

// Open loads an existing log under dir, or creates a fresh one with a
// newly generated log ID if none exists yet.
func Open(dir string) (*Log, error) {
	const op = "translog.Open"

	l := &Log{dir: dir, now: time.Now, logger: log.WithComponent("translog")}

	var config types.LogConfig
	if err := storage.ReadJSON(l.configPath(), &config); err != nil {
		config = types.LogConfig{
			LogID:       uuid.New().String(),
			CreatedAt:   l.now(),
			Description: "fleetguard transparency log",
		}
		if err := storage.WriteJSONAtomic(l.configPath(), config); err != nil {
			return nil, err
		}
	}
	l.config = config

	entries, err := loadEntries(l.entriesPath())
	if err != nil {
		return nil, fleetguarderr.New(op, fleetguarderr.Io, err)
	}
	l.entries = entries

	leaves, err := leafHashes(entries)
	if err != nil {
		return nil, err
	}
	l.levels = buildLevels(leaves)

	return l, nil
}

func loadEntries(path string) ([]types.LogEntry, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entries []types.LogEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry types.LogEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			return nil, fmt.Errorf("decode journal line %d: %w", len(entries), err)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func leafHashes(entries []types.LogEntry) ([][]byte, error) {
	leaves := make([][]byte, len(entries))
	for i, e := range entries {
		h, err := leafHash(e)
		if err != nil {
			return nil, err
		}
		leaves[i] = h
	}
	return leaves, nil
}

// Append composes a new entry at the current tree size, durably records
// it in the journal, recomputes the Merkle root, and persists the root
// pointer. A crash between the journal write and the root-pointer write
// leaves the log recoverable: the next Open replays the journal and
// rebuilds the tree from it.
func (l *Log) Append(entryType types.EntryType, data any) (types.LogEntry, error) {
	const op = "translog.Append"

	l.mu.Lock()
	defer l.mu.Unlock()

	entry := types.LogEntry{
		LogIndex:  int64(len(l.entries)),
		Timestamp: l.now().UTC(),
		EntryType: entryType,
		Data:      data,
		LogID:     l.config.LogID,
	}

	line, err := canon.Canonicalize(entry)
	if err != nil {
		return types.LogEntry{}, fleetguarderr.New(op, fleetguarderr.Malformed, err)
	}
	if err := storage.AppendLineAtomic(l.entriesPath(), line); err != nil {
		return types.LogEntry{}, err
	}

	l.entries = append(l.entries, entry)
	leaves, err := leafHashes(l.entries)
	if err != nil {
		return types.LogEntry{}, err
	}
	l.levels = buildLevels(leaves)

	head := types.TreeHead{
		TreeSize:  int64(len(l.entries)),
		RootHash:  hex.EncodeToString(root(l.levels)),
		Timestamp: l.now().UTC(),
	}
	if err := storage.WriteJSONAtomic(l.treePath(), head); err != nil {
		l.logger.Error().Err(err).Msg("journal entry appended but root pointer update failed; recoverable by replay")
		return types.LogEntry{}, err
	}

	l.config.TreeSize = head.TreeSize
	if err := storage.WriteJSONAtomic(l.configPath(), l.config); err != nil {
		l.logger.Warn().Err(err).Msg("failed to persist updated tree size to log config")
	}

	metrics.LogAppendsTotal.WithLabelValues(string(entryType)).Inc()
	metrics.LogTreeSize.Set(float64(head.TreeSize))
	l.logger.Info().Int64("log_index", entry.LogIndex).Str("entry_type", string(entryType)).Msg("transparency log entry appended")
	return entry, nil
}

// AppendRolloutEvent implements rollout.EventRecorder.
func (l *Log) AppendRolloutEvent(data types.RolloutEventData) error {
	_, err := l.Append(types.EntryTypeRolloutEvent, data)
	return err
}

// Root returns the current tree size and root hash (hex-encoded, empty
// string for an empty tree).
func (l *Log) Root() (int64, string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return int64(len(l.entries)), hex.EncodeToString(root(l.levels))
}

// Entry returns the entry at log_index i.
func (l *Log) Entry(i int64) (types.LogEntry, error) {
	const op = "translog.Entry"
	l.mu.Lock()
	defer l.mu.Unlock()
	if i < 0 || int(i) >= len(l.entries) {
		return types.LogEntry{}, fleetguarderr.New(op, fleetguarderr.UnknownTarget, fmt.Errorf("log index %d out of range", i))
	}
	return l.entries[i], nil
}

// Prove builds the inclusion proof for the entry at log_index i against
// the tree as it stands right now.
func (l *Log) Prove(i int64) ([]ProofStep, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return prove(l.levels, int(i))
}
