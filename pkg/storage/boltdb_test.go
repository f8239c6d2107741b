package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/fleetguard/pkg/types"
)

func newTestStore(t *testing.T) *BoltChainStore {
	t.Helper()
	s, err := NewBoltChainStore(filepath.Join(t.TempDir(), "integrity.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAppendAssignsSequentialLength(t *testing.T) {
	s := newTestStore(t)

	n, err := s.Append("client-a", types.ChainRecord{Timestamp: time.Now(), LogHash: "h1", Filename: "batch-1"})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = s.Append("client-a", types.ChainRecord{Timestamp: time.Now(), LogHash: "h2", Filename: "batch-2", NextHash: "chained"})
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestChainIsPerClient(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Append("client-a", types.ChainRecord{LogHash: "a1"})
	require.NoError(t, err)
	_, err = s.Append("client-b", types.ChainRecord{LogHash: "b1"})
	require.NoError(t, err)
	_, err = s.Append("client-b", types.ChainRecord{LogHash: "b2"})
	require.NoError(t, err)

	chainA, err := s.Chain("client-a")
	require.NoError(t, err)
	require.Len(t, chainA, 1)

	chainB, err := s.Chain("client-b")
	require.NoError(t, err)
	require.Len(t, chainB, 2)
}

func TestChainUnknownClientIsEmptyNotError(t *testing.T) {
	s := newTestStore(t)

	records, err := s.Chain("never-seen")
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestLastRecord(t *testing.T) {
	s := newTestStore(t)

	_, found, err := s.LastRecord("client-a")
	require.NoError(t, err)
	require.False(t, found)

	_, err = s.Append("client-a", types.ChainRecord{LogHash: "h1", Filename: "batch-1"})
	require.NoError(t, err)
	_, err = s.Append("client-a", types.ChainRecord{LogHash: "h2", Filename: "batch-2"})
	require.NoError(t, err)

	last, found, err := s.LastRecord("client-a")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "batch-2", last.Filename)
}

func TestAppendSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "integrity.db")

	s, err := NewBoltChainStore(path)
	require.NoError(t, err)
	_, err = s.Append("client-a", types.ChainRecord{LogHash: "h1"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := NewBoltChainStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	chain, err := reopened.Chain("client-a")
	require.NoError(t, err)
	require.Len(t, chain, 1)
	require.Equal(t, "h1", chain[0].LogHash)
}
