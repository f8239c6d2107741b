package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/cuemby/fleetguard/pkg/fleetguarderr"
	"github.com/cuemby/fleetguard/pkg/types"
	bolt "go.etcd.io/bbolt"
)

// bucketClients holds one sub-bucket per client_id; within a client's
// bucket, keys are big-endian uint64 sequence numbers so bolt's cursor
// order matches append order.
var bucketClients = []byte("clients")

// BoltChainStore implements ChainStore on top of a single BoltDB file,
// conventionally named integrity.db (spec "Format: JSON" refers to the
// stored values, not the container file).
type BoltChainStore struct {
	db *bolt.DB
}

// NewBoltChainStore opens (creating if absent) a BoltDB-backed
// ChainStore at path.
func NewBoltChainStore(path string) (*BoltChainStore, error) {
	const op = "storage.NewBoltChainStore"

	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fleetguarderr.New(op, fleetguarderr.Io, fmt.Errorf("open %s: %w", path, err))
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketClients)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fleetguarderr.New(op, fleetguarderr.Io, err)
	}

	return &BoltChainStore{db: db}, nil
}

func (s *BoltChainStore) Close() error {
	return s.db.Close()
}

func (s *BoltChainStore) Append(clientID string, record types.ChainRecord) (int, error) {
	const op = "storage.BoltChainStore.Append"

	var newLen int
	err := s.db.Update(func(tx *bolt.Tx) error {
		clients := tx.Bucket(bucketClients)
		client, err := clients.CreateBucketIfNotExists([]byte(clientID))
		if err != nil {
			return err
		}

		seq, err := client.NextSequence()
		if err != nil {
			return err
		}

		data, err := json.Marshal(record)
		if err != nil {
			return err
		}

		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)
		if err := client.Put(key, data); err != nil {
			return err
		}

		newLen = int(seq)
		return nil
	})
	if err != nil {
		return 0, fleetguarderr.New(op, fleetguarderr.Io, err)
	}
	return newLen, nil
}

func (s *BoltChainStore) Chain(clientID string) ([]types.ChainRecord, error) {
	const op = "storage.BoltChainStore.Chain"

	records := make([]types.ChainRecord, 0)
	err := s.db.View(func(tx *bolt.Tx) error {
		clients := tx.Bucket(bucketClients)
		client := clients.Bucket([]byte(clientID))
		if client == nil {
			return nil
		}
		return client.ForEach(func(_, v []byte) error {
			var rec types.ChainRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			records = append(records, rec)
			return nil
		})
	})
	if err != nil {
		return nil, fleetguarderr.New(op, fleetguarderr.Io, err)
	}
	return records, nil
}

func (s *BoltChainStore) LastRecord(clientID string) (types.ChainRecord, bool, error) {
	const op = "storage.BoltChainStore.LastRecord"

	var rec types.ChainRecord
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		clients := tx.Bucket(bucketClients)
		client := clients.Bucket([]byte(clientID))
		if client == nil {
			return nil
		}
		_, v := client.Cursor().Last()
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &rec)
	})
	if err != nil {
		return types.ChainRecord{}, false, fleetguarderr.New(op, fleetguarderr.Io, err)
	}
	return rec, found, nil
}
