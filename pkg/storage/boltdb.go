package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketBuilds = []byte("builds")
	bucketMeta   = []byte("meta")

	keyLastGood = []byte("last_good")
)

// DefaultHistory is the number of build records kept when none is configured
const DefaultHistory = 50

// BoltStore implements Store using BoltDB
type BoltStore struct {
	db      *bolt.DB
	history int
}

// NewBoltStore opens or creates edgeplane.db in dataDir. At most history
// records are kept; older ones are trimmed on save.
func NewBoltStore(dataDir string, history int) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "edgeplane.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Create buckets
	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketBuilds, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	if history <= 0 {
		history = DefaultHistory
	}
	return &BoltStore{db: db, history: history}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// generation keys sort numerically in bbolt's byte order
func generationKey(gen uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, gen)
	return k
}

func (s *BoltStore) SaveBuild(rec *BuildRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode build %d: %w", rec.Generation, err)
	}
	key := generationKey(rec.Generation)

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBuilds)
		if err := b.Put(key, data); err != nil {
			return err
		}
		if err := tx.Bucket(bucketMeta).Put(keyLastGood, key); err != nil {
			return err
		}
		return trim(b, s.history)
	})
}

// trim deletes the oldest records until at most keep remain
func trim(b *bolt.Bucket, keep int) error {
	var keys [][]byte
	c := b.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		keys = append(keys, append([]byte(nil), k...))
	}
	if len(keys) <= keep {
		return nil
	}
	stale := keys[:len(keys)-keep]
	for _, k := range stale {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

func (s *BoltStore) LastBuild() (*BuildRecord, error) {
	var rec BuildRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		key := tx.Bucket(bucketMeta).Get(keyLastGood)
		if key == nil {
			return ErrNotFound
		}
		data := tx.Bucket(bucketBuilds).Get(key)
		if data == nil {
			return fmt.Errorf("%w: generation %d", ErrNotFound, binary.BigEndian.Uint64(key))
		}
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *BoltStore) ListBuilds(limit int) ([]*BuildRecord, error) {
	var records []*BuildRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketBuilds).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(records) >= limit {
				break
			}
			var rec BuildRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("failed to decode build %d: %w", binary.BigEndian.Uint64(k), err)
			}
			records = append(records, &rec)
		}
		return nil
	})
	return records, err
}
