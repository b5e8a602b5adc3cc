package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketEntries = []byte("entries")

// envelope wraps every stored value with its expiry. Exp is a Unix
// timestamp in seconds; zero means the entry never expires.
type envelope struct {
	V   json.RawMessage `json:"v"`
	Exp int64           `json:"exp,omitempty"`
}

func (e *envelope) expired(now time.Time) bool {
	return e.Exp != 0 && now.Unix() >= e.Exp
}

// BoltStore implements Store on a single BoltDB bucket. Expired entries
// read as absent and are deleted lazily the next time a write transaction
// touches them.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if needed) the cache database under dataDir.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "lexcache.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketEntries); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketEntries, err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Get decodes the live entry at key into out.
func (s *BoltStore) Get(key Key, out any) (bool, error) {
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketEntries)
		data := b.Get(key.Encode())
		if data == nil {
			return nil
		}
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			return fmt.Errorf("corrupt entry at %s: %w", key, err)
		}
		if env.expired(time.Now()) {
			return nil
		}
		if out != nil {
			if err := json.Unmarshal(env.V, out); err != nil {
				return fmt.Errorf("decode entry at %s: %w", key, err)
			}
		}
		found = true
		return nil
	})
	return found, err
}

// Set writes one entry. ttl == 0 means no expiry.
func (s *BoltStore) Set(key Key, value any, ttl time.Duration) error {
	data, err := encodeEnvelope(value, ttl)
	if err != nil {
		return fmt.Errorf("encode entry at %s: %w", key, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEntries).Put(key.Encode(), data)
	})
}

// Scan walks all live entries below prefix in key order.
func (s *BoltStore) Scan(prefix Key, fn func(key Key, value []byte) error) error {
	p := scanPrefix(prefix)
	now := time.Now()
	return s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketEntries).Cursor()
		for k, v := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, v = c.Next() {
			var env envelope
			if err := json.Unmarshal(v, &env); err != nil {
				return fmt.Errorf("corrupt entry at %s: %w", DecodeKey(k), err)
			}
			if env.expired(now) {
				continue
			}
			if err := fn(DecodeKey(k), env.V); err != nil {
				return err
			}
		}
		return nil
	})
}

// Batch returns a new write batch against this store.
func (s *BoltStore) Batch() Batch {
	return &boltBatch{store: s}
}

type batchOp struct {
	key   Key
	value any
	ttl   time.Duration
}

// boltBatch queues sets and applies them in one bbolt update transaction,
// so the whole batch becomes visible atomically.
type boltBatch struct {
	store *BoltStore
	ops   []batchOp
}

func (b *boltBatch) Set(key Key, value any, ttl time.Duration) {
	b.ops = append(b.ops, batchOp{key: key, value: value, ttl: ttl})
}

func (b *boltBatch) Len() int {
	return len(b.ops)
}

func (b *boltBatch) Commit() error {
	if len(b.ops) == 0 {
		return nil
	}
	// Marshal outside the update transaction to keep it short.
	encoded := make([][]byte, len(b.ops))
	for i, op := range b.ops {
		data, err := encodeEnvelope(op.value, op.ttl)
		if err != nil {
			return fmt.Errorf("encode entry at %s: %w", op.key, err)
		}
		encoded[i] = data
	}
	err := b.store.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucketEntries)
		for i, op := range b.ops {
			if err := bkt.Put(op.key.Encode(), encoded[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	b.ops = b.ops[:0]
	return nil
}

func encodeEnvelope(value any, ttl time.Duration) ([]byte, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	env := envelope{V: raw}
	if ttl > 0 {
		env.Exp = time.Now().Add(ttl).Unix()
	}
	return json.Marshal(env)
}

// Sweep deletes expired entries below prefix. Reads already treat expired
// entries as absent; this only reclaims space and is safe to run from a
// cron alongside re-crawls.
func (s *BoltStore) Sweep(prefix Key) (int, error) {
	p := scanPrefix(prefix)
	now := time.Now()
	removed := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketEntries).Cursor()
		for k, v := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, v = c.Next() {
			var env envelope
			if err := json.Unmarshal(v, &env); err != nil {
				continue
			}
			if env.expired(now) {
				if err := c.Delete(); err != nil {
					return err
				}
				removed++
			}
		}
		return nil
	})
	return removed, err
}
