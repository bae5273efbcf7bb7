package badger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/nicktill/energyview/pkg/cache"
)

// keyPrefix namespaces table entries inside the database.
const keyPrefix = byte('t')

// Store implements cache.Store on BadgerDB, so decoded tables survive restarts.
type Store struct {
	db  *badger.DB
	ttl time.Duration
	obs cache.Observer
}

// Config holds BadgerDB configuration
type Config struct {
	// Path to store database files
	Path string

	// InMemory mode (for testing)
	InMemory bool

	// MaxMemoryMB limits BadgerDB memory usage in MB (0 = laptop-friendly defaults)
	MaxMemoryMB int64

	// TTL expires entries (0 = never)
	TTL time.Duration

	// Observer is notified of hits and misses (optional)
	Observer cache.Observer
}

// New opens the cache database.
func New(cfg Config) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = opts.WithInMemory(true)
	}
	opts = opts.WithLogger(nil)

	// Badger defaults reserve several hundred MB; tables are few and large,
	// so a small memtable is enough.
	memTableSize := int64(16 << 20)
	if cfg.MaxMemoryMB > 0 {
		memTableSize = cfg.MaxMemoryMB << 20 / 3
	}

	opts = opts.
		WithCompression(options.Snappy).
		WithNumVersionsToKeep(1).
		WithMemTableSize(memTableSize).
		WithNumMemtables(3).
		WithBlockCacheSize(memTableSize / 2).
		WithIndexCacheSize(memTableSize / 4).
		WithMaxLevels(4).
		WithNumLevelZeroTables(2).
		WithNumLevelZeroTablesStall(4).
		WithValueThreshold(1024).
		WithNumCompactors(1).
		WithValueLogFileSize(64 << 20)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return &Store{db: db, ttl: cfg.TTL, obs: cfg.Observer}, nil
}

// digestPrefix hashes the archive digest so every table of one archive shares
// a fixed-width prefix.
func digestPrefix(digest string) []byte {
	p := make([]byte, 9)
	p[0] = keyPrefix
	binary.BigEndian.PutUint64(p[1:], xxhash.Sum64String(digest))
	return p
}

// makeKey is prefix | table | 0x00 | scope. Table names never contain NUL.
func makeKey(k cache.Key) []byte {
	key := append(digestPrefix(k.Digest), k.Table...)
	if k.Scope != "" {
		key = append(key, 0)
		key = append(key, k.Scope...)
	}
	return key
}

// Get reads one table.
func (s *Store) Get(ctx context.Context, key cache.Key) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	type result struct {
		val []byte
		ok  bool
		err error
	}
	done := make(chan result, 1)
	go func() {
		var res result
		res.err = s.db.View(func(txn *badger.Txn) error {
			item, err := txn.Get(makeKey(key))
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			res.val, err = item.ValueCopy(nil)
			res.ok = err == nil
			return err
		})
		done <- res
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, false, fmt.Errorf("failed to read cache: %w", res.err)
		}
		if s.obs != nil {
			if res.ok {
				s.obs.CacheHit(key.Table)
			} else {
				s.obs.CacheMiss(key.Table)
			}
		}
		return res.val, res.ok, nil
	case <-ctx.Done():
		return nil, false, fmt.Errorf("cache read cancelled: %w", ctx.Err())
	}
}

// Set writes one table, with the configured TTL.
func (s *Store) Set(ctx context.Context, key cache.Key, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() {
		done <- s.db.Update(func(txn *badger.Txn) error {
			e := badger.NewEntry(makeKey(key), value)
			if s.ttl > 0 {
				e = e.WithTTL(s.ttl)
			}
			return txn.SetEntry(e)
		})
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to write cache: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("cache write cancelled: %w", ctx.Err())
	}
}

// Invalidate drops every table of one archive, or everything.
func (s *Store) Invalidate(ctx context.Context, digest string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if digest == "" {
		return s.db.DropPrefix([]byte{keyPrefix})
	}
	return s.db.DropPrefix(digestPrefix(digest))
}

// Stats counts live entries and their value sizes.
func (s *Store) Stats(ctx context.Context) (*cache.Stats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	st := &cache.Stats{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte{keyPrefix}
		it := txn.NewIterator(opts)
		defer it.Close()

		var n int
		for it.Rewind(); it.Valid(); it.Next() {
			n++
			if n%1000 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			st.Entries++
			st.SizeBytes += uint64(it.Item().ValueSize())
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan cache: %w", err)
	}
	return st, nil
}

// Close shuts down BadgerDB cleanly
func (s *Store) Close() error {
	return s.db.Close()
}

// RunGC runs BadgerDB's value log garbage collection. It returns nil when
// there was nothing to rewrite.
func (s *Store) RunGC(discardRatio float64) error {
	err := s.db.RunValueLogGC(discardRatio)
	if errors.Is(err, badger.ErrNoRewrite) {
		return nil
	}
	return err
}

// Size returns the LSM and value log sizes on disk.
func (s *Store) Size() (lsm, vlog int64) {
	return s.db.Size()
}
