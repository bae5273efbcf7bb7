package memory

import (
	"context"
	"sync"
	"time"

	"github.com/nicktill/energyview/pkg/cache"
)

type entry struct {
	val      []byte
	storedAt time.Time
}

// Store keeps tables in process memory. Data is lost on restart.
type Store struct {
	mu     sync.RWMutex
	m      map[cache.Key]entry
	policy cache.Policy
	obs    cache.Observer
	now    func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithPolicy sets the validity policy. The default never expires.
func WithPolicy(p cache.Policy) Option {
	return func(s *Store) { s.policy = p }
}

// WithObserver reports hits and misses.
func WithObserver(o cache.Observer) Option {
	return func(s *Store) { s.obs = o }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates an in-memory store.
func New(opts ...Option) *Store {
	s := &Store{
		m:      make(map[cache.Key]entry),
		policy: cache.TTL(0),
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Get returns a copy of the stored payload. Entries the policy rejects are
// dropped and count as misses.
func (s *Store) Get(ctx context.Context, key cache.Key) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.RLock()
	e, ok := s.m[key]
	s.mu.RUnlock()

	if ok && !s.policy.Valid(key, e.storedAt, s.now()) {
		s.mu.Lock()
		if cur, still := s.m[key]; still && cur.storedAt.Equal(e.storedAt) {
			delete(s.m, key)
		}
		s.mu.Unlock()
		ok = false
	}
	if !ok {
		if s.obs != nil {
			s.obs.CacheMiss(key.Table)
		}
		return nil, false, nil
	}
	if s.obs != nil {
		s.obs.CacheHit(key.Table)
	}
	return append([]byte{}, e.val...), true, nil
}

// Set stores a copy of value.
func (s *Store) Set(ctx context.Context, key cache.Key, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.m[key] = entry{val: append([]byte{}, value...), storedAt: s.now()}
	s.mu.Unlock()
	return nil
}

// Invalidate drops the entries of one archive, or all with an empty digest.
func (s *Store) Invalidate(ctx context.Context, digest string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if digest == "" {
		s.m = make(map[cache.Key]entry)
		return nil
	}
	for k := range s.m {
		if k.Digest == digest {
			delete(s.m, k)
		}
	}
	return nil
}

// Stats counts entries and payload bytes.
func (s *Store) Stats(ctx context.Context) (*cache.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := &cache.Stats{Entries: uint64(len(s.m))}
	for _, e := range s.m {
		st.SizeBytes += uint64(len(e.val))
	}
	return st, nil
}

// Close releases the entries.
func (s *Store) Close() error {
	s.mu.Lock()
	s.m = make(map[cache.Key]entry)
	s.mu.Unlock()
	return nil
}
