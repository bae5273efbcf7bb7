// Package cache stores decoded result tables keyed by archive content.
//
// Payloads are opaque bytes (the loader stores JSON-encoded tables). Entries
// are addressed by the archive digest plus a table name, so a changed archive
// never hits a stale entry. Caching is an optimization only: the Disabled
// store never hits and the loader behaves identically with it.
package cache

import (
	"context"
	"time"
)

// Key addresses one cached table. Scope separates entries decoded under
// different loader settings, such as the set of required groups, because a
// setting can turn a successful decode into a failed one.
type Key struct {
	Digest string
	Table  string
	Scope  string
}

func (k Key) String() string {
	if k.Scope == "" {
		return k.Digest + "/" + k.Table
	}
	return k.Digest + "/" + k.Table + "@" + k.Scope
}

// Store is a content-addressed table cache.
type Store interface {
	// Get returns the payload stored under key. A miss is (nil, false, nil).
	Get(ctx context.Context, key Key) ([]byte, bool, error)

	// Set stores a payload, replacing any previous value.
	Set(ctx context.Context, key Key, value []byte) error

	// Invalidate drops every table cached for digest. An empty digest drops
	// everything.
	Invalidate(ctx context.Context, digest string) error

	// Stats reports usage.
	Stats(ctx context.Context) (*Stats, error)

	// Close releases resources.
	Close() error
}

// Stats describes cache usage.
type Stats struct {
	Entries   uint64 `json:"entries"`
	SizeBytes uint64 `json:"size_bytes"`
}

// Observer is notified on every lookup.
type Observer interface {
	CacheHit(table string)
	CacheMiss(table string)
}

// Policy decides whether an entry stored at storedAt may still be served.
type Policy interface {
	Valid(key Key, storedAt, now time.Time) bool
}

// TTL expires entries after a fixed duration. Zero never expires.
type TTL time.Duration

// Valid implements Policy.
func (t TTL) Valid(_ Key, storedAt, now time.Time) bool {
	return t <= 0 || now.Sub(storedAt) < time.Duration(t)
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc func(key Key, storedAt, now time.Time) bool

// Valid implements Policy.
func (f PolicyFunc) Valid(key Key, storedAt, now time.Time) bool { return f(key, storedAt, now) }

// Disabled is a Store that never stores anything.
type Disabled struct{}

func (Disabled) Get(context.Context, Key) ([]byte, bool, error) { return nil, false, nil }
func (Disabled) Set(context.Context, Key, []byte) error { return nil }
func (Disabled) Invalidate(context.Context, string) error { return nil }
func (Disabled) Stats(context.Context) (*Stats, error) { return &Stats{}, nil }
func (Disabled) Close() error { return nil }

// Tiered reads from front first, then back, promoting back hits into front.
// Writes and invalidations go to both.
type Tiered struct {
	Front Store
	Back  Store
}

func (t Tiered) Get(ctx context.Context, key Key) ([]byte, bool, error) {
	if v, ok, err := t.Front.Get(ctx, key); err != nil || ok {
		return v, ok, err
	}
	v, ok, err := t.Back.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	if err := t.Front.Set(ctx, key, v); err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (t Tiered) Set(ctx context.Context, key Key, value []byte) error {
	if err := t.Front.Set(ctx, key, value); err != nil {
		return err
	}
	return t.Back.Set(ctx, key, value)
}

func (t Tiered) Invalidate(ctx context.Context, digest string) error {
	if err := t.Front.Invalidate(ctx, digest); err != nil {
		return err
	}
	return t.Back.Invalidate(ctx, digest)
}

// Stats reports the back tier, which holds every entry.
func (t Tiered) Stats(ctx context.Context) (*Stats, error) {
	return t.Back.Stats(ctx)
}

func (t Tiered) Close() error {
	ferr := t.Front.Close()
	berr := t.Back.Close()
	if ferr != nil {
		return ferr
	}
	return berr
}
