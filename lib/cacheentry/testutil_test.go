package cacheentry

import (
	"context"

	"github.com/Kaychang/ignitecache/lib/version"
)

// memRowStore is a minimal in-memory RowStore used only by this package's
// tests; it does not claim to be a real off-heap implementation.
type memRowStore struct {
	rows map[string]Row
}

func newMemRowStore() *memRowStore {
	return &memRowStore{rows: make(map[string]Row)}
}

func (s *memRowStore) Read(key string) (Row, bool, error) {
	row, ok := s.rows[key]
	return row, ok, nil
}

func (s *memRowStore) Update(key string, row Row, partition uint32) error {
	s.rows[key] = row
	return nil
}

func (s *memRowStore) Remove(key string, partition uint32) error {
	delete(s.rows, key)
	return nil
}

func (s *memRowStore) Invoke(key string, partition uint32, fn func(row Row, loaded bool) (Row, RowOp)) (Row, RowOp, error) {
	row, loaded := s.rows[key]
	newRow, op := fn(row, loaded)
	switch op {
	case RowOpPut:
		s.rows[key] = newRow
	case RowOpRemove:
		delete(s.rows, key)
	}
	return newRow, op, nil
}

// memExternalStore is a minimal in-memory ExternalStore for tests.
type memExternalStore struct {
	vals     map[string][]byte
	vers     map[string]version.Version
	putCount int
	remCount int
}

func newMemExternalStore() *memExternalStore {
	return &memExternalStore{vals: make(map[string][]byte), vers: make(map[string]version.Version)}
}

func (s *memExternalStore) Load(ctx context.Context, key string) ([]byte, bool, error) {
	v, ok := s.vals[key]
	return v, ok, nil
}

func (s *memExternalStore) Put(ctx context.Context, key string, val []byte, ver version.Version) error {
	s.putCount++
	s.vals[key] = val
	s.vers[key] = ver
	return nil
}

func (s *memExternalStore) Remove(ctx context.Context, key string) error {
	s.remCount++
	delete(s.vals, key)
	return nil
}

// fixedTTL is an ExpiryPolicy that returns the same TTL for every phase.
type fixedTTL struct {
	create, update, access TTL
}

func (f fixedTTL) ForCreate() TTL { return f.create }
func (f fixedTTL) ForUpdate() TTL { return f.update }
func (f fixedTTL) ForAccess() TTL { return f.access }

func newTestEntry(cfg *Config) *Entry {
	if cfg.VersionGen == nil {
		cfg.VersionGen = version.NewGenerator(1, 0)
	}
	if cfg.RowStore == nil {
		cfg.RowStore = newMemRowStore()
	}
	return NewEntry("k1", 0, version.Zero, cfg)
}
