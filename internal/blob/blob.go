// Package blob stores compressed photo payloads keyed by photo id.
//
// A Store fronts one Backend with an in-memory read cache. Backends differ
// only in where the bytes live: the profile's SQLite database, a directory of
// files, an S3 bucket, or memory for tests. Any backend can be wrapped in
// Sealed to encrypt payloads at rest.
package blob

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Backend is durable payload storage. Get returns (nil, nil) for an unknown
// id; deleting an unknown id is not an error.
type Backend interface {
	Put(ctx context.Context, id string, data []byte) error
	Get(ctx context.Context, id string) ([]byte, error)
	Delete(ctx context.Context, id string) error
}

// Lister is implemented by backends that can enumerate stored ids.
type Lister interface {
	IDs(ctx context.Context) ([]string, error)
}

// BatchDeleter is implemented by backends that delete many ids at once.
type BatchDeleter interface {
	DeleteMany(ctx context.Context, ids []string) error
}

// Store is the Blob Store used by the rest of the application.
type Store struct {
	backend Backend

	mu    sync.RWMutex
	cache map[string][]byte
}

// New returns a Store over backend with an empty cache.
func New(backend Backend) *Store {
	return &Store{backend: backend, cache: make(map[string][]byte)}
}

// Put writes data under id. The cache is only updated once the backend
// accepted the write.
func (s *Store) Put(ctx context.Context, id string, data []byte) error {
	if id == "" {
		return errors.New("blob: empty id")
	}
	if err := s.backend.Put(ctx, id, data); err != nil {
		return fmt.Errorf("blob put %s: %w", id, err)
	}
	s.mu.Lock()
	s.cache[id] = data
	s.mu.Unlock()
	return nil
}

// Get returns the payload for id, or nil when absent.
func (s *Store) Get(ctx context.Context, id string) ([]byte, error) {
	if id == "" {
		return nil, nil
	}
	s.mu.RLock()
	data, ok := s.cache[id]
	s.mu.RUnlock()
	if ok {
		return data, nil
	}

	data, err := s.backend.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("blob get %s: %w", id, err)
	}
	if len(data) > 0 {
		s.mu.Lock()
		s.cache[id] = data
		s.mu.Unlock()
	}
	return data, nil
}

// GetMany returns payloads in the order of ids. Absent ids yield a nil
// entry; only backend failures are errors.
func (s *Store) GetMany(ctx context.Context, ids []string) ([][]byte, error) {
	out := make([][]byte, len(ids))
	for i, id := range ids {
		data, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out[i] = data
	}
	return out, nil
}

// Delete removes id from the cache and the backend.
func (s *Store) Delete(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	s.mu.Lock()
	delete(s.cache, id)
	s.mu.Unlock()
	if err := s.backend.Delete(ctx, id); err != nil {
		return fmt.Errorf("blob delete %s: %w", id, err)
	}
	return nil
}

// DeleteMany deletes every id. Backends without batch support delete one by
// one, continuing past failures; the returned error joins every failure.
func (s *Store) DeleteMany(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if bd, ok := s.backend.(BatchDeleter); ok {
		s.mu.Lock()
		for _, id := range ids {
			delete(s.cache, id)
		}
		s.mu.Unlock()
		if err := bd.DeleteMany(ctx, ids); err != nil {
			return fmt.Errorf("blob delete many: %w", err)
		}
		return nil
	}

	var errs []error
	for _, id := range ids {
		if err := s.Delete(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// IDs enumerates stored ids when the backend supports it.
// ok is false when it does not.
func (s *Store) IDs(ctx context.Context) (ids []string, ok bool, err error) {
	l, isLister := s.backend.(Lister)
	if !isLister {
		return nil, false, nil
	}
	ids, err = l.IDs(ctx)
	if err != nil {
		return nil, true, fmt.Errorf("blob list: %w", err)
	}
	return ids, true, nil
}

// Cached reports whether id is in the read cache.
func (s *Store) Cached(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.cache[id]
	return ok
}
