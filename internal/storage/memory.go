package storage

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-memory ObjectStore for tests.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
	types   map[string]string
	buckets map[string]bool

	// PutErr/GetErr, when set, force the next matching call to fail.
	PutErr error
	GetErr error

	// PutCalls counts Put invocations (retry assertions).
	PutCalls int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[string][]byte),
		types:   make(map[string]string),
		buckets: make(map[string]bool),
	}
}

func (s *MemoryStore) Put(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PutCalls++
	if s.PutErr != nil {
		return "", wrapError("put", bucket, key, s.PutErr)
	}
	k := bucket + "/" + key
	cp := make([]byte, len(data))
	copy(cp, data)
	s.objects[k] = cp
	s.types[k] = contentType
	return k, nil
}

func (s *MemoryStore) Get(ctx context.Context, bucket, key string) ([]byte, map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.GetErr != nil {
		return nil, nil, wrapError("get", bucket, key, s.GetErr)
	}
	k := bucket + "/" + key
	data, ok := s.objects[k]
	if !ok {
		return nil, nil, wrapError("get", bucket, key, fmt.Errorf("object not found"))
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, map[string]string{"Content-Type": s.types[k]}, nil
}

func (s *MemoryStore) EnsureBucket(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buckets[name] = true
	return nil
}

var _ ObjectStore = (*MemoryStore)(nil)
