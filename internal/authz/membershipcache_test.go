package authz

import (
	"sync"
	"testing"
	"time"
)

type memStorage struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemStorage() *memStorage {
	return &memStorage{data: make(map[string][]byte)}
}

func (s *memStorage) Get(key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.data[key], nil
}

func (s *memStorage) Set(key string, val []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = val

	return nil
}

func (s *memStorage) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)

	return nil
}

func (s *memStorage) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = make(map[string][]byte)

	return nil
}

func (s *memStorage) Close() error { return nil }

func TestMembershipCacheRoundTrip(t *testing.T) {
	cache := NewMembershipCache(newMemStorage(), time.Minute)

	if _, ok := cache.Get("alice"); ok {
		t.Fatalf("expected miss before Set")
	}

	if err := cache.Set("alice", []string{"finance", "admins"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	groups, ok := cache.Get("alice")
	if !ok {
		t.Fatalf("expected hit after Set")
	}

	if len(groups) != 2 || groups[0] != "finance" || groups[1] != "admins" {
		t.Fatalf("unexpected groups: %v", groups)
	}
}

func TestMembershipCacheInvalidate(t *testing.T) {
	cache := NewMembershipCache(newMemStorage(), time.Minute)

	if err := cache.Set("alice", []string{"finance"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := cache.Invalidate("alice"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := cache.Get("alice"); ok {
		t.Fatalf("expected miss after Invalidate")
	}
}
