package cache

import (
	"io"
	"sync"

	gocache "github.com/pmylund/go-cache"
)

// Store is a process-lifetime cache of decrypted payloads and constructed
// handles. Entries never expire and are never evicted; callers needing
// bounded memory invalidate or clear explicitly.
//
// Store provides the compute-once guarantee: concurrent GetOrCompute calls
// for the same key run the compute function exactly once, and every caller
// observes the single result. Failed computes are not cached, so a later
// call retries — a discovery or decrypt failure never poisons the key.
type Store struct {
	mu       sync.Mutex
	entries  *gocache.Cache
	inflight map[string]*call
}

type call struct {
	wg    sync.WaitGroup
	value any
	err   error
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		entries:  gocache.New(gocache.NoExpiration, 0),
		inflight: make(map[string]*call),
	}
}

// GetOrCompute returns the cached value for key, computing it with fn on
// first use. If another goroutine is already computing the same key, the
// caller waits for and shares its result.
func (s *Store) GetOrCompute(key string, fn func() (any, error)) (any, error) {
	s.mu.Lock()

	if value, ok := s.entries.Get(key); ok {
		s.mu.Unlock()
		return value, nil
	}

	if c, ok := s.inflight[key]; ok {
		s.mu.Unlock()
		c.wg.Wait()
		return c.value, c.err
	}

	c := &call{}
	c.wg.Add(1)
	s.inflight[key] = c
	s.mu.Unlock()

	c.value, c.err = fn()

	s.mu.Lock()
	delete(s.inflight, key)
	if c.err == nil {
		s.entries.Set(key, c.value, gocache.NoExpiration)
	}
	s.mu.Unlock()

	c.wg.Done()
	return c.value, c.err
}

// Get returns the cached value for key without computing.
func (s *Store) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries.Get(key)
}

// Invalidate drops the entry for key, closing its value first when it
// holds non-memory resources.
func (s *Store) Invalidate(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if value, ok := s.entries.Get(key); ok {
		closeValue(value)
		s.entries.Delete(key)
	}
}

// Clear drops every entry, closing values that hold non-memory resources.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range s.entries.Items() {
		closeValue(item.Object)
	}
	s.entries.Flush()
}

// Len returns the number of cached entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries.ItemCount()
}

// Keys returns the cached keys in no particular order.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.entries.Items()
	keys := make([]string, 0, len(items))
	for key := range items {
		keys = append(keys, key)
	}
	return keys
}

func closeValue(value any) {
	if closer, ok := value.(io.Closer); ok {
		// Close errors are deliberately dropped: the entry is being
		// discarded and there is no caller to hand the error to.
		_ = closer.Close()
	}
}
