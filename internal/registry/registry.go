package registry

import (
	"sort"
	"sync"
)

// Kind distinguishes what an artifact decrypts into.
type Kind int

const (
	// KindUnit is a source unit activated into a namespace.
	KindUnit Kind = iota

	// KindModel is an opaque binary artifact loaded into a handle.
	KindModel
)

func (k Kind) String() string {
	if k == KindModel {
		return "model"
	}
	return "unit"
}

// Entry locates one encrypted artifact.
type Entry struct {
	// Path is the absolute location of the encrypted artifact.
	Path string

	Kind Kind

	// Checksum is the optional blake3 hex digest of the artifact bytes,
	// carried from the build manifest.
	Checksum string
}

// Registry maps logical names (dotted unit paths) and canonical artifact
// paths to encrypted-artifact locations. It is append-mostly: population
// and lazy auto-registration add entries, nothing removes them during
// normal operation. Reads are concurrent; writes are serialized.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Lookup returns the entry for name.
func (r *Registry) Lookup(name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[name]
	return entry, ok
}

// Register adds or replaces the entry for name.
func (r *Registry) Register(name string, entry Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = entry
}

// Len returns the number of registered entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
