// Package registry tracks the short-lived files the server hands out and
// owns their deletion.
package registry

import (
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/guiyumin/mediadrop/internal/core/logger"
)

var log = logger.Get("Registry")

// ErrNotFound is returned for unknown, consumed or expired ids.
var ErrNotFound = errors.New("file not found")

// Entry binds an opaque id to a file path.
type Entry struct {
	ID        string
	Path      string
	CreatedAt time.Time
}

// Journal persists entries so a restarted process can keep serving and
// reaping them.
type Journal interface {
	Put(e Entry) error
	Delete(id string) error
	Load() ([]Entry, error)
	Close() error
}

// Registry maps ids to paths. Remove is the only way an entry leaves the
// map, and only the caller it reports true to may delete the file.
type Registry struct {
	mu      sync.Mutex
	entries map[string]Entry
	held    map[string]int
	root    string
	journal Journal
	now     func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithJournal mirrors every change into j.
func WithJournal(j Journal) Option {
	return func(r *Registry) { r.journal = j }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// New creates a registry for files under root.
func New(root string, opts ...Option) *Registry {
	if root != "" {
		if abs, err := filepath.Abs(root); err == nil {
			root = abs
		}
	}
	r := &Registry{
		entries: make(map[string]Entry),
		held:    make(map[string]int),
		root:    root,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Root returns the managed storage root.
func (r *Registry) Root() string {
	return r.root
}

// Register records path under a fresh id.
func (r *Registry) Register(path string) (Entry, error) {
	if path == "" {
		return Entry{}, errors.New("empty path")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return Entry{}, err
	}

	e := Entry{
		ID:        uuid.New().String(),
		Path:      abs,
		CreatedAt: r.now(),
	}

	r.mu.Lock()
	r.entries[e.ID] = e
	r.mu.Unlock()

	if r.journal != nil {
		if err := r.journal.Put(e); err != nil {
			log.Emit(logger.WARNING, "Journal write for %s failed: %v", e.ID, err)
		}
	}
	return e, nil
}

// Resolve looks up id without consuming it.
func (r *Registry) Resolve(id string) (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return e, nil
}

// Remove drops id from the registry. It reports true to exactly one
// caller per id; that caller owns deleting the file.
func (r *Registry) Remove(id string) (Entry, bool) {
	r.mu.Lock()
	e, ok := r.entries[id]
	if ok {
		delete(r.entries, id)
	}
	r.mu.Unlock()

	if ok && r.journal != nil {
		if err := r.journal.Delete(id); err != nil {
			log.Emit(logger.WARNING, "Journal delete for %s failed: %v", id, err)
		}
	}
	return e, ok
}

// Expired returns the entries older than ttl at now. The entries stay
// registered; callers take them with Remove.
func (r *Registry) Expired(now time.Time, ttl time.Duration) []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Entry
	for _, e := range r.entries {
		if now.Sub(e.CreatedAt) > ttl {
			out = append(out, e)
		}
	}
	return out
}

// Snapshot returns a copy of all live entries.
func (r *Registry) Snapshot() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	return out
}

// Hold marks dir as in use by a running acquisition so the orphan sweep
// leaves it alone. Every Hold needs a matching Unhold.
func (r *Registry) Hold(dir string) {
	dir = absPath(dir)
	r.mu.Lock()
	r.held[dir]++
	r.mu.Unlock()
}

// Unhold releases one Hold on dir.
func (r *Registry) Unhold(dir string) {
	dir = absPath(dir)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.held[dir] <= 1 {
		delete(r.held, dir)
		return
	}
	r.held[dir]--
}

// Held returns the directories currently held.
func (r *Registry) Held() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.held))
	for dir := range r.held {
		out = append(out, dir)
	}
	return out
}

// Len returns the number of live entries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Restore reloads journaled entries whose files still exist. Entries
// pointing at vanished files are dropped from the journal.
func (r *Registry) Restore() (int, error) {
	if r.journal == nil {
		return 0, nil
	}
	entries, err := r.journal.Load()
	if err != nil {
		return 0, err
	}

	restored := 0
	for _, e := range entries {
		if !exists(e.Path) || !within(r.root, e.Path) {
			if err := r.journal.Delete(e.ID); err != nil {
				log.Emit(logger.WARNING, "Journal delete for %s failed: %v", e.ID, err)
			}
			continue
		}
		r.mu.Lock()
		r.entries[e.ID] = e
		r.mu.Unlock()
		restored++
	}
	return restored, nil
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

// Close closes the journal, if any.
func (r *Registry) Close() error {
	if r.journal == nil {
		return nil
	}
	return r.journal.Close()
}
