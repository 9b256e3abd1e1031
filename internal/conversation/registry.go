package conversation

import (
	"context"
	"sync"
	"time"

	"shopassist/internal/observability"
)

const (
	DefaultIdleTTL       = 2 * time.Hour
	defaultSweepInterval = time.Minute
)

type registryEntry struct {
	store    *Store
	lastSeen time.Time
}

// Registry maps browser session keys to their Store and forgets Stores that
// have been idle longer than the configured TTL.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*registryEntry
	opts    Options
	idleTTL time.Duration
	now     func() time.Time
}

func NewRegistry(opts Options, idleTTL time.Duration) *Registry {
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	return &Registry{
		entries: make(map[string]*registryEntry),
		opts:    opts,
		idleTTL: idleTTL,
		now:     time.Now,
	}
}

// Get returns the Store for key, if one is live.
func (r *Registry) Get(key string) (*Store, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key]
	if !ok {
		return nil, false
	}
	e.lastSeen = r.now()
	return e.store, true
}

// GetOrCreate returns the Store for key, starting a new session when needed.
func (r *Registry) GetOrCreate(key string) *Store {
	r.mu.Lock()
	e, ok := r.entries[key]
	if !ok {
		e = &registryEntry{store: NewStore(r.opts)}
		r.entries[key] = e
	}
	e.lastSeen = r.now()
	n := len(r.entries)
	r.mu.Unlock()
	if !ok {
		observability.SetActiveSessions(n)
	}
	return e.store
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// StartJanitor evicts idle Stores every interval until ctx is done.
func (r *Registry) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := r.evictIdle(); n > 0 {
					observability.Logger().Info("evicted idle sessions", "count", n)
				}
			}
		}
	}()
}

// evictIdle drops Stores idle past the TTL. Stores with a call in flight stay.
func (r *Registry) evictIdle() int {
	now := r.now()
	r.mu.Lock()
	evicted := 0
	for key, e := range r.entries {
		if now.Sub(e.lastSeen) < r.idleTTL || e.store.IsLoading() {
			continue
		}
		delete(r.entries, key)
		evicted++
	}
	n := len(r.entries)
	r.mu.Unlock()
	if evicted > 0 {
		observability.SetActiveSessions(n)
	}
	return evicted
}

// Wait blocks until every live Store has no call in flight.
func (r *Registry) Wait() {
	r.mu.Lock()
	stores := make([]*Store, 0, len(r.entries))
	for _, e := range r.entries {
		stores = append(stores, e.store)
	}
	r.mu.Unlock()
	for _, s := range stores {
		s.Wait()
	}
}
