package container

import (
	"slices"
	"sync"
)

// ── Instance cache ────────────────────────────────────────────────────────────

// slot is the cache entry for one singleton key. While a build is in flight
// done is open and owner is the build link running the factory; once filled,
// ready is true and value never changes until the slot is dropped.
type slot struct {
	value any
	ready bool
	done  chan struct{}
	owner *resolution
}

// waiter records a resolution blocked on another build's slot.
type waiter struct {
	at   *resolution
	key  string
	done <-chan struct{}
}

// instanceCache memoizes singleton resolutions. First resolution of a key is
// serialized through its slot: one caller builds, concurrent callers wait on
// done and then read the stored value.
type instanceCache struct {
	mu      sync.Mutex
	slots   map[string]*slot
	waiters map[*waiter]struct{}
}

func newInstanceCache() *instanceCache {
	return &instanceCache{
		slots:   make(map[string]*slot),
		waiters: make(map[*waiter]struct{}),
	}
}

// get returns the cached value for key, or false on a miss.
func (ic *instanceCache) get(key string) (any, bool) {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	if s, ok := ic.slots[key]; ok && s.ready {
		return s.value, true
	}
	return nil, false
}

// has reports whether key holds a filled value.
func (ic *instanceCache) has(key string) bool {
	_, ok := ic.get(key)
	return ok
}

// acquire either returns the cached value, hands node a fresh slot to fill
// (owned), or registers r as a waiter on the build in progress. A wait that
// would close a cycle between builds fails instead of blocking. A returned
// waiter must be passed to unwait once its done channel closes.
func (ic *instanceCache) acquire(key string, r, node *resolution) (value any, cached bool, owned *slot, w *waiter, err error) {
	ic.mu.Lock()
	defer ic.mu.Unlock()

	s, ok := ic.slots[key]
	if !ok {
		s = &slot{done: make(chan struct{}), owner: node}
		ic.slots[key] = s
		return nil, false, s, nil, nil
	}
	if s.ready {
		return s.value, true, nil, nil, nil
	}
	if path := ic.waitCycle(key, r); path != nil {
		return nil, false, nil, nil, &CircularDependencyError{Path: path}
	}
	w = &waiter{at: r, key: key, done: s.done}
	ic.waiters[w] = struct{}{}
	return nil, false, nil, w, nil
}

// unwait drops a waiter registered by acquire.
func (ic *instanceCache) unwait(w *waiter) {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	delete(ic.waiters, w)
}

// waitCycle reports whether r waiting on key would deadlock. A build is
// blocked on every key some resolution below it waits on; following those
// edges from key's owner back to a build r is part of means nobody can make
// progress. The returned path runs from the first occurrence of the repeated
// key. Must hold ic.mu.
func (ic *instanceCache) waitCycle(key string, r *resolution) []string {
	seen := make(map[*resolution]bool)

	var walk func(key string, path []string) []string
	walk = func(key string, path []string) []string {
		s, ok := ic.slots[key]
		if !ok || s.ready || s.owner == nil {
			return nil
		}
		if r.within(s.owner) {
			return path
		}
		if seen[s.owner] {
			return nil
		}
		seen[s.owner] = true

		for w := range ic.waiters {
			if !w.at.within(s.owner) {
				continue
			}
			if found := walk(w.key, append(slices.Clip(path), w.key)); found != nil {
				return found
			}
		}
		return nil
	}

	path := walk(key, append(r.chain(), key))
	if path == nil {
		return nil
	}
	if i := slices.Index(path, path[len(path)-1]); i >= 0 {
		path = path[i:]
	}
	return path
}

// fill stores v into the slot the caller owns and wakes waiters. If the key
// already holds a value the stored one wins and is returned. If the slot was
// dropped meanwhile (rebind, forget) v is returned uncached.
func (ic *instanceCache) fill(key string, s *slot, v any) any {
	ic.mu.Lock()
	defer ic.mu.Unlock()

	defer ic.release(s)

	cur, ok := ic.slots[key]
	if !ok || cur != s {
		if ok && cur.ready {
			return cur.value
		}
		return v
	}
	if s.ready {
		return s.value
	}
	s.value, s.ready = v, true
	return v
}

// abandon drops an owned slot after a failed build so waiters retry.
func (ic *instanceCache) abandon(key string, s *slot) {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	if cur, ok := ic.slots[key]; ok && cur == s && !s.ready {
		delete(ic.slots, key)
	}
	ic.release(s)
}

// release closes a slot's done channel once. Must hold ic.mu.
func (ic *instanceCache) release(s *slot) {
	if s.done != nil {
		close(s.done)
		s.done = nil
	}
	s.owner = nil
}

// put stores a prebuilt value, replacing whatever was cached.
func (ic *instanceCache) put(key string, v any) {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	if old, ok := ic.slots[key]; ok {
		ic.release(old)
	}
	ic.slots[key] = &slot{value: v, ready: true}
}

// replace swaps a filled value in place. It is a no-op on a miss.
func (ic *instanceCache) replace(key string, fn func(any) any) (any, bool) {
	ic.mu.Lock()
	s, ok := ic.slots[key]
	if !ok || !s.ready {
		ic.mu.Unlock()
		return nil, false
	}
	old := s.value
	ic.mu.Unlock()

	v := fn(old)

	ic.mu.Lock()
	defer ic.mu.Unlock()
	if cur, ok := ic.slots[key]; ok && cur == s {
		s.value = v
	}
	return v, true
}

// forget drops key. An in-flight owner still finishes and wakes its waiters
// but its result is not cached.
func (ic *instanceCache) forget(key string) {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	delete(ic.slots, key)
}

// flush drops every slot.
func (ic *instanceCache) flush() {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	ic.slots = make(map[string]*slot)
}
