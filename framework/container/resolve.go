package container

import (
	"fmt"
	"slices"
)

// ── Resolution context ────────────────────────────────────────────────────────

// resolution is one link in the chain of keys being built. The root link
// (parent == nil) carries no key.
type resolution struct {
	key    string
	parent *resolution
}

func newResolution() *resolution {
	return &resolution{}
}

// within reports whether n is r or one of r's ancestors.
func (r *resolution) within(n *resolution) bool {
	for p := r; p != nil; p = p.parent {
		if p == n {
			return true
		}
	}
	return false
}

// contains reports whether key is already being built in this chain.
func (r *resolution) contains(key string) bool {
	for n := r; n != nil && n.parent != nil; n = n.parent {
		if n.key == key {
			return true
		}
	}
	return false
}

// chain lists the keys being built, outermost first.
func (r *resolution) chain() []string {
	var keys []string
	for n := r; n != nil && n.parent != nil; n = n.parent {
		keys = append(keys, n.key)
	}
	slices.Reverse(keys)
	return keys
}

// cycle returns the chain from the first occurrence of key, closed with key.
func (r *resolution) cycle(key string) []string {
	keys := r.chain()
	if i := slices.Index(keys, key); i >= 0 {
		keys = keys[i:]
	}
	return append(keys, key)
}

// ── Resolution ────────────────────────────────────────────────────────────────

// Make resolves an abstract from the container.
//
// A cached singleton is returned as is. Otherwise the bound factory runs with
// a container that tracks the chain of keys being built, so a factory that
// needs its own key (directly or through others) fails with a
// *CircularDependencyError instead of recursing. Unknown keys fail with
// *UnboundKeyError. Errors returned by factories are passed through
// unchanged.
//
//	// Laravel: $app->make(UserRepository::class)
//	repo, err := c.Make("UserRepository")
func (c *Container) Make(abstract string) (any, error) {
	r := c.res
	if r == nil {
		r = c.current()
	}
	return c.make(abstract, r)
}

// current returns the innermost build running on this goroutine, so a
// factory calling Make on an outer reference stays in its own chain.
func (c *Container) current() *resolution {
	if v, ok := c.active.Load(goid()); ok {
		return v.(*resolution)
	}
	return newResolution()
}

// MustMake is like Make but panics on error. Use it in composition roots
// where a missing binding is a programming error.
func (c *Container) MustMake(abstract string) any {
	instance, err := c.Make(abstract)
	if err != nil {
		panic(err)
	}
	return instance
}

func (c *Container) make(abstract string, r *resolution) (any, error) {
	c.mu.RLock()
	key := c.canonical(abstract)
	c.mu.RUnlock()

	if inst, ok := c.cache.get(key); ok {
		return inst, nil
	}

	if r.contains(key) {
		return nil, &CircularDependencyError{Path: r.cycle(key)}
	}

	// Contextual bindings apply to the key currently being built.
	if r.parent != nil {
		if f := c.getContextual(r.key, key); f != nil {
			return c.resolveTransient(key, f, r)
		}
	}

	b, ok := c.lookup(key)
	if !ok {
		if _, err := c.load(abstract, r); err != nil {
			return nil, err
		}
		// Another goroutine's loader may have bound key meanwhile.
		b, ok = c.lookup(key)
	}
	if !ok {
		return nil, &UnboundKeyError{Key: abstract}
	}

	if b.lifetime == Singleton {
		return c.resolveShared(key, b.factory, r)
	}
	return c.resolveTransient(key, b.factory, r)
}

func (c *Container) lookup(key string) (*binding, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.bindings[key]
	return b, ok
}

// load runs the registered loaders until one of them registers abstract.
func (c *Container) load(abstract string, r *resolution) (bool, error) {
	c.mu.RLock()
	loaders := slices.Clone(c.loaders)
	c.mu.RUnlock()

	view := &Container{table: c.table, res: r, loading: true}
	for _, fn := range loaders {
		loaded, err := fn(view, abstract)
		if err != nil || loaded {
			return loaded, err
		}
	}
	return false, nil
}

func (c *Container) resolveTransient(key string, factory Factory, r *resolution) (any, error) {
	instance, err := c.build(&resolution{key: key, parent: r}, factory)
	if err != nil {
		return nil, err
	}
	c.fireResolved(key, instance)
	return instance, nil
}

// resolveShared builds a singleton at most once. Concurrent first calls for
// the same key wait on the caller that owns the cache slot.
func (c *Container) resolveShared(key string, factory Factory, r *resolution) (any, error) {
	node := &resolution{key: key, parent: r}
	for {
		inst, cached, owned, w, err := c.cache.acquire(key, r, node)
		if err != nil {
			return nil, err
		}
		if cached {
			return inst, nil
		}
		if owned != nil {
			return c.buildShared(node, factory, owned)
		}
		<-w.done
		c.cache.unwait(w)
	}
}

func (c *Container) buildShared(node *resolution, factory Factory, s *slot) (instance any, err error) {
	filled := false
	defer func() {
		if !filled {
			c.cache.abandon(node.key, s)
		}
	}()

	instance, err = c.build(node, factory)
	if err != nil {
		return nil, err
	}
	instance = c.cache.fill(node.key, s, instance)
	filled = true

	c.fireResolved(node.key, instance)
	return instance, nil
}

// build runs factory with a view of the container whose chain ends at node,
// then applies extenders. node is also recorded as this goroutine's active
// build for the duration. The view is dropped on return, which is what takes
// node's key back out of the chain on every exit path.
func (c *Container) build(node *resolution, factory Factory) (any, error) {
	view := &Container{table: c.table, res: node}

	id := goid()
	prev, had := c.active.Load(id)
	c.active.Store(id, node)
	defer func() {
		if had {
			c.active.Store(id, prev)
		} else {
			c.active.Delete(id)
		}
	}()

	instance, err := factory(view)
	if err != nil {
		return nil, err
	}
	return c.applyExtenders(node.key, instance, view), nil
}

// ── Generics helper ───────────────────────────────────────────────────────────

// Resolve calls Make and type-asserts the result.
//
//	// Instead of: raw, err := c.Make("db"); db := raw.(*sql.DB)
//	// Write:      db, err := container.Resolve[*sql.DB](c, "db")
func Resolve[T any](c *Container, abstract string) (T, error) {
	var zero T
	instance, err := c.Make(abstract)
	if err != nil {
		return zero, err
	}
	typed, ok := instance.(T)
	if !ok {
		return zero, &TypeMismatchError{
			Key:      abstract,
			Expected: fmt.Sprintf("%T", (*T)(nil))[1:],
			Got:      fmt.Sprintf("%T", instance),
		}
	}
	return typed, nil
}

// MustResolve is like Resolve but panics on error.
func MustResolve[T any](c *Container, abstract string) T {
	typed, err := Resolve[T](c, abstract)
	if err != nil {
		panic(err)
	}
	return typed
}
