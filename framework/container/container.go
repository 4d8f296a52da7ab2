package container

import (
	"fmt"
	"reflect"
	"slices"
	"sync"
)

// ── Binding types ─────────────────────────────────────────────────────────────

// Factory builds a concrete value from the container. The container it
// receives tracks the resolution in progress. Resolving through an outer
// reference works on the factory's own goroutine; goroutines the factory
// starts must use the container it was given.
type Factory func(c *Container) (any, error)

// binding holds a registered factory and its lifetime.
type binding struct {
	factory  Factory
	lifetime Lifetime
}

// extender wraps a freshly built instance with decorator logic.
type extender func(instance any, c *Container) any

// Loader is consulted when Make finds no binding for a key. It may register
// bindings through the container it receives and reports whether it did.
// A non-nil error aborts the Make call with that error.
type Loader func(c *Container, abstract string) (bool, error)

// BindingInfo describes one registered key.
type BindingInfo struct {
	Key      string   `json:"key"`
	Lifetime string   `json:"lifetime"`
	Resolved bool     `json:"resolved"`
	Aliases  []string `json:"aliases,omitempty"`
}

// ── Container ─────────────────────────────────────────────────────────────────

// table is the state shared by a container and every view of it handed to
// factories during resolution.
type table struct {
	mu sync.RWMutex

	// abstract → binding
	bindings map[string]*binding

	// alias → abstract (canonical key)
	aliases map[string]string

	// abstract → extender funcs
	extenders map[string][]extender

	// tag → []abstract
	tags map[string][]string

	// contextual: when[concrete][abstract] = factory
	contextual map[string]map[string]Factory

	// rebound callbacks: abstract → []func(any)
	reboundCallbacks map[string][]func(any)

	// resolved callbacks: []func(abstract, instance)
	afterResolving []func(string, any)

	// abstracts resolved at least once, and those rebound since
	resolved map[string]bool
	rebound  map[string]bool

	loaders []Loader
	frozen  bool

	cache *instanceCache

	// goroutine id → innermost build running on that goroutine
	active sync.Map
}

// Container is the IoC container, modelled on Laravel's
// Illuminate\Container\Container.
//
// It supports:
//   - Bind / Singleton / Instance / Alias
//   - Make / Resolve (generic) with cycle detection
//   - Tags, Extend, contextual binding
//   - Rebound and resolved callbacks
//   - Freeze once wiring is done
//
// Registration is expected to happen in a single-threaded wiring phase.
// Make is safe for concurrent use; registering while other goroutines
// resolve is a precondition violation, which Freeze turns into a panic.
type Container struct {
	*table

	// res is the resolution in progress; nil on the root container.
	res *resolution

	// loading permits registration on a frozen container while a Loader runs.
	loading bool
}

// New creates an empty container bound to itself as "container".
func New() *Container {
	c := &Container{table: &table{
		bindings:         make(map[string]*binding),
		aliases:          make(map[string]string),
		extenders:        make(map[string][]extender),
		tags:             make(map[string][]string),
		contextual:       make(map[string]map[string]Factory),
		reboundCallbacks: make(map[string][]func(any)),
		resolved:         make(map[string]bool),
		rebound:          make(map[string]bool),
		cache:            newInstanceCache(),
	}}
	c.Instance("container", c)
	return c
}

// ── Registration ──────────────────────────────────────────────────────────────

// Bind registers a transient factory: every Make runs it again.
// The factory is not invoked here.
//
//	// Laravel: $app->bind(UserRepository::class, fn($app) => new EloquentUserRepository($app))
//	c.Bind("UserRepository", func(c *container.Container) (any, error) {
//	    db, err := container.Resolve[*sql.DB](c, "db")
//	    if err != nil {
//	        return nil, err
//	    }
//	    return &EloquentUserRepository{DB: db}, nil
//	})
func (c *Container) Bind(abstract string, factory Factory) {
	c.bind(abstract, factory, Transient)
}

// Singleton registers a factory whose result is cached after first
// resolution. Rebinding a key drops its cached instance.
//
//	// Laravel: $app->singleton(Cache::class, fn($app) => new RedisCache($app))
//	c.Singleton("cache", func(c *container.Container) (any, error) {
//	    return cache.NewRedis(), nil
//	})
func (c *Container) Singleton(abstract string, factory Factory) {
	c.bind(abstract, factory, Singleton)
}

// Instance registers a pre-built value as a resolved singleton.
//
//	// Laravel: $app->instance(Config::class, $config)
//	c.Instance("config", myConfig)
func (c *Container) Instance(abstract string, instance any) {
	wasBound, cbs := c.register(func(key string) {
		c.bindings[key] = &binding{
			factory:  func(*Container) (any, error) { return instance, nil },
			lifetime: Singleton,
		}
		c.cache.put(key, instance)
	}, abstract)

	if wasBound {
		for _, cb := range cbs {
			cb(instance)
		}
	}
}

// register runs fn under the write lock for the canonical key and reports
// whether the key was bound beforehand, with its rebound callbacks.
func (c *Container) register(fn func(key string), abstract string) (bool, []func(any)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checkFrozen()
	key := c.canonical(abstract)
	_, wasBound := c.bindings[key]
	fn(key)
	return wasBound, c.reboundCallbacks[key]
}

// bind is the shared registration path for Bind and Singleton.
func (c *Container) bind(abstract string, factory Factory, lifetime Lifetime) {
	if factory == nil {
		panic(fmt.Sprintf("container: nil factory for [%s]", abstract))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.checkFrozen()

	key := c.canonical(abstract)

	// Drop the cached instance so the next Make runs the new factory.
	c.cache.forget(key)
	if c.resolved[key] {
		c.rebound[key] = true
	}

	c.bindings[key] = &binding{factory: factory, lifetime: lifetime}
}

// Alias registers an alternative name for an abstract.
//
//	// Laravel: $app->alias(Cache::class, 'cache')
//	c.Alias("cache", "cacheManager")
func (c *Container) Alias(abstract, alias string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checkFrozen()
	if abstract == alias {
		panic(fmt.Sprintf("container: [%s] is aliased to itself", abstract))
	}
	c.aliases[alias] = c.canonical(abstract)
}

// Freeze ends the wiring phase. Any later registration panics with ErrFrozen.
func (c *Container) Freeze() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frozen = true
}

// Frozen reports whether Freeze has been called.
func (c *Container) Frozen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.frozen
}

// checkFrozen panics when registering on a frozen container (must hold mu).
func (c *Container) checkFrozen() {
	if c.frozen && !c.loading {
		panic(ErrFrozen)
	}
}

// OnMissing adds a Loader consulted when Make finds no binding.
func (c *Container) OnMissing(fn Loader) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checkFrozen()
	c.loaders = append(c.loaders, fn)
}

// ── Contextual Binding ────────────────────────────────────────────────────────

// When starts a contextual binding chain.
//
//	// Laravel: $app->when(PhotoController::class)->needs(Filesystem::class)->give(fn() => new S3)
//	c.When("PhotoController").Needs("Filesystem").Give(func(c *container.Container) (any, error) {
//	    return filesystem.NewS3(), nil
//	})
func (c *Container) When(concrete string) *ContextualBuilder {
	return &ContextualBuilder{container: c, concrete: concrete}
}

// getContextual returns the contextual factory for (concrete, abstract), or nil.
func (c *Container) getContextual(concrete, abstract string) Factory {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if m, ok := c.contextual[concrete]; ok {
		if f, ok := m[abstract]; ok {
			return f
		}
	}
	return nil
}

// ── Extend ────────────────────────────────────────────────────────────────────

// Extend decorates the resolved instance of an abstract. An already cached
// singleton is decorated in place and rebound callbacks fire.
//
//	// Laravel: $app->extend(Logger::class, fn($logger, $app) => new TimestampLogger($logger))
//	c.Extend("logger", func(instance any, c *container.Container) any {
//	    return logging.NewTimestampWrapper(instance.(*Logger))
//	})
func (c *Container) Extend(abstract string, fn func(instance any, c *Container) any) {
	var key string
	_, cbs := c.register(func(k string) {
		key = k
		c.extenders[k] = append(c.extenders[k], fn)
	}, abstract)

	extended, ok := c.cache.replace(key, func(inst any) any { return fn(inst, c) })
	if !ok {
		return
	}
	for _, cb := range cbs {
		cb(extended)
	}
}

func (c *Container) applyExtenders(key string, instance any, view *Container) any {
	c.mu.RLock()
	exts := c.extenders[key]
	c.mu.RUnlock()
	for _, ext := range exts {
		instance = ext(instance, view)
	}
	return instance
}

// ── Tags ──────────────────────────────────────────────────────────────────────

// Tag associates multiple abstracts under a named group.
//
//	// Laravel: $app->tag([CpuReport::class, MemoryReport::class], 'reports')
//	c.Tag([]string{"CpuReport", "MemoryReport"}, "reports")
func (c *Container) Tag(abstracts []string, tag string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checkFrozen()
	c.tags[tag] = append(c.tags[tag], abstracts...)
}

// Tagged resolves all abstracts registered under a tag, stopping at the
// first failure.
//
//	// Laravel: $app->tagged('reports')
//	reports, err := c.Tagged("reports")
func (c *Container) Tagged(tag string) ([]any, error) {
	c.mu.RLock()
	abstracts := slices.Clone(c.tags[tag])
	c.mu.RUnlock()

	result := make([]any, 0, len(abstracts))
	for _, abs := range abstracts {
		instance, err := c.Make(abs)
		if err != nil {
			return nil, err
		}
		result = append(result, instance)
	}
	return result, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// Bound returns true if an abstract has been registered.
//
//	// Laravel: $app->bound(UserRepository::class)
func (c *Container) Bound(abstract string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.bindings[c.canonical(abstract)]
	return ok
}

// Resolved returns true if the abstract has been resolved at least once or
// holds a cached instance.
//
//	// Laravel: $app->resolved(Cache::class)
func (c *Container) Resolved(abstract string) bool {
	c.mu.RLock()
	key := c.canonical(abstract)
	resolved := c.resolved[key]
	c.mu.RUnlock()
	return resolved || c.cache.has(key)
}

// Forget removes all registrations for an abstract (binding + instance).
//
//	// Laravel: $app->forgetInstance(Cache::class)
func (c *Container) Forget(abstract string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checkFrozen()
	key := c.canonical(abstract)
	delete(c.bindings, key)
	delete(c.resolved, key)
	delete(c.rebound, key)
	c.cache.forget(key)
}

// Flush resets the entire container, including the frozen flag.
func (c *Container) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bindings = make(map[string]*binding)
	c.aliases = make(map[string]string)
	c.extenders = make(map[string][]extender)
	c.tags = make(map[string][]string)
	c.contextual = make(map[string]map[string]Factory)
	c.reboundCallbacks = make(map[string][]func(any))
	c.afterResolving = nil
	c.resolved = make(map[string]bool)
	c.rebound = make(map[string]bool)
	c.loaders = nil
	c.frozen = false
	c.cache.flush()
}

// Bindings returns the registered abstract keys, sorted.
func (c *Container) Bindings() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.bindings))
	for k := range c.bindings {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// Describe reports every binding with its lifetime, resolution state and
// aliases, sorted by key.
func (c *Container) Describe() []BindingInfo {
	c.mu.RLock()
	aliases := make(map[string][]string)
	for alias, key := range c.aliases {
		aliases[key] = append(aliases[key], alias)
	}
	out := make([]BindingInfo, 0, len(c.bindings))
	for k, b := range c.bindings {
		names := aliases[k]
		slices.Sort(names)
		out = append(out, BindingInfo{
			Key:      k,
			Lifetime: b.lifetime.String(),
			Resolved: c.resolved[k],
			Aliases:  names,
		})
	}
	c.mu.RUnlock()

	for i := range out {
		out[i].Resolved = out[i].Resolved || c.cache.has(out[i].Key)
	}
	slices.SortFunc(out, func(a, b BindingInfo) int {
		switch {
		case a.Key < b.Key:
			return -1
		case a.Key > b.Key:
			return 1
		}
		return 0
	})
	return out
}

// canonical resolves an alias to its canonical key (must hold mu).
func (c *Container) canonical(abstract string) string {
	if target, ok := c.aliases[abstract]; ok {
		return target
	}
	return abstract
}

// ── Callbacks ─────────────────────────────────────────────────────────────────

// Rebinding registers a callback fired with the new instance the first time
// an abstract is resolved after being re-bound, or immediately when Instance
// replaces an existing binding.
//
//	// Laravel: $app->rebinding(UserRepository::class, fn($app, $repo) => ...)
func (c *Container) Rebinding(abstract string, cb func(any)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := c.canonical(abstract)
	c.reboundCallbacks[key] = append(c.reboundCallbacks[key], cb)
}

// AfterResolving registers a callback fired after any abstract is built.
//
//	// Laravel: $app->afterResolving(fn($object, $app) => ...)
func (c *Container) AfterResolving(cb func(abstract string, instance any)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.afterResolving = append(c.afterResolving, cb)
}

// fireResolved records key as resolved and runs rebound and resolved callbacks.
func (c *Container) fireResolved(key string, instance any) {
	c.mu.Lock()
	c.resolved[key] = true
	var rebound []func(any)
	if c.rebound[key] {
		delete(c.rebound, key)
		rebound = c.reboundCallbacks[key]
	}
	after := c.afterResolving
	c.mu.Unlock()

	for _, cb := range rebound {
		cb(instance)
	}
	for _, cb := range after {
		cb(key, instance)
	}
}

// ── Reflect helpers ───────────────────────────────────────────────────────────

// TypeKey returns the package-qualified type name of v, useful as a stable
// abstract key when working with interfaces.
//
//	key := container.TypeKey((*UserRepository)(nil))  // "main.UserRepository"
//	c.Singleton(key, factory)
//	repo, err := container.Resolve[UserRepository](c, key)
func TypeKey(v any) string {
	t := reflect.TypeOf(v)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.PkgPath() + "." + t.Name()
}
