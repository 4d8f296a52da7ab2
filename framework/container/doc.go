// Package container provides a Laravel-style IoC (Inversion of Control)
// container and Service Provider system for Go.
//
// # Overview
//
// The container manages the instantiation and lifecycle of an application's
// dependencies. It supports transient bindings, singletons, pre-built
// instances, aliases, tags, contextual bindings and extension (decoration).
// Because Go has no runtime constructor reflection, auto-wiring is replaced by
// explicit factory functions.
//
// There is no package-level container. Build one at the entry point and pass
// it to whatever needs to resolve dependencies.
//
// # Container Lifecycle
//
//  1. Create: c := container.New()
//  2. Register providers: registry.Register(&MyProvider{})
//  3. Boot: registry.Boot()        — safe to resolve everything after this
//  4. Freeze: c.Freeze()           — later registration panics with ErrFrozen
//  5. Serve requests; Make is safe for concurrent use
//
// # Bindings
//
//	// Transient — new instance every Make()
//	c.Bind("Foo", func(c *container.Container) (any, error) { return &Foo{}, nil })
//
//	// Singleton — created once, reused
//	c.Singleton("cache", func(c *container.Container) (any, error) {
//	    cfg, err := container.Resolve[*Config](c, "config")
//	    if err != nil {
//	        return nil, err
//	    }
//	    return cache.NewRedis(cfg), nil
//	})
//
//	// Pre-built value
//	c.Instance("config", myConfig)
//
//	// Alias
//	c.Alias("cache", "cacheManager")
//
// # Resolving
//
//	raw, err := c.Make("cache")
//	cache, err := container.Resolve[*RedisCache](c, "cache")
//
// Factories receive a container that tracks the keys being built. A factory
// that depends on its own key, directly or through other bindings, gets a
// *CircularDependencyError naming the cycle:
//
//	container: circular dependency detected: A -> B -> A
//
// Unknown keys fail with *UnboundKeyError. Errors returned by a factory come
// back from Make unchanged.
//
// # Concurrency
//
// The first resolution of a singleton is serialized per key: concurrent
// callers wait for the one running the factory and share its result, so the
// factory runs once. A wait that could never end, such as two goroutines each
// building a singleton the other needs, fails with *CircularDependencyError.
// Goroutines a factory starts must resolve through the container the factory
// received. Warm resolves a list of keys on a worker pool at boot.
//
// # Contextual Binding
//
//	c.When("PhotoController").
//	    Needs("Filesystem").
//	    Give(func(c *container.Container) (any, error) { return &S3Filesystem{}, nil })
//
// # Tags
//
//	c.Tag([]string{"CpuReport", "MemReport"}, "reports")
//	reports, err := c.Tagged("reports")
//
// # Extend / Decorate
//
//	c.Extend("logger", func(instance any, c *container.Container) any {
//	    return &TimestampLogger{Inner: instance.(*Logger)}
//	})
//
// # Service Providers
//
//	type AppServiceProvider struct{ container.BaseProvider }
//
//	func (p *AppServiceProvider) Register(app *container.Container) {
//	    app.Singleton("mailer", func(c *container.Container) (any, error) {
//	        return mail.NewSMTP(), nil
//	    })
//	}
//
//	registry := container.NewProviderRegistry(c)
//	registry.Register(&AppServiceProvider{})
//	registry.Boot()
//
// # Deferred Providers
//
//	type HeavyProvider struct{ container.BaseProvider }
//
//	func (p *HeavyProvider) IsDeferred() bool   { return true }
//	func (p *HeavyProvider) Provides() []string { return []string{"heavy"} }
//	func (p *HeavyProvider) Register(app *container.Container) {
//	    app.Singleton("heavy", func(c *container.Container) (any, error) {
//	        return heavySetup() // only called on first app.Make("heavy")
//	    })
//	}
package container
