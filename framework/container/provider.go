package container

import "sync"

// ── ServiceProvider interface ─────────────────────────────────────────────────

// ServiceProvider mirrors Laravel's Illuminate\Support\ServiceProvider.
//
// Every provider must implement at minimum Register().
// Boot() is called after ALL providers have been registered, making it safe
// to resolve other bindings inside Boot().
//
//	type AppServiceProvider struct{ container.BaseProvider }
//
//	func (p *AppServiceProvider) Register(app *container.Container) {
//	    app.Singleton("clock", func(c *container.Container) (any, error) {
//	        return clock.New(), nil
//	    })
//	}
//
//	func (p *AppServiceProvider) Boot(app *container.Container) error {
//	    _, err := app.Make("clock")
//	    return err
//	}
type ServiceProvider interface {
	// Register binds services into the container.
	// Do NOT resolve other bindings here — use Boot() for that.
	Register(app *Container)

	// Boot is called after all providers are registered.
	// Safe to resolve and use any binding here.
	Boot(app *Container) error

	// Provides returns the list of abstract keys this provider registers.
	// Used for deferred (lazy) provider loading.
	//
	//	// Laravel: public function provides(): array { return [Cache::class]; }
	Provides() []string

	// IsDeferred returns true if this provider should be loaded lazily —
	// only when one of its Provides() abstracts is first resolved.
	//
	//	// Laravel: protected $defer = true;
	IsDeferred() bool
}

// ── BaseProvider ──────────────────────────────────────────────────────────────

// BaseProvider is an embeddable struct that provides no-op implementations
// of Boot(), Provides(), and IsDeferred().
// Embed it in your provider and only override what you need.
//
//	type MyProvider struct{ container.BaseProvider }
//	func (p *MyProvider) Register(app *container.Container) { ... }
type BaseProvider struct{}

func (p *BaseProvider) Boot(_ *Container) error { return nil }
func (p *BaseProvider) Provides() []string      { return nil }
func (p *BaseProvider) IsDeferred() bool        { return false }

// ── ProviderRegistry ──────────────────────────────────────────────────────────

// ProviderRegistry manages registration and booting of ServiceProviders,
// including deferred (lazy) providers.
//
// It mirrors the behaviour of Laravel's Application::registerConfiguredProviders
// and Application::bootProviders. Deferred providers are loaded from the
// container's missing-binding hook the first time one of their abstracts
// is resolved.
type ProviderRegistry struct {
	mu         sync.Mutex
	app        *Container
	eager      []ServiceProvider
	deferred   map[string]ServiceProvider // abstract → provider
	loads      map[ServiceProvider]*deferredLoad
	booted     bool
	registered map[ServiceProvider]bool
}

// deferredLoad tracks a deferred provider while its Register and Boot run.
// Concurrent resolutions of its abstracts wait on done.
type deferredLoad struct {
	done chan struct{}
	gid  int64
	err  error
}

// NewProviderRegistry creates a registry bound to app.
func NewProviderRegistry(app *Container) *ProviderRegistry {
	r := &ProviderRegistry{
		app:        app,
		deferred:   make(map[string]ServiceProvider),
		loads:      make(map[ServiceProvider]*deferredLoad),
		registered: make(map[ServiceProvider]bool),
	}
	app.OnMissing(r.loadDeferred)
	return r
}

// Register adds a provider and calls its Register() method (unless deferred).
// A provider registered after Boot is booted immediately.
//
//	// Laravel: $app->register(new AppServiceProvider($app))
func (r *ProviderRegistry) Register(provider ServiceProvider) error {
	r.mu.Lock()
	if r.registered[provider] {
		r.mu.Unlock()
		return nil
	}
	r.registered[provider] = true

	if provider.IsDeferred() {
		for _, abstract := range provider.Provides() {
			r.deferred[abstract] = provider
		}
		r.mu.Unlock()
		return nil
	}

	r.eager = append(r.eager, provider)
	booted := r.booted
	r.mu.Unlock()

	provider.Register(r.app)
	if booted {
		return provider.Boot(r.app)
	}
	return nil
}

// loadDeferred registers (and, after Boot, boots) the deferred provider for
// abstract. It runs as the container's Loader. A provider loads once;
// callers arriving while it loads wait for it and share its outcome.
func (r *ProviderRegistry) loadDeferred(c *Container, abstract string) (bool, error) {
	r.mu.Lock()
	provider, ok := r.deferred[abstract]
	if !ok {
		r.mu.Unlock()
		return false, nil
	}
	if l, ok := r.loads[provider]; ok {
		r.mu.Unlock()
		// The provider's own Boot asking for an abstract Register did not bind.
		if l.gid == goid() {
			return false, nil
		}
		<-l.done
		return l.err == nil, l.err
	}
	l := &deferredLoad{done: make(chan struct{}), gid: goid()}
	r.loads[provider] = l
	booted := r.booted
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		for _, abs := range provider.Provides() {
			delete(r.deferred, abs)
		}
		delete(r.loads, provider)
		r.mu.Unlock()
		close(l.done)
	}()

	provider.Register(c)
	if booted {
		l.err = provider.Boot(c)
	}
	return l.err == nil, l.err
}

// Boot calls Boot() on all eager providers in registration order and stops
// at the first error. Calling it again is a no-op.
//
//	// Laravel: $app->boot()
func (r *ProviderRegistry) Boot() error {
	r.mu.Lock()
	if r.booted {
		r.mu.Unlock()
		return nil
	}
	r.booted = true
	providers := append([]ServiceProvider(nil), r.eager...)
	r.mu.Unlock()

	for _, provider := range providers {
		if err := provider.Boot(r.app); err != nil {
			return err
		}
	}
	return nil
}

// Booted returns true if Boot() has been called.
func (r *ProviderRegistry) Booted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.booted
}

// Providers returns all registered eager providers.
func (r *ProviderRegistry) Providers() []ServiceProvider {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ServiceProvider(nil), r.eager...)
}

// Deferred returns the abstracts still waiting on a deferred provider.
func (r *ProviderRegistry) Deferred() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.deferred))
	for abs := range r.deferred {
		out = append(out, abs)
	}
	return out
}
