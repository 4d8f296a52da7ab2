package container_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/km-arc/go-container/framework/container"
)

// ── stub providers ────────────────────────────────────────────────────────────

type eagerProvider struct {
	container.BaseProvider
	registerCalled bool
	bootCalled     bool
}

func (p *eagerProvider) Register(app *container.Container) {
	p.registerCalled = true
	app.Singleton("eager-svc", func(c *container.Container) (any, error) { return "eager", nil })
}

func (p *eagerProvider) Boot(app *container.Container) error {
	p.bootCalled = true
	return nil
}

// deferredProvider is lazy — only registered when "deferred-svc" is first resolved.
type deferredProvider struct {
	container.BaseProvider
	registerCalled bool
	bootCalled     bool
}

func (p *deferredProvider) Register(app *container.Container) {
	p.registerCalled = true
	app.Singleton("deferred-svc", func(c *container.Container) (any, error) { return "deferred-value", nil })
}

func (p *deferredProvider) Boot(app *container.Container) error {
	p.bootCalled = true
	return nil
}

func (p *deferredProvider) IsDeferred() bool   { return true }
func (p *deferredProvider) Provides() []string { return []string{"deferred-svc"} }

// multiProvider registers multiple abstracts.
type multiProvider struct {
	container.BaseProvider
}

func (p *multiProvider) Register(app *container.Container) {
	app.Singleton("alpha", func(c *container.Container) (any, error) { return "α", nil })
	app.Singleton("beta", func(c *container.Container) (any, error) { return "β", nil })
}

// failingProvider fails to boot.
type failingProvider struct {
	container.BaseProvider
	err error
}

func (p *failingProvider) Register(app *container.Container) {}

func (p *failingProvider) Boot(app *container.Container) error { return p.err }

// slowProvider is deferred and takes a while to register.
type slowProvider struct {
	container.BaseProvider
	registers atomic.Int32
	boots     atomic.Int32
}

func (p *slowProvider) Register(app *container.Container) {
	p.registers.Add(1)
	time.Sleep(20 * time.Millisecond)
	app.Singleton("heavy", func(c *container.Container) (any, error) { return &service{name: "heavy"}, nil })
}

func (p *slowProvider) Boot(app *container.Container) error {
	p.boots.Add(1)
	return nil
}

func (p *slowProvider) IsDeferred() bool   { return true }
func (p *slowProvider) Provides() []string { return []string{"heavy"} }

// halfProvider claims two abstracts but binds only one, then needs the other.
type halfProvider struct {
	container.BaseProvider
}

func (p *halfProvider) Register(app *container.Container) {
	app.Singleton("half-a", func(c *container.Container) (any, error) { return "a", nil })
}

func (p *halfProvider) Boot(app *container.Container) error {
	_, err := app.Make("half-b")
	return err
}

func (p *halfProvider) IsDeferred() bool   { return true }
func (p *halfProvider) Provides() []string { return []string{"half-a", "half-b"} }

// ── ProviderRegistry ──────────────────────────────────────────────────────────

func TestRegistry_EagerProvider_RegisterCalled(t *testing.T) {
	c := container.New()
	reg := container.NewProviderRegistry(c)

	p := &eagerProvider{}
	reg.Register(p)

	if !p.registerCalled {
		t.Error("Register() should be called immediately for eager providers")
	}
}

func TestRegistry_EagerProvider_BootCalledAfterBoot(t *testing.T) {
	c := container.New()
	reg := container.NewProviderRegistry(c)

	p := &eagerProvider{}
	reg.Register(p)

	if p.bootCalled {
		t.Error("Boot() should NOT be called before registry.Boot()")
	}

	reg.Boot()

	if !p.bootCalled {
		t.Error("Boot() should be called after registry.Boot()")
	}
}

func TestRegistry_EagerProvider_ServiceResolvable(t *testing.T) {
	c := container.New()
	reg := container.NewProviderRegistry(c)
	reg.Register(&eagerProvider{})
	reg.Boot()

	got := container.MustResolve[string](c, "eager-svc")
	if got != "eager" {
		t.Errorf("eager-svc: got %q, want 'eager'", got)
	}
}

func TestRegistry_Boot_IdempotentCallsAreIgnored(t *testing.T) {
	c := container.New()
	reg := container.NewProviderRegistry(c)

	p := &eagerProvider{}
	reg.Register(p)

	reg.Boot()
	reg.Boot() // second call should be no-op

	if !reg.Booted() {
		t.Error("Booted() should be true after Boot()")
	}
}

func TestRegistry_Booted_FalseBeforeBoot(t *testing.T) {
	c := container.New()
	reg := container.NewProviderRegistry(c)
	if reg.Booted() {
		t.Error("Booted() should be false before Boot()")
	}
}

func TestRegistry_DuplicateRegister_Ignored(t *testing.T) {
	c := container.New()
	reg := container.NewProviderRegistry(c)

	p := &eagerProvider{}
	reg.Register(p)
	reg.Register(p) // second register of same instance

	// registerCalled should still only reflect one real registration
	if !p.registerCalled {
		t.Error("provider should have been registered once")
	}
}

// ── Deferred providers ────────────────────────────────────────────────────────

func TestRegistry_DeferredProvider_NotRegisteredEagerly(t *testing.T) {
	c := container.New()
	reg := container.NewProviderRegistry(c)

	p := &deferredProvider{}
	reg.Register(p)
	reg.Boot()

	// Provider.Register should NOT have been called yet
	if p.registerCalled {
		t.Error("deferred provider Register() should not be called until Make()")
	}
}

func TestRegistry_DeferredProvider_RegisteredOnFirstMake(t *testing.T) {
	c := container.New()
	reg := container.NewProviderRegistry(c)

	p := &deferredProvider{}
	reg.Register(p)
	reg.Boot()

	// Trigger lazy load
	got, err := container.Resolve[string](c, "deferred-svc")
	if err != nil {
		t.Fatalf("deferred-svc: %v", err)
	}
	if got != "deferred-value" {
		t.Errorf("deferred-svc: got %q, want 'deferred-value'", got)
	}
	if !p.registerCalled || !p.bootCalled {
		t.Error("deferred provider should be registered and booted on first Make()")
	}
	if len(reg.Deferred()) != 0 {
		t.Errorf("Deferred(): got %v, want none left", reg.Deferred())
	}
}

func TestRegistry_DeferredProvider_LoadsOnFrozenContainer(t *testing.T) {
	c := container.New()
	reg := container.NewProviderRegistry(c)
	reg.Register(&deferredProvider{})
	if err := reg.Boot(); err != nil {
		t.Fatal(err)
	}
	c.Freeze()

	got, err := container.Resolve[string](c, "deferred-svc")
	if err != nil {
		t.Fatalf("deferred-svc: %v", err)
	}
	if got != "deferred-value" {
		t.Errorf("deferred-svc: got %q, want 'deferred-value'", got)
	}
}

func TestRegistry_UnknownKeyStillUnbound(t *testing.T) {
	c := container.New()
	reg := container.NewProviderRegistry(c)
	reg.Register(&deferredProvider{})

	_, err := c.Make("nope")
	if !errors.Is(err, container.ErrUnbound) {
		t.Errorf("Make(nope): got %v, want ErrUnbound", err)
	}
}

func TestRegistry_BootReturnsProviderError(t *testing.T) {
	errBoot := errors.New("boot failed")
	c := container.New()
	reg := container.NewProviderRegistry(c)
	reg.Register(&failingProvider{err: errBoot})

	if err := reg.Boot(); err != errBoot {
		t.Errorf("Boot(): got %v, want %v", err, errBoot)
	}
}

// ── Multiple providers ────────────────────────────────────────────────────────

func TestRegistry_MultipleProviders_AllServicesResolvable(t *testing.T) {
	c := container.New()
	reg := container.NewProviderRegistry(c)
	reg.Register(&multiProvider{})
	reg.Register(&eagerProvider{})
	reg.Boot()

	if got := container.MustResolve[string](c, "alpha"); got != "α" {
		t.Errorf("alpha: got %q, want 'α'", got)
	}
	if got := container.MustResolve[string](c, "beta"); got != "β" {
		t.Errorf("beta: got %q, want 'β'", got)
	}
	if got := container.MustResolve[string](c, "eager-svc"); got != "eager" {
		t.Errorf("eager-svc: got %q, want 'eager'", got)
	}
}

// ── Providers list ────────────────────────────────────────────────────────────

func TestRegistry_Providers_ReturnsEagerOnes(t *testing.T) {
	c := container.New()
	reg := container.NewProviderRegistry(c)
	reg.Register(&eagerProvider{})
	reg.Register(&deferredProvider{}) // deferred — not in Providers()

	if len(reg.Providers()) != 1 {
		t.Errorf("Providers(): got %d, want 1 (eager only)", len(reg.Providers()))
	}
}

// ── BaseProvider defaults ─────────────────────────────────────────────────────

func TestBaseProvider_Defaults(t *testing.T) {
	var p container.BaseProvider
	c := container.New()

	if err := p.Boot(c); err != nil {
		t.Errorf("BaseProvider.Boot() = %v, want nil", err)
	}

	if p.IsDeferred() {
		t.Error("BaseProvider.IsDeferred() should be false")
	}
	if len(p.Provides()) != 0 {
		t.Error("BaseProvider.Provides() should return empty slice")
	}
}

// ── Boot after registration (late provider) ───────────────────────────────────

func TestRegistry_RegisterAfterBoot_BootsImmediately(t *testing.T) {
	c := container.New()
	reg := container.NewProviderRegistry(c)
	reg.Boot() // boot before registering

	p := &eagerProvider{}
	if err := reg.Register(p); err != nil { // register after boot
		t.Fatal(err)
	}

	if !p.bootCalled {
		t.Error("provider registered after Boot() should be booted immediately")
	}
}

func TestRegistry_DeferredProvider_ConcurrentFirstMake(t *testing.T) {
	c := container.New()
	reg := container.NewProviderRegistry(c)
	p := &slowProvider{}
	reg.Register(p)
	reg.Boot()

	const n = 8
	var wg sync.WaitGroup
	results := make([]any, n)
	errs := make([]error, n)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			results[i], errs[i] = c.Make("heavy")
		}()
	}
	close(start)
	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("Make #%d: %v", i, errs[i])
		}
		if results[i] != results[0] {
			t.Errorf("Make #%d returned a different instance", i)
		}
	}
	if got := p.registers.Load(); got != 1 {
		t.Errorf("Register called %d times, want 1", got)
	}
	if got := p.boots.Load(); got != 1 {
		t.Errorf("Boot called %d times, want 1", got)
	}
}

func TestRegistry_DeferredProvider_BootNeedingUnboundAbstractFails(t *testing.T) {
	c := container.New()
	reg := container.NewProviderRegistry(c)
	reg.Register(&halfProvider{})
	reg.Boot()

	done := make(chan error, 1)
	go func() {
		_, err := c.Make("half-a")
		done <- err
	}()

	select {
	case err := <-done:
		if !errors.Is(err, container.ErrUnbound) {
			t.Fatalf("expected ErrUnbound, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("deferred load hung")
	}
}
