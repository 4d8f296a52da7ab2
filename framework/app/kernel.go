package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/km-arc/go-container/framework/config"
	"github.com/km-arc/go-container/framework/container"
	"github.com/km-arc/go-container/framework/providers"
	"github.com/km-arc/go-container/framework/routing"
)

// Application is the composition root. It owns the one Container for the
// process and embeds it, with the ProviderRegistry, so user code can call
// app.Bind(), app.Singleton(), app.Register() directly, exactly like $app in
// Laravel's bootstrap/app.php. Pass the Application (or its Container) to
// whatever needs to resolve dependencies.
type Application struct {
	*container.Container
	Providers *container.ProviderRegistry

	booted bool
}

// New creates the application and registers the framework providers.
func New(envFiles ...string) *Application {
	c := container.New()
	registry := container.NewProviderRegistry(c)

	app := &Application{
		Container: c,
		Providers: registry,
	}
	c.Instance("app", app)

	// Framework core providers, in dependency order. Register only fails for
	// providers booted on registration, and nothing has booted yet.
	_ = app.Register(&providers.ConfigServiceProvider{EnvFiles: envFiles})
	_ = app.Register(&providers.LogServiceProvider{})
	_ = app.Register(&providers.RoutingServiceProvider{})

	return app
}

// Register adds a ServiceProvider to the application. Registration errors
// only occur for providers added after Boot, whose own Boot runs at once.
func (a *Application) Register(provider container.ServiceProvider) error {
	return a.Providers.Register(provider)
}

// Boot runs the Boot() phase on all providers, resolves the configured eager
// keys concurrently, and freezes the container unless configured otherwise.
// Every eager resolution failure is returned, combined.
func (a *Application) Boot() error {
	if a.booted {
		return nil
	}
	if err := a.Providers.Boot(); err != nil {
		return err
	}

	cfg, err := a.Config()
	if err != nil {
		return err
	}
	log := a.Logger()

	if err := a.Warm(cfg.Container.WarmWorkers, cfg.Container.Eager...); err != nil {
		for _, e := range multierr.Errors(err) {
			log.Error("eager resolution failed", zap.Error(e))
		}
		return err
	}

	a.booted = true
	if cfg.Container.Freeze {
		a.Freeze()
	}
	log.Info("application booted",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.Int("bindings", len(a.Bindings())),
		zap.Bool("frozen", a.Frozen()),
	)
	return nil
}

// Config resolves *config.Config from the container.
func (a *Application) Config() (*config.Config, error) {
	return container.Resolve[*config.Config](a.Container, "config")
}

// Logger resolves the "log" binding, falling back to a no-op logger when it
// cannot be built.
func (a *Application) Logger() *zap.Logger {
	log, err := container.Resolve[*zap.Logger](a.Container, "log")
	if err != nil {
		return zap.NewNop()
	}
	return log
}

// Router resolves *routing.Router from the container.
func (a *Application) Router() (*routing.Router, error) {
	return container.Resolve[*routing.Router](a.Container, "router")
}

// Run boots the application (if needed) and serves HTTP until ctx is done.
func (a *Application) Run(ctx context.Context) error {
	if err := a.Boot(); err != nil {
		return err
	}
	cfg, err := a.Config()
	if err != nil {
		return err
	}
	router, err := a.Router()
	if err != nil {
		return err
	}
	log := a.Logger()
	defer func() { _ = log.Sync() }()

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", srv.Addr), zap.String("url", cfg.App.URL))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Environment returns APP_ENV value.
func (a *Application) Environment() string {
	cfg, err := a.Config()
	if err != nil {
		return ""
	}
	return cfg.App.Env
}

func (a *Application) IsLocal() bool      { return a.Environment() == "local" }
func (a *Application) IsProduction() bool { return a.Environment() == "production" }
func (a *Application) IsTesting() bool    { return a.Environment() == "testing" }
func (a *Application) Version() string    { return "0.2.0" }
