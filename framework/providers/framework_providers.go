package providers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/km-arc/go-container/framework/config"
	"github.com/km-arc/go-container/framework/container"
	"github.com/km-arc/go-container/framework/logging"
	"github.com/km-arc/go-container/framework/routing"
)

// ── ConfigServiceProvider ─────────────────────────────────────────────────────

// ConfigServiceProvider loads the application configuration from .env and
// binds it into the container as "config".
//
// Bound abstracts:
//   - "config"         → *config.Config
//   - "configuration"  → alias of "config"
//
// Laravel equivalent:
//
//	// Illuminate\Foundation\Bootstrap\LoadConfiguration
//	$app->singleton('config', fn() => new Repository($items));
type ConfigServiceProvider struct {
	container.BaseProvider
	EnvFiles []string
}

func (p *ConfigServiceProvider) Register(app *container.Container) {
	envFiles := p.EnvFiles
	app.Singleton("config", func(c *container.Container) (any, error) {
		return config.Load(envFiles...), nil
	})
	app.Alias("config", "configuration")
}

// ── LogServiceProvider ────────────────────────────────────────────────────────

// LogServiceProvider registers the structured logger.
//
// Bound abstracts:
//   - "log"  → *zap.Logger
//
// Configuration read from "config": Log.*
type LogServiceProvider struct {
	container.BaseProvider
}

func (p *LogServiceProvider) Register(app *container.Container) {
	app.Singleton("log", func(c *container.Container) (any, error) {
		cfg, err := container.Resolve[*config.Config](c, "config")
		if err != nil {
			return nil, err
		}
		return logging.New(cfg.Log)
	})
	app.Alias("log", "logger")
}

// ── RoutingServiceProvider ────────────────────────────────────────────────────

// RoutingServiceProvider registers the HTTP router.
//
// Bound abstracts:
//   - "router"  → *routing.Router
//
// When App.Debug is set, Boot mounts GET /_container/bindings, which lists
// every binding with its lifetime and resolution state.
//
// Laravel equivalent:
//
//	// Illuminate\Routing\RoutingServiceProvider
//	$app->singleton('router', fn($app) => new Router($app['events'], $app));
type RoutingServiceProvider struct {
	container.BaseProvider
}

func (p *RoutingServiceProvider) Register(app *container.Container) {
	app.Singleton("router", func(c *container.Container) (any, error) {
		log, err := container.Resolve[*zap.Logger](c, "log")
		if err != nil {
			return nil, err
		}
		return routing.New(log), nil
	})
}

func (p *RoutingServiceProvider) Boot(app *container.Container) error {
	cfg, err := container.Resolve[*config.Config](app, "config")
	if err != nil {
		return err
	}
	if !cfg.App.Debug {
		return nil
	}

	router, err := container.Resolve[*routing.Router](app, "router")
	if err != nil {
		return err
	}
	router.Get("/_container/bindings", BindingsHandler(app))
	return nil
}

// BindingsHandler serves the container's bindings as {"data": [...]}.
func BindingsHandler(app *container.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		routing.Success(w, app.Describe())
	}
}
