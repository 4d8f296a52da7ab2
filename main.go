package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/km-arc/go-container/framework/app"
	"github.com/km-arc/go-container/framework/config"
	"github.com/km-arc/go-container/framework/container"
	"github.com/km-arc/go-container/framework/routing"
)

// Gateway charges a customer. Which implementation is bound is decided once,
// here, from configuration.
type Gateway interface {
	Name() string
	Charge(customer string, cents int64) (string, error)
}

type stripeGateway struct{ key string }

func (g *stripeGateway) Name() string { return "stripe" }
func (g *stripeGateway) Charge(customer string, cents int64) (string, error) {
	return fmt.Sprintf("ch_%s_%d", customer, cents), nil
}

type paystackGateway struct{ key string }

func (g *paystackGateway) Name() string { return "paystack" }
func (g *paystackGateway) Charge(customer string, cents int64) (string, error) {
	return fmt.Sprintf("PSK-%s-%d", customer, cents), nil
}

// Checkout depends on a Gateway and a logger, both resolved by the container.
type Checkout struct {
	gateway Gateway
	log     *zap.Logger
}

// AppServiceProvider wires the application's own services.
type AppServiceProvider struct {
	container.BaseProvider
}

func (p *AppServiceProvider) Register(c *container.Container) {
	c.Singleton("payments.gateway", func(c *container.Container) (any, error) {
		cfg, err := container.Resolve[*config.Config](c, "config")
		if err != nil {
			return nil, err
		}
		switch driver := cfg.Payment.Gateway; driver {
		case "stripe":
			return Gateway(&stripeGateway{key: cfg.Payment.Key}), nil
		case "paystack":
			return Gateway(&paystackGateway{key: cfg.Payment.Key}), nil
		default:
			return nil, fmt.Errorf("unknown payment gateway %q", driver)
		}
	})

	c.Bind("checkout", func(c *container.Container) (any, error) {
		gateway, err := container.Resolve[Gateway](c, "payments.gateway")
		if err != nil {
			return nil, err
		}
		log, err := container.Resolve[*zap.Logger](c, "log")
		if err != nil {
			return nil, err
		}
		return &Checkout{gateway: gateway, log: log}, nil
	})
}

func (p *AppServiceProvider) Boot(c *container.Container) error {
	router, err := container.Resolve[*routing.Router](c, "router")
	if err != nil {
		return err
	}

	router.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		routing.Success(w, map[string]any{"message": "Welcome to go-container!"})
	})

	router.Post("/checkout/{customer}", func(w http.ResponseWriter, req *http.Request) {
		checkout, err := container.Resolve[*Checkout](c, "checkout")
		if err != nil {
			routing.Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		customer := routing.Param(req, "customer")
		ref, err := checkout.gateway.Charge(customer, 1000)
		if err != nil {
			checkout.log.Error("charge failed", zap.String("customer", customer), zap.Error(err))
			routing.Error(w, http.StatusBadGateway, "charge failed")
			return
		}
		routing.Success(w, map[string]any{"gateway": checkout.gateway.Name(), "reference": ref})
	})
	return nil
}

func main() {
	application := app.New() // loads .env automatically
	if err := application.Register(&AppServiceProvider{}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
