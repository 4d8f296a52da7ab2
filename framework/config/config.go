package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

// Config is the central typed configuration struct.
type Config struct {
	App       AppConfig
	Log       LogConfig
	Container ContainerConfig
	Payment   PaymentConfig
}

type AppConfig struct {
	Name  string
	Env   string // local | production | testing
	Debug bool
	URL   string
	Port  string
}

// LogConfig drives the zap logger bound as "log".
type LogConfig struct {
	Level      string // debug | info | warn | error
	Format     string // json | console
	File       string // empty → stderr
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// ContainerConfig controls how the application boots its container.
type ContainerConfig struct {
	// Eager lists keys resolved at boot so wiring defects fail fast.
	Eager []string
	// WarmWorkers is the goroutine pool size used for eager resolution.
	WarmWorkers int
	// Freeze rejects any registration after boot.
	Freeze bool
}

// PaymentConfig selects the payment gateway driver and its credentials.
type PaymentConfig struct {
	Gateway string // stripe | paystack
	Key     string
}

// Load reads .env (if present) and populates a Config from environment variables.
// Call once at bootstrap: cfg := config.Load()
func Load(envFiles ...string) *Config {
	files := envFiles
	if len(files) == 0 {
		files = []string{".env"}
	}
	// Non-fatal: .env may not exist in production
	_ = godotenv.Load(files...)

	return &Config{
		App: AppConfig{
			Name:  env("APP_NAME", "GoContainer"),
			Env:   env("APP_ENV", "local"),
			Debug: GetBool("APP_DEBUG", true),
			URL:   env("APP_URL", "http://localhost"),
			Port:  env("APP_PORT", "8000"),
		},
		Log: LogConfig{
			Level:      env("LOG_LEVEL", "info"),
			Format:     env("LOG_FORMAT", "json"),
			File:       env("LOG_FILE", ""),
			MaxSizeMB:  GetInt("LOG_MAX_SIZE", 100),
			MaxBackups: GetInt("LOG_MAX_BACKUPS", 3),
			MaxAgeDays: GetInt("LOG_MAX_AGE", 28),
			Compress:   GetBool("LOG_COMPRESS", false),
		},
		Container: ContainerConfig{
			Eager:       GetList("CONTAINER_EAGER", []string{"config", "log", "router"}),
			WarmWorkers: GetInt("CONTAINER_WARM_WORKERS", 4),
			Freeze:      GetBool("CONTAINER_FREEZE", true),
		},
		Payment: PaymentConfig{
			Gateway: env("PAYMENT_GATEWAY", "stripe"),
			Key:     env("PAYMENT_KEY", ""),
		},
	}
}

// Get returns a raw env value, falling back to defaultVal.
func Get(key, defaultVal string) string {
	return env(key, defaultVal)
}

// GetInt returns an int env value.
func GetInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := cast.ToIntE(v)
	if err != nil {
		return defaultVal
	}
	return i
}

// GetBool returns a bool env value.
func GetBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return defaultVal
	}
	return b
}

// GetList returns a comma-separated env value as a slice, trimming blanks.
// A variable set to "-" yields an empty list.
func GetList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	if v == "-" {
		return []string{}
	}
	var out []string
	for _, item := range cast.ToStringSlice(strings.ReplaceAll(v, ",", " ")) {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// ── helpers ─────────────────────────────────────────────────────────────────

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
