package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (SHAKARA_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (SHAKARA_DATABASE_URL or DATABASE_URL)" flag:"database-url"`

	Gateway   GatewayConfig
	Webhook   WebhookConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Graceful  GracefulConfig
}

// GatewayConfig points at the payment gateway's REST API.
type GatewayConfig struct {
	BaseURL   string        `default:"https://api.flutterwave.com" usage:"Payment gateway API base URL" flag:"gateway-base-url"`
	SecretKey string        `usage:"Payment gateway secret key (SHAKARA_GATEWAY_SECRETKEY)" flag:"gateway-secret-key"`
	Timeout   time.Duration `default:"15s" usage:"Timeout for gateway verify calls" flag:"gateway-timeout"`
}

// WebhookConfig holds the shared secret the gateway signs deliveries with.
type WebhookConfig struct {
	Secret string `usage:"Webhook signing secret (SHAKARA_WEBHOOK_SECRET)" flag:"webhook-secret"`
}

// RateLimitConfig controls the per-client rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls which storefront origins may call the API.
type CORSConfig struct {
	Origins []string `default:"*" usage:"Allowed CORS origins"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config
// files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "SHAKARA",
		Files:     []string{"config.yaml", "/etc/shakara/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set SHAKARA_DATABASE_URL or DATABASE_URL")
	}
	if cfg.Webhook.Secret == "" {
		return nil, errors.New("webhook secret is required: set SHAKARA_WEBHOOK_SECRET")
	}
	if cfg.Gateway.SecretKey == "" {
		return nil, errors.New("gateway secret key is required: set SHAKARA_GATEWAY_SECRETKEY")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's SHAKARA_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
