package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (DOLCI_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (DOLCI_DATABASE_URL or DATABASE_URL); empty runs on in-memory storage" flag:"database-url"`
	SiteBaseURL string `usage:"Public site base URL, used for payment return links" flag:"site-base-url"`

	MercadoPago MercadoPagoConfig
	WhatsApp    WhatsAppConfig
	Refund      RefundConfig
	Checkout    CheckoutConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// MercadoPagoConfig holds the payment gateway credentials. With an empty
// access token the server still starts, but payment endpoints report the
// gateway as unavailable.
type MercadoPagoConfig struct {
	AccessToken     string `usage:"Mercado Pago access token" flag:"mp-access-token"`
	BaseURL         string `usage:"Mercado Pago API base URL override" flag:"mp-base-url"`
	WebhookSecret   string `usage:"Webhook signature secret; empty disables verification" flag:"mp-webhook-secret"`
	NotificationURL string `usage:"Webhook delivery URL sent with payments" flag:"mp-notification-url"`
}

// WhatsAppConfig holds the destination for manual WhatsApp checkout.
type WhatsAppConfig struct {
	Number string `usage:"WhatsApp number receiving manual orders, digits with country code" flag:"whatsapp-number"`
}

// RefundConfig protects the refund endpoint. With an empty API key the
// endpoint rejects every request.
type RefundConfig struct {
	APIKey string `usage:"API key required by the refund endpoint" flag:"refund-api-key"`
	Pepper string `usage:"HMAC pepper for refund API key hashing" flag:"refund-pepper"`
}

// CheckoutConfig tunes the PIX payment watcher and session eviction.
type CheckoutConfig struct {
	PollInterval time.Duration `default:"5s" usage:"Interval between gateway payment polls" flag:"checkout-poll-interval"`
	SessionTTL   time.Duration `default:"2h" usage:"Idle checkout session lifetime" flag:"checkout-session-ttl"`
}

// RateLimitConfig controls the per-client fixed window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
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
		EnvPrefix: "DOLCI",
		Files:     []string{"config.yaml", "/etc/dolci/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()
	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables
// (Railway, Render, etc.) that use standard names like DATABASE_URL and
// PORT to the application's DOLCI_-prefixed configuration.
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
