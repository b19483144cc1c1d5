package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Stripe StripeConfig

	// PaymentProviderConfigSecret is the key material for encrypting
	// organization Stripe secret keys at rest.
	PaymentProviderConfigSecret string

	PlansConfigPath string

	PublicRateLimitRPS   float64
	PublicRateLimitBurst int
}

type StripeConfig struct {
	PlatformSecretKey    string
	ConnectWebhookSecret string
	Timeout              time.Duration
	SuccessURL           string
	CancelURL            string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:           getenv("APP_NAME", "atelier"),
		AppVersion:        getenv("APP_VERSION", "0.1.0"),
		Environment:       getenv("ENVIRONMENT", "development"),
		HTTPAddr:          getenv("HTTP_ADDR", ":8080"),
		OTLPEndpoint:      getenv("OTLP_ENDPOINT", "localhost:4317"),
		DBType:            getenv("DB_TYPE", "postgres"),
		DBHost:            getenv("DB_HOST", "localhost"),
		DBPort:            getenv("DB_PORT", "5432"),
		DBName:            getenv("DB_NAME", "atelier"),
		DBUser:            getenv("DB_USER", "postgres"),
		DBPassword:        getenv("DB_PASSWORD", ""),
		DBSSLMode:         getenv("DB_SSL_MODE", "disable"),
		DBMaxIdleConn:     getenvInt("DB_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DB_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DB_CONN_MAX_LIFETIME", 300),
		RedisAddr:         strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword:     getenv("REDIS_PASSWORD", ""),
		RedisDB:           getenvInt("REDIS_DB", 0),
		Stripe: StripeConfig{
			PlatformSecretKey:    strings.TrimSpace(getenv("STRIPE_PLATFORM_SECRET_KEY", "")),
			ConnectWebhookSecret: strings.TrimSpace(getenv("STRIPE_CONNECT_WEBHOOK_SECRET", "")),
			Timeout:              getenvDuration("STRIPE_TIMEOUT", 12*time.Second),
			SuccessURL:           getenv("CHECKOUT_SUCCESS_URL", "http://localhost:3000/pay/{invoice_id}?status=success"),
			CancelURL:            getenv("CHECKOUT_CANCEL_URL", "http://localhost:3000/pay/{invoice_id}?status=cancelled"),
		},
		PaymentProviderConfigSecret: strings.TrimSpace(getenv("PAYMENT_PROVIDER_CONFIG_SECRET", "")),
		PlansConfigPath:             strings.TrimSpace(getenv("PLANS_CONFIG_PATH", "")),
		PublicRateLimitRPS:          getenvFloat("PUBLIC_RATE_LIMIT_RPS", 1),
		PublicRateLimitBurst:        getenvInt("PUBLIC_RATE_LIMIT_BURST", 30),
	}
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
