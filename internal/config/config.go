package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	// devPhoneHashSecret keys phone fingerprints outside production.
	// Fingerprints hashed with it are worthless as lookup keys anywhere else,
	// which is the point.
	devPhoneHashSecret = "korki-dev-phone-hash"
)

// Config holds application configuration. Loaded once at startup, immutable
// thereafter.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	PublicURL   string

	DBType     string
	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string

	RedisAddr string

	PhoneHashSecret string
	PhoneRegion     string

	SweepSecret string

	P24MerchantID int64
	P24PosID      int64
	P24APIKey     string
	P24CRC        string
	P24BaseURL    string

	// Prices in grosz. Activation may be discounted to zero by the free slot.
	PriceActivation int64
	PriceExtension  int64
	PriceBump       int64
	Currency        string

	AdValidityDays int
	ExtensionDays  int
	WarningWindow  time.Duration
	AbandonTimeout time.Duration
	GatewayTimeout time.Duration
	NotifyTimeout  time.Duration

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	LogLevel string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	environment := getenv("ENVIRONMENT", EnvDevelopment)

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "korki"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: environment,
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		PublicURL:   strings.TrimRight(getenv("PUBLIC_URL", "http://localhost:8080"), "/"),

		DBType:     getenv("DATABASE_TYPE", "postgres"),
		DBHost:     getenv("DATABASE_HOST", "localhost"),
		DBPort:     getenv("DATABASE_PORT", "5432"),
		DBName:     getenv("DATABASE_NAME", "korki"),
		DBUser:     getenv("DATABASE_USER", "korki"),
		DBPassword: getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:  getenv("DATABASE_SSLMODE", "disable"),

		RedisAddr: strings.TrimSpace(getenv("REDIS_ADDR", "")),

		PhoneHashSecret: strings.TrimSpace(getenv("PHONE_HASH_SECRET", "")),
		PhoneRegion:     getenv("PHONE_REGION", "PL"),

		SweepSecret: strings.TrimSpace(getenv("SWEEP_SECRET", "")),

		P24MerchantID: getenvInt64("P24_MERCHANT_ID", 0),
		P24PosID:      getenvInt64("P24_POS_ID", 0),
		P24APIKey:     strings.TrimSpace(getenv("P24_API_KEY", "")),
		P24CRC:        strings.TrimSpace(getenv("P24_CRC", "")),
		P24BaseURL:    strings.TrimRight(getenv("P24_BASE_URL", "https://secure.przelewy24.pl"), "/"),

		PriceActivation: getenvInt64("PRICE_ACTIVATION", 2900),
		PriceExtension:  getenvInt64("PRICE_EXTENSION", 1900),
		PriceBump:       getenvInt64("PRICE_BUMP", 900),
		Currency:        getenv("CURRENCY", "PLN"),

		AdValidityDays: getenvInt("AD_VALIDITY_DAYS", 30),
		ExtensionDays:  getenvInt("EXTENSION_DAYS", 30),
		WarningWindow:  getenvDuration("EXPIRY_WARNING_WINDOW", 72*time.Hour),
		AbandonTimeout: getenvDuration("TRANSACTION_ABANDON_TIMEOUT", time.Hour),
		GatewayTimeout: getenvDuration("GATEWAY_TIMEOUT", 30*time.Second),
		NotifyTimeout:  getenvDuration("NOTIFY_TIMEOUT", 10*time.Second),

		SMTPHost:     getenv("SMTP_HOST", ""),
		SMTPPort:     getenvInt("SMTP_PORT", 587),
		SMTPUsername: getenv("SMTP_USERNAME", ""),
		SMTPPassword: getenv("SMTP_PASSWORD", ""),
		SMTPFrom:     getenv("SMTP_FROM", "no-reply@korki.app"),

		LogLevel: getenv("LOG_LEVEL", "info"),
	}

	if cfg.PhoneHashSecret == "" && !cfg.IsProduction() {
		cfg.PhoneHashSecret = devPhoneHashSecret
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), EnvProduction)
}

// GatewayConfigured reports whether real Przelewy24 credentials are present.
// Without them the gateway runs in test mode with an internal simulation
// page, which must never leak into a production deployment.
func (c Config) GatewayConfigured() bool {
	return c.P24MerchantID != 0 && c.P24PosID != 0 && c.P24CRC != "" && c.P24APIKey != ""
}

// Validate enforces required-in-production values. Startup aborts on error.
func (c Config) Validate() error {
	if !c.IsProduction() {
		return nil
	}
	var errs []error
	if c.PhoneHashSecret == "" {
		errs = append(errs, errors.New("PHONE_HASH_SECRET is required in production"))
	}
	if c.SweepSecret == "" {
		errs = append(errs, errors.New("SWEEP_SECRET is required in production"))
	}
	return errors.Join(errs...)
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

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
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
	if err != nil {
		return def
	}
	return parsed
}
