package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var AppEnv Config

type Config struct {
	AppEnv          string
	Port            string
	LogLevel        string
	MongoURI        string
	DBName          string
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	FrontendURL     string
	CORSOrigins     []string

	StripeSecretKey     string
	StripeWebhookSecret string
	Currency            string

	PendingOrderTTL time.Duration
	SweepInterval   time.Duration

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	MailFrom     string
	AdminEmail   string

	GeocoderURL       string
	GeocoderUserAgent string
}

// IsDevelopment reports whether internal error details may be exposed to clients.
func (c Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// Load reads .env (when present) and the process environment into AppEnv.
// Missing or malformed required settings are reported together.
func Load() error {
	if err := godotenv.Load(); err != nil {
		log.Println(".env not loaded:", err)
	}

	cfg, err := FromEnv()
	if err != nil {
		return err
	}
	AppEnv = cfg
	return nil
}

// FromEnv builds a Config from the current environment without touching AppEnv.
func FromEnv() (Config, error) {
	if err := requireEnv(requiredKeys...); err != nil {
		return Config{}, err
	}

	frontend := strings.TrimRight(getEnvOrDefault("FRONTEND_URL", ""), "/")
	cfg := Config{
		AppEnv:          strings.ToLower(getEnvOrDefault("APP_ENV", "development")),
		Port:            getEnvOrDefault("PORT", "8080"),
		LogLevel:        getEnvOrDefault("LOG_LEVEL", "info"),
		MongoURI:        getEnvOrDefault("MONGO_URI", ""),
		DBName:          getEnvOrDefault("DB_NAME", "ositoslua"),
		JWTSecret:       getEnvOrDefault("JWT_SECRET", ""),
		AccessTokenTTL:  getDurationEnv("ACCESS_TOKEN_TTL", 60, time.Minute),
		RefreshTokenTTL: getDurationEnv("REFRESH_TOKEN_TTL", 30, 24*time.Hour),
		FrontendURL:     frontend,
		CORSOrigins:     getListEnv("CORS_ORIGINS", []string{frontend}),

		StripeSecretKey:     getEnvOrDefault("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnvOrDefault("STRIPE_WEBHOOK_SECRET", ""),
		Currency:            strings.ToLower(getEnvOrDefault("CURRENCY", "clp")),

		PendingOrderTTL: getDurationEnv("PENDING_ORDER_TTL", 60, time.Minute),
		SweepInterval:   getDurationEnv("SWEEP_INTERVAL", 5, time.Minute),

		SMTPHost:     getEnvOrDefault("SMTP_HOST", ""),
		SMTPUser:     getEnvOrDefault("SMTP_USER", ""),
		SMTPPassword: getEnvOrDefault("SMTP_PASSWORD", ""),
		AdminEmail:   getEnvOrDefault("ADMIN_EMAIL", ""),

		GeocoderURL:       getEnvOrDefault("GEOCODER_URL", "https://nominatim.openstreetmap.org"),
		GeocoderUserAgent: getEnvOrDefault("GEOCODER_USER_AGENT", "OsitosLua E-commerce App"),
	}
	cfg.MailFrom = getEnvOrDefault("MAIL_FROM", cfg.SMTPUser)
	if cfg.AdminEmail == "" {
		cfg.AdminEmail = cfg.SMTPUser
	}

	port, err := getPortEnv("SMTP_PORT", 587)
	if err != nil {
		return Config{}, err
	}
	cfg.SMTPPort = port

	if err := validateFrontendURL(cfg.FrontendURL); err != nil {
		return Config{}, err
	}

	for _, warning := range cfg.warnings() {
		log.Println("[CONFIG] [WARN]", warning)
	}
	return cfg, nil
}

func (c Config) warnings() []string {
	var out []string
	if len(c.JWTSecret) < 32 {
		out = append(out, "JWT_SECRET should be at least 32 characters long")
	}
	if c.AppEnv == "production" {
		if strings.HasPrefix(c.StripeSecretKey, "sk_test_") {
			out = append(out, "production is running with a Stripe test key")
		}
		if !strings.HasPrefix(c.FrontendURL, "https://") {
			out = append(out, "FRONTEND_URL is not https in production")
		}
	}
	if c.SMTPHost == "" {
		out = append(out, "SMTP_HOST not set, emails will only be logged")
	}
	return out
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue int, unit time.Duration) time.Duration {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return time.Duration(parsed) * unit
		}
	}
	return time.Duration(defaultValue) * unit
}

func getListEnv(key string, defaultValue []string) []string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	out := make([]string, 0)
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimRight(strings.TrimSpace(part), "/"); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
