package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

var requiredKeys = []string{
	"MONGO_URI",
	"JWT_SECRET",
	"STRIPE_SECRET_KEY",
	"STRIPE_WEBHOOK_SECRET",
	"FRONTEND_URL",
}

// MissingEnvError lists every required variable that was unset or blank.
type MissingEnvError struct {
	Keys []string
}

func (e *MissingEnvError) Error() string {
	return "missing required environment variables: " + strings.Join(e.Keys, ", ")
}

func requireEnv(keys ...string) error {
	var missing []string
	for _, key := range keys {
		if value, ok := os.LookupEnv(key); !ok || strings.TrimSpace(value) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return &MissingEnvError{Keys: missing}
	}
	return nil
}

func getPortEnv(key string, fallback int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}
	port, err := strconv.Atoi(value)
	if err != nil || port < 1 || port > 65535 {
		return 0, fmt.Errorf("%s must be a number between 1 and 65535", key)
	}
	return port, nil
}

func validateFrontendURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("FRONTEND_URL must be an absolute URL, got %q", raw)
	}
	return nil
}
