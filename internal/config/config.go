package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"spendtrack/internal/log"
)

type Config struct {
	// HTTP Server
	Port string

	// Remote ledger
	LedgerBackend string
	LedgerBaseURL string
	LedgerTimeout time.Duration

	// Local identity
	IdentityBackend string
	IdentityDBPath  string
	DefaultCurrency string

	// AMQP change notifications, disabled when AMQPURL is empty
	AMQPURL        string
	AMQPExchange   string
	AMQPRoutingKey string

	// Summary memo cache
	SummaryCacheSize int
	SummaryCacheTTL  time.Duration

	LogLevel string
}

func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "8081"),

		LedgerBackend: getEnv("LEDGER_BACKEND", "memory"),
		LedgerBaseURL: getEnv("LEDGER_BASE_URL", ""),
		LedgerTimeout: getEnvDuration("LEDGER_TIMEOUT", 10*time.Second),

		IdentityBackend: getEnv("IDENTITY_BACKEND", "sqlite"),
		IdentityDBPath:  getEnv("IDENTITY_DB_PATH", "./data/identity.db"),
		DefaultCurrency: strings.ToUpper(getEnv("DEFAULT_CURRENCY", "USD")),

		AMQPURL:        getEnv("AMQP_URL", ""),
		AMQPExchange:   getEnv("AMQP_EXCHANGE", "spendtrack"),
		AMQPRoutingKey: getEnv("AMQP_ROUTING_KEY", "ledger.changes"),

		SummaryCacheSize: getEnvInt("SUMMARY_CACHE_SIZE", 32),
		SummaryCacheTTL:  getEnvDuration("SUMMARY_CACHE_TTL", 5*time.Minute),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate checks every setting and reports all problems at once.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch c.LedgerBackend {
	case "memory":
	case "http":
		if c.LedgerBaseURL == "" {
			errors = append(errors, "LEDGER_BASE_URL is required when using the http ledger backend")
		} else if u, err := url.Parse(c.LedgerBaseURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid ledger base URL '%s': %v", c.LedgerBaseURL, err))
		} else if u.Scheme != "http" && u.Scheme != "https" {
			errors = append(errors, fmt.Sprintf("invalid ledger base URL scheme '%s': must be 'http' or 'https'", u.Scheme))
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid ledger backend '%s': must be one of [http memory]", c.LedgerBackend))
	}

	if c.LedgerTimeout < 100*time.Millisecond {
		errors = append(errors, fmt.Sprintf("invalid ledger timeout %v: must be at least 100ms", c.LedgerTimeout))
	} else if c.LedgerTimeout > 5*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid ledger timeout %v: must be at most 5 minutes", c.LedgerTimeout))
	}

	switch c.IdentityBackend {
	case "memory":
	case "sqlite":
		if c.IdentityDBPath == "" {
			errors = append(errors, "identity database path cannot be empty when using the sqlite identity backend")
		} else if dir := filepath.Dir(c.IdentityDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create identity database directory '%s': %v", dir, err))
				}
			}
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid identity backend '%s': must be one of [memory sqlite]", c.IdentityBackend))
	}

	if len(c.DefaultCurrency) != 3 {
		errors = append(errors, fmt.Sprintf("invalid default currency '%s': must be a 3-letter code", c.DefaultCurrency))
	}

	if c.AMQPURL != "" {
		if u, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if u.Scheme != "amqp" && u.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", u.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPRoutingKey == "" {
			errors = append(errors, "AMQP routing key cannot be empty when AMQP URL is provided")
		}
	}

	if c.SummaryCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid summary cache size %d: must be at least 1", c.SummaryCacheSize))
	}
	if c.SummaryCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid summary cache TTL %v: must not be negative", c.SummaryCacheTTL))
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, err.Error())
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
