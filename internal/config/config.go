package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"fintrack/internal/currency"
)

type Config struct {
	// HTTP Server
	Port               string
	RateLimitPerMinute int
	SessionTTL         time.Duration

	// Database
	SQLiteDBPath string

	// Ledger
	HomeCurrency string
	Timezone     string

	// Currency normalizer
	ExchangeRateAPIURL  string
	ExchangeRateAPIKey  string
	CurrencyStaticRates string
	CurrencyTimeout     time.Duration
	CurrencyCacheTTL    time.Duration

	// AMQP (optional)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Export (worker)
	ExportBackend                string
	GoogleSpreadsheetID          string
	GoogleSheetName              string
	GoogleServiceAccountFile     string
	GoogleServiceAccountJSON     string
	GoogleApplicationCredentials string

	// Worker
	BudgetCheckSchedule string

	LogLevel string
}

var currencyCode = regexp.MustCompile(`^[A-Z]{3}$`)

func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8081"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		SessionTTL:         getEnvDuration("SESSION_TTL", 12*time.Hour),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/fintrack.db"),

		HomeCurrency: strings.ToUpper(getEnv("HOME_CURRENCY", "THB")),
		Timezone:     getEnv("TIMEZONE", "Local"),

		ExchangeRateAPIURL:  getEnv("EXCHANGE_RATE_API_URL", "https://v6.exchangerate-api.com/v6"),
		ExchangeRateAPIKey:  getEnv("EXCHANGE_RATE_API_KEY", ""),
		CurrencyStaticRates: getEnv("CURRENCY_STATIC_RATES", ""),
		CurrencyTimeout:     getEnvDuration("CURRENCY_TIMEOUT", 3*time.Second),
		CurrencyCacheTTL:    getEnvDuration("CURRENCY_CACHE_TTL", time.Hour),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "fintrack"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger_events"),

		ExportBackend:                getEnv("EXPORT_BACKEND", "none"),
		GoogleSpreadsheetID:          getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:              getEnv("GOOGLE_SHEET_NAME", "Transactions"),
		GoogleServiceAccountFile:     getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		GoogleServiceAccountJSON:     getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleApplicationCredentials: getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),

		BudgetCheckSchedule: getEnv("BUDGET_CHECK_SCHEDULE", "0 20 * * *"),

		LogLevel: strings.ToLower(getEnv("LOG_LEVEL", "info")),
	}
}

// Location resolves Timezone; call Validate first.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Validate validates the configuration and returns every problem at once
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 per minute", c.RateLimitPerMinute))
	}
	if c.SessionTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	}

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0755); err != nil {
				errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
			}
		}
	}

	if !currencyCode.MatchString(c.HomeCurrency) {
		errors = append(errors, fmt.Sprintf("invalid home currency '%s': must be a 3-letter ISO code", c.HomeCurrency))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errors = append(errors, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
	}

	if c.ExchangeRateAPIKey != "" {
		if u, err := url.Parse(c.ExchangeRateAPIURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errors = append(errors, fmt.Sprintf("invalid exchange rate API URL '%s': must be http(s)", c.ExchangeRateAPIURL))
		}
	}
	if c.CurrencyStaticRates != "" {
		if _, err := currency.ParseStaticRates(c.HomeCurrency, c.CurrencyStaticRates); err != nil {
			errors = append(errors, err.Error())
		}
	}
	if c.CurrencyTimeout <= 0 || c.CurrencyTimeout > time.Minute {
		errors = append(errors, fmt.Sprintf("invalid currency timeout %v: must be between 0 and 1 minute", c.CurrencyTimeout))
	}
	if c.CurrencyCacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid currency cache TTL %v: must be at least 1 second", c.CurrencyCacheTTL))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	switch c.ExportBackend {
	case "none", "memory":
	case "sheets":
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets export")
		}
		if c.GoogleServiceAccountFile == "" && c.GoogleServiceAccountJSON == "" && c.GoogleApplicationCredentials == "" {
			errors = append(errors, "one of GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_APPLICATION_CREDENTIALS must be provided for sheets export")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid export backend '%s': must be one of [none memory sheets]", c.ExportBackend))
	}

	if c.BudgetCheckSchedule != "" {
		if _, err := cron.ParseStandard(c.BudgetCheckSchedule); err != nil {
			errors = append(errors, fmt.Sprintf("invalid budget check schedule '%s': %v", c.BudgetCheckSchedule, err))
		}
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of [debug info warn error]", c.LogLevel))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
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
