package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port string

	// Database
	SQLiteDBPath string

	// AMQP (empty URL disables the queue)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Inbox
	EmailSource           string
	EmailFixturesDir      string
	GoogleOAuthClientFile string
	GoogleOAuthTokenFile  string
	GoogleOAuthClientJSON string
	GoogleOAuthTokenJSON  string

	// Google Sheets export (empty spreadsheet id disables it)
	SheetsSpreadsheetID   string
	SheetsCredentialsJSON string
	SheetsCredentialsFile string

	// Language model
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string
	OpenAITimeout time.Duration

	// Sweeps
	SweepInterval           time.Duration
	SweepMaxMessages        int
	ClassifierMinConfidence float64

	// Logging
	LogLevel  string
	LogFormat string
}

// Email sources.
const (
	EmailSourceGmail  = "gmail"
	EmailSourceMemory = "memory"
	EmailSourceNone   = "none"
)

func Load() *Config {
	return &Config{
		Port:         getEnv("PORT", "8081"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/expenses.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "expensebot"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "inbox_sweeps"),

		EmailSource:           getEnv("EMAIL_SOURCE", EmailSourceNone),
		EmailFixturesDir:      getEnv("EMAIL_FIXTURES_DIR", "./data/inbox"),
		GoogleOAuthClientFile: getEnv("GOOGLE_OAUTH_CLIENT_FILE", "credentials.json"),
		GoogleOAuthTokenFile:  getEnv("GOOGLE_OAUTH_TOKEN_FILE", "token.json"),
		GoogleOAuthClientJSON: getEnv("GOOGLE_OAUTH_CLIENT_JSON", ""),
		GoogleOAuthTokenJSON:  getEnv("GOOGLE_OAUTH_TOKEN_JSON", ""),

		SheetsSpreadsheetID:   getEnv("GOOGLE_SPREADSHEET_ID", ""),
		SheetsCredentialsJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		SheetsCredentialsFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", getEnv("GOOGLE_APPLICATION_CREDENTIALS", "")),

		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAITimeout: getEnvDuration("OPENAI_TIMEOUT", 30*time.Second),

		SweepInterval:           getEnvDuration("SWEEP_INTERVAL", 15*time.Minute),
		SweepMaxMessages:        getEnvInt("SWEEP_MAX_MESSAGES", 50),
		ClassifierMinConfidence: getEnvFloat("CLASSIFIER_MIN_CONFIDENCE", 0.7),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
			}
		}
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

	validSources := []string{EmailSourceGmail, EmailSourceMemory, EmailSourceNone}
	if !slices.Contains(validSources, c.EmailSource) {
		errors = append(errors, fmt.Sprintf("invalid email source '%s': must be one of %v", c.EmailSource, validSources))
	}
	if c.EmailSource == EmailSourceMemory && c.EmailFixturesDir == "" {
		errors = append(errors, "EMAIL_FIXTURES_DIR is required when using the memory email source")
	}

	if c.SheetsSpreadsheetID != "" && c.SheetsCredentialsJSON == "" && c.SheetsCredentialsFile == "" {
		errors = append(errors, "GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE is required when GOOGLE_SPREADSHEET_ID is set")
	}

	if c.OpenAIBaseURL != "" {
		if u, err := url.Parse(c.OpenAIBaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errors = append(errors, fmt.Sprintf("invalid OpenAI base URL '%s': must be http or https", c.OpenAIBaseURL))
		}
	}

	if c.SweepInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid sweep interval %v: must be at least 1 minute", c.SweepInterval))
	} else if c.SweepInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sweep interval %v: must be at most 24 hours", c.SweepInterval))
	}
	if c.SweepMaxMessages < 1 || c.SweepMaxMessages > 500 {
		errors = append(errors, fmt.Sprintf("invalid sweep max messages %d: must be between 1 and 500", c.SweepMaxMessages))
	}
	if c.ClassifierMinConfidence <= 0 || c.ClassifierMinConfidence > 1 {
		errors = append(errors, fmt.Sprintf("invalid classifier confidence %v: must be in (0, 1]", c.ClassifierMinConfidence))
	}

	if !slices.Contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(c.LogLevel)) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}
	if !slices.Contains([]string{"text", "json"}, strings.ToLower(c.LogFormat)) {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be text or json", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// SheetsEnabled reports whether a spreadsheet is configured for exports.
func (c *Config) SheetsEnabled() bool {
	return c.SheetsSpreadsheetID != ""
}

// AMQPEnabled reports whether a broker is configured.
func (c *Config) AMQPEnabled() bool {
	return c.AMQPURL != ""
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

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
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
