package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// HardMaxHorizonMonths caps PROJECTION_HORIZON_MAX_MONTHS.
const HardMaxHorizonMonths = 60

type Config struct {
	// HTTP Server
	Port               string
	RequestTimeout     time.Duration
	RateLimitPerMinute int

	// Database
	SQLiteDBPath string

	// AMQP (optional; events are disabled when AMQPURL is empty)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets mirror (optional)
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Projection
	HorizonDefaultMonths int
	HorizonMaxMonths     int
	MaxIterationsPerSpec int

	// Scheduler
	SchedulerEnabled      bool
	SchedulerDailyTick    string // HH:MM local time
	SchedulerStartupDelay time.Duration

	// Listing
	PageSizeDefault int
	PageSizeMax     int

	LogLevel string
}

func Load() *Config {
	cfg := &Config{
		Port:               getEnv("PORT", "8081"),
		RequestTimeout:     getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/budgetbook.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "budgetbook"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "entry_events"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Ledger"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")),

		HorizonDefaultMonths: getEnvInt("PROJECTION_HORIZON_DEFAULT_MONTHS", 24),
		HorizonMaxMonths:     getEnvInt("PROJECTION_HORIZON_MAX_MONTHS", HardMaxHorizonMonths),
		MaxIterationsPerSpec: getEnvInt("MAX_ITERATIONS_PER_SPEC", 1000),

		SchedulerEnabled:      getEnvBool("SCHEDULER_ENABLED", true),
		SchedulerDailyTick:    getEnv("SCHEDULER_DAILY_TICK_LOCAL_TIME", "00:01"),
		SchedulerStartupDelay: time.Duration(getEnvInt("SCHEDULER_STARTUP_DELAY_SECONDS", 30)) * time.Second,

		PageSizeDefault: getEnvInt("ENTRY_LISTING_PAGE_SIZE_DEFAULT", 20),
		PageSizeMax:     getEnvInt("ENTRY_LISTING_PAGE_SIZE_MAX", 100),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.RequestTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid request timeout %v: must be at least 1 second", c.RequestTimeout))
	}
	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1", c.RateLimitPerMinute))
	}

	// Validate AMQP URL if provided
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

	if c.HorizonMaxMonths < 1 || c.HorizonMaxMonths > HardMaxHorizonMonths {
		errors = append(errors, fmt.Sprintf("invalid max projection horizon %d: must be between 1 and %d", c.HorizonMaxMonths, HardMaxHorizonMonths))
	}
	if c.HorizonDefaultMonths < 0 {
		errors = append(errors, fmt.Sprintf("invalid default projection horizon %d: must not be negative", c.HorizonDefaultMonths))
	} else if c.HorizonDefaultMonths > c.HorizonMaxMonths {
		errors = append(errors, fmt.Sprintf("default projection horizon %d exceeds max %d", c.HorizonDefaultMonths, c.HorizonMaxMonths))
	}
	if c.MaxIterationsPerSpec < 1 {
		errors = append(errors, fmt.Sprintf("invalid max iterations per spec %d: must be at least 1", c.MaxIterationsPerSpec))
	}

	if _, _, err := ParseTickTime(c.SchedulerDailyTick); err != nil {
		errors = append(errors, err.Error())
	}
	if c.SchedulerStartupDelay < 0 {
		errors = append(errors, fmt.Sprintf("invalid scheduler startup delay %v: must not be negative", c.SchedulerStartupDelay))
	}

	if c.PageSizeDefault < 1 {
		errors = append(errors, fmt.Sprintf("invalid default page size %d: must be at least 1", c.PageSizeDefault))
	} else if c.PageSizeDefault > c.PageSizeMax {
		errors = append(errors, fmt.Sprintf("default page size %d exceeds max %d", c.PageSizeDefault, c.PageSizeMax))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// SheetsEnabled reports whether the Google Sheets mirror is configured.
func (c *Config) SheetsEnabled() bool {
	return c.GoogleSpreadsheetID != "" && (c.GoogleServiceAccountJSON != "" || c.GoogleServiceAccountFile != "")
}

// ParseTickTime parses an HH:MM wall-clock time.
func ParseTickTime(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid scheduler tick time '%s': must be HH:MM", s)
	}
	return t.Hour(), t.Minute(), nil
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

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
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
