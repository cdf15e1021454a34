package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendAPI      = "api"
	BackendBigQuery = "bigquery"
)

type Config struct {
	// HTTP Server
	Port     string
	LogLevel string

	// Ledger source
	LedgerBackend    string
	LedgerAPIURL     string
	LedgerAPIToken   string
	LedgerAPIUserID  string
	LedgerAPITimeout time.Duration

	// BigQuery ledger
	BigQueryProject string
	BigQueryDataset string
	LedgerUserID    string

	// Receipt extraction
	GeminiAPIKey string
	GeminiModel  string

	// Export sinks
	ExportBucket     string
	ExportDateLayout string
	NotionToken      string
	NotionDBID       string

	// Views
	TrajectoryWindow int
	PageSize         int

	// Jobs
	JobBufferSize int
	JobWorkers    int
}

// LoadDotEnv loads variables from the given files (".env" when none are
// given) without overriding variables already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("LoadDotEnv: %s: %w", p, err)
		}
	}
	return nil
}

func Load() *Config {
	cfg := &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		LedgerBackend:    strings.ToLower(getEnv("LEDGER_BACKEND", BackendAPI)),
		LedgerAPIURL:     getEnv("LEDGER_API_URL", ""),
		LedgerAPIToken:   getEnv("LEDGER_API_TOKEN", ""),
		LedgerAPIUserID:  getEnv("LEDGER_API_USER_ID", ""),
		LedgerAPITimeout: getEnvDuration("LEDGER_API_TIMEOUT", 15*time.Second),

		BigQueryProject: getEnv("BIGQUERY_PROJECT", ""),
		BigQueryDataset: getEnv("BIGQUERY_DATASET", "finance"),
		LedgerUserID:    getEnv("LEDGER_USER_ID", ""),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),

		ExportBucket:     getEnv("EXPORT_BUCKET", ""),
		ExportDateLayout: getEnv("EXPORT_DATE_LAYOUT", "02/01/2006 15:04:05"),
		NotionToken:      getEnv("NOTION_TOKEN", ""),
		NotionDBID:       getEnv("NOTION_DB_ID", ""),

		TrajectoryWindow: getEnvInt("TRAJECTORY_WINDOW", 20),
		PageSize:         getEnvInt("PAGE_SIZE", 10),

		JobBufferSize: getEnvInt("JOB_BUFFER_SIZE", 100),
		JobWorkers:    getEnvInt("JOB_WORKERS", 5),
	}

	return cfg
}

// ExtractionEnabled reports whether receipt extraction can be used.
func (c *Config) ExtractionEnabled() bool {
	return c.GeminiAPIKey != ""
}

// NotionEnabled reports whether the Notion publish sink is configured.
func (c *Config) NotionEnabled() bool {
	return c.NotionToken != "" && c.NotionDBID != ""
}

// Validate validates the configuration and returns an error listing every problem.
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch c.LedgerBackend {
	case BackendAPI:
		if c.LedgerAPIURL == "" {
			errs = append(errs, "LEDGER_API_URL is required when using the api backend")
		} else if u, err := url.Parse(c.LedgerAPIURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid ledger API URL '%s': %v", c.LedgerAPIURL, err))
		} else if u.Scheme != "http" && u.Scheme != "https" {
			errs = append(errs, fmt.Sprintf("invalid ledger API URL scheme '%s': must be 'http' or 'https'", u.Scheme))
		}
		if c.LedgerAPITimeout <= 0 {
			errs = append(errs, fmt.Sprintf("invalid ledger API timeout %v: must be positive", c.LedgerAPITimeout))
		}
	case BackendBigQuery:
		if c.BigQueryProject == "" {
			errs = append(errs, "BIGQUERY_PROJECT is required when using the bigquery backend")
		}
		if c.LedgerUserID == "" {
			errs = append(errs, "LEDGER_USER_ID is required when using the bigquery backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("invalid ledger backend '%s': must be one of [%s %s]", c.LedgerBackend, BackendAPI, BackendBigQuery))
	}

	if (c.NotionToken == "") != (c.NotionDBID == "") {
		errs = append(errs, "NOTION_TOKEN and NOTION_DB_ID must be set together")
	}

	if c.TrajectoryWindow < 1 {
		errs = append(errs, fmt.Sprintf("invalid trajectory window %d: must be at least 1", c.TrajectoryWindow))
	}
	if c.PageSize < 1 || c.PageSize > 100 {
		errs = append(errs, fmt.Sprintf("invalid page size %d: must be between 1 and 100", c.PageSize))
	}
	if c.JobBufferSize < 1 {
		errs = append(errs, fmt.Sprintf("invalid job buffer size %d: must be at least 1", c.JobBufferSize))
	}
	if c.JobWorkers < 1 || c.JobWorkers > 64 {
		errs = append(errs, fmt.Sprintf("invalid job workers %d: must be between 1 and 64", c.JobWorkers))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
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
