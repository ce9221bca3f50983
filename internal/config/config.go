// Package config reads process configuration from the environment, an
// optional .env file and an optional YAML config file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Backends and extract sources accepted by Validate.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"

	SourceSheets = "sheets"
	SourceCSV    = "csv"
	SourceMemory = "memory"
)

type Config struct {
	// HTTP server
	Port               string
	RateLimitPerMinute int

	// Logging
	LogLevel  string
	LogFormat string

	// Persistence
	DataBackend  string
	DataDir      string
	SettingsFile string
	RollupsFile  string
	SQLiteDBPath string

	// Extract source
	ExtractSource   string
	CSVExtractPath  string
	CSVDelimiter    string
	ExtractCacheTTL time.Duration

	// Google Sheets
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleReadRange          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	GoogleOAuthClientFile    string
	GoogleOAuthTokenFile     string

	// AMQP, optional: when AMQPURL is empty refreshes run in-process.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Refresh and budget
	RefreshInterval     time.Duration
	RollupRetentionDays int
	MaxPercentTotal     string
	BudgetDefaultsFile  string
	CurrencySymbols     []string
	DisplayCurrency     string

	// Ingest column aliases and date layouts; empty means built-in defaults.
	DateColumns        []string
	CategoryColumns    []string
	AmountColumns      []string
	DescriptionColumns []string
	DateLayouts        []string
}

// SetDefaults registers every key with its default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8081")
	v.SetDefault("RATE_LIMIT_PER_MINUTE", 60)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")

	v.SetDefault("DATA_BACKEND", BackendJSON)
	v.SetDefault("DATA_DIR", "./data")
	v.SetDefault("SETTINGS_FILE", "")
	v.SetDefault("ROLLUPS_FILE", "")
	v.SetDefault("SQLITE_DB_PATH", "")

	v.SetDefault("EXTRACT_SOURCE", SourceSheets)
	v.SetDefault("CSV_EXTRACT_PATH", "")
	v.SetDefault("CSV_DELIMITER", "")
	v.SetDefault("EXTRACT_CACHE_TTL", "30s")

	v.SetDefault("GOOGLE_SPREADSHEET_ID", "")
	v.SetDefault("GOOGLE_SHEET_NAME", "Página1")
	v.SetDefault("GOOGLE_READ_RANGE", "A:Z")
	v.SetDefault("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	v.SetDefault("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	v.SetDefault("GOOGLE_OAUTH_CLIENT_FILE", "")
	v.SetDefault("GOOGLE_OAUTH_TOKEN_FILE", "")

	v.SetDefault("AMQP_URL", "")
	v.SetDefault("AMQP_EXCHANGE", "financeboard")
	v.SetDefault("AMQP_QUEUE", "refresh_requests")

	v.SetDefault("REFRESH_INTERVAL", "60s")
	v.SetDefault("ROLLUP_RETENTION_DAYS", 90)
	v.SetDefault("BUDGET_MAX_PERCENT_TOTAL", "150")
	v.SetDefault("BUDGET_DEFAULTS_FILE", "")
	v.SetDefault("CURRENCY_SYMBOLS", "")
	v.SetDefault("DISPLAY_CURRENCY", "R$")

	v.SetDefault("COLUMN_DATE", "")
	v.SetDefault("COLUMN_CATEGORY", "")
	v.SetDefault("COLUMN_AMOUNT", "")
	v.SetDefault("COLUMN_DESCRIPTION", "")
	v.SetDefault("DATE_LAYOUTS", "")
}

// Load reads the environment, plus the YAML file named by CONFIG_FILE when
// set. Environment variables win over the file.
func Load() (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	v.AutomaticEnv()

	if file := v.GetString("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", file, err)
		}
	}
	return FromViper(v), nil
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) *Config {
	cfg := &Config{
		Port:               v.GetString("PORT"),
		RateLimitPerMinute: v.GetInt("RATE_LIMIT_PER_MINUTE"),
		LogLevel:           v.GetString("LOG_LEVEL"),
		LogFormat:          v.GetString("LOG_FORMAT"),

		DataBackend:  strings.ToLower(v.GetString("DATA_BACKEND")),
		DataDir:      v.GetString("DATA_DIR"),
		SettingsFile: v.GetString("SETTINGS_FILE"),
		RollupsFile:  v.GetString("ROLLUPS_FILE"),
		SQLiteDBPath: v.GetString("SQLITE_DB_PATH"),

		ExtractSource:   strings.ToLower(v.GetString("EXTRACT_SOURCE")),
		CSVExtractPath:  v.GetString("CSV_EXTRACT_PATH"),
		CSVDelimiter:    v.GetString("CSV_DELIMITER"),
		ExtractCacheTTL: v.GetDuration("EXTRACT_CACHE_TTL"),

		GoogleSpreadsheetID:      v.GetString("GOOGLE_SPREADSHEET_ID"),
		GoogleSheetName:          v.GetString("GOOGLE_SHEET_NAME"),
		GoogleReadRange:          v.GetString("GOOGLE_READ_RANGE"),
		GoogleServiceAccountJSON: v.GetString("GOOGLE_SERVICE_ACCOUNT_JSON"),
		GoogleServiceAccountFile: v.GetString("GOOGLE_SERVICE_ACCOUNT_FILE"),
		GoogleOAuthClientFile:    v.GetString("GOOGLE_OAUTH_CLIENT_FILE"),
		GoogleOAuthTokenFile:     v.GetString("GOOGLE_OAUTH_TOKEN_FILE"),

		AMQPURL:      v.GetString("AMQP_URL"),
		AMQPExchange: v.GetString("AMQP_EXCHANGE"),
		AMQPQueue:    v.GetString("AMQP_QUEUE"),

		RefreshInterval:     v.GetDuration("REFRESH_INTERVAL"),
		RollupRetentionDays: v.GetInt("ROLLUP_RETENTION_DAYS"),
		MaxPercentTotal:     v.GetString("BUDGET_MAX_PERCENT_TOTAL"),
		BudgetDefaultsFile:  v.GetString("BUDGET_DEFAULTS_FILE"),
		CurrencySymbols:     splitList(v.GetString("CURRENCY_SYMBOLS")),
		DisplayCurrency:     v.GetString("DISPLAY_CURRENCY"),

		DateColumns:        splitList(v.GetString("COLUMN_DATE")),
		CategoryColumns:    splitList(v.GetString("COLUMN_CATEGORY")),
		AmountColumns:      splitList(v.GetString("COLUMN_AMOUNT")),
		DescriptionColumns: splitList(v.GetString("COLUMN_DESCRIPTION")),
		DateLayouts:        splitList(v.GetString("DATE_LAYOUTS")),
	}

	if cfg.SettingsFile == "" {
		cfg.SettingsFile = filepath.Join(cfg.DataDir, "user_settings.json")
	}
	if cfg.RollupsFile == "" {
		cfg.RollupsFile = filepath.Join(cfg.DataDir, "daily_results.json")
	}
	if cfg.SQLiteDBPath == "" {
		cfg.SQLiteDBPath = filepath.Join(cfg.DataDir, "financeboard.db")
	}
	return cfg
}

// MaxPercent parses MaxPercentTotal.
func (c *Config) MaxPercent() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(c.MaxPercentTotal))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid BUDGET_MAX_PERCENT_TOTAL %q", c.MaxPercentTotal)
	}
	return d, nil
}

// Delimiter returns the configured CSV delimiter, or 0 to auto-detect.
func (c *Config) Delimiter() rune {
	switch d := c.CSVDelimiter; {
	case d == "":
		return 0
	case strings.EqualFold(d, "tab") || d == `\t`:
		return '\t'
	default:
		return []rune(d)[0]
	}
}

// UsesBroker reports whether refreshes go through AMQP.
func (c *Config) UsesBroker() bool {
	return strings.TrimSpace(c.AMQPURL) != ""
}

// Validate validates the configuration and returns every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	switch c.DataBackend {
	case BackendJSON:
		if c.SettingsFile == "" || c.RollupsFile == "" {
			errs = append(errs, "settings and rollups files cannot be empty when using json backend")
		}
	case BackendSQLite:
		if c.SQLiteDBPath == "" {
			errs = append(errs, "SQLite database path cannot be empty when using sqlite backend")
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Sprintf("invalid data backend '%s': must be one of [%s %s %s]", c.DataBackend, BackendJSON, BackendSQLite, BackendMemory))
	}

	switch c.ExtractSource {
	case SourceSheets:
		if c.GoogleSpreadsheetID == "" {
			errs = append(errs, "GOOGLE_SPREADSHEET_ID is required when EXTRACT_SOURCE is sheets")
		}
		hasOAuth := c.GoogleOAuthClientFile != "" || c.GoogleOAuthTokenFile != ""
		if hasOAuth && (c.GoogleOAuthClientFile == "" || c.GoogleOAuthTokenFile == "") {
			errs = append(errs, "GOOGLE_OAUTH_CLIENT_FILE and GOOGLE_OAUTH_TOKEN_FILE must be set together")
		}
	case SourceCSV:
		if c.CSVExtractPath == "" {
			errs = append(errs, "CSV_EXTRACT_PATH is required when EXTRACT_SOURCE is csv")
		}
		if r := []rune(c.CSVDelimiter); len(r) > 1 && !strings.EqualFold(c.CSVDelimiter, "tab") && c.CSVDelimiter != `\t` {
			errs = append(errs, fmt.Sprintf("invalid CSV delimiter '%s': must be a single character", c.CSVDelimiter))
		}
	case SourceMemory:
	default:
		errs = append(errs, fmt.Sprintf("invalid extract source '%s': must be one of [%s %s %s]", c.ExtractSource, SourceSheets, SourceCSV, SourceMemory))
	}
	if c.ExtractCacheTTL < 0 {
		errs = append(errs, fmt.Sprintf("invalid extract cache TTL %v: must not be negative", c.ExtractCacheTTL))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errs = append(errs, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.RefreshInterval < time.Second {
		errs = append(errs, fmt.Sprintf("invalid refresh interval %v: must be at least 1 second", c.RefreshInterval))
	} else if c.RefreshInterval > 24*time.Hour {
		errs = append(errs, fmt.Sprintf("invalid refresh interval %v: must be at most 24 hours", c.RefreshInterval))
	}
	if c.RollupRetentionDays < 1 {
		errs = append(errs, fmt.Sprintf("invalid rollup retention %d: must be at least 1 day", c.RollupRetentionDays))
	}
	if c.RateLimitPerMinute < 1 {
		errs = append(errs, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}
	if d, err := c.MaxPercent(); err != nil {
		errs = append(errs, err.Error())
	} else if !d.IsPositive() {
		errs = append(errs, fmt.Sprintf("invalid BUDGET_MAX_PERCENT_TOTAL %s: must be positive", d))
	}

	if len(errs) > 0 {
		return errors.New("configuration validation failed:\n- " + strings.Join(errs, "\n- "))
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
