package backend

import (
	"fmt"
	"time"

	"financeboard/internal/config"
	"financeboard/internal/sheets/google"
)

// Config holds configuration for backend creation
type Config struct {
	Type   BackendType
	Source SourceType

	// json backend
	SettingsFile string
	RollupsFile  string

	// sqlite backend
	SQLiteDBPath string

	// csv source
	CSVPath      string
	CSVDelimiter rune

	// sheets source
	Google google.Config

	// memory source
	Now func() time.Time
}

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	cfg := Config{
		Type:         BackendType(appConfig.DataBackend),
		Source:       SourceType(appConfig.ExtractSource),
		SettingsFile: appConfig.SettingsFile,
		RollupsFile:  appConfig.RollupsFile,
		SQLiteDBPath: appConfig.SQLiteDBPath,
		CSVPath:      appConfig.CSVExtractPath,
		CSVDelimiter: appConfig.Delimiter(),
		Google: google.Config{
			SpreadsheetID:      appConfig.GoogleSpreadsheetID,
			SheetName:          appConfig.GoogleSheetName,
			ReadRange:          appConfig.GoogleReadRange,
			ServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
			ServiceAccountFile: appConfig.GoogleServiceAccountFile,
			OAuthClientFile:    appConfig.GoogleOAuthClientFile,
			OAuthTokenFile:     appConfig.GoogleOAuthTokenFile,
			CacheTTL:           appConfig.ExtractCacheTTL,
		},
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	if !c.Source.IsValid() {
		return fmt.Errorf("invalid extract source: %s", c.Source)
	}

	switch c.Type {
	case JSONBackend:
		if c.SettingsFile == "" || c.RollupsFile == "" {
			return fmt.Errorf("settings and rollups files are required for json backend")
		}
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	}

	switch c.Source {
	case SheetsSource:
		if c.Google.SpreadsheetID == "" {
			return fmt.Errorf("spreadsheet ID is required for sheets source")
		}
	case CSVSource:
		if c.CSVPath == "" {
			return fmt.Errorf("CSV path is required for csv source")
		}
	}
	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{JSONBackend, SQLiteBackend, MemoryBackend}
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	types := GetBackendTypes()
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = t.String()
	}
	return out
}
