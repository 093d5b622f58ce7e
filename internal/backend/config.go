package backend

import (
	"errors"
	"fmt"

	"fintrack/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}

	backendType := BackendType(appConfig.ExportBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid export backend in config: %s", appConfig.ExportBackend)
	}

	return Config{
		Type: backendType,

		GoogleSpreadsheetID:          appConfig.GoogleSpreadsheetID,
		GoogleSheetName:              appConfig.GoogleSheetName,
		GoogleServiceAccountFile:     appConfig.GoogleServiceAccountFile,
		GoogleServiceAccountJSON:     appConfig.GoogleServiceAccountJSON,
		GoogleApplicationCredentials: appConfig.GoogleApplicationCredentials,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	if c.Type == SheetsBackend {
		if c.GoogleSpreadsheetID == "" {
			return errors.New("Google Spreadsheet ID is required for sheets backend")
		}
		if c.GoogleSheetName == "" {
			return errors.New("Google Sheet name is required for sheets backend")
		}
		if c.GoogleServiceAccountFile == "" && c.GoogleServiceAccountJSON == "" && c.GoogleApplicationCredentials == "" {
			return errors.New("service account credentials must be provided for sheets backend")
		}
	}
	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{NoneBackend, MemoryBackend, SheetsBackend}
}
