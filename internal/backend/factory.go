package backend

import (
	"context"
	"fmt"

	"fintrack/internal/log"
	gsheet "fintrack/internal/sheets/google"
	"fintrack/internal/sheets/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentSheets),
	}
}

// CreateExporter implements Factory.CreateExporter
func (f *DefaultFactory) CreateExporter(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SheetsBackend:
		return f.createSheetsExporter(ctx, config)
	case MemoryBackend:
		f.logger.Info("Initialized in-memory export backend")
		return &BackendResult{Exporter: memory.New()}, nil
	default:
		f.logger.Info("Export disabled")
		return &BackendResult{}, nil
	}
}

func (f *DefaultFactory) createSheetsExporter(ctx context.Context, config Config) (*BackendResult, error) {
	client, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:          config.GoogleSpreadsheetID,
		SheetName:              config.GoogleSheetName,
		ServiceAccountJSON:     config.GoogleServiceAccountJSON,
		ServiceAccountFile:     config.GoogleServiceAccountFile,
		ApplicationCredentials: config.GoogleApplicationCredentials,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	if err := client.EnsureHeader(ctx); err != nil {
		return nil, fmt.Errorf("failed to prepare export sheet: %w", err)
	}

	f.logger.Info("Initialized Google Sheets export backend",
		"spreadsheet_id", config.GoogleSpreadsheetID,
		"sheet", config.GoogleSheetName)

	return &BackendResult{Exporter: client}, nil
}
