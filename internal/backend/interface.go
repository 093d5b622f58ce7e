// Package backend selects the sink the worker exports ledger rows to.
package backend

import (
	"context"

	"fintrack/internal/sheets"
)

// BackendResult contains the exporter; Exporter is nil for NoneBackend.
type BackendResult struct {
	Exporter sheets.Exporter
}

// Factory creates exporters based on configuration
type Factory interface {
	CreateExporter(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for exporter creation
type Config struct {
	Type BackendType

	// Google Sheets specific
	GoogleSpreadsheetID          string
	GoogleSheetName              string
	GoogleServiceAccountFile     string
	GoogleServiceAccountJSON     string
	GoogleApplicationCredentials string
}

// BackendType represents the type of export backend
type BackendType string

const (
	NoneBackend   BackendType = "none"
	MemoryBackend BackendType = "memory"
	SheetsBackend BackendType = "sheets"
)

func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case NoneBackend, MemoryBackend, SheetsBackend:
		return true
	default:
		return false
	}
}
