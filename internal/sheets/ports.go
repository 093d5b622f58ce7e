// Package sheets exports committed ledger rows to a spreadsheet-like sink.
package sheets

import (
	"context"
	"strconv"
	"time"

	"fintrack/internal/core"
)

// Header is the column layout of an export sheet.
var Header = []string{"ID", "User", "Timestamp", "Kind", "Category", "Amount", "Currency", "Normalized", "Description"}

// Row is one exported transaction, already formatted for display.
type Row struct {
	TransactionID int64
	UserID        int64
	Timestamp     string
	Kind          string
	Category      string
	Amount        string
	Currency      string
	Normalized    string
	Description   string
}

// Ports for outbound adapters.
type (
	TransactionExporter interface {
		Export(ctx context.Context, r Row) (rowRef string, err error)
	}

	// ExportIndex reports whether a transaction is already in the sink so
	// redelivered events do not produce duplicate rows.
	ExportIndex interface {
		Exported(ctx context.Context, transactionID int64) (bool, error)
	}

	Exporter interface {
		TransactionExporter
		ExportIndex
	}
)

// RowFromTransaction formats t using the deployment calendar loc.
func RowFromTransaction(t core.Transaction, loc *time.Location) Row {
	return Row{
		TransactionID: t.ID,
		UserID:        t.UserID,
		Timestamp:     core.FormatTimestamp(t.Timestamp, loc),
		Kind:          string(t.Kind),
		Category:      t.Category,
		Amount:        t.OriginalAmount.String(),
		Currency:      t.OriginalCurrency,
		Normalized:    t.NormalizedAmount.String(),
		Description:   t.Description,
	}
}

// Values returns the row as spreadsheet cells in Header order.
func (r Row) Values() []any {
	return []any{
		strconv.FormatInt(r.TransactionID, 10),
		strconv.FormatInt(r.UserID, 10),
		r.Timestamp,
		r.Kind,
		r.Category,
		r.Amount,
		r.Currency,
		r.Normalized,
		r.Description,
	}
}
