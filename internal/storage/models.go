package storage

import "database/sql"

// Row types mirror the tables one to one; conversion to core types lives in repository.go.

type User struct {
	ID           int64
	Username     string
	PasswordHash string
}

type Transaction struct {
	ID               int64
	UserID           int64
	OccurredAt       string
	Kind             string
	Category         string
	OriginalCents    int64
	OriginalCurrency string
	NormalizedCents  int64
	Description      string
}

type Goal struct {
	ID           int64
	UserID       int64
	Name         string
	TargetCents  int64
	CurrentCents int64
	Deadline     sql.NullString
}

type Budget struct {
	UserID       int64
	CeilingCents int64
}

type SumByKindRow struct {
	IncomeCents  int64
	ExpenseCents int64
}

type CategoryTotalRow struct {
	Category   string
	Kind       string
	TotalCents int64
}

type DailyTotalRow struct {
	Day          string
	IncomeCents  int64
	ExpenseCents int64
}
