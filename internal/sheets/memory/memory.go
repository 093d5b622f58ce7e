// Package memory is an in-process exporter used when no spreadsheet is configured.
package memory

import (
	"context"
	"fmt"
	"sync"

	"fintrack/internal/sheets"
)

var _ sheets.Exporter = (*Store)(nil)

type Store struct {
	mu    sync.Mutex
	rows  []sheets.Row
	index map[int64]int
}

func New() *Store {
	return &Store{index: make(map[int64]int)}
}

// Export stores the row and returns a synthetic row reference.
func (s *Store) Export(_ context.Context, r sheets.Row) (string, error) {
	if r.TransactionID <= 0 {
		return "", fmt.Errorf("export row: missing transaction id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.index[r.TransactionID]; ok {
		return fmt.Sprintf("mem:%d", i+1), nil
	}
	s.rows = append(s.rows, r)
	s.index[r.TransactionID] = len(s.rows) - 1
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

func (s *Store) Exported(_ context.Context, transactionID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.index[transactionID]
	return ok, nil
}

// Rows returns a copy of everything exported so far, in export order.
func (s *Store) Rows() []sheets.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sheets.Row(nil), s.rows...)
}
