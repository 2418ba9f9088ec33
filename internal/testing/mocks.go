package testing

import (
	"context"
	"sync"

	"github.com/aristath/statements/internal/domain"
)

// MockRecordSource is an in-memory source of statement records for
// snapshot tests.
type MockRecordSource struct {
	mu      sync.RWMutex
	records []domain.StatementRecord
	err     error
	calls   int
}

// NewMockRecordSource creates a new mock record source
func NewMockRecordSource(records []domain.StatementRecord) *MockRecordSource {
	return &MockRecordSource{records: records}
}

// SetRecords sets the records to return
func (m *MockRecordSource) SetRecords(records []domain.StatementRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = records
}

// SetError sets the error to return
func (m *MockRecordSource) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times GetAllRecords was called
func (m *MockRecordSource) Calls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}

// GetAllRecords returns the configured records or error
func (m *MockRecordSource) GetAllRecords(ctx context.Context) ([]domain.StatementRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	out := make([]domain.StatementRecord, len(m.records))
	copy(out, m.records)
	return out, nil
}
