// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"slices"
	"sync"

	"github.com/kozaktomas/facegate/internal/database"
)

// MockStore is an in-memory implementation of database.Store
type MockStore struct {
	mu      sync.Mutex
	records []database.Record
	closed  bool

	// Error injection
	LoadError   error
	AppendError error
	CloseError  error

	// AppendCalls counts every Append attempt, failed ones included
	AppendCalls int
}

// NewMockStore creates a mock store preloaded with records
func NewMockStore(records ...database.Record) *MockStore {
	return &MockStore{records: slices.Clone(records)}
}

// Name identifies the mock store
func (m *MockStore) Name() string {
	return "mock"
}

// Load returns a copy of the stored records
func (m *MockStore) Load(ctx context.Context) ([]database.Record, error) {
	if m.LoadError != nil {
		return nil, m.LoadError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.records), nil
}

// Append stores a record unless AppendError is set
func (m *MockStore) Append(ctx context.Context, rec database.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AppendCalls++
	if m.AppendError != nil {
		return m.AppendError
	}
	m.records = append(m.records, rec)
	return nil
}

// Close marks the store closed
func (m *MockStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return m.CloseError
}

// Stored returns what has been persisted so far
func (m *MockStore) Stored() []database.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.records)
}

// Closed reports whether Close was called
func (m *MockStore) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
