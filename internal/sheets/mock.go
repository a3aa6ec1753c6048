package sheets

import (
	"context"
	"sync"

	"github.com/Veraticus/the-books-must-balance/internal/reconcile"
)

// MockWriter is a mock implementation of ReportWriter for testing.
type MockWriter struct {
	WriteFunc      func(ctx context.Context, rep *reconcile.Report) (*Result, error)
	LastReport     *reconcile.Report
	WriteCallCount int
	mu             sync.Mutex
}

// NewMockWriter creates a new mock writer.
func NewMockWriter() *MockWriter {
	return &MockWriter{}
}

// Write implements the ReportWriter interface.
func (m *MockWriter) Write(ctx context.Context, rep *reconcile.Report) (*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.WriteCallCount++
	m.LastReport = rep

	if m.WriteFunc != nil {
		return m.WriteFunc(ctx, rep)
	}
	return &Result{SpreadsheetID: "mock-sheet", Rows: len(rep.Accounts)}, nil
}

// Reset clears all recorded calls.
func (m *MockWriter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.WriteCallCount = 0
	m.LastReport = nil
}

// SetWriteError configures the mock to fail every Write with err.
func (m *MockWriter) SetWriteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.WriteFunc = func(_ context.Context, _ *reconcile.Report) (*Result, error) {
		return nil, err
	}
}
