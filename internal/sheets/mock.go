package sheets

import (
	"context"
	"slices"
	"sync"

	"github.com/decimal-labs/leakwatch/internal/model"
	"github.com/decimal-labs/leakwatch/internal/service"
)

var _ service.ReportWriter = (*MockWriter)(nil)

// MockWriter records report snapshots instead of publishing them.
type MockWriter struct {
	err   error
	calls []WriteCall
	mu    sync.Mutex
}

// WriteCall is one snapshot handed to MockWriter.Write.
type WriteCall struct {
	Stats   *model.Stats
	Records []*model.LeakRecord
}

// NewMockWriter returns a MockWriter that accepts every write.
func NewMockWriter() *MockWriter {
	return &MockWriter{}
}

// Write records the snapshot and returns the configured error, if any.
func (m *MockWriter) Write(ctx context.Context, records []*model.LeakRecord, stats *model.Stats) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, WriteCall{Records: slices.Clone(records), Stats: stats})
	return m.err
}

// GetWriteCalls returns the snapshots written so far.
func (m *MockWriter) GetWriteCalls() []WriteCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.calls)
}

// SetWriteError makes subsequent writes fail with err.
func (m *MockWriter) SetWriteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}
