package testutils

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// ExpectedRecord is a log record a test expects to be emitted.
type ExpectedRecord struct {
	Level   slog.Level
	Message string
}

// Compare asserts that have matches the expected level and contains the expected message.
func (want ExpectedRecord) Compare(t *testing.T, have slog.Record) {
	t.Helper()

	assert.Equal(t, want.Level, have.Level, "Expected Level did not match real Level")

	if want.Message == "" {
		return
	}
	assert.Contains(t, have.Message, want.Message, "Real Message does not contain Expected")
}

// MockHandler is a slog handler recording every record it handles. It is safe for concurrent use.
type MockHandler struct {
	mu      sync.Mutex
	records []slog.Record
	level   slog.Level
}

// NewMockHandler returns a new MockHandler recording records at level or above.
func NewMockHandler(level slog.Level) *MockHandler {
	return &MockHandler{level: level}
}

// Enabled implements Handler.Enabled.
func (h *MockHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

// Handle implements Handler.Handle.
func (h *MockHandler) Handle(_ context.Context, record slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, record.Clone())
	return nil
}

// WithAttrs implements Handler.WithAttrs.
func (h *MockHandler) WithAttrs([]slog.Attr) slog.Handler {
	return h
}

// WithGroup implements Handler.WithGroup.
func (h *MockHandler) WithGroup(string) slog.Handler {
	return h
}

// Records returns a copy of the recorded records.
func (h *MockHandler) Records() []slog.Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]slog.Record(nil), h.records...)
}

// AssertRecords compares the recorded records with want, in order.
func (h *MockHandler) AssertRecords(t *testing.T, want []ExpectedRecord) {
	t.Helper()

	have := h.Records()
	if !assert.Len(t, have, len(want), "Unexpected number of log records") {
		return
	}
	for i, w := range want {
		w.Compare(t, have[i])
	}
}
