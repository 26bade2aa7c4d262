package core

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestNoopLoggerMethods directly invokes noopLogger methods; none may panic.
func TestNoopLoggerMethods(_ *testing.T) {
	logger := noopLogger{}
	logger.Debug("test debug message", "key", "value")
	logger.Info("test info message", "key", "value")
	logger.Warn("test warn message", "key", "value")
	logger.Error("test error message", "key", "value")
}

// TestDefaultServiceOptions ensures default options wiring executes without nil derefs.
func TestDefaultServiceOptions(t *testing.T) {
	opts := defaultServiceOptions()
	if opts.clock == nil || opts.logger == nil || opts.audit == nil || opts.metrics == nil || opts.tracer == nil {
		t.Fatalf("expected defaults populated")
	}
	if opts.clock.Now().IsZero() {
		t.Fatalf("expected nil ClockFunc to report the current time")
	}
	opts.audit.Record(context.Background(), AuditEntry{})
	opts.metrics.Observe(context.Background(), "noop", true, 0)
	_, span := opts.tracer.Start(context.Background(), "noop")
	span.End(nil)
}

func TestZapLoggerWritesKeyValues(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewZapLogger(zap.New(core))
	logger.Debug("debug", "k", 1)
	logger.Info("info", "k", 2)
	logger.Warn("warn", "k", 3)
	logger.Error("error", "k", 4)

	entries := logs.All()
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}
	if entries[2].Level != zapcore.WarnLevel || entries[2].ContextMap()["k"] != int64(3) {
		t.Fatalf("unexpected warn entry %+v", entries[2])
	}
	NewZapLogger(nil).Info("dropped")
}

func TestLoggerAuditRecorder(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	rec := LoggerAuditRecorder{Logger: NewZapLogger(zap.New(core))}
	rec.Record(context.Background(), AuditEntry{
		Operation: OpDeleteTube,
		Entity:    EntityTube,
		Action:    ActionDelete,
		EntityID:  "Blank",
		Status:    AuditStatusError,
		Error:     "not found",
		Duration:  time.Millisecond,
	})
	entries := logs.FilterMessage("audit").All()
	if len(entries) != 1 {
		t.Fatalf("expected one audit log line, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["operation"] != OpDeleteTube || fields["entity_id"] != "Blank" || fields["error"] != "not found" {
		t.Fatalf("unexpected audit fields %v", fields)
	}
	LoggerAuditRecorder{}.Record(context.Background(), AuditEntry{})
}
