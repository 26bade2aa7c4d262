package core

import (
	"context"
	"encoding/json"
	"expvar"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

var expvarSeq uint64

// OperationStats aggregates the outcomes of one service operation.
type OperationStats struct {
	Calls   int64     `json:"calls"`
	Errors  int64     `json:"errors"`
	TotalMS float64   `json:"total_ms"`
	MaxMS   float64   `json:"max_ms"`
	LastAt  time.Time `json:"last_at"`
}

// MeanMS is the average call latency in milliseconds.
func (s OperationStats) MeanMS() float64 {
	if s.Calls == 0 {
		return 0
	}
	return s.TotalMS / float64(s.Calls)
}

// ExpvarMetricsSnapshot is a copy of the recorder state.
type ExpvarMetricsSnapshot struct {
	Operations map[string]OperationStats `json:"operations"`
	RecordedAt time.Time                 `json:"recorded_at"`
}

// ExpvarMetricsRecorder keeps per-operation call statistics and publishes
// them on /debug/vars, so a shell session can be inspected without a
// Prometheus server.
type ExpvarMetricsRecorder struct {
	name string
	now  func() time.Time

	mu  sync.Mutex
	ops map[string]OperationStats
}

// NewExpvarMetricsRecorder publishes a recorder under name. An empty name
// is replaced by a unique flowpanel_service_metrics_<n>, since expvar
// rejects duplicate names.
func NewExpvarMetricsRecorder(name string) *ExpvarMetricsRecorder {
	if name == "" {
		name = fmt.Sprintf("flowpanel_service_metrics_%d", atomic.AddUint64(&expvarSeq, 1))
	}
	rec := &ExpvarMetricsRecorder{
		name: name,
		now:  func() time.Time { return time.Now().UTC() },
		ops:  make(map[string]OperationStats),
	}
	expvar.Publish(name, expvar.Func(func() any { return rec.Snapshot() }))
	return rec
}

// Name returns the expvar key.
func (r *ExpvarMetricsRecorder) Name() string { return r.name }

// Snapshot copies the current statistics.
func (r *ExpvarMetricsRecorder) Snapshot() ExpvarMetricsSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	ops := make(map[string]OperationStats, len(r.ops))
	for op, stats := range r.ops {
		ops[op] = stats
	}
	return ExpvarMetricsSnapshot{Operations: ops, RecordedAt: r.now()}
}

// Observe implements MetricsRecorder. Calls without an operation name are
// dropped.
func (r *ExpvarMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	ms := float64(duration) / float64(time.Millisecond)
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := r.ops[operation]
	stats.Calls++
	if !success {
		stats.Errors++
	}
	stats.TotalMS += ms
	stats.MaxMS = max(stats.MaxMS, ms)
	stats.LastAt = r.now()
	r.ops[operation] = stats
}

// JSONTraceEntry is one finished span.
type JSONTraceEntry struct {
	Seq        uint64    `json:"seq"`
	Operation  string    `json:"operation"`
	Status     string    `json:"status"`
	DurationMS float64   `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	ErrorKind  string    `json:"error_kind,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
}

// JSONTraceTracer writes one JSON line per finished span and keeps the spans
// for inspection. The CLI opens it on the file named by trace.path
// (FLOWPANEL_TRACE_PATH).
type JSONTraceTracer struct {
	now func() time.Time

	mu       sync.Mutex
	seq      uint64
	entries  []JSONTraceEntry
	enc      *json.Encoder
	writeErr error
}

// NewJSONTracer returns a tracer writing to w. A nil writer only retains
// spans in memory.
func NewJSONTracer(w io.Writer) *JSONTraceTracer {
	t := &JSONTraceTracer{now: func() time.Time { return time.Now().UTC() }}
	if w != nil {
		t.enc = json.NewEncoder(w)
	}
	return t
}

// Entries returns a copy of the finished spans in completion order.
func (t *JSONTraceTracer) Entries() []JSONTraceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]JSONTraceEntry(nil), t.entries...)
}

// Err returns the first error hit while writing spans.
func (t *JSONTraceTracer) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.writeErr
}

// Start implements Tracer.
func (t *JSONTraceTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	return ctx, &jsonTraceSpan{tracer: t, operation: operation, started: t.now()}
}

type jsonTraceSpan struct {
	tracer    *JSONTraceTracer
	operation string
	started   time.Time
}

func (s *jsonTraceSpan) End(err error) {
	t := s.tracer
	ended := t.now()
	entry := JSONTraceEntry{
		Operation:  s.operation,
		Status:     string(AuditStatusSuccess),
		DurationMS: float64(ended.Sub(s.started)) / float64(time.Millisecond),
		StartedAt:  s.started,
		EndedAt:    ended,
	}
	if err != nil {
		entry.Status = string(AuditStatusError)
		entry.Error = err.Error()
		entry.ErrorKind = ErrorKind(err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.seq++
	entry.Seq = t.seq
	t.entries = append(t.entries, entry)
	if t.enc == nil {
		return
	}
	if werr := t.enc.Encode(entry); werr != nil && t.writeErr == nil {
		t.writeErr = werr
	}
}
