package export

import (
	"context"
	"errors"
	"sync"
)

// DefaultQueueSize bounds pending exports of a Worker.
const DefaultQueueSize = 32

// ErrQueueFull is returned by Enqueue when the worker queue is saturated.
var ErrQueueFull = errors.New("export queue full")

// Scheduler queues exports and exposes their status.
type Scheduler interface {
	Enqueue(ctx context.Context, req Request) (Record, error)
	Get(id string) (Record, bool)
}

// Worker runs exports in the background, one at a time.
type Worker struct {
	exporter *Exporter

	queue chan task
	mu    sync.RWMutex
	jobs  map[string]*Record

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type task struct {
	id  string
	req Request
}

// NewWorker constructs a worker around exporter. A non-positive queueSize
// uses DefaultQueueSize.
func NewWorker(exporter *Exporter, queueSize int) *Worker {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		exporter: exporter,
		queue:    make(chan task, queueSize),
		jobs:     make(map[string]*Record),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins processing queued exports.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop signals the worker to halt and waits for the running export.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case t := <-w.queue:
			w.process(t)
		}
	}
}

// Enqueue validates the request and schedules it, returning the queued record.
func (w *Worker) Enqueue(_ context.Context, req Request) (Record, error) {
	formats, err := normalizeFormats(req.Formats)
	if err != nil {
		return Record{}, err
	}
	req.Formats = formats
	now := w.exporter.clock.Now()
	record := Record{
		ID:        w.exporter.newID(),
		Formats:   formats,
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}

	w.mu.Lock()
	select {
	case w.queue <- task{id: record.ID, req: req}:
	default:
		w.mu.Unlock()
		return Record{}, ErrQueueFull
	}
	w.jobs[record.ID] = &record
	snapshot := record.copy()
	w.mu.Unlock()
	return snapshot, nil
}

// Get returns a snapshot of the export record.
func (w *Worker) Get(id string) (Record, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	record, ok := w.jobs[id]
	if !ok {
		return Record{}, false
	}
	return record.copy(), true
}

func (w *Worker) process(t task) {
	w.mu.Lock()
	record, ok := w.jobs[t.id]
	if !ok {
		w.mu.Unlock()
		return
	}
	record.Status = StatusRunning
	record.UpdatedAt = w.exporter.clock.Now()
	created := record.CreatedAt
	w.mu.Unlock()

	result, _ := w.exporter.run(w.ctx, t.id, t.req)
	result.CreatedAt = created

	w.mu.Lock()
	w.jobs[t.id] = &result
	w.mu.Unlock()
}
