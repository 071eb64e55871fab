package storage

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gymkit/monitoring-engine/internal/alerting"
	"github.com/gymkit/monitoring-engine/internal/health"
	"github.com/gymkit/monitoring-engine/internal/metrics"
)

// Writer defaults
const (
	DefaultQueueSize    = 1000
	defaultWriteTimeout = 5 * time.Second
)

type jobKind int

const (
	jobMetric jobKind = iota
	jobAlert
	jobHealthCheck
)

type job struct {
	kind   jobKind
	metric metrics.Metric
	alert  alerting.Alert
	result health.Result
}

// Writer decouples ingestion from storage I/O: writes are enqueued on a
// bounded channel and flushed by one dedicated goroutine. When the queue is
// full the oldest pending write is dropped rather than blocking the caller;
// the hot path must not wait on the database.
type Writer struct {
	gateway Gateway
	logger  *slog.Logger
	queue   chan job
	cancel  context.CancelFunc
	done    chan struct{}

	dropped  atomic.Int64
	failures atomic.Int64
	written  atomic.Int64
}

// NewWriter creates an asynchronous writer over the gateway. A non-positive
// queue size falls back to DefaultQueueSize.
func NewWriter(gateway Gateway, queueSize int, logger *slog.Logger) *Writer {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Writer{
		gateway: gateway,
		logger:  logger,
		queue:   make(chan job, queueSize),
	}
}

// Start launches the writer goroutine.
func (w *Writer) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan struct{})

	w.logger.Info("Starting persistence writer", "queue_capacity", cap(w.queue))
	go w.run(ctx)
}

// Stop drains the queue and waits for the writer goroutine to exit.
func (w *Writer) Stop() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	<-w.done
	w.logger.Info("Persistence writer stopped",
		"written", w.written.Load(),
		"dropped", w.dropped.Load(),
		"failures", w.failures.Load(),
	)
}

// EnqueueMetric schedules a metric save. Never blocks.
func (w *Writer) EnqueueMetric(m metrics.Metric) {
	w.enqueue(job{kind: jobMetric, metric: m})
}

// EnqueueAlert schedules an alert save. Never blocks.
func (w *Writer) EnqueueAlert(alert alerting.Alert) {
	w.enqueue(job{kind: jobAlert, alert: alert})
}

// EnqueueHealthCheck schedules a health-check result save. Never blocks.
func (w *Writer) EnqueueHealthCheck(result health.Result) {
	w.enqueue(job{kind: jobHealthCheck, result: result})
}

// Depth reports the number of pending writes.
func (w *Writer) Depth() int { return len(w.queue) }

// Dropped reports how many pending writes were evicted under backpressure.
func (w *Writer) Dropped() int64 { return w.dropped.Load() }

// Failures reports how many writes the gateway rejected.
func (w *Writer) Failures() int64 { return w.failures.Load() }

func (w *Writer) enqueue(j job) {
	select {
	case w.queue <- j:
		return
	default:
	}

	// Queue full: evict the oldest pending write to make room.
	select {
	case <-w.queue:
		w.dropped.Add(1)
	default:
	}
	select {
	case w.queue <- j:
	default:
		w.dropped.Add(1)
		w.logger.Warn("Persistence queue full, dropping write")
	}
}

func (w *Writer) run(ctx context.Context) {
	defer close(w.done)

	for {
		select {
		case j := <-w.queue:
			w.write(j)
		case <-ctx.Done():
			w.drain()
			return
		}
	}
}

// drain flushes whatever is still queued at shutdown.
func (w *Writer) drain() {
	for {
		select {
		case j := <-w.queue:
			w.write(j)
		default:
			return
		}
	}
}

func (w *Writer) write(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultWriteTimeout)
	defer cancel()

	var err error
	switch j.kind {
	case jobMetric:
		err = w.gateway.SaveMetric(ctx, j.metric)
	case jobAlert:
		err = w.gateway.SaveAlert(ctx, j.alert)
	case jobHealthCheck:
		err = w.gateway.SaveHealthCheck(ctx, j.result)
	}
	if err != nil {
		w.failures.Add(1)
		w.logger.Error("Persistence write failed", "error", err)
		return
	}
	w.written.Add(1)
}

// AsyncAlertStore adapts the writer and gateway to the alerting.Store
// contract: new alerts go through the queue so rule evaluation stays
// non-blocking, while lifecycle updates write through directly.
type AsyncAlertStore struct {
	writer  *Writer
	gateway Gateway
}

// NewAsyncAlertStore creates the alert persistence adapter.
func NewAsyncAlertStore(writer *Writer, gateway Gateway) *AsyncAlertStore {
	return &AsyncAlertStore{writer: writer, gateway: gateway}
}

// SaveAlert enqueues the alert for asynchronous persistence.
func (s *AsyncAlertStore) SaveAlert(_ context.Context, alert alerting.Alert) error {
	s.writer.EnqueueAlert(alert)
	return nil
}

// UpdateAlert writes the lifecycle transition through to the gateway.
func (s *AsyncAlertStore) UpdateAlert(ctx context.Context, alert alerting.Alert) error {
	return s.gateway.UpdateAlert(ctx, alert)
}

// AsyncHealthStore adapts the writer to the health.ResultStore contract.
type AsyncHealthStore struct {
	writer *Writer
}

// NewAsyncHealthStore creates the health-check persistence adapter.
func NewAsyncHealthStore(writer *Writer) *AsyncHealthStore {
	return &AsyncHealthStore{writer: writer}
}

// SaveHealthCheck enqueues the probe result for asynchronous persistence.
func (s *AsyncHealthStore) SaveHealthCheck(_ context.Context, result health.Result) error {
	s.writer.EnqueueHealthCheck(result)
	return nil
}
