package attendance

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/facegate/facegate/internal/domain"
)

// BatcherConfig holds configuration for the batcher
type BatcherConfig struct {
	MaxBatchSize  int           // Flush as soon as this many records are buffered (default: 10)
	FlushInterval time.Duration // Flush whatever is buffered at this interval (default: 3 seconds)
	MaxPending    int           // Reject enqueues beyond this many buffered records (default: 100)
	CloseTimeout  time.Duration // Bounded wait for the worker on Close (default: 5 seconds)
}

// DefaultBatcherConfig returns default configuration
func DefaultBatcherConfig() BatcherConfig {
	return BatcherConfig{
		MaxBatchSize:  10,
		FlushInterval: 3 * time.Second,
		MaxPending:    100,
		CloseTimeout:  5 * time.Second,
	}
}

// Hooks are optional observability callbacks around each flush.
type Hooks struct {
	BeforeFlush func(batchSize int)
	AfterFlush  func(batchSize int, err error)
}

// Stats is a point-in-time snapshot of batcher counters.
type Stats struct {
	Enqueued       uint64
	Rejected       uint64
	FlushedBatches uint64
	FlushedRecords uint64
	FailedBatches  uint64
	Pending        int
}

// Batcher buffers attendance records and flushes them to the sink in
// batches, so verification latency is never coupled to attendance I/O.
// Exactly one background worker drains the buffer; the network send always
// happens outside the lock, after the buffer has been swapped out, so
// producers are never blocked by an in-flight flush.
type Batcher struct {
	sink   Sink
	logger *slog.Logger
	config BatcherConfig
	hooks  Hooks

	mu      sync.Mutex
	buffer  []domain.AttendanceRecord
	stopped bool

	notify chan struct{}
	done   chan struct{}
	wg     sync.WaitGroup

	enqueued       atomic.Uint64
	rejected       atomic.Uint64
	flushedBatches atomic.Uint64
	flushedRecords atomic.Uint64
	failedBatches  atomic.Uint64
}

// NewBatcher creates a batcher. Call Start to launch the worker.
func NewBatcher(sink Sink, logger *slog.Logger, config BatcherConfig, hooks Hooks) *Batcher {
	if config.MaxBatchSize == 0 {
		config.MaxBatchSize = 10
	}
	if config.FlushInterval == 0 {
		config.FlushInterval = 3 * time.Second
	}
	if config.MaxPending == 0 {
		config.MaxPending = 100
	}
	if config.CloseTimeout == 0 {
		config.CloseTimeout = 5 * time.Second
	}

	return &Batcher{
		sink:   sink,
		logger: logger.With("component", "attendance_batcher"),
		config: config,
		hooks:  hooks,
		buffer: make([]domain.AttendanceRecord, 0, config.MaxBatchSize),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Start begins the background worker
func (b *Batcher) Start() {
	b.wg.Add(1)
	go b.run()
	b.logger.Info("attendance batcher started",
		"max_batch_size", b.config.MaxBatchSize,
		"flush_interval", b.config.FlushInterval,
		"max_pending", b.config.MaxPending,
	)
}

// Enqueue appends a record to the buffer. It never blocks: when the buffer
// already holds MaxPending records, or the batcher is closed, the record is
// rejected and false is returned.
func (b *Batcher) Enqueue(record domain.AttendanceRecord) bool {
	b.mu.Lock()
	if b.stopped || len(b.buffer) >= b.config.MaxPending {
		b.mu.Unlock()
		b.rejected.Add(1)
		return false
	}
	b.buffer = append(b.buffer, record)
	b.mu.Unlock()

	b.enqueued.Add(1)

	select {
	case b.notify <- struct{}{}:
	default:
	}

	return true
}

// Flush force-drains the current buffer synchronously.
func (b *Batcher) Flush(ctx context.Context) error {
	return b.flush(ctx, b.swap())
}

// SendImmediate bypasses the buffer and sends a single record synchronously.
func (b *Batcher) SendImmediate(ctx context.Context, record domain.AttendanceRecord) error {
	return b.flush(ctx, []domain.AttendanceRecord{record})
}

// Close stops the worker, waits up to CloseTimeout for it to finish, and if
// flushFinal is set performs one last synchronous flush of whatever remains.
func (b *Batcher) Close(flushFinal bool) {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}
	b.stopped = true
	b.mu.Unlock()

	close(b.done)

	joined := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(joined)
	}()

	select {
	case <-joined:
	case <-time.After(b.config.CloseTimeout):
		b.logger.Warn("attendance worker did not stop in time")
	}

	if flushFinal {
		ctx, cancel := context.WithTimeout(context.Background(), b.config.CloseTimeout)
		defer cancel()
		_ = b.flush(ctx, b.swap())
	}

	b.logger.Info("attendance batcher stopped")
}

// Stats returns a snapshot of the batcher counters
func (b *Batcher) Stats() Stats {
	b.mu.Lock()
	pending := len(b.buffer)
	b.mu.Unlock()

	return Stats{
		Enqueued:       b.enqueued.Load(),
		Rejected:       b.rejected.Load(),
		FlushedBatches: b.flushedBatches.Load(),
		FlushedRecords: b.flushedRecords.Load(),
		FailedBatches:  b.failedBatches.Load(),
		Pending:        pending,
	}
}

func (b *Batcher) run() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.done:
			return

		case <-b.notify:
			if b.pending() >= b.config.MaxBatchSize {
				b.flushBackground()
				ticker.Reset(b.config.FlushInterval)
			}

		case <-ticker.C:
			if b.pending() > 0 {
				b.flushBackground()
			}
		}
	}
}

func (b *Batcher) pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buffer)
}

// swap exchanges the buffer for an empty one under the lock, so the network
// send that follows never holds up producers.
func (b *Batcher) swap() []domain.AttendanceRecord {
	b.mu.Lock()
	batch := b.buffer
	b.buffer = make([]domain.AttendanceRecord, 0, b.config.MaxBatchSize)
	b.mu.Unlock()
	return batch
}

func (b *Batcher) flushBackground() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = b.flush(ctx, b.swap())
}

// flush sends one batch. A failed batch is logged and counted, never
// requeued: attendance delivery is at-most-once.
func (b *Batcher) flush(ctx context.Context, batch []domain.AttendanceRecord) error {
	if len(batch) == 0 {
		return nil
	}

	if b.hooks.BeforeFlush != nil {
		b.hooks.BeforeFlush(len(batch))
	}

	err := b.sink.Send(ctx, batch)
	if err != nil {
		b.failedBatches.Add(1)
		b.logger.Error("attendance flush failed",
			"batch_size", len(batch),
			"error", err,
		)
	} else {
		b.flushedBatches.Add(1)
		b.flushedRecords.Add(uint64(len(batch)))
		b.logger.Debug("attendance flush",
			"batch_size", len(batch),
		)
	}

	if b.hooks.AfterFlush != nil {
		b.hooks.AfterFlush(len(batch), err)
	}

	return err
}
