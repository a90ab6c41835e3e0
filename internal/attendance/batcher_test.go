package attendance

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facegate/facegate/internal/domain"
)

type captureSink struct {
	mu      sync.Mutex
	batches [][]domain.AttendanceRecord
	err     error
	flushed chan int
}

func newCaptureSink() *captureSink {
	return &captureSink{flushed: make(chan int, 16)}
}

func (s *captureSink) Send(_ context.Context, records []domain.AttendanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	batch := make([]domain.AttendanceRecord, len(records))
	copy(batch, records)
	s.batches = append(s.batches, batch)
	s.flushed <- len(batch)
	return nil
}

func (s *captureSink) batchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

func testRecord() domain.AttendanceRecord {
	return domain.AttendanceRecord{
		TenantID:           uuid.New(),
		OwnerID:            uuid.New(),
		DeviceID:           "kiosk-1",
		RecordTime:         time.Now().Unix(),
		VerificationMethod: "face",
		VerificationScore:  0.92,
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestBatcher_SizeTrigger(t *testing.T) {
	sink := newCaptureSink()
	b := NewBatcher(sink, testLogger(), BatcherConfig{
		MaxBatchSize:  10,
		FlushInterval: time.Hour, // time trigger must not fire
		MaxPending:    100,
	}, Hooks{})
	b.Start()
	defer b.Close(false)

	for i := 0; i < 10; i++ {
		require.True(t, b.Enqueue(testRecord()))
	}

	select {
	case size := <-sink.flushed:
		assert.Equal(t, 10, size)
	case <-time.After(2 * time.Second):
		t.Fatal("reaching max batch size did not trigger a flush")
	}
}

func TestBatcher_TimeTrigger(t *testing.T) {
	sink := newCaptureSink()
	b := NewBatcher(sink, testLogger(), BatcherConfig{
		MaxBatchSize:  50, // size trigger must not fire
		FlushInterval: 300 * time.Millisecond,
		MaxPending:    100,
	}, Hooks{})
	b.Start()
	defer b.Close(false)

	start := time.Now()
	require.True(t, b.Enqueue(testRecord()))

	select {
	case size := <-sink.flushed:
		assert.Equal(t, 1, size)
		assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond,
			"a single record waits for the interval, it does not flush eagerly")
	case <-time.After(3 * time.Second):
		t.Fatal("interval elapsed without a flush")
	}

	assert.Equal(t, 1, sink.batchCount(), "exactly one flush for one record")
}

func TestBatcher_Backpressure(t *testing.T) {
	sink := newCaptureSink()
	b := NewBatcher(sink, testLogger(), BatcherConfig{
		MaxBatchSize:  1000,
		FlushInterval: time.Hour,
		MaxPending:    100,
	}, Hooks{})
	// Worker intentionally not started so nothing drains the buffer.

	for i := 0; i < 100; i++ {
		require.True(t, b.Enqueue(testRecord()), "record %d should be accepted", i+1)
	}
	assert.False(t, b.Enqueue(testRecord()), "record 101 must be rejected")

	stats := b.Stats()
	assert.Equal(t, uint64(100), stats.Enqueued)
	assert.Equal(t, uint64(1), stats.Rejected)
	assert.Equal(t, 100, stats.Pending)
}

func TestBatcher_CloseFlushesRemainder(t *testing.T) {
	sink := newCaptureSink()
	b := NewBatcher(sink, testLogger(), BatcherConfig{
		MaxBatchSize:  50,
		FlushInterval: time.Hour,
		MaxPending:    100,
	}, Hooks{})
	b.Start()

	for i := 0; i < 3; i++ {
		require.True(t, b.Enqueue(testRecord()))
	}

	b.Close(true)

	require.Equal(t, 1, sink.batchCount())
	assert.Len(t, sink.batches[0], 3)

	assert.False(t, b.Enqueue(testRecord()), "enqueue after close is rejected")
	assert.Equal(t, 0, b.Stats().Pending)
}

func TestBatcher_CloseWithoutFinalFlushDropsBuffer(t *testing.T) {
	sink := newCaptureSink()
	b := NewBatcher(sink, testLogger(), BatcherConfig{
		MaxBatchSize:  50,
		FlushInterval: time.Hour,
		MaxPending:    100,
	}, Hooks{})
	b.Start()

	require.True(t, b.Enqueue(testRecord()))
	b.Close(false)

	assert.Equal(t, 0, sink.batchCount())
}

func TestBatcher_FailedFlushIsCountedNotRequeued(t *testing.T) {
	sink := newCaptureSink()
	sink.err = errors.New("attendance sink returned status 503")

	var afterErr error
	var afterSize int
	b := NewBatcher(sink, testLogger(), BatcherConfig{
		MaxBatchSize:  50,
		FlushInterval: time.Hour,
		MaxPending:    100,
	}, Hooks{
		AfterFlush: func(batchSize int, err error) {
			afterSize = batchSize
			afterErr = err
		},
	})

	require.True(t, b.Enqueue(testRecord()))
	require.True(t, b.Enqueue(testRecord()))
	require.Error(t, b.Flush(context.Background()))

	stats := b.Stats()
	assert.Equal(t, uint64(1), stats.FailedBatches)
	assert.Equal(t, uint64(0), stats.FlushedBatches)
	assert.Equal(t, 0, stats.Pending, "failed batches are dropped, not requeued")
	assert.Equal(t, 2, afterSize)
	assert.Error(t, afterErr)
}

func TestBatcher_Hooks(t *testing.T) {
	sink := newCaptureSink()

	var beforeSize, afterSize int
	b := NewBatcher(sink, testLogger(), BatcherConfig{
		MaxBatchSize:  50,
		FlushInterval: time.Hour,
		MaxPending:    100,
	}, Hooks{
		BeforeFlush: func(batchSize int) { beforeSize = batchSize },
		AfterFlush:  func(batchSize int, err error) { afterSize = batchSize },
	})

	require.True(t, b.Enqueue(testRecord()))
	require.NoError(t, b.Flush(context.Background()))

	assert.Equal(t, 1, beforeSize)
	assert.Equal(t, 1, afterSize)
}

func TestBatcher_SendImmediate(t *testing.T) {
	sink := newCaptureSink()
	b := NewBatcher(sink, testLogger(), DefaultBatcherConfig(), Hooks{})

	require.NoError(t, b.SendImmediate(context.Background(), testRecord()))
	require.Equal(t, 1, sink.batchCount())
	assert.Len(t, sink.batches[0], 1)
}

func TestBatcher_CloseIsIdempotent(t *testing.T) {
	sink := newCaptureSink()
	b := NewBatcher(sink, testLogger(), DefaultBatcherConfig(), Hooks{})
	b.Start()

	b.Close(true)
	b.Close(true)
}
