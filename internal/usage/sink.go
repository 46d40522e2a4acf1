package usage

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Sink is a durable destination for usage records.
// Implementations must be safe for concurrent use.
type Sink interface {
	// WriteBatch persists multiple records.
	WriteBatch(ctx context.Context, records []Record) error

	// Close releases resources after flushing pending writes.
	Close() error
}

// batchFlushThreshold is the batch size that triggers an immediate flush.
const batchFlushThreshold = 100

// BufferedWriter queues records in memory and flushes them to a Sink in
// batches, either when the batch fills or at a fixed interval. A full buffer
// drops the record with a warning rather than blocking the request path:
// billing durability is best-effort, the in-memory ledger stays authoritative
// for the process lifetime.
type BufferedWriter struct {
	sink          Sink
	buffer        chan Record
	done          chan struct{}
	wg            sync.WaitGroup
	writes        sync.WaitGroup
	flushInterval time.Duration
	closed        atomic.Bool
}

// NewBufferedWriter creates a buffered writer and starts its flush goroutine.
func NewBufferedWriter(sink Sink, bufferSize int, flushInterval time.Duration) *BufferedWriter {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}

	w := &BufferedWriter{
		sink:          sink,
		buffer:        make(chan Record, bufferSize),
		done:          make(chan struct{}),
		flushInterval: flushInterval,
	}

	w.wg.Add(1)
	go w.flushLoop()

	return w
}

// Write queues a record for async persistence. Non-blocking.
func (w *BufferedWriter) Write(rec Record) {
	if w.closed.Load() {
		return
	}

	// Track this write so Close cannot close the buffer mid-send.
	w.writes.Add(1)
	defer w.writes.Done()

	if w.closed.Load() {
		return
	}

	select {
	case w.buffer <- rec:
	default:
		slog.Warn("usage sink buffer full, dropping record",
			"tenant_id", rec.TenantID,
			"model", rec.Model,
		)
	}
}

// Close stops the writer, flushes remaining records, and closes the sink.
// Idempotent.
func (w *BufferedWriter) Close() error {
	if w.closed.Swap(true) {
		return nil
	}

	w.writes.Wait()
	close(w.done)
	w.wg.Wait()

	return w.sink.Close()
}

func (w *BufferedWriter) flushLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()

	batch := make([]Record, 0, batchFlushThreshold)

	for {
		select {
		case rec := <-w.buffer:
			batch = append(batch, rec)
			if len(batch) >= batchFlushThreshold {
				w.flushBatch(batch)
				batch = make([]Record, 0, batchFlushThreshold)
			}

		case <-ticker.C:
			if len(batch) > 0 {
				w.flushBatch(batch)
				batch = make([]Record, 0, batchFlushThreshold)
			}

		case <-w.done:
			// Drain whatever is still queued, then flush once more.
			close(w.buffer)
			for rec := range w.buffer {
				batch = append(batch, rec)
			}
			if len(batch) > 0 {
				w.flushBatch(batch)
			}
			return
		}
	}
}

func (w *BufferedWriter) flushBatch(batch []Record) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := w.sink.WriteBatch(ctx, batch); err != nil {
		slog.Error("failed to write usage batch",
			"error", err,
			"count", len(batch),
		)
	}
}
