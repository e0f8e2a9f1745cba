package logger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultAsyncBufferSize   = 512
	defaultAsyncFlushTimeout = 5 * time.Second
)

// AsyncOptions configures the queue in front of a slow handler.
type AsyncOptions struct {
	BufferSize   int
	FlushTimeout time.Duration
}

type queuedRecord struct {
	ctx     context.Context
	record  slog.Record
	handler slog.Handler
}

// queue is shared by an AsyncHandler and everything derived from it.
type queue struct {
	ch           chan queuedRecord
	flushTimeout time.Duration
	closed       atomic.Bool
	dropped      atomic.Uint64
	done         sync.WaitGroup
	mu           sync.RWMutex
}

// AsyncHandler hands records to a background goroutine so remote shipping
// never blocks the webhook path. Records are dropped when the queue is full.
type AsyncHandler struct {
	q       *queue
	handler slog.Handler
}

// NewAsyncHandler starts the background goroutine for handler.
func NewAsyncHandler(handler slog.Handler, opts AsyncOptions) *AsyncHandler {
	size := opts.BufferSize
	if size <= 0 {
		size = defaultAsyncBufferSize
	}
	flush := opts.FlushTimeout
	if flush <= 0 {
		flush = defaultAsyncFlushTimeout
	}
	q := &queue{ch: make(chan queuedRecord, size), flushTimeout: flush}
	q.done.Go(func() {
		for rec := range q.ch {
			_ = rec.handler.Handle(rec.ctx, rec.record)
		}
	})
	return &AsyncHandler{q: q, handler: handler}
}

// Enabled delegates to the wrapped handler.
func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle enqueues a clone of r.
func (h *AsyncHandler) Handle(ctx context.Context, r slog.Record) error {
	h.q.mu.RLock()
	defer h.q.mu.RUnlock()
	if h.q.closed.Load() {
		return nil
	}
	select {
	case h.q.ch <- queuedRecord{ctx: context.WithoutCancel(ctx), record: r.Clone(), handler: h.handler}:
	default:
		h.q.dropped.Add(1)
	}
	return nil
}

// WithAttrs shares the queue with the derived handler.
func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AsyncHandler{q: h.q, handler: h.handler.WithAttrs(attrs)}
}

// WithGroup shares the queue with the derived handler.
func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return &AsyncHandler{q: h.q, handler: h.handler.WithGroup(name)}
}

// Dropped returns how many records were discarded because the queue was full.
func (h *AsyncHandler) Dropped() uint64 {
	return h.q.dropped.Load()
}

// Shutdown stops accepting records and waits for the queue to drain.
// Without a deadline on ctx the flush timeout applies.
func (h *AsyncHandler) Shutdown(ctx context.Context) error {
	if h == nil || h.q == nil {
		return nil
	}
	h.q.mu.Lock()
	if h.q.closed.Swap(true) {
		h.q.mu.Unlock()
		return nil
	}
	close(h.q.ch)
	h.q.mu.Unlock()

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.q.flushTimeout)
		defer cancel()
	}
	drained := make(chan struct{})
	go func() {
		h.q.done.Wait()
		close(drained)
	}()
	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
