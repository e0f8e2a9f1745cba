package logger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingHandler struct{ slog.Handler }

func (failingHandler) Handle(context.Context, slog.Record) error { return errors.New("sink down") }

// recordingHandler collects messages; safe for concurrent use.
type recordingHandler struct {
	mu    sync.Mutex
	msgs  []string
	delay time.Duration
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordingHandler) Handle(_ context.Context, r slog.Record) error {
	if h.delay > 0 {
		time.Sleep(h.delay)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.msgs = append(h.msgs, r.Message)
	return nil
}

func (h *recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *recordingHandler) WithGroup(string) slog.Handler      { return h }

func (h *recordingHandler) messages() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.msgs...)
}

func TestMultiHandler_FiltersNil(t *testing.T) {
	t.Parallel()
	mh := NewMultiHandler(nil, slog.NewJSONHandler(&bytes.Buffer{}, nil), nil)
	assert.Len(t, mh.handlers, 1)
}

func TestMultiHandler_FanOutByLevel(t *testing.T) {
	t.Parallel()
	var debugBuf, errorBuf bytes.Buffer
	mh := NewMultiHandler(
		slog.NewJSONHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewJSONHandler(&errorBuf, &slog.HandlerOptions{Level: slog.LevelError}),
	)
	log := slog.New(mh).With("module", "test")

	log.Info("info only")
	assert.Contains(t, debugBuf.String(), "info only")
	assert.Empty(t, errorBuf.String())

	log.Error("both")
	assert.Contains(t, errorBuf.String(), "both")
	assert.Contains(t, errorBuf.String(), `"module":"test"`)
	assert.True(t, mh.Enabled(context.Background(), slog.LevelDebug))
}

func TestMultiHandler_JoinsErrors(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	base := slog.NewJSONHandler(&buf, nil)
	mh := NewMultiHandler(base, failingHandler{base})

	err := mh.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelInfo, "msg", 0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sink down")
	assert.Contains(t, buf.String(), "msg")
}

func TestMultiHandler_WithGroup(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := slog.New(NewMultiHandler(slog.NewJSONHandler(&buf, nil))).WithGroup("event")
	log.Info("grouped", "index", 1)
	assert.True(t, strings.Contains(buf.String(), `"event":{"index":1}`), buf.String())
}

func TestAsyncHandler_DrainsOnShutdown(t *testing.T) {
	t.Parallel()
	rec := &recordingHandler{}
	h := NewAsyncHandler(rec, AsyncOptions{BufferSize: 16})
	log := slog.New(h)

	for range 5 {
		log.Info("queued")
	}
	require.NoError(t, h.Shutdown(context.Background()))
	assert.Len(t, rec.messages(), 5)

	// Records after shutdown are ignored.
	log.Info("late")
	assert.Len(t, rec.messages(), 5)
	assert.NoError(t, h.Shutdown(context.Background()))
}

func TestAsyncHandler_DropsWhenFull(t *testing.T) {
	t.Parallel()
	rec := &recordingHandler{delay: 20 * time.Millisecond}
	h := NewAsyncHandler(rec, AsyncOptions{BufferSize: 1})
	log := slog.New(h)

	for range 20 {
		log.Info("burst")
	}
	assert.Positive(t, h.Dropped())
	require.NoError(t, h.Shutdown(context.Background()))
	assert.Less(t, len(rec.messages()), 20)
}

func TestAsyncHandler_ShutdownDeadline(t *testing.T) {
	t.Parallel()
	rec := &recordingHandler{delay: 200 * time.Millisecond}
	h := NewAsyncHandler(rec, AsyncOptions{BufferSize: 8})
	log := slog.New(h)
	for range 4 {
		log.Info("slow")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, h.Shutdown(ctx), context.DeadlineExceeded)
}

func TestAsyncHandler_NilShutdown(t *testing.T) {
	t.Parallel()
	var h *AsyncHandler
	assert.NoError(t, h.Shutdown(context.Background()))
}
