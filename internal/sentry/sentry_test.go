package sentry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInitialize_EmptyDSN(t *testing.T) {
	assert.NoError(t, Initialize(Config{}))
	// Capture is a no-op while disabled.
	CaptureException(context.Background(), errors.New("ignored"), nil)
}

func TestInitialize_InvalidDSN(t *testing.T) {
	assert.Error(t, Initialize(Config{DSN: "not a dsn"}))
}

func TestInitialize_ValidConfig(t *testing.T) {
	// Sentry uses global state, so no t.Parallel().
	err := Initialize(Config{
		DSN:         "https://public@example.com/1",
		Environment: "test",
		SampleRate:  0,
	})
	assert.NoError(t, err)
	assert.True(t, IsEnabled())

	CaptureException(context.Background(), errors.New("query failed"), map[string]string{"strategy": "disease"})
	CaptureException(context.Background(), nil, nil)
	Flush(100 * time.Millisecond)
}
