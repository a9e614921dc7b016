package requestcontext_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"amanah/pkg/requestcontext"
)

func TestRequestID(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, requestcontext.RequestID(ctx))

	ctx = requestcontext.WithRequestID(ctx, "req-123")
	assert.Equal(t, "req-123", requestcontext.RequestID(ctx))
}

func TestNow(t *testing.T) {
	fixed := time.Date(2025, time.June, 1, 10, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), fixed)
	assert.Equal(t, fixed, requestcontext.Now(ctx))
}

func TestNowFallsBackToWallClock(t *testing.T) {
	before := time.Now()
	got := requestcontext.Now(context.Background())
	after := time.Now()
	assert.False(t, got.Before(before))
	assert.False(t, got.After(after))
}
