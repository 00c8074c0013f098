package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNowFallsBackToWallClock(t *testing.T) {
	assert.WithinDuration(t, time.Now(), Now(context.Background()), time.Second)
}

func TestWithTimePinsNow(t *testing.T) {
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := WithTime(context.Background(), fixed)
	assert.Equal(t, fixed, Now(ctx))
}

func TestRequestID(t *testing.T) {
	assert.Empty(t, RequestID(context.Background()))
	assert.Equal(t, "abc-123", RequestID(WithRequestID(context.Background(), "abc-123")))
}
