// ABOUTME: Unit tests for the generic TTL cache.
// ABOUTME: Covers hits, misses, expiry, sweeping, and cleanup shutdown.

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/jfeddern/TerraSentry/internal/types"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func TestCache(t *testing.T) {
	c := New[*types.ImageVulnerability](30*time.Minute, quietLogger())

	testImage := "123456789012.dkr.ecr.us-east-1.amazonaws.com/my-app:v1.0.0"
	testVuln := &types.ImageVulnerability{
		ImageURI:        testImage,
		Vulnerabilities: map[string]int{"HIGH": 5, "MEDIUM": 10},
		TotalCount:      15,
		ScanStatus:      "COMPLETE",
	}

	t.Run("cache miss", func(t *testing.T) {
		result, ok := c.Get("nonexistent")
		assert.False(t, ok)
		assert.Nil(t, result)
	})

	t.Run("cache hit", func(t *testing.T) {
		c.Set(testImage, testVuln)

		result, ok := c.Get(testImage)
		require.True(t, ok)
		assert.Equal(t, testVuln.ImageURI, result.ImageURI)
		assert.Equal(t, 15, result.TotalCount)
	})

	t.Run("cache stats", func(t *testing.T) {
		total, expired := c.Stats()
		assert.Equal(t, 1, total)
		assert.Equal(t, 0, expired)
	})
}

func TestCacheExpiry(t *testing.T) {
	c := New[string](time.Minute, quietLogger())
	now := time.Date(2025, 7, 8, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("report", "cached analysis")
	value, ok := c.Get("report")
	require.True(t, ok)
	assert.Equal(t, "cached analysis", value)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get("report")
	assert.False(t, ok, "expired entries must not be served")

	total, expired := c.Stats()
	assert.Equal(t, 1, total)
	assert.Equal(t, 1, expired)

	c.cleanup()
	total, expired = c.Stats()
	assert.Equal(t, 0, total)
	assert.Equal(t, 0, expired)
}

func TestStartCleanupStopsOnCancel(t *testing.T) {
	c := New[int](time.Millisecond, quietLogger())
	c.Set("a", 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.StartCleanup(ctx, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		total, _ := c.Stats()
		return total == 0
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup goroutine did not stop after cancel")
	}
}
