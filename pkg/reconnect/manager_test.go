package reconnect

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"svmengine/pkg/errors"
)

func fastManager(maxRetries int) *Manager {
	return NewManager(Config{
		MinBackoff:        time.Millisecond,
		MaxBackoff:        4 * time.Millisecond,
		BackoffMultiplier: 2,
		MaxRetries:        maxRetries,
	}, nil)
}

func TestNewManager_Defaults(t *testing.T) {
	m := NewManager(Config{}, nil)

	assert.Equal(t, 500*time.Millisecond, m.minBackoff)
	assert.Equal(t, 30*time.Second, m.maxBackoff)
	assert.Equal(t, 2.0, m.backoffMultiplier)
	assert.Equal(t, 5, m.maxRetries)
	assert.Zero(t, m.GetBackoff())
	assert.True(t, m.ShouldRetry())
}

func TestRecordFailure_Backoff(t *testing.T) {
	m := fastManager(10)

	want := []time.Duration{1, 2, 4, 4}
	for i, w := range want {
		m.RecordFailure()
		assert.Equal(t, w*time.Millisecond, m.GetBackoff(), "failure %d", i+1)
	}
	assert.Equal(t, 4, m.GetStats().ConsecutiveFailures)

	m.RecordSuccess()
	stats := m.GetStats()
	assert.Zero(t, stats.ConsecutiveFailures)
	assert.Zero(t, stats.CurrentBackoff)
	assert.Equal(t, 1, stats.TotalConnects)
}

func TestShouldRetry(t *testing.T) {
	m := fastManager(2)

	m.RecordFailure()
	assert.True(t, m.ShouldRetry())
	m.RecordFailure()
	assert.False(t, m.ShouldRetry())
}

func TestConnect_SucceedsAfterFailures(t *testing.T) {
	m := fastManager(5)

	calls := 0
	err := m.Connect(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 1, m.GetStats().TotalConnects)
}

func TestConnect_GivesUp(t *testing.T) {
	m := fastManager(3)

	calls := 0
	err := m.Connect(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("connection refused")
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, 3, calls)

	err = m.Attempt(context.Background(), func(ctx context.Context) error { return nil })
	assert.Error(t, err, "no attempts left")
}

func TestConnect_ContextCancellation(t *testing.T) {
	m := NewManager(Config{MinBackoff: time.Hour, MaxRetries: 3}, nil)
	m.RecordFailure()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := m.Connect(ctx, func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConcurrentAccess(t *testing.T) {
	m := fastManager(1000)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				m.RecordFailure()
			} else {
				m.RecordSuccess()
			}
			_ = m.GetStats()
			_ = m.ShouldRetry()
		}(i)
	}
	wg.Wait()
}
