package reconnect

import (
	"context"
	"sync"
	"time"

	"svmengine/pkg/errors"
	"svmengine/pkg/logger"
)

// Manager retries a connection with exponential backoff and gives up after
// a number of consecutive failures
type Manager struct {
	// Configuration
	minBackoff        time.Duration
	maxBackoff        time.Duration
	backoffMultiplier float64
	maxRetries        int

	// State
	mu                  sync.RWMutex
	currentBackoff      time.Duration
	consecutiveFailures int
	totalConnects       int

	logger *logger.Logger
}

// Config configures the reconnect manager
type Config struct {
	MinBackoff        time.Duration // Initial backoff (e.g. 500ms)
	MaxBackoff        time.Duration // Max backoff (e.g. 30s)
	BackoffMultiplier float64       // Multiplier for exponential backoff (e.g. 2.0)
	MaxRetries        int           // Consecutive failures before giving up
}

// NewManager creates a new reconnect manager with sensible defaults
func NewManager(config Config, log *logger.Logger) *Manager {
	if config.MinBackoff == 0 {
		config.MinBackoff = 500 * time.Millisecond
	}
	if config.MaxBackoff == 0 {
		config.MaxBackoff = 30 * time.Second
	}
	if config.BackoffMultiplier == 0 {
		config.BackoffMultiplier = 2.0
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 5
	}
	if log == nil {
		log = logger.Nop()
	}

	return &Manager{
		minBackoff:        config.MinBackoff,
		maxBackoff:        config.MaxBackoff,
		backoffMultiplier: config.BackoffMultiplier,
		maxRetries:        config.MaxRetries,
		logger:            log,
	}
}

// ShouldRetry returns whether another attempt is allowed
func (m *Manager) ShouldRetry() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.consecutiveFailures < m.maxRetries
}

// GetBackoff returns the wait before the next attempt, zero before the first
// failure
func (m *Manager) GetBackoff() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentBackoff
}

// RecordFailure records a failed attempt and grows the backoff
func (m *Manager) RecordFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.consecutiveFailures++

	switch {
	case m.currentBackoff == 0:
		m.currentBackoff = m.minBackoff
	default:
		m.currentBackoff = time.Duration(float64(m.currentBackoff) * m.backoffMultiplier)
	}
	if m.currentBackoff > m.maxBackoff {
		m.currentBackoff = m.maxBackoff
	}

	m.logger.Warnw("Connection attempt failed",
		"consecutive_failures", m.consecutiveFailures,
		"next_backoff", m.currentBackoff,
	)
}

// RecordSuccess resets backoff and failure count
func (m *Manager) RecordSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.consecutiveFailures > 0 {
		m.logger.Infow("Connection established, resetting backoff",
			"previous_consecutive_failures", m.consecutiveFailures,
		)
	}

	m.currentBackoff = 0
	m.consecutiveFailures = 0
	m.totalConnects++
}

// GetStats returns current reconnect manager stats
func (m *Manager) GetStats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return Stats{
		ConsecutiveFailures: m.consecutiveFailures,
		TotalConnects:       m.totalConnects,
		CurrentBackoff:      m.currentBackoff,
	}
}

// Stats contains reconnection statistics
type Stats struct {
	ConsecutiveFailures int
	TotalConnects       int
	CurrentBackoff      time.Duration
}

// Attempt waits the current backoff, then calls connectFn once
func (m *Manager) Attempt(ctx context.Context, connectFn func(context.Context) error) error {
	if !m.ShouldRetry() {
		return errors.Newf("max retries reached: %d consecutive failures", m.GetStats().ConsecutiveFailures)
	}

	if backoff := m.GetBackoff(); backoff > 0 {
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := connectFn(ctx); err != nil {
		m.RecordFailure()
		return errors.Wrap(err, "connection attempt failed")
	}

	m.RecordSuccess()
	return nil
}

// Connect retries connectFn until it succeeds, retries run out or ctx ends.
// The last attempt's error is returned.
func (m *Manager) Connect(ctx context.Context, connectFn func(context.Context) error) error {
	var last error
	for m.ShouldRetry() {
		err := m.Attempt(ctx, connectFn)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		last = err
	}
	return errors.Wrapf(last, "giving up after %d attempts", m.maxRetries)
}
