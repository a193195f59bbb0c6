// Package workers runs periodic background jobs such as model reload polling
// and consumer stats reporting.
package workers

import (
	"context"
	"sync"
	"time"

	"svmengine/pkg/logger"
)

// Worker is a periodic job. Run performs one iteration; the scheduler calls
// it once at start and then every Interval. Disabled workers never run.
type Worker interface {
	Name() string
	Run(ctx context.Context) error
	Interval() time.Duration
	Enabled() bool
}

// HealthRecorder is implemented by workers that keep a Health summary.
// The scheduler records every iteration into it.
type HealthRecorder interface {
	Health() Health
	Record(err error)
}

// Health summarizes the iterations a worker has run
type Health struct {
	LastRun   time.Time
	LastError error // nil after a successful iteration
	Runs      int64
	Errors    int64
}

// BaseWorker holds what every worker shares. Workers embed it and add Run.
type BaseWorker struct {
	name     string
	interval time.Duration
	log      *logger.Logger

	mu     sync.Mutex
	health Health
}

// NewBaseWorker creates a base worker. A non-positive interval disables it.
func NewBaseWorker(name string, interval time.Duration, log *logger.Logger) *BaseWorker {
	if log == nil {
		log = logger.Get()
	}
	return &BaseWorker{
		name:     name,
		interval: interval,
		log:      log.With("worker", name),
	}
}

func (w *BaseWorker) Name() string {
	return w.name
}

func (w *BaseWorker) Interval() time.Duration {
	return w.interval
}

func (w *BaseWorker) Enabled() bool {
	return w.interval > 0
}

// Log returns the worker's logger, tagged with its name
func (w *BaseWorker) Log() *logger.Logger {
	return w.log
}

func (w *BaseWorker) Health() Health {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.health
}

// Record adds one iteration with its outcome
func (w *BaseWorker) Record(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.health.LastRun = time.Now()
	w.health.LastError = err
	w.health.Runs++
	if err != nil {
		w.health.Errors++
	}
}
