package consumers

import (
	"context"
	"time"

	"svmengine/internal/workers"
	"svmengine/pkg/logger"
)

// StatsReporter logs prediction consumer counters on a schedule
type StatsReporter struct {
	*workers.BaseWorker
	consumer *PredictionConsumer
}

// NewStatsReporter creates a stats worker. A zero interval disables it.
func NewStatsReporter(consumer *PredictionConsumer, interval time.Duration, log *logger.Logger) *StatsReporter {
	return &StatsReporter{
		BaseWorker: workers.NewBaseWorker("prediction_stats", interval, log),
		consumer:   consumer,
	}
}

// Run logs one snapshot
func (r *StatsReporter) Run(ctx context.Context) error {
	r.consumer.LogStats(false)
	return nil
}
