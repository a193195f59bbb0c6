package consumers

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"svmengine/internal/adapters/kafka"
	"svmengine/internal/boundary"
	"svmengine/internal/engine"
	"svmengine/internal/metrics"
	"svmengine/pkg/errors"
	"svmengine/pkg/logger"
)

// MessageReader is the subset of kafka.Consumer the prediction consumer needs
type MessageReader interface {
	ReadMessageWithShutdownCheck(ctx context.Context) (kafkago.Message, error)
	Close() error
}

// Publisher is the subset of kafka.Producer the prediction consumer needs
type Publisher interface {
	Publish(ctx context.Context, topic string, key string, event interface{}) error
}

// PredictionConsumer answers prediction requests from one topic on another.
// Requests are served one at a time against a single engine context; rows
// beyond the context capacity are split into capacity-sized chunks. Model
// reloads go through LoadModel so they never overlap a request.
type PredictionConsumer struct {
	mu sync.Mutex

	reader      MessageReader
	publisher   Publisher
	engine      *engine.Context
	resultTopic string
	log         *logger.Logger

	processed atomic.Int64
	failed    atomic.Int64
}

// NewPredictionConsumer creates a new prediction consumer
func NewPredictionConsumer(
	reader MessageReader,
	publisher Publisher,
	ctx *engine.Context,
	resultTopic string,
	log *logger.Logger,
) *PredictionConsumer {
	if log == nil {
		log = logger.Nop()
	}
	return &PredictionConsumer{
		reader:      reader,
		publisher:   publisher,
		engine:      ctx,
		resultTopic: resultTopic,
		log:         log.Named("prediction_consumer"),
	}
}

// Start consumes requests until ctx is cancelled
func (pc *PredictionConsumer) Start(ctx context.Context) error {
	pc.log.Infow("Starting prediction consumer", "result_topic", pc.resultTopic)

	// Ensure consumer is closed on exit
	defer func() {
		pc.LogStats(true)
		if err := pc.reader.Close(); err != nil {
			pc.log.Errorw("Failed to close prediction consumer", "error", err)
		} else {
			pc.log.Info("✓ Prediction consumer closed")
		}
	}()

	for {
		msg, err := pc.reader.ReadMessageWithShutdownCheck(ctx)
		if err != nil {
			if ctx.Err() != nil {
				pc.log.Info("Prediction consumer stopping (context cancelled)")
				return nil
			}
			pc.log.Debugw("Failed to read prediction request", "error", err)
			continue
		}

		// Allow the current request to finish during shutdown
		processCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := pc.HandleMessage(processCtx, msg); err != nil {
			pc.log.Errorw("Failed to handle prediction request",
				"topic", msg.Topic,
				"key", string(msg.Key),
				"error", err,
			)
		}
		cancel()

		if ctx.Err() != nil {
			pc.log.Info("Prediction consumer stopping after processing current message")
			return nil
		}
	}
}

// HandleMessage decodes one request, predicts and publishes the result.
// Prediction failures are reported in the result; only decode and publish
// failures are returned.
func (pc *PredictionConsumer) HandleMessage(ctx context.Context, msg kafkago.Message) error {
	var req kafka.PredictRequest
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		pc.failed.Add(1)
		metrics.RecordKafkaMessage(msg.Topic, err)
		return errors.Wrap(err, "unmarshal predict request")
	}
	if req.ID == "" {
		req.ID = string(msg.Key)
	}

	result := pc.Predict(req)
	if result.Status != boundary.StatusOK.String() {
		pc.log.Warnw("Prediction request rejected",
			"request_id", req.ID,
			"status", result.Status,
			"error", result.Error,
		)
	}

	err := pc.publisher.Publish(ctx, pc.resultTopic, result.ID, result)
	metrics.RecordKafkaMessage(msg.Topic, err)
	if err != nil {
		pc.failed.Add(1)
		return errors.Wrapf(err, "publish result %s", result.ID)
	}

	pc.processed.Add(1)
	pc.log.Debugw("Prediction request served",
		"request_id", req.ID,
		"rows", len(req.Features),
		"status", result.Status,
	)
	return nil
}

// LoadModel replaces the model between requests
func (pc *PredictionConsumer) LoadModel(text []byte) error {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.engine.LoadModel(text)
}

// Predict serves one request against the engine context
func (pc *PredictionConsumer) Predict(req kafka.PredictRequest) kafka.PredictResult {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	result := kafka.PredictResult{ID: req.ID}

	features, stride, err := flatten(req.Features)
	if err != nil {
		return withError(result, err)
	}
	if !pc.engine.HasModel() {
		return withError(result, errors.ErrNoModelLoaded)
	}
	n := len(req.Features)

	if pc.engine.Model().Type.IsRegression() {
		result.Values = make([]float64, n)
		err = pc.chunked(features, stride, n, func(rows []float64, start, count int) error {
			return pc.engine.PredictRegression(rows, stride, result.Values[start:start+count], count)
		})
		if err != nil {
			return withError(kafka.PredictResult{ID: req.ID}, err)
		}
		result.Status = boundary.StatusOK.String()
		return result
	}

	result.Labels = make([]int32, n)
	err = pc.chunked(features, stride, n, func(rows []float64, start, count int) error {
		return pc.engine.PredictValues(rows, stride, result.Labels[start:start+count], count)
	})
	if err != nil {
		return withError(kafka.PredictResult{ID: req.ID}, err)
	}
	result.Status = boundary.StatusOK.String()

	if !req.Probabilities {
		return result
	}

	classes := pc.engine.Model().NumClasses()
	flat := make([]float64, n*classes)
	err = pc.chunked(features, stride, n, func(rows []float64, start, count int) error {
		return pc.engine.PredictProbabilities(rows, stride, flat[start*classes:(start+count)*classes], count)
	})
	if err != nil {
		// labels stay valid when only calibration is missing
		result.Status = boundary.StatusOf(err).String()
		result.Error = err.Error()
		return result
	}

	result.Probabilities = make([][]float64, n)
	for i := range result.Probabilities {
		result.Probabilities[i] = flat[i*classes : (i+1)*classes]
	}
	return result
}

// chunked calls fn over capacity-sized runs of rows
func (pc *PredictionConsumer) chunked(features []float64, stride, n int, fn func(rows []float64, start, count int) error) error {
	size := pc.engine.Capacity()
	for start := 0; start < n; start += size {
		count := size
		if start+count > n {
			count = n - start
		}
		if err := fn(features[start*stride:(start+count)*stride], start, count); err != nil {
			return err
		}
	}
	return nil
}

// LogStats logs consumer statistics (final should be true on shutdown)
func (pc *PredictionConsumer) LogStats(final bool) {
	msg := "Prediction consumer stats"
	if final {
		msg = "Prediction consumer final stats"
	}
	pc.mu.Lock()
	notConverged := pc.engine.NotConverged()
	pc.mu.Unlock()

	pc.log.Infow(msg,
		"processed", pc.processed.Load(),
		"failed", pc.failed.Load(),
		"coupling_not_converged", notConverged,
	)
}

func withError(result kafka.PredictResult, err error) kafka.PredictResult {
	result.Status = boundary.StatusOf(err).String()
	result.Error = err.Error()
	return result
}

// flatten packs equal-length rows into one row-major buffer
func flatten(rows [][]float64) ([]float64, int, error) {
	if len(rows) == 0 {
		return nil, 1, errors.NewValidationError(errors.ErrInvalidArgument, "features", "at least one row required", 0)
	}
	stride := len(rows[0])
	if stride == 0 {
		return nil, 0, errors.NewValidationError(errors.ErrDimensionMismatch, "features", "rows must not be empty", 0)
	}

	flat := make([]float64, 0, len(rows)*stride)
	for i, row := range rows {
		if len(row) != stride {
			return nil, 0, errors.NewValidationError(errors.ErrDimensionMismatch, "features", "rows must have equal length", i)
		}
		flat = append(flat, row...)
	}
	return flat, stride, nil
}
