// Package boundary exposes prediction contexts through opaque integer
// handles, caller-owned flat buffers and integer status codes. It is the
// surface cmd/libsvmengine exports over cgo; no call panics across it.
package boundary

import (
	"context"
	"fmt"
	"sync"

	"svmengine/internal/engine"
	"svmengine/internal/metrics"
	"svmengine/pkg/errors"
	"svmengine/pkg/logger"
)

// Handle identifies a context. Zero is never a valid handle.
type Handle uint64

// Registry owns the live contexts. Handle creation and destruction are safe
// from any goroutine; calls on one handle must not overlap.
type Registry struct {
	mu       sync.Mutex
	next     Handle
	contexts map[Handle]*engine.Context

	cfg     engine.Config
	log     *logger.Logger
	tracker errors.Tracker
}

// NewRegistry creates a registry whose contexts start from cfg
func NewRegistry(cfg engine.Config, log *logger.Logger, tracker errors.Tracker) *Registry {
	if log == nil {
		log = logger.Nop()
	}
	return &Registry{
		contexts: make(map[Handle]*engine.Context),
		cfg:      cfg,
		log:      log.Named("boundary"),
		tracker:  tracker,
	}
}

// Create allocates a context without a model
func (r *Registry) Create() (h Handle, status Status) {
	defer r.guard("create", &status)

	ctx, err := engine.New(r.cfg, r.log)
	if err != nil {
		return 0, r.fail("create", err)
	}

	r.mu.Lock()
	r.next++
	h = r.next
	r.contexts[h] = ctx
	open := len(r.contexts)
	r.mu.Unlock()

	metrics.HandlesOpen.Set(float64(open))
	r.log.Debugw("Handle created", "handle", h, "context_id", ctx.ID())
	return h, StatusOK
}

// Destroy releases a context. Destroying an unknown handle fails.
func (r *Registry) Destroy(h Handle) (status Status) {
	defer r.guard("destroy", &status)

	r.mu.Lock()
	ctx, ok := r.contexts[h]
	delete(r.contexts, h)
	open := len(r.contexts)
	r.mu.Unlock()

	if !ok {
		return StatusInvalidHandle
	}

	ctx.Close()
	metrics.HandlesOpen.Set(float64(open))
	r.log.Debugw("Handle destroyed", "handle", h, "context_id", ctx.ID())
	return StatusOK
}

// SetCapacity changes how many problems one call may submit
func (r *Registry) SetCapacity(h Handle, n uint64) (status Status) {
	defer r.guard("set_capacity", &status)

	ctx, status := r.lookup(h)
	if status != StatusOK {
		return status
	}
	if n > uint64(maxInt) {
		return StatusInvalidArgument
	}
	if err := ctx.SetCapacity(int(n)); err != nil {
		return r.fail("set_capacity", err)
	}

	r.breadcrumb("Capacity set", map[string]interface{}{"handle": uint64(h), "capacity": n})
	return StatusOK
}

// LoadModel parses model text into the context; the previous model is kept
// on failure
func (r *Registry) LoadModel(h Handle, text []byte) (status Status) {
	defer r.guard("load_model", &status)

	ctx, status := r.lookup(h)
	if status != StatusOK {
		return status
	}
	if text == nil {
		return StatusNullPointer
	}
	if err := ctx.LoadModel(text); err != nil {
		return r.fail("load_model", err)
	}

	m := ctx.Model()
	r.breadcrumb("Model loaded", map[string]interface{}{
		"handle":          uint64(h),
		"svm_type":        m.Type.String(),
		"classes":         m.NumClasses(),
		"support_vectors": m.TotalSV,
	})
	return StatusOK
}

// PredictValues predicts nProblems labels. features holds nProblems rows of
// equal length.
func (r *Registry) PredictValues(h Handle, features []float64, outLabels []int32, nProblems uint64) (status Status) {
	defer r.guard(engine.OpPredictValues, &status)

	ctx, status := r.lookup(h)
	if status != StatusOK {
		return status
	}
	if outLabels == nil && nProblems > 0 {
		return StatusNullPointer
	}

	n, stride, status := shape(len(features), nProblems)
	if status != StatusOK {
		return status
	}
	return r.fail(engine.OpPredictValues, ctx.PredictValues(features, stride, outLabels, n))
}

// PredictProbabilities writes one probability per class for every problem.
// The problem count is len(outProbs) divided by the class count.
func (r *Registry) PredictProbabilities(h Handle, features []float64, outProbs []float64) (status Status) {
	defer r.guard(engine.OpPredictProbabilities, &status)

	ctx, status := r.lookup(h)
	if status != StatusOK {
		return status
	}

	classes, err := ctx.ClassCount()
	if err != nil {
		return r.fail(engine.OpPredictProbabilities, err)
	}
	if len(outProbs)%classes != 0 {
		return StatusDimensionMismatch
	}

	n, stride, status := shape(len(features), uint64(len(outProbs)/classes))
	if status != StatusOK {
		return status
	}
	return r.fail(engine.OpPredictProbabilities, ctx.PredictProbabilities(features, stride, outProbs, n))
}

// PredictRegression writes one value per problem; the problem count is
// len(outValues)
func (r *Registry) PredictRegression(h Handle, features []float64, outValues []float64) (status Status) {
	defer r.guard(engine.OpPredictRegression, &status)

	ctx, status := r.lookup(h)
	if status != StatusOK {
		return status
	}

	n, stride, status := shape(len(features), uint64(len(outValues)))
	if status != StatusOK {
		return status
	}
	return r.fail(engine.OpPredictRegression, ctx.PredictRegression(features, stride, outValues, n))
}

// ClassCount returns the number of classes of the loaded model
func (r *Registry) ClassCount(h Handle) (n int, status Status) {
	defer r.guard("class_count", &status)

	ctx, status := r.lookup(h)
	if status != StatusOK {
		return 0, status
	}
	n, err := ctx.ClassCount()
	return n, r.fail("class_count", err)
}

// Labels writes the trainer label of each class index into out, which must
// hold exactly one entry per class
func (r *Registry) Labels(h Handle, out []int32) (status Status) {
	defer r.guard("labels", &status)

	ctx, status := r.lookup(h)
	if status != StatusOK {
		return status
	}
	labels, err := ctx.Labels()
	if err != nil {
		return r.fail("labels", err)
	}
	if out == nil {
		return StatusNullPointer
	}
	if len(out) != len(labels) {
		return StatusDimensionMismatch
	}
	copy(out, labels)
	return StatusOK
}

// Len returns the number of live handles
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.contexts)
}

// ModelStats reports every live context for the model collector
func (r *Registry) ModelStats() []metrics.ModelStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := make([]metrics.ModelStats, 0, len(r.contexts))
	for _, ctx := range r.contexts {
		stats = append(stats, ctx.ModelStats()...)
	}
	return stats
}

func (r *Registry) lookup(h Handle) (*engine.Context, Status) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ctx, ok := r.contexts[h]
	if !ok {
		return nil, StatusInvalidHandle
	}
	return ctx, StatusOK
}

// fail maps err to a status and reports unexpected failures
func (r *Registry) fail(op string, err error) Status {
	status := StatusOf(err)
	if status == StatusParseError || status == StatusInternal {
		r.capture(op, status, err)
	}
	return status
}

// guard converts a panic into StatusInternal
func (r *Registry) guard(op string, status *Status) {
	rec := recover()
	if rec == nil {
		return
	}

	err := errors.Wrapf(errors.ErrInternal, "panic in %s: %s", op, fmt.Sprint(rec))
	r.log.Errorw("Recovered panic at boundary", "operation", op, "panic", rec)
	r.capture(op, StatusInternal, err)
	*status = StatusInternal
}

func (r *Registry) capture(op string, status Status, err error) {
	if r.tracker == nil {
		return
	}
	_ = r.tracker.CaptureError(context.Background(), err, map[string]string{
		"component": "boundary",
		"operation": op,
		"status":    status.String(),
	})
}

func (r *Registry) breadcrumb(message string, data map[string]interface{}) {
	if r.tracker == nil {
		return
	}
	r.tracker.AddBreadcrumb(context.Background(), message, "boundary", errors.LevelInfo, data)
}

const maxInt = int(^uint(0) >> 1)

// shape derives problem count and row stride from flat buffer sizes
func shape(totalFeatures int, nProblems uint64) (n, stride int, status Status) {
	if nProblems > uint64(maxInt) {
		return 0, 0, StatusInvalidArgument
	}
	n = int(nProblems)
	if n == 0 {
		if totalFeatures != 0 {
			return 0, 0, StatusDimensionMismatch
		}
		return 0, 1, StatusOK
	}
	if totalFeatures%n != 0 {
		return 0, 0, StatusDimensionMismatch
	}
	return n, totalFeatures / n, StatusOK
}
