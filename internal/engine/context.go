// Package engine provides the prediction context: one loaded model plus the
// fixed-capacity scratch buffers that batched predict calls run in.
//
// A Context serves one call at a time. Callers needing parallel throughput
// create several contexts over a shared model (see SetModel).
package engine

import (
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"svmengine/internal/decision"
	"svmengine/internal/domain/model"
	"svmengine/internal/metrics"
	"svmengine/internal/parser"
	"svmengine/internal/probability"
	"svmengine/pkg/errors"
	"svmengine/pkg/logger"
)

const (
	// DefaultCapacity is the problem capacity of a new context
	DefaultCapacity = 1
	// DefaultWorkers evaluates problems on the calling goroutine
	DefaultWorkers = 1
)

// Config configures a prediction context
type Config struct {
	Capacity int
	Workers  int
	Coupling probability.Config
}

// Context owns at most one model and the scratch buffers predict calls use
type Context struct {
	id  string
	log *logger.Logger

	capacity int
	workers  int
	coupling probability.Config

	model *model.Model
	eval  *decision.Evaluator
	est   *probability.Estimator // nil when the model has no calibration

	slots   []*slot   // one per worker
	labels  []int32   // staged labels, capacity entries
	staging []float64 // staged real outputs, capacity * width entries
	width   int

	notConverged int

	// stats is replaced on every model or capacity change and read by
	// metric scrapes on other goroutines
	stats atomic.Pointer[metrics.ModelStats]
}

// New creates a context without a model
func New(cfg Config, log *logger.Logger) (*Context, error) {
	if cfg.Capacity == 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.Workers == 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.Capacity < 0 {
		return nil, errors.NewValidationError(errors.ErrInvalidArgument, "capacity", "must be >= 1", cfg.Capacity)
	}
	if cfg.Workers < 0 {
		return nil, errors.NewValidationError(errors.ErrInvalidArgument, "workers", "must be >= 1", cfg.Workers)
	}
	if err := cfg.Coupling.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}

	id := uuid.New().String()
	c := &Context{
		id:       id,
		log:      log.Named("engine").With("context_id", id),
		capacity: cfg.Capacity,
		workers:  cfg.Workers,
		coupling: cfg.Coupling,
	}
	c.publishStats()
	return c, nil
}

// ID returns the context's unique id
func (c *Context) ID() string {
	return c.id
}

// Capacity returns the maximum problems per call
func (c *Context) Capacity() int {
	return c.capacity
}

// Workers returns the number of goroutines a call fans out to
func (c *Context) Workers() int {
	return c.workers
}

// Model returns the loaded model or nil
func (c *Context) Model() *model.Model {
	return c.model
}

// HasModel reports whether a model is loaded
func (c *Context) HasModel() bool {
	return c.model != nil
}

// ClassCount returns the number of classes of the loaded model
func (c *Context) ClassCount() (int, error) {
	if c.model == nil {
		return 0, errors.ErrNoModelLoaded
	}
	return c.model.NumClasses(), nil
}

// Labels returns the trainer label of every class index
func (c *Context) Labels() ([]int32, error) {
	if c.model == nil {
		return nil, errors.ErrNoModelLoaded
	}
	return c.model.Labels(), nil
}

// NotConverged returns how many problems of the last probability call
// stopped at the coupling iteration cap
func (c *Context) NotConverged() int {
	return c.notConverged
}

// SetCapacity changes the maximum problems per call. Scratch is reallocated
// when a model is loaded.
func (c *Context) SetCapacity(n int) error {
	if n < 1 {
		return errors.NewValidationError(errors.ErrInvalidArgument, "capacity", "must be >= 1", n)
	}

	c.capacity = n
	if c.model != nil {
		c.allocate()
	}
	c.publishStats()

	c.log.Debugw("Capacity updated", "capacity", n)
	return nil
}

// LoadModel parses model text and makes it current. The previous model stays
// loaded when parsing fails.
func (c *Context) LoadModel(text []byte) error {
	start := time.Now()
	m, err := parser.ParseBytes(text)
	metrics.RecordModelLoad(time.Since(start), err)

	if err != nil {
		c.log.Warnw("Model rejected",
			"size", humanize.Bytes(uint64(len(text))),
			"error", err,
		)
		return errors.Wrap(err, "load model")
	}

	if err := c.SetModel(m); err != nil {
		return err
	}

	c.log.Infow("Model loaded",
		"svm_type", m.Type,
		"kernel", m.Kernel.Type,
		"classes", m.NumClasses(),
		"support_vectors", humanize.Comma(int64(m.TotalSV)),
		"nodes", humanize.Comma(int64(m.NodeCount())),
		"size", humanize.Bytes(uint64(len(text))),
		"probability", m.HasProbability(),
		"duration", time.Since(start),
	)
	return nil
}

// SetModel makes an already parsed model current. Models are read-only and
// may be shared by any number of contexts.
func (c *Context) SetModel(m *model.Model) error {
	if m == nil {
		return errors.NewValidationError(errors.ErrInvalidArgument, "model", "must not be nil", nil)
	}
	if err := m.Validate(); err != nil {
		return errors.Wrapf(errors.ErrInvalidArgument, "invalid model: %v", err)
	}

	est, err := probability.New(m, c.coupling)
	if err != nil && !errors.Is(err, errors.ErrNoProbabilityModel) {
		return errors.Wrap(err, "probability estimator")
	}

	c.model = m
	c.eval = decision.New(m)
	c.est = est
	c.allocate()
	c.publishStats()
	return nil
}

// Close releases the model and all scratch
func (c *Context) Close() {
	c.model = nil
	c.eval = nil
	c.est = nil
	c.slots = nil
	c.labels = nil
	c.staging = nil
	c.publishStats()
}

// ModelStats reports the context for the model collector. It is safe to call
// while another goroutine loads a model.
func (c *Context) ModelStats() []metrics.ModelStats {
	if stats := c.stats.Load(); stats != nil {
		return []metrics.ModelStats{*stats}
	}
	return []metrics.ModelStats{{Context: c.id}}
}

func (c *Context) publishStats() {
	stats := &metrics.ModelStats{
		Context:  c.id,
		Capacity: c.capacity,
	}
	if c.model != nil {
		stats.Loaded = true
		stats.Classes = c.model.NumClasses()
		stats.SupportVectors = c.model.TotalSV
		stats.Attributes = c.model.NumAttributes
		stats.Probability = c.model.HasProbability()
	}
	c.stats.Store(stats)
}

func (c *Context) allocate() {
	m := c.model

	c.width = m.NumClasses()
	if pairs := m.NumPairs(); pairs > c.width {
		c.width = pairs
	}

	c.labels = make([]int32, c.capacity)
	c.staging = make([]float64, c.capacity*c.width)

	n := c.workers
	if n > c.capacity {
		n = c.capacity
	}
	c.slots = make([]*slot, n)
	for i := range c.slots {
		c.slots[i] = newSlot(c.eval, c.est, m.NumAttributes)
	}
}
