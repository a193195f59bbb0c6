// Package modelsource fetches model text for a prediction context from a
// file or from redis, and reloads it when the stored version changes.
package modelsource

import (
	"context"
	"os"
	"time"

	"svmengine/internal/adapters/config"
	"svmengine/internal/workers"
	"svmengine/pkg/errors"
	"svmengine/pkg/logger"
)

// Source provides model text
type Source interface {
	// Name describes the source for logs
	Name() string
	// Fetch returns the current model text
	Fetch(ctx context.Context) ([]byte, error)
}

// Versioned sources report a counter that changes whenever the text does
type Versioned interface {
	Source
	Version(ctx context.Context) (int64, error)
}

// Store is the subset of the redis adapter a RedisSource needs
type Store interface {
	GetModel(ctx context.Context, key string) ([]byte, error)
	ModelVersion(ctx context.Context, key string) (int64, error)
}

// FileSource reads model text from disk
type FileSource struct {
	Path string
}

// NewFileSource creates a file source
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

func (s *FileSource) Name() string {
	return "file:" + s.Path
}

func (s *FileSource) Fetch(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path)
	if os.IsNotExist(err) {
		return nil, errors.Wrapf(errors.ErrNotFound, "model file %s", s.Path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read model file %s", s.Path)
	}
	return data, nil
}

// RedisSource reads model text stored under one key
type RedisSource struct {
	store Store
	key   string
}

// NewRedisSource creates a redis source
func NewRedisSource(store Store, key string) *RedisSource {
	return &RedisSource{store: store, key: key}
}

func (s *RedisSource) Name() string {
	return "redis:" + s.key
}

func (s *RedisSource) Fetch(ctx context.Context) ([]byte, error) {
	return s.store.GetModel(ctx, s.key)
}

func (s *RedisSource) Version(ctx context.Context) (int64, error) {
	return s.store.ModelVersion(ctx, s.key)
}

// New picks the source named by cfg. store may be nil for the file source.
func New(cfg config.ModelConfig, store Store) (Source, error) {
	switch cfg.Source {
	case config.ModelSourceFile:
		return NewFileSource(cfg.Path), nil
	case config.ModelSourceRedis:
		if store == nil {
			return nil, errors.Wrap(errors.ErrInvalidArgument, "redis model source needs a store")
		}
		return NewRedisSource(store, cfg.RedisKey), nil
	}
	return nil, errors.NewValidationError(errors.ErrInvalidArgument, "MODEL_SOURCE", "must be file or redis", cfg.Source)
}

// Loader is what a source feeds; engine.Context satisfies it
type Loader interface {
	LoadModel(text []byte) error
}

// Load fetches once and hands the text to dst. For a versioned source it
// returns the version read before the fetch, so the loaded text is never
// older than the version reported; a Watcher primed with it cannot miss a
// publish that lands during the load. Unversioned sources report 0.
func Load(ctx context.Context, src Source, dst Loader) (int64, error) {
	var version int64
	if v, ok := src.(Versioned); ok {
		var err error
		if version, err = v.Version(ctx); err != nil {
			return 0, errors.Wrapf(err, "read model version from %s", src.Name())
		}
	}

	text, err := src.Fetch(ctx)
	if err != nil {
		return 0, errors.Wrapf(err, "fetch model from %s", src.Name())
	}
	if err := dst.LoadModel(text); err != nil {
		return 0, errors.Wrapf(err, "load model from %s", src.Name())
	}
	return version, nil
}

// Watcher polls a versioned source and reloads every destination when the
// version moves. A failed reload keeps the previous model in place and is
// retried on the next poll. It runs under a workers.Scheduler.
type Watcher struct {
	*workers.BaseWorker

	src  Versioned
	dsts []Loader

	version int64
}

// NewWatcher creates a watcher. A zero interval disables it.
func NewWatcher(src Versioned, interval time.Duration, log *logger.Logger, dsts ...Loader) *Watcher {
	if log == nil {
		log = logger.Nop()
	}
	return &Watcher{
		BaseWorker: workers.NewBaseWorker("model_watcher", interval, log.With("source", src.Name())),
		src:        src,
		dsts:       dsts,
	}
}

// Prime records the version the destinations already hold, as returned by
// Load. Polling reloads on any other version.
func (w *Watcher) Prime(version int64) {
	w.version = version
}

// Run polls once
func (w *Watcher) Run(ctx context.Context) error {
	_, err := w.Check(ctx)
	return err
}

// Check reloads once if the version changed. It reports whether a reload
// happened.
func (w *Watcher) Check(ctx context.Context) (bool, error) {
	v, err := w.src.Version(ctx)
	if err != nil {
		return false, errors.Wrap(err, "read model version")
	}
	if v == w.version {
		return false, nil
	}

	text, err := w.src.Fetch(ctx)
	if err != nil {
		return false, errors.Wrapf(err, "fetch model version %d", v)
	}

	var errs errors.MultiError
	for _, dst := range w.dsts {
		if err := dst.LoadModel(text); err != nil {
			errs.Add(err)
		}
	}
	if errs.HasErrors() {
		return false, errors.Wrapf(&errs, "reload model version %d", v)
	}

	w.Log().Infow("Model reloaded", "from_version", w.version, "to_version", v)
	w.version = v
	return true, nil
}
