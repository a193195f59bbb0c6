package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"svmengine/internal/adapters/config"
	"svmengine/internal/adapters/errors/noop"
	"svmengine/internal/adapters/errors/sentry"
	"svmengine/internal/adapters/kafka"
	"svmengine/internal/adapters/redis"
	"svmengine/internal/consumers"
	"svmengine/internal/engine"
	"svmengine/internal/metrics"
	"svmengine/internal/modelsource"
	"svmengine/internal/probability"
	"svmengine/internal/workers"
	"svmengine/pkg/errors"
	"svmengine/pkg/logger"
	"svmengine/pkg/reconnect"
)

func main() {
	// Load configuration
	cfg, err := loadConfig()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize logger
	if err := initLogger(cfg); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	defer logger.Sync()

	log := logger.Get()
	log.Infof("Starting %s in %s mode (%s)", cfg.App.Name, cfg.App.Env, cfg.App.Mode)

	// Initialize error tracker
	errorTracker := initErrorTracker(cfg, log)
	logger.SetErrorTracker(errorTracker)
	defer flushTracker(errorTracker, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx, cancel, cfg, log); err != nil {
		log.ErrorWithContext(ctx, err, map[string]string{"mode": cfg.App.Mode})
		flushTracker(errorTracker, log)
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, log *logger.Logger) error {
	var store *redis.Client
	if cfg.Model.Source == config.ModelSourceRedis || cfg.App.Mode == config.ModePublish {
		client, err := connectRedis(ctx, cfg.Redis, log)
		if err != nil {
			return err
		}
		defer client.Close()
		store = client
	}

	if cfg.App.Mode == config.ModePublish {
		return publishModel(ctx, cfg, store, log)
	}

	ectx, err := engine.New(engineConfig(cfg.Engine), log)
	if err != nil {
		return errors.Wrap(err, "create engine context")
	}
	defer ectx.Close()

	var modelStore modelsource.Store
	if store != nil {
		modelStore = store
	}
	src, err := modelsource.New(cfg.Model, modelStore)
	if err != nil {
		return err
	}
	version, err := modelsource.Load(ctx, src, ectx)
	if err != nil {
		return err
	}

	if cfg.Metrics.Enabled {
		metrics.Init()
		metrics.RegisterModelCollector(metrics.NewModelCollector(ectx))
		srv := startMetricsServer(cfg.Metrics, log)
		defer stopMetricsServer(srv, log)
	}

	switch cfg.App.Mode {
	case config.ModeBatch:
		batchCtx, stop := context.WithTimeout(ctx, cfg.Batch.Timeout)
		defer stop()
		return runBatch(batchCtx, cfg.Batch, ectx, os.Stdout, log)

	case config.ModeConsumer:
		return runConsumer(ctx, cancel, cfg, src, version, ectx, log)
	}
	return errors.Newf("unknown mode %q", cfg.App.Mode)
}

// loadConfig loads application configuration from environment
func loadConfig() (*config.Config, error) {
	return config.Load()
}

// initLogger initializes structured logging
func initLogger(cfg *config.Config) error {
	return logger.Init(cfg.App.LogLevel, cfg.App.Env)
}

// initErrorTracker initializes error tracking (Sentry or no-op)
func initErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return noop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment, cfg.ErrorTracking.Release)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return noop.New()
	}

	log.Info("Error tracking initialized (Sentry)")
	return tracker
}

// connectRedis retries the initial connection with backoff so the engine can
// start alongside its redis instance
func connectRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) (*redis.Client, error) {
	var client *redis.Client
	rm := reconnect.NewManager(reconnect.Config{}, log.Named("redis"))
	err := rm.Connect(ctx, func(ctx context.Context) error {
		c, err := redis.NewClient(cfg)
		if err != nil {
			return err
		}
		client = c
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "connect redis")
	}
	return client, nil
}

func engineConfig(cfg config.EngineConfig) engine.Config {
	return engine.Config{
		Capacity: cfg.Capacity,
		Workers:  cfg.Workers,
		Coupling: probability.Config{
			MaxIterations: cfg.CouplingMaxIterations,
			Tolerance:     cfg.CouplingTolerance,
		},
	}
}

// startMetricsServer serves /metrics in the background
func startMetricsServer(cfg config.MetricsConfig, log *logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Infow("Metrics server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorw("Metrics server failed", "error", err)
		}
	}()
	return srv
}

func stopMetricsServer(srv *http.Server, log *logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warnf("Failed to stop metrics server: %v", err)
	}
}

// publishModel uploads the model file to redis under a lock so concurrent
// publishers do not interleave
func publishModel(ctx context.Context, cfg *config.Config, store *redis.Client, log *logger.Logger) error {
	text, err := modelsource.NewFileSource(cfg.Model.Path).Fetch(ctx)
	if err != nil {
		return err
	}

	// refuse to publish text the engine cannot load
	check, err := engine.New(engine.Config{}, logger.Nop())
	if err != nil {
		return err
	}
	if err := check.LoadModel(text); err != nil {
		return errors.Wrapf(err, "validate %s", cfg.Model.Path)
	}

	locked, err := store.AcquireLock(ctx, cfg.Model.RedisKey, 30*time.Second)
	if err != nil {
		return errors.Wrap(err, "acquire publish lock")
	}
	if !locked {
		return errors.Newf("model %s is being published by another process", cfg.Model.RedisKey)
	}
	defer func() {
		if err := store.ReleaseLock(context.Background(), cfg.Model.RedisKey); err != nil {
			log.Warnf("Failed to release publish lock: %v", err)
		}
	}()

	version, err := store.PutModel(ctx, cfg.Model.RedisKey, text)
	if err != nil {
		return err
	}

	log.Infow("Model published",
		"key", cfg.Model.RedisKey,
		"version", version,
		"classes", check.Model().NumClasses(),
		"support_vectors", check.Model().TotalSV,
	)
	return nil
}

// runConsumer serves prediction requests until a shutdown signal arrives.
// Model reloads and stats reporting run on a worker scheduler alongside.
func runConsumer(ctx context.Context, cancel context.CancelFunc, appCfg *config.Config, src modelsource.Source, version int64, ectx *engine.Context, log *logger.Logger) error {
	cfg := appCfg.Kafka
	producer := kafka.NewProducer(kafka.ProducerConfig{Brokers: cfg.Brokers})
	defer func() {
		if err := producer.Close(); err != nil {
			log.Warnf("Failed to close producer: %v", err)
		}
	}()

	reader := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers: cfg.Brokers,
		GroupID: cfg.GroupID,
		Topic:   cfg.RequestTopic,
	})
	consumer := consumers.NewPredictionConsumer(reader, producer, ectx, cfg.ResultTopic, log)

	scheduler := workers.NewScheduler(log)
	scheduler.RegisterWorker(consumers.NewStatsReporter(consumer, cfg.StatsInterval, log))
	if versioned, ok := src.(modelsource.Versioned); ok {
		watcher := modelsource.NewWatcher(versioned, appCfg.Model.ReloadInterval, log, consumer)
		watcher.Prime(version)
		scheduler.RegisterWorker(watcher)
	}
	if err := scheduler.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := scheduler.Stop(); err != nil {
			log.Warnf("Failed to stop scheduler: %v", err)
		}
	}()

	done := make(chan error, 1)
	go func() {
		done <- consumer.Start(ctx)
	}()

	log.Info("System initialized successfully")
	waitForShutdown(ctx, cancel, log)
	return <-done
}

// waitForShutdown waits for a shutdown signal or for ctx to end
func waitForShutdown(ctx context.Context, cancel context.CancelFunc, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
		log.Info("Shutting down...")
	case <-ctx.Done():
	}

	// Graceful shutdown
	cancel()
	log.Info("Shutdown complete")
}

func flushTracker(tracker errors.Tracker, log *logger.Logger) {
	if tracker == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := tracker.Flush(ctx); err != nil {
		log.Warnf("Failed to flush error tracker: %v", err)
	}
}
