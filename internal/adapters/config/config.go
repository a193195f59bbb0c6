package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"svmengine/pkg/errors"
)

type Config struct {
	App           AppConfig
	Engine        EngineConfig
	Model         ModelConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	Metrics       MetricsConfig
	ErrorTracking ErrorTrackingConfig
	Batch         BatchConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"svmengine"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool   `envconfig:"DEBUG" default:"false"`
	// Mode selects what cmd/svmengine runs: batch|consumer|publish
	Mode string `envconfig:"APP_MODE" default:"batch"`
}

const (
	ModeBatch    = "batch"
	ModeConsumer = "consumer"
	// ModePublish uploads MODEL_PATH to MODEL_REDIS_KEY and exits
	ModePublish = "publish"
)

type EngineConfig struct {
	Capacity int `envconfig:"ENGINE_CAPACITY" default:"64"`
	Workers  int `envconfig:"ENGINE_WORKERS" default:"4"`

	// Zero selects max(100, classes) and 0.005/classes
	CouplingMaxIterations int     `envconfig:"ENGINE_COUPLING_MAX_ITER" default:"0"`
	CouplingTolerance     float64 `envconfig:"ENGINE_COUPLING_TOLERANCE" default:"0"`
}

const (
	ModelSourceFile  = "file"
	ModelSourceRedis = "redis"
)

type ModelConfig struct {
	Source   string `envconfig:"MODEL_SOURCE" default:"file"` // file|redis
	Path     string `envconfig:"MODEL_PATH"`
	RedisKey string `envconfig:"MODEL_REDIS_KEY" default:"svmengine:model"`

	// Zero disables polling the redis version counter
	ReloadInterval time.Duration `envconfig:"MODEL_RELOAD_INTERVAL" default:"0"`
}

type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type KafkaConfig struct {
	Brokers      []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	GroupID      string   `envconfig:"KAFKA_GROUP_ID" default:"svmengine"`
	RequestTopic string   `envconfig:"KAFKA_REQUEST_TOPIC" default:"svm.predict.requests"`
	ResultTopic  string   `envconfig:"KAFKA_RESULT_TOPIC" default:"svm.predict.results"`

	StatsInterval time.Duration `envconfig:"KAFKA_STATS_INTERVAL" default:"1m"`
}

type MetricsConfig struct {
	Enabled bool   `envconfig:"METRICS_ENABLED" default:"true"`
	Addr    string `envconfig:"METRICS_ADDR" default:":9090"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"false"`
	Provider    string `envconfig:"ERROR_TRACKING_PROVIDER" default:"sentry"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
	Release     string `envconfig:"SENTRY_RELEASE"`
}

// BatchConfig drives the one-shot prediction over a libsvm data file
type BatchConfig struct {
	InputPath     string        `envconfig:"BATCH_INPUT_PATH"`
	Probabilities bool          `envconfig:"BATCH_PROBABILITIES" default:"false"`
	Timeout       time.Duration `envconfig:"BATCH_TIMEOUT" default:"5m"`
}

// Load reads configuration from environment variables
// It first tries to load .env file (useful for local development)
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not exists)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cross-field constraints envconfig cannot express
func (c *Config) Validate() error {
	if c.Engine.Capacity < 1 {
		return errors.NewValidationError(errors.ErrInvalidArgument, "ENGINE_CAPACITY", "must be >= 1", c.Engine.Capacity)
	}
	if c.Engine.Workers < 1 {
		return errors.NewValidationError(errors.ErrInvalidArgument, "ENGINE_WORKERS", "must be >= 1", c.Engine.Workers)
	}
	if c.Engine.CouplingMaxIterations < 0 {
		return errors.NewValidationError(errors.ErrInvalidArgument, "ENGINE_COUPLING_MAX_ITER", "must be >= 0", c.Engine.CouplingMaxIterations)
	}
	if c.Engine.CouplingTolerance < 0 {
		return errors.NewValidationError(errors.ErrInvalidArgument, "ENGINE_COUPLING_TOLERANCE", "must be >= 0", c.Engine.CouplingTolerance)
	}

	switch c.Model.Source {
	case ModelSourceFile:
		if c.Model.Path == "" {
			return errors.NewValidationError(errors.ErrInvalidArgument, "MODEL_PATH", "required for file source", c.Model.Path)
		}
	case ModelSourceRedis:
		if c.Model.RedisKey == "" {
			return errors.NewValidationError(errors.ErrInvalidArgument, "MODEL_REDIS_KEY", "required for redis source", c.Model.RedisKey)
		}
	default:
		return errors.NewValidationError(errors.ErrInvalidArgument, "MODEL_SOURCE", "must be file or redis", c.Model.Source)
	}

	switch c.App.Mode {
	case ModeBatch:
		if c.Batch.InputPath == "" {
			return errors.NewValidationError(errors.ErrInvalidArgument, "BATCH_INPUT_PATH", "required in batch mode", c.Batch.InputPath)
		}
	case ModeConsumer:
		if len(c.Kafka.Brokers) == 0 {
			return errors.NewValidationError(errors.ErrInvalidArgument, "KAFKA_BROKERS", "required in consumer mode", c.Kafka.Brokers)
		}
	case ModePublish:
		if c.Model.Path == "" {
			return errors.NewValidationError(errors.ErrInvalidArgument, "MODEL_PATH", "required in publish mode", c.Model.Path)
		}
	default:
		return errors.NewValidationError(errors.ErrInvalidArgument, "APP_MODE", "must be batch, consumer or publish", c.App.Mode)
	}

	return nil
}
