package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"svmengine/pkg/errors"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("MODEL_PATH", "/models/iris.model")
	t.Setenv("BATCH_INPUT_PATH", "/data/iris.t")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "svmengine", cfg.App.Name)
	assert.Equal(t, "batch", cfg.App.Mode)
	assert.Equal(t, 64, cfg.Engine.Capacity)
	assert.Equal(t, 4, cfg.Engine.Workers)
	assert.Equal(t, 0, cfg.Engine.CouplingMaxIterations)
	assert.Equal(t, 0.0, cfg.Engine.CouplingTolerance)
	assert.Equal(t, ModelSourceFile, cfg.Model.Source)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "svm.predict.requests", cfg.Kafka.RequestTopic)
	assert.Equal(t, "svm.predict.results", cfg.Kafka.ResultTopic)
	assert.Zero(t, cfg.Model.ReloadInterval)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("APP_MODE", "consumer")
	t.Setenv("MODEL_SOURCE", "redis")
	t.Setenv("MODEL_REDIS_KEY", "models:current")
	t.Setenv("ENGINE_COUPLING_MAX_ITER", "250")
	t.Setenv("ENGINE_COUPLING_TOLERANCE", "0.0001")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 250, cfg.Engine.CouplingMaxIterations)
	assert.Equal(t, 0.0001, cfg.Engine.CouplingTolerance)
	assert.Equal(t, "models:current", cfg.Model.RedisKey)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			App:    AppConfig{Mode: "batch"},
			Engine: EngineConfig{Capacity: 1, Workers: 1},
			Model:  ModelConfig{Source: ModelSourceFile, Path: "m.model"},
			Batch:  BatchConfig{InputPath: "in.t"},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"zero capacity", func(c *Config) { c.Engine.Capacity = 0 }, "ENGINE_CAPACITY"},
		{"zero workers", func(c *Config) { c.Engine.Workers = 0 }, "ENGINE_WORKERS"},
		{"negative tolerance", func(c *Config) { c.Engine.CouplingTolerance = -1 }, "ENGINE_COUPLING_TOLERANCE"},
		{"unknown source", func(c *Config) { c.Model.Source = "s3" }, "MODEL_SOURCE"},
		{"file without path", func(c *Config) { c.Model.Path = "" }, "MODEL_PATH"},
		{"batch without input", func(c *Config) { c.Batch.InputPath = "" }, "BATCH_INPUT_PATH"},
		{"unknown mode", func(c *Config) { c.App.Mode = "server" }, "APP_MODE"},
		{"publish without path", func(c *Config) {
			c.App.Mode = ModePublish
			c.Model = ModelConfig{Source: ModelSourceRedis, RedisKey: "svmengine:model"}
		}, "MODEL_PATH"},
	}

	require.NoError(t, valid().Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrInvalidArgument))

			var ve *errors.ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}
