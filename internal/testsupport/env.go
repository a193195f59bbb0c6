package testsupport

import (
	"fmt"
	"os"
	"strings"
	"testing"

	"svmengine/internal/adapters/config"
)

// IntegrationConfigs bundles config sections required for integration tests.
type IntegrationConfigs struct {
	Redis config.RedisConfig
	Kafka config.KafkaConfig
}

// LoadRedisConfigFromEnv reads the redis section for integration tests.
// Tests are skipped when REDIS_HOST is missing.
func LoadRedisConfigFromEnv(t *testing.T) config.RedisConfig {
	t.Helper()
	return loadIntegrationConfigs(t, "REDIS_HOST").Redis
}

// LoadKafkaConfigFromEnv reads the kafka section for integration tests.
// Tests are skipped when KAFKA_BROKERS is missing.
func LoadKafkaConfigFromEnv(t *testing.T) config.KafkaConfig {
	t.Helper()
	return loadIntegrationConfigs(t, "KAFKA_BROKERS").Kafka
}

func loadIntegrationConfigs(t *testing.T, required ...string) IntegrationConfigs {
	t.Helper()

	missing := make([]string, 0)
	for _, key := range required {
		if os.Getenv(key) == "" {
			missing = append(missing, key)
		}
	}

	if len(missing) > 0 {
		t.Skipf("integration environment missing, set %v to run", missing)
	}

	return IntegrationConfigs{
		Redis: config.RedisConfig{
			Host:     valueWithDefault("REDIS_HOST", "localhost"),
			Port:     intValue("REDIS_PORT", 6379),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       intValue("REDIS_DB", 0),
		},
		Kafka: config.KafkaConfig{
			Brokers:      strings.Split(valueWithDefault("KAFKA_BROKERS", "localhost:9092"), ","),
			GroupID:      UniqueName("svmengine_test"),
			RequestTopic: UniqueName("svm.predict.requests"),
			ResultTopic:  UniqueName("svm.predict.results"),
		},
	}
}

func valueWithDefault(key string, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}

	return fallback
}

func intValue(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var parsed int
		_, err := fmt.Sscanf(val, "%d", &parsed)
		if err == nil {
			return parsed
		}
	}

	return fallback
}
