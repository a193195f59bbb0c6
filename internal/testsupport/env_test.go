package testsupport

import "testing"

func TestLoadRedisConfigFromEnv(t *testing.T) {
	t.Setenv("REDIS_HOST", "redis")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("REDIS_DB", "2")

	cfg := LoadRedisConfigFromEnv(t)

	if cfg.Host != "redis" || cfg.Port != 6380 || cfg.DB != 2 {
		t.Fatalf("unexpected redis config %+v", cfg)
	}
}

func TestLoadKafkaConfigFromEnv(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg := LoadKafkaConfigFromEnv(t)

	if len(cfg.Brokers) != 2 || cfg.Brokers[1] != "k2:9092" {
		t.Fatalf("unexpected kafka brokers %v", cfg.Brokers)
	}
	if cfg.RequestTopic == cfg.ResultTopic {
		t.Fatalf("request and result topics must differ: %s", cfg.RequestTopic)
	}
}
