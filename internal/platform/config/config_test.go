package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidatorFromEnv(t *testing.T) {
	t.Run("defaults match the compose environment", func(t *testing.T) {
		cfg := ValidatorFromEnv()
		assert.Equal(t, "ticket-generated", cfg.Kafka.Topic)
		assert.Equal(t, "ticket-processing-group", cfg.Kafka.GroupID)
		assert.Equal(t, 5, cfg.MaxAttempts)
		assert.Equal(t, 3*time.Second, cfg.RetryBackoff)
	})

	t.Run("environment overrides defaults", func(t *testing.T) {
		t.Setenv("KAFKA_TOPIC", "ticket-generated-staging")
		t.Setenv("RETRY_MAX_ATTEMPTS", "9")
		t.Setenv("RETRY_BACKOFF", "500ms")

		cfg := ValidatorFromEnv()
		assert.Equal(t, "ticket-generated-staging", cfg.Kafka.Topic)
		assert.Equal(t, 9, cfg.MaxAttempts)
		assert.Equal(t, 500*time.Millisecond, cfg.RetryBackoff)
	})

	t.Run("broker list splits on commas", func(t *testing.T) {
		t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,kafka-3:9092,")

		cfg := ValidatorFromEnv()
		assert.Equal(t,
			[]string{"kafka-1:9092", "kafka-2:9092", "kafka-3:9092"},
			cfg.Kafka.Brokers,
		)
	})

	t.Run("single broker stays a one-element list", func(t *testing.T) {
		cfg := ValidatorFromEnv()
		assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	})

	t.Run("garbage knobs fall back to defaults", func(t *testing.T) {
		t.Setenv("RETRY_MAX_ATTEMPTS", "zero")
		t.Setenv("RETRY_BACKOFF", "-1s")

		cfg := ValidatorFromEnv()
		assert.Equal(t, 5, cfg.MaxAttempts)
		assert.Equal(t, 3*time.Second, cfg.RetryBackoff)
	})
}

func TestGatewayFromEnv(t *testing.T) {
	t.Setenv("GATEWAY_ADDR", ":8081")
	cfg := GatewayFromEnv()
	assert.Equal(t, ":8081", cfg.Addr)
	assert.Equal(t, "ticket-generated", cfg.Kafka.Topic)
}
