package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SCAN_INTERVAL", "")
	t.Setenv("KAFKA_BROKERS", "")

	cfg := Load()

	assert.Equal(t, 1200*time.Millisecond, cfg.Scanner.Interval)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "M", cfg.QR.ECC)
	assert.Equal(t, 3, cfg.Issue.MaxAttempts)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SCAN_INTERVAL", "500ms")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("KAFKA_ENABLED", "false")
	t.Setenv("QR_SIZE", "512")
	t.Setenv("ISSUE_MAX_ATTEMPTS", "not-a-number")

	cfg := Load()

	assert.Equal(t, 500*time.Millisecond, cfg.Scanner.Interval)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, 512, cfg.QR.Size)
	assert.Equal(t, 3, cfg.Issue.MaxAttempts, "invalid ints fall back to the default")
}
