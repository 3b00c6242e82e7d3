package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitReadsEnvironment(t *testing.T) {
	t.Setenv("MODE", "worker")
	t.Setenv("JWT_TTL", "90m")
	t.Setenv("KAFKA_READ_TIMEOUT", "not-a-duration")
	t.Setenv("CORS_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("FANOUT_LIMIT", "7")

	cfg := Init()
	require.Same(t, cfg, Get())

	assert.Equal(t, "worker", cfg.Mode)
	assert.Equal(t, 90*time.Minute, cfg.JWTTTL)
	assert.Equal(t, 10*time.Second, cfg.KafkaReadTO)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, 7, cfg.FanoutLimit)
	assert.Equal(t, "activity-topic", cfg.KafkaTopic)
	assert.Equal(t, 5*time.Millisecond, cfg.KafkaBatchTO)
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Equal(t, []string{"*"}, splitList("*"))
}
