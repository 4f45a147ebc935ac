package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerConfig_Interval(t *testing.T) {
	tests := []struct {
		name       string
		intervalMS int
		expected   time.Duration
	}{
		{"unset uses default", 0, 60 * time.Second},
		{"negative uses default", -5, 60 * time.Second},
		{"below minimum raised to minimum", 9999, 10 * time.Second},
		{"tiny value raised to minimum", 5000, 10 * time.Second},
		{"minimum accepted", 10000, 10 * time.Second},
		{"custom value", 120000, 2 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := SchedulerConfig{IntervalMS: tt.intervalMS}
			assert.Equal(t, tt.expected, cfg.Interval())
		})
	}
}

func TestSchedulerConfig_LockTTL(t *testing.T) {
	assert.Equal(t, 30*time.Second, SchedulerConfig{IntervalMS: 30000}.LockTTL())
	assert.Equal(t, 5*time.Second, SchedulerConfig{IntervalMS: 30000, LockTTLSeconds: 5}.LockTTL())
}

func TestNotificationConfig_WebhookTimeout(t *testing.T) {
	assert.Equal(t, DefaultWebhookTimeout, NotificationConfig{}.WebhookTimeout())
	assert.Equal(t, 250*time.Millisecond, NotificationConfig{WebhookTimeoutMS: 250}.WebhookTimeout())
}

func TestLoad_SchedulerFromEnv(t *testing.T) {
	t.Setenv("SLA_SCHEDULER_INTERVAL_MS", "15000")
	t.Setenv("SLA_SCHEDULER_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.Scheduler.Enabled)
	assert.Equal(t, 15*time.Second, cfg.Scheduler.Interval())
}

func TestLoad_InvalidIntervalFallsBack(t *testing.T) {
	t.Setenv("SLA_SCHEDULER_INTERVAL_MS", "soon")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, DefaultSchedulerInterval, cfg.Scheduler.Interval())
}

func TestLoad_InvalidRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "first")

	_, err := Load()
	assert.Error(t, err)
}
