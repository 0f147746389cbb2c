package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:3000", cfg.BackendURL)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 24*time.Hour, cfg.RunInterval)
	assert.Equal(t, 7, cfg.RollingWindow)
	assert.True(t, cfg.UseRolling)
	assert.Equal(t, 5, cfg.Clusters)
	assert.Equal(t, int64(42), cfg.Seed)
	assert.Equal(t, 120*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 15*time.Second, cfg.FacilityTimeout)
	assert.Equal(t, 20, cfg.FetchWorkers)
	assert.Equal(t, 2048, cfg.FacilityCacheSize)
	assert.Equal(t, "barangay_data.csv", cfg.HistoryCSV)
	assert.Equal(t, "barangay_heat_risk_today.csv", cfg.OutputCSV)
	assert.False(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "barangay-heat-risk", cfg.KafkaTopic)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("BACKEND_URL", "http://backend:3000/")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("RUN_INTERVAL", "1h")
	t.Setenv("ROLLING_WINDOW", "3")
	t.Setenv("USE_ROLLING", "false")
	t.Setenv("CLUSTERS", "4")
	t.Setenv("RANDOM_SEED", "7")
	t.Setenv("FETCH_TIMEOUT", "60s")
	t.Setenv("FACILITY_TIMEOUT", "5s")
	t.Setenv("FETCH_WORKERS", "8")
	t.Setenv("FACILITY_CACHE_SIZE", "256")
	t.Setenv("HISTORY_CSV", "/data/history.csv")
	t.Setenv("OUTPUT_CSV", "/data/today.csv")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "broker1:9092, broker2:9092")
	t.Setenv("KAFKA_TOPIC", "heat-risk")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://backend:3000", cfg.BackendURL, "trailing slash is trimmed")
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, time.Hour, cfg.RunInterval)
	assert.Equal(t, 3, cfg.RollingWindow)
	assert.False(t, cfg.UseRolling)
	assert.Equal(t, 4, cfg.Clusters)
	assert.Equal(t, int64(7), cfg.Seed)
	assert.Equal(t, time.Minute, cfg.FetchTimeout)
	assert.Equal(t, 5*time.Second, cfg.FacilityTimeout)
	assert.Equal(t, 8, cfg.FetchWorkers)
	assert.Equal(t, 256, cfg.FacilityCacheSize)
	assert.Equal(t, "/data/history.csv", cfg.HistoryCSV)
	assert.Equal(t, "/data/today.csv", cfg.OutputCSV)
	assert.True(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "heat-risk", cfg.KafkaTopic)
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_NegativeRunInterval(t *testing.T) {
	t.Setenv("RUN_INTERVAL", "-1h")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RUN_INTERVAL")
}

func TestLoad_InvalidRollingWindow(t *testing.T) {
	t.Setenv("ROLLING_WINDOW", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ROLLING_WINDOW")
}

func TestLoad_InvalidClusters(t *testing.T) {
	t.Setenv("CLUSTERS", "-2")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CLUSTERS")
}

func TestLoad_InvalidSeed(t *testing.T) {
	t.Setenv("RANDOM_SEED", "abc")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RANDOM_SEED")
}

func TestLoad_InvalidFetchWorkers(t *testing.T) {
	t.Setenv("FETCH_WORKERS", "zero")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FETCH_WORKERS")
}

func TestLoad_KafkaEnabledWithoutBrokers(t *testing.T) {
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", " , ")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KAFKA_BROKERS")
}
