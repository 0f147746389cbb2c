// Package config loads service settings from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	BackendURL      string
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Pipeline knobs.
	RunInterval   time.Duration
	RollingWindow int
	UseRolling    bool
	Clusters      int
	Seed          int64

	// Fetch collaborator.
	FetchTimeout      time.Duration
	FacilityTimeout   time.Duration
	FetchWorkers      int
	FacilityCacheSize int

	// CSV bookkeeping.
	HistoryCSV string
	OutputCSV  string

	// Optional Kafka publishing of daily snapshots.
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	runInterval, err := parseDuration("RUN_INTERVAL", "24h")
	if err != nil {
		return nil, err
	}
	fetchTimeout, err := parseDuration("FETCH_TIMEOUT", "120s")
	if err != nil {
		return nil, err
	}
	facilityTimeout, err := parseDuration("FACILITY_TIMEOUT", "15s")
	if err != nil {
		return nil, err
	}

	window, err := parsePositiveInt("ROLLING_WINDOW", 7)
	if err != nil {
		return nil, err
	}
	clusters, err := parsePositiveInt("CLUSTERS", 5)
	if err != nil {
		return nil, err
	}
	workers, err := parsePositiveInt("FETCH_WORKERS", 20)
	if err != nil {
		return nil, err
	}
	cacheSize, err := parsePositiveInt("FACILITY_CACHE_SIZE", 2048)
	if err != nil {
		return nil, err
	}

	seed, err := parseSeed("RANDOM_SEED", 42)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		BackendURL:      strings.TrimRight(envOrDefault("BACKEND_URL", "http://localhost:3000"), "/"),
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		RunInterval:   runInterval,
		RollingWindow: window,
		UseRolling:    envOrDefault("USE_ROLLING", "true") == "true",
		Clusters:      clusters,
		Seed:          seed,

		FetchTimeout:      fetchTimeout,
		FacilityTimeout:   facilityTimeout,
		FetchWorkers:      workers,
		FacilityCacheSize: cacheSize,

		HistoryCSV: envOrDefault("HISTORY_CSV", "barangay_data.csv"),
		OutputCSV:  envOrDefault("OUTPUT_CSV", "barangay_heat_risk_today.csv"),

		KafkaEnabled: os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers: parseBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   envOrDefault("KAFKA_TOPIC", "barangay-heat-risk"),
	}

	if cfg.BackendURL == "" {
		return nil, errors.New("BACKEND_URL is required")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if cfg.KafkaEnabled && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_TOPIC is not set")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", key)
	}
	return n, nil
}

func parseSeed(key string, fallback int64) (int64, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: must be an integer", key)
	}
	return n, nil
}

// parseBrokers splits a comma-separated broker list, dropping empty entries.
func parseBrokers(s string) []string {
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
