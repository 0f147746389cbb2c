// Command fetchdata pulls today's barangay temperatures and facility
// counts from the backend API and stores them as CSV observations.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/heatwatch/heat-risk-pipeline/internal/adapter/backend"
	"github.com/heatwatch/heat-risk-pipeline/internal/adapter/csvstore"
	"github.com/heatwatch/heat-risk-pipeline/internal/observability"
)

func main() {
	backendURL := flag.String("backend", "http://localhost:3000", "base URL of the backend API")
	output := flag.String("output", "barangay_data.csv", "path to the observation CSV")
	appendRows := flag.Bool("append", true, "append to the CSV instead of overwriting it")
	timeout := flag.Duration("timeout", 120*time.Second, "timeout for the temperature fetch")
	facilityTimeout := flag.Duration("facility-timeout", 15*time.Second, "timeout per facility count request")
	workers := flag.Int("workers", 20, "parallel workers for facility count fallback")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if err := run(*backendURL, *output, *appendRows, *timeout, *facilityTimeout, *workers, logger); err != nil {
		logger.Error("fetch failed", "error", err)
		os.Exit(1)
	}
}

func run(backendURL, output string, appendRows bool, timeout, facilityTimeout time.Duration, workers int, logger *slog.Logger) error {
	// One-shot fetch: a facility-count cache would never be reused.
	client := backend.NewClient(backendURL, timeout, facilityTimeout, workers, 0, logger, observability.NewMetrics())

	date := time.Now().UTC().Format("2006-01-02")
	observations, err := client.Snapshot(context.Background(), date)
	if err != nil {
		return fmt.Errorf("fetching observations for %s: %w", date, err)
	}

	if !appendRows {
		if err := os.Remove(output); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("truncating %s: %w", output, err)
		}
	}
	if err := csvstore.AppendObservations(output, observations); err != nil {
		return fmt.Errorf("storing observations: %w", err)
	}

	logger.Info("observations stored",
		"date", date,
		"barangays", len(observations),
		"output", output,
		"append", appendRows)
	return nil
}
