// Command heatrisk classifies barangay heat risk from a local CSV of
// daily observations and writes the latest snapshot back out as CSV.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/heatwatch/heat-risk-pipeline/internal/adapter/csvstore"
	"github.com/heatwatch/heat-risk-pipeline/internal/cluster"
	"github.com/heatwatch/heat-risk-pipeline/internal/domain"
	"github.com/heatwatch/heat-risk-pipeline/internal/features"
	"github.com/heatwatch/heat-risk-pipeline/internal/observability"
	"github.com/heatwatch/heat-risk-pipeline/internal/pipeline"
)

func main() {
	input := flag.String("input", "barangay_data.csv", "path to the observation history CSV")
	output := flag.String("output", "barangay_heat_risk_today.csv", "path to write the risk snapshot CSV")
	noRolling := flag.Bool("no-rolling", false, "classify on raw daily temperatures instead of rolling means")
	window := flag.Int("window", features.DefaultWindow, "rolling mean window in days")
	clusters := flag.Int("clusters", pipeline.DefaultOptions().Clusters, "number of risk clusters")
	seed := flag.Int64("seed", cluster.DefaultSeed, "random seed for cluster initialization")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if err := run(*input, *output, *noRolling, *window, *clusters, *seed, logger); err != nil {
		logger.Error("classification failed", "error", err)
		os.Exit(exitCode(err))
	}
}

func run(input, output string, noRolling bool, window, clusters int, seed int64, logger *slog.Logger) error {
	store := csvstore.NewStore(input, output)

	observations, err := store.Load()
	if err != nil {
		return fmt.Errorf("loading %s: %w", input, err)
	}

	driver := pipeline.New(cluster.NewKMeans(seed), logger, observability.NewMetrics())
	opts := pipeline.Options{
		UseRolling: !noRolling,
		Window:     window,
		Clusters:   clusters,
		Seed:       seed,
	}

	snapshot, err := driver.Run(context.Background(), observations, opts)
	if err != nil {
		return fmt.Errorf("running pipeline: %w", err)
	}

	if err := store.WriteSnapshot(snapshot); err != nil {
		return fmt.Errorf("writing %s: %w", output, err)
	}

	logger.Info("snapshot written",
		"date", snapshot.Date,
		"barangays", len(snapshot.Assessments),
		"output", output)
	return nil
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrInputNotFound):
		return 2
	case errors.Is(err, domain.ErrInvalidInput):
		return 3
	default:
		return 1
	}
}
