// Package pipeline orchestrates feature building, clustering, and severity
// ranking over a historical observation table.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/heatwatch/heat-risk-pipeline/internal/cluster"
	"github.com/heatwatch/heat-risk-pipeline/internal/domain"
	"github.com/heatwatch/heat-risk-pipeline/internal/features"
	"github.com/heatwatch/heat-risk-pipeline/internal/observability"
)

// Options controls one pipeline run.
type Options struct {
	UseRolling bool
	Window     int
	Clusters   int
	Seed       int64
}

// DefaultOptions are the production defaults: 7-day rolling window, five
// PAGASA tiers, fixed seed for reproducible fits.
func DefaultOptions() Options {
	return Options{UseRolling: true, Window: features.DefaultWindow, Clusters: 5, Seed: cluster.DefaultSeed}
}

// Driver runs the feature-cluster-rank sequence and extracts the latest-date
// snapshot. A run is atomic: it returns a full snapshot or an error, never a
// partial result. Each run owns its data, so concurrent runs over independent
// tables are safe.
type Driver struct {
	clusterer cluster.Clusterer
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// New creates a Driver. Pass a nil clusterer to fit a fresh seeded KMeans per
// run (the seed then comes from Options); an injected clusterer carries its
// own seeding and ignores Options.Seed.
func New(clusterer cluster.Clusterer, logger *slog.Logger, metrics *observability.Metrics) *Driver {
	return &Driver{clusterer: clusterer, logger: logger, metrics: metrics}
}

// Run classifies the full history and returns only the most recent date's
// rows. Clustering and rolling statistics use all history; only the latest
// snapshot is operationally relevant as output.
func (d *Driver) Run(ctx context.Context, obs []domain.Observation, opts Options) (domain.Snapshot, error) {
	start := time.Now()
	runID := uuid.NewString()

	snap, err := d.run(ctx, obs, opts)
	if err != nil {
		d.metrics.PipelineRuns.WithLabelValues("error").Inc()
		d.logger.Error("pipeline run failed", "run_id", runID, "error", err)
		return domain.Snapshot{}, err
	}

	d.metrics.PipelineRuns.WithLabelValues("success").Inc()
	d.metrics.PipelineDuration.Observe(time.Since(start).Seconds())
	d.metrics.ObservationsInRun.Observe(float64(len(obs)))
	d.metrics.BarangaysClassified.Set(float64(len(snap.Assessments)))
	d.observeRiskLevels(snap)

	d.logger.Info("pipeline run complete",
		"run_id", runID,
		"rows", len(obs),
		"snapshot_date", snap.Date,
		"barangays", len(snap.Assessments),
		"duration", time.Since(start),
	)
	return snap, nil
}

func (d *Driver) run(ctx context.Context, obs []domain.Observation, opts Options) (domain.Snapshot, error) {
	if len(obs) == 0 {
		return domain.Snapshot{}, fmt.Errorf("pipeline: empty observation table: %w", domain.ErrInputNotFound)
	}
	if opts.Window <= 0 {
		opts.Window = features.DefaultWindow
	}
	if opts.Clusters <= 0 {
		opts.Clusters = 5
	}
	if err := ctx.Err(); err != nil {
		return domain.Snapshot{}, err
	}

	set, err := features.Build(obs, features.Options{UseRolling: opts.UseRolling, Window: opts.Window})
	if err != nil {
		return domain.Snapshot{}, err
	}

	clusterer := d.clusterer
	if clusterer == nil {
		clusterer = cluster.NewKMeans(opts.Seed)
	}
	labels, err := clusterer.Cluster(set.Matrix, opts.Clusters)
	if err != nil {
		return domain.Snapshot{}, err
	}

	risk, err := cluster.RankBySeverity(set.Rows, labels, domain.SeverityWeights)
	if err != nil {
		return domain.Snapshot{}, err
	}

	return latestSnapshot(set.Rows, labels, risk), nil
}

// latestSnapshot projects the rows whose date equals the maximum date present
// down to the output contract.
func latestSnapshot(rows []domain.FeatureRow, labels []int, risk map[int]int) domain.Snapshot {
	latest := ""
	for _, r := range rows {
		if r.Date > latest {
			latest = r.Date
		}
	}

	snap := domain.Snapshot{Date: latest}
	for i, r := range rows {
		if r.Date != latest {
			continue
		}
		snap.Assessments = append(snap.Assessments, domain.RiskAssessment{
			BarangayID: r.BarangayID,
			RiskLevel:  risk[labels[i]],
			Cluster:    labels[i],
		})
	}
	return snap
}

func (d *Driver) observeRiskLevels(snap domain.Snapshot) {
	d.metrics.RiskLevelCount.Reset()
	counts := make(map[int]int)
	for _, a := range snap.Assessments {
		counts[a.RiskLevel]++
	}
	for level, n := range counts {
		d.metrics.RiskLevelCount.WithLabelValues(fmt.Sprint(level)).Set(float64(n))
	}
}
