package domain

import (
	"errors"
	"fmt"
	"math"
)

// Error taxonomy for a pipeline run. Errors abort the whole run; there are no
// partial results. Retries belong to the fetch adapter, not the core.
var (
	// ErrInvalidInput marks missing or malformed required columns.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInputNotFound marks an empty or absent input table.
	ErrInputNotFound = errors.New("input not found")

	// ErrConvergence marks a degenerate feature matrix the clusterer cannot
	// produce labels for.
	ErrConvergence = errors.New("clustering cannot converge")
)

// SeverityWeights is the fixed weight vector applied to per-cluster mean
// features, positionally: temperature first, facility second. A convex
// combination, though ranking only needs the induced order.
var SeverityWeights = [2]float64{0.6, 0.4}

// Observation is one (barangay, day) row of the input table. Dates are ISO
// "2006-01-02" strings, so lexicographic order is chronological. Temperature
// and FacilityDistance are NaN when missing; the feature builder imputes them.
type Observation struct {
	BarangayID       string
	Date             string
	Temperature      float64 // °C, heat index or raw air temperature
	FacilityDistance float64 // 1/(1+count), in (0,1]
}

// Validate reports whether the observation carries the identifying fields a
// run cannot proceed without. Missing measurements are tolerated here since
// they are imputable downstream.
func (o Observation) Validate() error {
	if o.BarangayID == "" {
		return fmt.Errorf("observation missing barangay_id: %w", ErrInvalidInput)
	}
	if o.Date == "" {
		return fmt.Errorf("observation missing date: %w", ErrInvalidInput)
	}
	return nil
}

// FeatureRow is an Observation with its engineered features. TempRolling is
// the causal trailing mean of Temperature; FacilityScore is FacilityDistance
// under its feature name, kept distinct so the two can diverge later.
// Either may be NaN when the underlying measurements were missing.
type FeatureRow struct {
	Observation
	TempRolling   float64
	FacilityScore float64
}

// RiskAssessment is one barangay's classification in the output table.
// Cluster is an arbitrary unordered label; RiskLevel is the ordinal rank of
// that cluster's severity, 1..k.
type RiskAssessment struct {
	BarangayID string `json:"barangay_id"`
	RiskLevel  int    `json:"risk_level"`
	Cluster    int    `json:"cluster"`
}

// Snapshot is the pipeline output: the classification of every barangay
// present on the most recent date in the input.
type Snapshot struct {
	Date        string           `json:"date"`
	Assessments []RiskAssessment `json:"assessments"`
}

// FacilityDistance converts a facility count into the inverse-count risk
// proxy: fewer nearby facilities → higher value. Counts below zero are
// treated as zero.
func FacilityDistance(count int) float64 {
	if count < 0 {
		count = 0
	}
	return 1.0 / (1.0 + float64(count))
}

// IsMissing reports whether a measurement value is absent. NaN is the only
// missing sentinel; zero is a legitimate reading.
func IsMissing(v float64) bool {
	return math.IsNaN(v)
}
