// Package features turns raw per-barangay observations into the smoothed,
// normalized feature matrix the clusterer consumes.
package features

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/heatwatch/heat-risk-pipeline/internal/domain"
)

// Feature column identifiers, in matrix order. The order is load-bearing:
// severity weights apply positionally (temperature first, facility second).
const (
	ColTempRolling   = "temp_rolling"
	ColFacilityScore = "facility_score"
)

// DefaultWindow is the trailing rolling-mean window in days.
const DefaultWindow = 7

// Options controls feature engineering.
type Options struct {
	// UseRolling enables the trailing temperature mean. When false, or when
	// the table holds a single distinct date, TempRolling is the raw value.
	UseRolling bool

	// Window is the rolling window size in days. Non-positive falls back to
	// DefaultWindow.
	Window int
}

// Set is the feature builder output. Rows are sorted by (barangay, date) and
// Matrix is aligned row-for-row with Rows. Matrix values are min-max scaled
// to [0,1]; Rows keep the unscaled features for severity ranking.
type Set struct {
	Rows    []domain.FeatureRow
	Matrix  *mat.Dense
	Columns [2]string
}

// Build computes rolling and facility features for every observation and the
// scaled 2-column feature matrix. Rows missing a barangay id or date fail
// with domain.ErrInvalidInput; missing measurements are imputed with the
// global column mean before scaling.
func Build(obs []domain.Observation, opts Options) (*Set, error) {
	if len(obs) == 0 {
		return nil, fmt.Errorf("feature builder: empty table: %w", domain.ErrInputNotFound)
	}
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}

	for i, o := range obs {
		if err := o.Validate(); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
	}

	rows := sortedRows(obs)

	// Rolling is meaningless with a single time point; fall back to the raw
	// temperature so single-day tables still classify.
	if opts.UseRolling && distinctDates(rows) > 1 {
		applyRolling(rows, opts.Window)
	} else {
		for i := range rows {
			rows[i].TempRolling = rows[i].Temperature
		}
	}
	for i := range rows {
		rows[i].FacilityScore = rows[i].FacilityDistance
	}

	temp := column(rows, func(r domain.FeatureRow) float64 { return r.TempRolling })
	fac := column(rows, func(r domain.FeatureRow) float64 { return r.FacilityScore })
	imputeMean(temp)
	imputeMean(fac)
	minMaxScale(temp)
	minMaxScale(fac)

	m := mat.NewDense(len(rows), 2, nil)
	m.SetCol(0, temp)
	m.SetCol(1, fac)

	return &Set{
		Rows:    rows,
		Matrix:  m,
		Columns: [2]string{ColTempRolling, ColFacilityScore},
	}, nil
}

// sortedRows copies the observations into feature rows ordered by barangay
// then date, the order rolling windows are computed over.
func sortedRows(obs []domain.Observation) []domain.FeatureRow {
	rows := make([]domain.FeatureRow, len(obs))
	for i, o := range obs {
		rows[i] = domain.FeatureRow{Observation: o}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].BarangayID != rows[j].BarangayID {
			return rows[i].BarangayID < rows[j].BarangayID
		}
		return rows[i].Date < rows[j].Date
	})
	return rows
}

func distinctDates(rows []domain.FeatureRow) int {
	dates := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		dates[r.Date] = struct{}{}
	}
	return len(dates)
}

// applyRolling fills TempRolling with the causal trailing mean per barangay:
// an expanding mean until window points exist, sliding afterwards (minimum
// period one). NaN temperatures are skipped; a window of only NaNs yields NaN
// for later imputation.
func applyRolling(rows []domain.FeatureRow, window int) {
	for start := 0; start < len(rows); {
		end := start
		for end < len(rows) && rows[end].BarangayID == rows[start].BarangayID {
			end++
		}
		for i := start; i < end; i++ {
			lo := i - window + 1
			if lo < start {
				lo = start
			}
			sum, n := 0.0, 0
			for j := lo; j <= i; j++ {
				if domain.IsMissing(rows[j].Temperature) {
					continue
				}
				sum += rows[j].Temperature
				n++
			}
			if n == 0 {
				rows[i].TempRolling = math.NaN()
			} else {
				rows[i].TempRolling = sum / float64(n)
			}
		}
		start = end
	}
}

func column(rows []domain.FeatureRow, get func(domain.FeatureRow) float64) []float64 {
	vals := make([]float64, len(rows))
	for i, r := range rows {
		vals[i] = get(r)
	}
	return vals
}

// imputeMean replaces NaN entries with the mean of the finite entries. A
// column with no finite entries imputes zero so scaling stays deterministic.
func imputeMean(vals []float64) {
	sum, n := 0.0, 0
	for _, v := range vals {
		if !domain.IsMissing(v) {
			sum += v
			n++
		}
	}
	fill := 0.0
	if n > 0 {
		fill = sum / float64(n)
	}
	for i, v := range vals {
		if domain.IsMissing(v) {
			vals[i] = fill
		}
	}
}

// minMaxScale rescales values to [0,1] in place, fit on the whole column.
// A constant column scales to all zeros.
func minMaxScale(vals []float64) {
	lo, hi := vals[0], vals[0]
	for _, v := range vals[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	span := hi - lo
	for i, v := range vals {
		if span == 0 {
			vals[i] = 0
		} else {
			vals[i] = (v - lo) / span
		}
	}
}
