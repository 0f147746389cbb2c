package cluster

import (
	"fmt"
	"sort"

	"github.com/heatwatch/heat-risk-pipeline/internal/domain"
)

// RankBySeverity orders clusters by weighted severity and returns the risk
// level for every cluster label, 1 = lowest severity. Severity is the dot
// product of the weights with the per-cluster means of the unscaled
// TempRolling and FacilityScore features; NaN feature values are skipped,
// matching the imputation policy upstream. Exact score ties are broken by
// first-encountered cluster order over the row sequence, not by ascending
// label number, so on a tie the cluster whose row appears first outranks lower
// numbered labels seen later. Ranking is stable across identical runs.
func RankBySeverity(rows []domain.FeatureRow, labels []int, weights [2]float64) (map[int]int, error) {
	if len(rows) != len(labels) {
		return nil, fmt.Errorf("ranking: %d rows but %d labels: %w", len(rows), len(labels), domain.ErrInvalidInput)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("ranking: no labeled rows: %w", domain.ErrConvergence)
	}

	type stats struct {
		label               int
		tempSum, facSum     float64
		tempCount, facCount int
		score               float64
	}

	// Accumulate in first-encounter order; that order is the tie-breaker.
	byLabel := make(map[int]*stats)
	ordered := make([]*stats, 0)
	for i, label := range labels {
		s, ok := byLabel[label]
		if !ok {
			s = &stats{label: label}
			byLabel[label] = s
			ordered = append(ordered, s)
		}
		if !domain.IsMissing(rows[i].TempRolling) {
			s.tempSum += rows[i].TempRolling
			s.tempCount++
		}
		if !domain.IsMissing(rows[i].FacilityScore) {
			s.facSum += rows[i].FacilityScore
			s.facCount++
		}
	}

	for _, s := range ordered {
		var tempMean, facMean float64
		if s.tempCount > 0 {
			tempMean = s.tempSum / float64(s.tempCount)
		}
		if s.facCount > 0 {
			facMean = s.facSum / float64(s.facCount)
		}
		s.score = weights[0]*tempMean + weights[1]*facMean
	}

	// Stable sort keeps first-encounter order among exactly tied scores.
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].score < ordered[j].score
	})

	risk := make(map[int]int, len(ordered))
	for rank, s := range ordered {
		risk[s.label] = rank + 1
	}
	return risk, nil
}
