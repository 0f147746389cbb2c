package cluster

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/heatwatch/heat-risk-pipeline/internal/domain"
)

// DefaultSeed is the centroid-initialization seed used when none is configured.
const DefaultSeed = 42

// KMeans is a Lloyd's-algorithm Clusterer with farthest-first centroid
// seeding. The seed governs the first centroid pick and every later step is
// deterministic, so a fixed seed makes the whole fit reproducible.
type KMeans struct {
	Seed    int64
	MaxIter int
}

// NewKMeans returns a KMeans with the given seed and a bounded iteration cap.
func NewKMeans(seed int64) *KMeans {
	return &KMeans{Seed: seed, MaxIter: 300}
}

// Cluster fits k centroids over m and returns each row's nearest-centroid
// label. When k exceeds the number of distinct rows, k degrades to that count
// so duplicate-heavy tables still terminate. An empty matrix fails with
// domain.ErrConvergence.
func (km *KMeans) Cluster(m *mat.Dense, k int) ([]int, error) {
	n, dim := m.Dims()
	if n == 0 || k <= 0 {
		return nil, fmt.Errorf("k-means: cannot fit %d clusters over %d rows: %w", k, n, domain.ErrConvergence)
	}

	centroids := initialCentroids(m, k, km.Seed)
	k = len(centroids)

	labels := make([]int, n)
	maxIter := km.MaxIter
	if maxIter <= 0 {
		maxIter = 300
	}

	for iter := 0; iter < maxIter; iter++ {
		changed := assign(m, centroids, labels)
		if !changed && iter > 0 {
			break
		}
		recompute(m, labels, centroids, dim)
	}

	return labels, nil
}

// initialCentroids seeds in the k-means++ manner: the seed picks the first
// centroid, then each further centroid is the row farthest from its nearest
// chosen centroid (ties to the lower row index). Spreading the seeds apart
// keeps tight point groups from donating more than one initial centroid. A
// farthest distance of zero means every row already coincides with a
// centroid, which is what degrades k on duplicate-heavy input.
func initialCentroids(m *mat.Dense, k int, seed int64) [][]float64 {
	n, dim := m.Dims()
	rng := rand.New(rand.NewSource(seed))

	centroids := make([][]float64, 0, k)
	first := make([]float64, dim)
	mat.Row(first, rng.Intn(n), m)
	centroids = append(centroids, first)

	row := make([]float64, dim)
	for len(centroids) < k {
		farIdx, farDist := -1, 0.0
		for i := 0; i < n; i++ {
			mat.Row(row, i, m)
			nearest := math.Inf(1)
			for _, c := range centroids {
				if d := sqDist(row, c); d < nearest {
					nearest = d
				}
			}
			if nearest > farDist {
				farIdx, farDist = i, nearest
			}
		}
		if farIdx < 0 {
			break
		}
		next := make([]float64, dim)
		mat.Row(next, farIdx, m)
		centroids = append(centroids, next)
	}
	return centroids
}

// assign relabels every row with its nearest centroid, ties going to the
// lower centroid index. Reports whether any label changed.
func assign(m *mat.Dense, centroids [][]float64, labels []int) bool {
	n, dim := m.Dims()
	row := make([]float64, dim)
	changed := false
	for i := 0; i < n; i++ {
		mat.Row(row, i, m)
		best, bestDist := 0, math.Inf(1)
		for c, centroid := range centroids {
			d := sqDist(row, centroid)
			if d < bestDist {
				best, bestDist = c, d
			}
		}
		if labels[i] != best {
			labels[i] = best
			changed = true
		}
	}
	return changed
}

// recompute moves each centroid to the mean of its members. A centroid with
// no members stays put, keeping the fit deterministic.
func recompute(m *mat.Dense, labels []int, centroids [][]float64, dim int) {
	sums := make([][]float64, len(centroids))
	counts := make([]int, len(centroids))
	for c := range sums {
		sums[c] = make([]float64, dim)
	}

	row := make([]float64, dim)
	for i, label := range labels {
		mat.Row(row, i, m)
		for j := 0; j < dim; j++ {
			sums[label][j] += row[j]
		}
		counts[label]++
	}

	for c := range centroids {
		if counts[c] == 0 {
			continue
		}
		for j := 0; j < dim; j++ {
			centroids[c][j] = sums[c][j] / float64(counts[c])
		}
	}
}

func sqDist(a, b []float64) float64 {
	var total float64
	for i := range a {
		d := a[i] - b[i]
		total += d * d
	}
	return total
}
