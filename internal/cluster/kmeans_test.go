package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/heatwatch/heat-risk-pipeline/internal/domain"
)

// threeGroups builds a matrix with three well-separated point groups.
func threeGroups() *mat.Dense {
	data := []float64{
		0.00, 0.00,
		0.02, 0.01,
		0.01, 0.03,
		0.50, 0.50,
		0.52, 0.51,
		0.51, 0.49,
		0.98, 0.97,
		1.00, 1.00,
		0.99, 0.98,
	}
	return mat.NewDense(9, 2, data)
}

func TestKMeans_SeparatesObviousGroups(t *testing.T) {
	m := threeGroups()
	km := NewKMeans(DefaultSeed)

	labels, err := km.Cluster(m, 3)
	require.NoError(t, err)
	require.Len(t, labels, 9)

	// Points within a group share a label; groups get distinct labels.
	assert.Equal(t, labels[0], labels[1])
	assert.Equal(t, labels[0], labels[2])
	assert.Equal(t, labels[3], labels[4])
	assert.Equal(t, labels[3], labels[5])
	assert.Equal(t, labels[6], labels[7])
	assert.Equal(t, labels[6], labels[8])
	assert.NotEqual(t, labels[0], labels[3])
	assert.NotEqual(t, labels[3], labels[6])
	assert.NotEqual(t, labels[0], labels[6])
}

func TestKMeans_SeparationHoldsForAnySeed(t *testing.T) {
	// The seed only picks the first centroid; the remaining centroids must
	// land one per group, never two inside the same tight group. Sweep a
	// range of seeds so no particular first pick can collapse two groups.
	m := threeGroups()

	for seed := int64(0); seed < 50; seed++ {
		labels, err := NewKMeans(seed).Cluster(m, 3)
		require.NoError(t, err, "seed %d", seed)

		assert.Equal(t, labels[0], labels[1], "seed %d", seed)
		assert.Equal(t, labels[0], labels[2], "seed %d", seed)
		assert.Equal(t, labels[3], labels[4], "seed %d", seed)
		assert.Equal(t, labels[3], labels[5], "seed %d", seed)
		assert.Equal(t, labels[6], labels[7], "seed %d", seed)
		assert.Equal(t, labels[6], labels[8], "seed %d", seed)
		assert.NotEqual(t, labels[0], labels[3], "seed %d", seed)
		assert.NotEqual(t, labels[3], labels[6], "seed %d", seed)
	}
}

func TestKMeans_DeterministicForFixedSeed(t *testing.T) {
	m := threeGroups()

	first, err := NewKMeans(DefaultSeed).Cluster(m, 3)
	require.NoError(t, err)
	second, err := NewKMeans(DefaultSeed).Cluster(m, 3)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestKMeans_KLargerThanDistinctPoints(t *testing.T) {
	// Two distinct points, heavily duplicated. k degrades to 2 and the fit
	// still terminates.
	data := []float64{
		0, 0,
		0, 0,
		0, 0,
		1, 1,
		1, 1,
	}
	m := mat.NewDense(5, 2, data)

	labels, err := NewKMeans(DefaultSeed).Cluster(m, 5)
	require.NoError(t, err)
	require.Len(t, labels, 5)

	distinct := map[int]struct{}{}
	for _, l := range labels {
		distinct[l] = struct{}{}
	}
	assert.Len(t, distinct, 2)
	assert.Equal(t, labels[0], labels[1])
	assert.Equal(t, labels[0], labels[2])
	assert.Equal(t, labels[3], labels[4])
	assert.NotEqual(t, labels[0], labels[3])
}

func TestKMeans_SingleRow(t *testing.T) {
	m := mat.NewDense(1, 2, []float64{0.5, 0.5})

	labels, err := NewKMeans(DefaultSeed).Cluster(m, 5)
	require.NoError(t, err)
	assert.Equal(t, []int{0}, labels)
}

func TestKMeans_EmptyMatrixFails(t *testing.T) {
	m := &mat.Dense{}

	_, err := NewKMeans(DefaultSeed).Cluster(m, 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConvergence)
}

func TestKMeans_ZeroClustersFails(t *testing.T) {
	m := mat.NewDense(1, 2, []float64{0.5, 0.5})

	_, err := NewKMeans(DefaultSeed).Cluster(m, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConvergence)
}

func TestKMeans_LabelsStayInRange(t *testing.T) {
	m := threeGroups()

	labels, err := NewKMeans(7).Cluster(m, 4)
	require.NoError(t, err)
	for i, l := range labels {
		assert.GreaterOrEqual(t, l, 0, "row %d", i)
		assert.Less(t, l, 4, "row %d", i)
	}
}
