// Package cluster partitions the feature matrix and orders the partitions
// into an ordinal risk scale by weighted severity.
package cluster

import "gonum.org/v1/gonum/mat"

// Clusterer abstracts the partitioning implementation so severity ranking
// never depends on a particular algorithm.
//
// Implementations must be deterministic: identical matrix, k, and seeding
// state produce identical labels. Labels are integers in [0, k) but carry no
// order; ranking assigns the order.
type Clusterer interface {
	// Cluster assigns each row of m one of up to k labels. Implementations
	// may produce fewer than k non-empty clusters when the data cannot
	// support k distinct groups, but must not fail for that reason.
	Cluster(m *mat.Dense, k int) ([]int, error)
}
