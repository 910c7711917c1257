package algo

import (
	"fmt"
	"math"

	"github.com/biogo/cluster/kmeans"
)

// KMeans partitions rows into K clusters. Fitting is delegated to
// github.com/biogo/cluster; the model keeps only the centroids, so
// assignment of new rows is deterministic.
type KMeans struct {
	K         int
	Centroids [][]float64
	Inertia   float64
}

// NewKMeans creates an unfitted k-means model.
func NewKMeans(k int) *KMeans {
	return &KMeans{K: k}
}

// points adapts a row matrix to cluster.Interface.
type points [][]float64

func (p points) Len() int               { return len(p) }
func (p points) Values(i int) []float64 { return p[i] }

// Fit seeds and runs Lloyd iterations on X.
func (m *KMeans) Fit(X [][]float64) error {
	if _, err := checkMatrix(X); err != nil {
		return err
	}
	if m.K < 1 {
		return fmt.Errorf("kmeans: n_clusters must be at least 1, got %d", m.K)
	}
	if m.K > len(X) {
		return fmt.Errorf("kmeans: n_clusters=%d exceeds sample count %d", m.K, len(X))
	}

	trainer, err := kmeans.New(points(X))
	if err != nil {
		return fmt.Errorf("kmeans: %w", err)
	}
	trainer.Seed(m.K)
	trainer.Cluster()

	m.Centroids = m.Centroids[:0]
	for _, c := range trainer.Centers() {
		if len(c.Members()) == 0 {
			continue
		}
		m.Centroids = append(m.Centroids, append([]float64(nil), c.V()...))
	}
	if len(m.Centroids) == 0 {
		return fmt.Errorf("kmeans: clustering produced no centers")
	}

	m.Inertia = 0
	for _, row := range X {
		_, dist := m.nearest(row)
		m.Inertia += dist
	}

	return nil
}

// Predict assigns every row to its nearest centroid.
func (m *KMeans) Predict(X [][]float64) ([]int, error) {
	if len(m.Centroids) == 0 {
		return nil, fmt.Errorf("kmeans: %w", ErrNotFitted)
	}
	if err := checkWidth(X, len(m.Centroids[0])); err != nil {
		return nil, fmt.Errorf("kmeans: %w", err)
	}

	out := make([]int, len(X))
	for i, row := range X {
		out[i], _ = m.nearest(row)
	}
	return out, nil
}

// Summary returns the training inertia and the number of clusters found.
func (m *KMeans) Summary() (float64, int) {
	return m.Inertia, len(m.Centroids)
}

// nearest returns the closest centroid and the squared distance to it.
func (m *KMeans) nearest(row []float64) (int, float64) {
	best, bestDist := 0, math.Inf(1)
	for c, centroid := range m.Centroids {
		d := 0.0
		for j, v := range row {
			diff := v - centroid[j]
			d += diff * diff
		}
		if d < bestDist {
			best, bestDist = c, d
		}
	}
	return best, bestDist
}
