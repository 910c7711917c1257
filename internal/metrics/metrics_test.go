package metrics

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()

	sqlite, err := NewSQLiteStore(filepath.Join(t.TempDir(), "db", "metrics.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
	}
}

func TestStore_SaveGet(t *testing.T) {
	ctx := context.Background()

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Save(ctx, "m", "v1", Metrics{"accuracy": 0.5}))

			got, err := s.Get(ctx, "m", "v1")
			require.NoError(t, err)
			assert.Equal(t, Metrics{"accuracy": 0.5}, got)
		})
	}
}

func TestStore_Overwrite(t *testing.T) {
	ctx := context.Background()

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Save(ctx, "m", "v1", Metrics{"accuracy": 0.5, "recall": 1}))
			require.NoError(t, s.Save(ctx, "m", "v1", Metrics{"accuracy": 0.9}))

			got, err := s.Get(ctx, "m", "v1")
			require.NoError(t, err)
			assert.Equal(t, Metrics{"accuracy": 0.9}, got)
		})
	}
}

func TestStore_NotFoundDistinctFromEmpty(t *testing.T) {
	ctx := context.Background()

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(ctx, "m", "v2")
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrNotFound))

			var nf *NotFoundError
			require.True(t, errors.As(err, &nf))
			assert.Equal(t, "m", nf.Name)
			assert.Equal(t, "v2", nf.Version)

			require.NoError(t, s.Save(ctx, "m", "v2", Metrics{}))
			got, err := s.Get(ctx, "m", "v2")
			require.NoError(t, err)
			assert.NotNil(t, got)
			assert.Empty(t, got)
		})
	}
}

func TestMemoryStore_ReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	in := Metrics{"accuracy": 1}
	require.NoError(t, s.Save(ctx, "m", "v1", in))
	in["accuracy"] = 0

	got, err := s.Get(ctx, "m", "v1")
	require.NoError(t, err)
	got["accuracy"] = 0.25

	again, err := s.Get(ctx, "m", "v1")
	require.NoError(t, err)
	assert.Equal(t, 1.0, again["accuracy"])
}

func TestSQLiteStore_Persists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "metrics.db")

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, "m", "v1", Metrics{"f1": 0.75}))
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, "m", "v1")
	require.NoError(t, err)
	assert.Equal(t, Metrics{"f1": 0.75}, got)
}

func TestClassification(t *testing.T) {
	tests := []struct {
		name  string
		yTrue []float64
		yPred []int
		want  Metrics
	}{
		{
			name:  "perfect",
			yTrue: []float64{0, 1, 1, 0},
			yPred: []int{0, 1, 1, 0},
			want:  Metrics{"accuracy": 1, "precision": 1, "recall": 1, "f1": 1},
		},
		{
			name:  "mixed",
			yTrue: []float64{1, 1, 0, 0},
			yPred: []int{1, 0, 1, 0},
			want:  Metrics{"accuracy": 0.5, "precision": 0.5, "recall": 0.5, "f1": 0.5},
		},
		{
			name:  "no positive predictions",
			yTrue: []float64{1, 0},
			yPred: []int{0, 0},
			want:  Metrics{"accuracy": 0.5, "precision": 0, "recall": 0, "f1": 0},
		},
		{
			name:  "no positives at all",
			yTrue: []float64{0, 2},
			yPred: []int{0, 2},
			want:  Metrics{"accuracy": 1, "precision": 0, "recall": 0, "f1": 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Classification(tt.yTrue, tt.yPred)
			require.NoError(t, err)
			for k, v := range tt.want {
				assert.InDelta(t, v, got[k], 1e-12, k)
			}
		})
	}
}

func TestClassification_Errors(t *testing.T) {
	_, err := Classification([]float64{1}, []int{1, 0})
	assert.Error(t, err)

	_, err = Classification(nil, nil)
	assert.Error(t, err)
}

func TestMeanSquaredError(t *testing.T) {
	mse, err := MeanSquaredError([]float64{0, 1}, []float64{0.5, 0.5})
	require.NoError(t, err)
	assert.InDelta(t, 0.25, mse, 1e-12)

	_, err = MeanSquaredError([]float64{0}, nil)
	assert.Error(t, err)
}

func TestInertia(t *testing.T) {
	assert.Equal(t, Metrics{"inertia": 3.5, "n_clusters": 2}, Inertia(3.5, 2))
}
