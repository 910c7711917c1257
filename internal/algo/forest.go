package algo

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
)

// RandomForestConfig holds random forest hyperparameters.
type RandomForestConfig struct {
	NEstimators int
	// MaxDepth limits tree depth; 0 means unlimited.
	MaxDepth        int
	MinSamplesSplit int
	RandomState     int64
}

// DefaultRandomForestConfig returns the default forest configuration.
func DefaultRandomForestConfig() RandomForestConfig {
	return RandomForestConfig{
		NEstimators:     100,
		MaxDepth:        0,
		MinSamplesSplit: 2,
		RandomState:     42,
	}
}

// TreeNode is a CART node. Leaves carry the class distribution of the
// training rows that reached them.
type TreeNode struct {
	Leaf      bool
	Feature   int
	Threshold float64
	Left      *TreeNode
	Right     *TreeNode
	Probs     []float64
}

// RandomForest is a bagged ensemble of gini decision trees with sqrt(d)
// feature subsampling at every split. Every tree owns a seeded random
// source, so a fixed RandomState gives a reproducible forest.
type RandomForest struct {
	Config RandomForestConfig

	ClassValues []float64
	NFeatures   int
	Trees       []*TreeNode
}

// NewRandomForest creates an unfitted forest.
func NewRandomForest(cfg RandomForestConfig) *RandomForest {
	if cfg.NEstimators <= 0 {
		cfg.NEstimators = DefaultRandomForestConfig().NEstimators
	}
	if cfg.MinSamplesSplit < 2 {
		cfg.MinSamplesSplit = 2
	}
	if cfg.MaxDepth < 0 {
		cfg.MaxDepth = 0
	}
	return &RandomForest{Config: cfg}
}

// Fit grows NEstimators trees concurrently.
func (f *RandomForest) Fit(X [][]float64, y []float64) error {
	d, err := checkMatrix(X)
	if err != nil {
		return err
	}
	if len(y) != len(X) {
		return ErrLengthMismatch
	}

	classes, yIdx := uniqueClasses(y)
	f.ClassValues = classes
	f.NFeatures = d
	f.Trees = make([]*TreeNode, f.Config.NEstimators)

	maxFeatures := int(math.Ceil(math.Sqrt(float64(d))))

	var wg sync.WaitGroup
	for t := 0; t < f.Config.NEstimators; t++ {
		wg.Add(1)
		go func(t int) {
			defer wg.Done()

			rng := rand.New(rand.NewSource(f.Config.RandomState + int64(t)))

			sample := make([]int, len(X))
			for i := range sample {
				sample[i] = rng.Intn(len(X))
			}

			b := &treeBuilder{
				X:           X,
				y:           yIdx,
				nClasses:    len(classes),
				maxDepth:    f.Config.MaxDepth,
				minSplit:    f.Config.MinSamplesSplit,
				maxFeatures: maxFeatures,
				rng:         rng,
			}
			f.Trees[t] = b.build(sample, 0)
		}(t)
	}
	wg.Wait()

	return nil
}

// Classes returns the class values in probability column order.
func (f *RandomForest) Classes() []float64 {
	return f.ClassValues
}

// PredictProba averages the leaf distributions of all trees.
func (f *RandomForest) PredictProba(X [][]float64) ([][]float64, error) {
	if len(f.Trees) == 0 {
		return nil, ErrNotFitted
	}
	if err := checkWidth(X, f.NFeatures); err != nil {
		return nil, err
	}

	k := len(f.ClassValues)
	out := make([][]float64, len(X))
	for i, row := range X {
		acc := make([]float64, k)
		for _, tree := range f.Trees {
			leaf := tree.leafFor(row)
			for c, p := range leaf.Probs {
				acc[c] += p
			}
		}
		for c := range acc {
			acc[c] /= float64(len(f.Trees))
		}
		out[i] = acc
	}
	return out, nil
}

// Predict returns the class with the highest averaged probability.
func (f *RandomForest) Predict(X [][]float64) ([]int, error) {
	proba, err := f.PredictProba(X)
	if err != nil {
		return nil, fmt.Errorf("random forest: %w", err)
	}
	return labelsFromProba(proba, f.ClassValues), nil
}

func (n *TreeNode) leafFor(row []float64) *TreeNode {
	node := n
	for !node.Leaf {
		if row[node.Feature] <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node
}

type treeBuilder struct {
	X           [][]float64
	y           []int
	nClasses    int
	maxDepth    int
	minSplit    int
	maxFeatures int
	rng         *rand.Rand
}

func (b *treeBuilder) build(idx []int, depth int) *TreeNode {
	counts := make([]float64, b.nClasses)
	for _, i := range idx {
		counts[b.y[i]]++
	}

	leaf := &TreeNode{Leaf: true, Probs: make([]float64, b.nClasses)}
	pure := 0
	for c, cnt := range counts {
		leaf.Probs[c] = cnt / float64(len(idx))
		if cnt > 0 {
			pure++
		}
	}

	if pure <= 1 || len(idx) < b.minSplit || (b.maxDepth > 0 && depth >= b.maxDepth) {
		return leaf
	}

	feature, threshold, ok := b.bestSplit(idx, counts)
	if !ok {
		return leaf
	}

	var left, right []int
	for _, i := range idx {
		if b.X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	return &TreeNode{
		Feature:   feature,
		Threshold: threshold,
		Left:      b.build(left, depth+1),
		Right:     b.build(right, depth+1),
	}
}

// bestSplit scans candidate thresholds of a random feature subset and
// returns the split with the lowest weighted gini impurity.
func (b *treeBuilder) bestSplit(idx []int, total []float64) (int, float64, bool) {
	n := float64(len(idx))
	parent := gini(total, n)

	bestGain := 1e-12
	bestFeature, bestThreshold := -1, 0.0

	features := b.rng.Perm(len(b.X[0]))[:b.maxFeatures]
	sorted := make([]int, len(idx))

	for _, f := range features {
		copy(sorted, idx)
		sort.SliceStable(sorted, func(a, c int) bool {
			return b.X[sorted[a]][f] < b.X[sorted[c]][f]
		})

		left := make([]float64, b.nClasses)
		right := append([]float64(nil), total...)

		for pos := 0; pos < len(sorted)-1; pos++ {
			c := b.y[sorted[pos]]
			left[c]++
			right[c]--

			cur, next := b.X[sorted[pos]][f], b.X[sorted[pos+1]][f]
			if cur == next {
				continue
			}

			nl := float64(pos + 1)
			nr := n - nl
			gain := parent - (nl/n)*gini(left, nl) - (nr/n)*gini(right, nr)
			if gain > bestGain {
				bestGain = gain
				bestFeature = f
				bestThreshold = (cur + next) / 2
			}
		}
	}

	return bestFeature, bestThreshold, bestFeature >= 0
}

func gini(counts []float64, n float64) float64 {
	if n == 0 {
		return 0
	}
	s := 1.0
	for _, c := range counts {
		p := c / n
		s -= p * p
	}
	return s
}
