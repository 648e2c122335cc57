// Package model_selection provides data splitting and cross-validated
// hyperparameter search for model pipelines.
package model_selection

import (
	"math"
	"math/rand/v2"

	"github.com/YuminosukeSato/bikecount/pkg/errors"
)

func newRand(seed int) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
}

// TrainTestSplit shuffles the row indices [0, n) with seed and returns a
// single train/test partition. The test part holds ceil(testSize*n) rows.
func TrainTestSplit(n int, testSize float64, seed int) (train, test []int, err error) {
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, errors.NewValidationError("test_size", "must be in (0, 1)", testSize)
	}
	nTest := int(math.Ceil(testSize * float64(n)))
	nTrain := n - nTest
	if nTest < 1 || nTrain < 1 {
		return nil, nil, errors.NewValueError("TrainTestSplit",
			"with n_samples and test_size the resulting train or test set would be empty")
	}

	perm := newRand(seed).Perm(n)
	return perm[nTest:], perm[:nTest], nil
}

// Fold is one cross-validation split.
type Fold struct {
	TrainIndices []int
	TestIndices  []int
}

// KFold implements k-fold cross-validation splitter
type KFold struct {
	NSplits    int
	Shuffle    bool
	RandomSeed int
}

// NewKFold creates a new k-fold splitter
func NewKFold(nSplits int, shuffle bool, randomSeed int) *KFold {
	return &KFold{
		NSplits:    nSplits,
		Shuffle:    shuffle,
		RandomSeed: randomSeed,
	}
}

// Split partitions [0, n) into NSplits contiguous test blocks (after an
// optional shuffle). The first n % NSplits folds get one extra row.
func (kf *KFold) Split(n int) ([]Fold, error) {
	if kf.NSplits < 2 {
		return nil, errors.NewValidationError("n_splits", "must be at least 2", kf.NSplits)
	}
	if kf.NSplits > n {
		return nil, errors.NewValueError("KFold.Split", "cannot have more splits than samples")
	}

	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	if kf.Shuffle {
		r := newRand(kf.RandomSeed)
		r.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	folds := make([]Fold, kf.NSplits)
	foldSize := n / kf.NSplits
	remainder := n % kf.NSplits
	start := 0
	for i := range folds {
		size := foldSize
		if i < remainder {
			size++
		}
		end := start + size
		folds[i] = Fold{
			TestIndices:  append([]int(nil), indices[start:end]...),
			TrainIndices: append(append(make([]int, 0, n-size), indices[:start]...), indices[end:]...),
		}
		start = end
	}
	return folds, nil
}
