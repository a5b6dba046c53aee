package pairs

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

// ErrInsufficientTrainData is returned in strict mode when leakage filtering
// leaves fewer training rows than requested.
var ErrInsufficientTrainData = errors.New("insufficient training pairs after leakage filtering")

// SplitOptions configures Split.
type SplitOptions struct {
	Seed uint64

	// Strict turns a training shortfall into ErrInsufficientTrainData.
	Strict bool
}

// SplitResult is a leakage-free train/test partition.
type SplitResult struct {
	Train []Pair
	Test  []Pair

	// Candidates is the number of non-test rows that survived leakage filtering.
	Candidates int
	// Dropped is the number of non-test rows removed because they share an
	// identity with the test set.
	Dropped int
	// Shortfall is how many training rows are missing from the requested size.
	Shortfall int
}

// Split shuffles the table with a fixed seed, takes the first testSize rows as
// the test set and fills the training set from the remaining rows that do not
// reference any test identity. The input slice is not modified.
//
// When fewer than trainSize rows survive filtering, the training set holds all
// survivors and Shortfall reports the gap, unless opts.Strict is set.
func Split(table []Pair, trainSize, testSize int, opts SplitOptions) (*SplitResult, error) {
	if trainSize < 0 || testSize < 0 {
		return nil, fmt.Errorf("split sizes must not be negative (train=%d, test=%d)", trainSize, testSize)
	}

	shuffled := make([]Pair, len(table))
	copy(shuffled, table)
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed))
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	testSize = min(testSize, len(shuffled))
	test := shuffled[:testSize]
	forbidden := IdentitySet(test)

	remaining := shuffled[testSize:]
	candidates := make([]Pair, 0, len(remaining))
	for _, p := range remaining {
		if _, ok := forbidden[Identity(p.ImageA)]; ok {
			continue
		}
		if _, ok := forbidden[Identity(p.ImageB)]; ok {
			continue
		}
		candidates = append(candidates, p)
	}

	train := candidates[:min(trainSize, len(candidates))]
	result := &SplitResult{
		Train:      train,
		Test:       test,
		Candidates: len(candidates),
		Dropped:    len(remaining) - len(candidates),
		Shortfall:  trainSize - len(train),
	}

	if opts.Strict && result.Shortfall > 0 {
		return result, fmt.Errorf("%w: requested %d, available %d", ErrInsufficientTrainData, trainSize, len(train))
	}
	return result, nil
}
