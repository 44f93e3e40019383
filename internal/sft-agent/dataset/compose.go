package dataset

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// DefaultHoldoutFraction is the share of records held out at each split stage.
const DefaultHoldoutFraction = 0.1

// CombineDatasets returns a new set holding a's records followed by b's.
func CombineDatasets(a, b RecordSet) RecordSet {
	out := make(RecordSet, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

// TrainTestValidationSplit splits records in two stages: a test partition of
// ceil(0.1·n) records, then a validation partition of ceil(0.1·m) of the m
// records left. The same seed always yields the same partitions.
func TrainTestValidationSplit(records RecordSet, seed uint64) (Partitions, error) {
	return splitWithFraction(records, seed, DefaultHoldoutFraction)
}

func splitWithFraction(records RecordSet, seed uint64, fraction float64) (Partitions, error) {
	rng := rand.New(rand.NewPCG(seed, seed))

	rest, test, err := holdout(records, fraction, rng)
	if err != nil {
		return Partitions{}, fmt.Errorf("test split: %w", err)
	}
	train, validation, err := holdout(rest, fraction, rng)
	if err != nil {
		return Partitions{}, fmt.Errorf("validation split: %w", err)
	}

	return Partitions{Train: train, Validation: validation, Test: test}, nil
}

// holdout shuffles records and takes the first ceil(fraction·n) of the
// permutation as the held-out part.
func holdout(records RecordSet, fraction float64, rng *rand.Rand) (kept, held RecordSet, err error) {
	n := len(records)
	nHeld := int(math.Ceil(fraction * float64(n)))
	if n-nHeld < 1 {
		return nil, nil, fmt.Errorf("%w: %d records leave no training data", ErrDatasetTooSmall, n)
	}

	perm := rng.Perm(n)
	held = make(RecordSet, 0, nHeld)
	for _, i := range perm[:nHeld] {
		held = append(held, records[i])
	}
	kept = make(RecordSet, 0, n-nHeld)
	for _, i := range perm[nHeld:] {
		kept = append(kept, records[i])
	}
	return kept, held, nil
}
