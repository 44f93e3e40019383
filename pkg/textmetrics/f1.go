package textmetrics

import "slices"

// F1Metric is the bag-of-tokens F1 between prediction and reference,
// averaged over samples.
type F1Metric struct{}

// NewF1Metric creates a token F1 metric.
func NewF1Metric() *F1Metric { return &F1Metric{} }

// Name returns the metric name.
func (m *F1Metric) Name() string { return "f1" }

// Compute returns {"f1": mean F1}.
func (m *F1Metric) Compute(predictions, references []string) (Report, error) {
	if err := checkInputs(predictions, references); err != nil {
		return nil, err
	}

	var total float64
	for i := range predictions {
		total += tokenF1(Tokenize(predictions[i]), Tokenize(references[i]))
	}
	return Report{"f1": total / float64(len(predictions))}, nil
}

func tokenF1(pred, ref []string) float64 {
	if len(pred) == 0 || len(ref) == 0 {
		if len(pred) == len(ref) {
			return 1
		}
		return 0
	}

	common := overlap(counts(pred), counts(ref))
	if common == 0 {
		return 0
	}
	return fMeasure(float64(common)/float64(len(pred)), float64(common)/float64(len(ref)))
}

// ExactMatchMetric is the share of predictions whose tokens equal the reference's.
type ExactMatchMetric struct{}

// NewExactMatchMetric creates an exact match metric.
func NewExactMatchMetric() *ExactMatchMetric { return &ExactMatchMetric{} }

// Name returns the metric name.
func (m *ExactMatchMetric) Name() string { return "exact_match" }

// Compute returns {"exact_match": share of exact matches}.
func (m *ExactMatchMetric) Compute(predictions, references []string) (Report, error) {
	if err := checkInputs(predictions, references); err != nil {
		return nil, err
	}

	hits := 0
	for i := range predictions {
		if slices.Equal(Tokenize(predictions[i]), Tokenize(references[i])) {
			hits++
		}
	}
	return Report{"exact_match": float64(hits) / float64(len(predictions))}, nil
}
