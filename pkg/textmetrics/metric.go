// Package textmetrics scores generated text against reference text with the
// overlap metrics used to evaluate fine-tuned models: token F1, corpus BLEU
// and ROUGE.
package textmetrics

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

var (
	// ErrLengthMismatch is returned when predictions and references differ in count.
	ErrLengthMismatch = errors.New("predictions and references differ in length")

	// ErrNoSamples is returned when there is nothing to score.
	ErrNoSamples = errors.New("no samples to score")
)

// Report maps score names to values.
type Report map[string]float64

// Merge copies other into r, overwriting duplicate keys, and returns r.
func (r Report) Merge(other Report) Report {
	maps.Copy(r, other)
	return r
}

// Keys returns the score names in sorted order.
func (r Report) Keys() []string {
	return slices.Sorted(maps.Keys(r))
}

// Metric scores a batch of predictions against their references.
type Metric interface {
	Compute(predictions, references []string) (Report, error)
	Name() string
}

var registry = map[string]func() Metric{
	"f1":          func() Metric { return NewF1Metric() },
	"bleu":        func() Metric { return NewBLEUMetric() },
	"rouge":       func() Metric { return NewROUGEMetric() },
	"exact_match": func() Metric { return NewExactMatchMetric() },
}

// Names lists the metric names Combine understands.
func Names() []string {
	return slices.Sorted(maps.Keys(registry))
}

// Combined runs several metrics and merges their reports.
type Combined struct {
	metrics []Metric
}

// Combine builds a Combined metric from names such as "f1", "bleu", "rouge".
func Combine(names ...string) (*Combined, error) {
	if len(names) == 0 {
		return nil, errors.New("no metrics requested")
	}

	c := &Combined{}
	for _, name := range names {
		newMetric, ok := registry[strings.ToLower(name)]
		if !ok {
			return nil, fmt.Errorf("unknown metric %q, expected one of %v", name, Names())
		}
		c.metrics = append(c.metrics, newMetric())
	}
	return c, nil
}

// Name returns the member names joined with "+".
func (c *Combined) Name() string {
	names := make([]string, 0, len(c.metrics))
	for _, m := range c.metrics {
		names = append(names, m.Name())
	}
	return strings.Join(names, "+")
}

// Compute runs every member metric.
func (c *Combined) Compute(predictions, references []string) (Report, error) {
	report := Report{}
	for _, m := range c.metrics {
		r, err := m.Compute(predictions, references)
		if err != nil {
			return nil, fmt.Errorf("computing %s: %w", m.Name(), err)
		}
		report.Merge(r)
	}
	return report, nil
}

func checkInputs(predictions, references []string) error {
	if len(predictions) != len(references) {
		return fmt.Errorf("%w: %d predictions, %d references", ErrLengthMismatch, len(predictions), len(references))
	}
	if len(predictions) == 0 {
		return ErrNoSamples
	}
	return nil
}

// fMeasure is the harmonic mean of precision and recall, 0 when both are 0.
func fMeasure(precision, recall float64) float64 {
	if precision+recall == 0 {
		return 0
	}
	return 2 * precision * recall / (precision + recall)
}
