package textmetrics

import (
	"fmt"
	"math"
)

// BLEUMetric is corpus level BLEU with uniform n-gram weights, no smoothing
// and the standard brevity penalty.
type BLEUMetric struct {
	MaxOrder int
}

// NewBLEUMetric creates a BLEU-4 metric.
func NewBLEUMetric() *BLEUMetric { return &BLEUMetric{MaxOrder: 4} }

// Name returns the metric name.
func (m *BLEUMetric) Name() string { return "bleu" }

// Compute returns bleu, precisions_<n>, brevity_penalty, length_ratio,
// translation_length and reference_length.
func (m *BLEUMetric) Compute(predictions, references []string) (Report, error) {
	if err := checkInputs(predictions, references); err != nil {
		return nil, err
	}

	matches := make([]int, m.MaxOrder)
	possible := make([]int, m.MaxOrder)
	var predLen, refLen int

	for i := range predictions {
		pred, ref := Tokenize(predictions[i]), Tokenize(references[i])
		predLen += len(pred)
		refLen += len(ref)

		for n := 1; n <= m.MaxOrder; n++ {
			matches[n-1] += overlap(ngrams(pred, n), ngrams(ref, n))
			if c := len(pred) - n + 1; c > 0 {
				possible[n-1] += c
			}
		}
	}

	report := Report{}
	logSum := 0.0
	allPositive := true
	for n := range m.MaxOrder {
		p := 0.0
		if possible[n] > 0 {
			p = float64(matches[n]) / float64(possible[n])
		}
		report[fmt.Sprintf("precisions_%d", n+1)] = p
		if p == 0 {
			allPositive = false
			continue
		}
		logSum += math.Log(p)
	}

	geoMean := 0.0
	if allPositive {
		geoMean = math.Exp(logSum / float64(m.MaxOrder))
	}

	ratio := 0.0
	if refLen > 0 {
		ratio = float64(predLen) / float64(refLen)
	}
	bp := 1.0
	switch {
	case ratio == 0:
		bp = 0
	case ratio < 1:
		bp = math.Exp(1 - 1/ratio)
	}

	report["bleu"] = geoMean * bp
	report["brevity_penalty"] = bp
	report["length_ratio"] = ratio
	report["translation_length"] = float64(predLen)
	report["reference_length"] = float64(refLen)
	return report, nil
}
