package trainer

import (
	"github.com/sgl-project/sft-agent/pkg/constants"
	"github.com/sgl-project/sft-agent/pkg/textmetrics"
)

var defaultMetric, _ = textmetrics.Combine("f1", "bleu", "rouge")

// ComputeMetrics scores [batch][sequence][vocabulary] logits against gold
// token ids with F1, BLEU and ROUGE. Label positions set to -100 are left
// out, and token ids are compared as space separated words.
func ComputeMetrics(logits [][][]float64, labels [][]int) (textmetrics.Report, error) {
	return scoreTokenIDs(defaultMetric, logits, labels)
}

func (t *Trainer) computeMetrics(logits [][][]float64, labels [][]int) (textmetrics.Report, error) {
	return scoreTokenIDs(t.metric, logits, labels)
}

func scoreTokenIDs(metric textmetrics.Metric, logits [][][]float64, labels [][]int) (textmetrics.Report, error) {
	predictions := textmetrics.Argmax(logits)
	predictions, references := textmetrics.DropIgnored(predictions, labels, constants.LabelIgnoreIndex)

	return metric.Compute(textmetrics.IDsToText(predictions), textmetrics.IDsToText(references))
}
