package textmetrics

// Argmax reduces [batch][sequence][vocabulary] scores to the index of the
// highest score at every position. Ties go to the lowest index.
func Argmax(logits [][][]float64) [][]int {
	out := make([][]int, len(logits))
	for b, seq := range logits {
		out[b] = make([]int, len(seq))
		for s, scores := range seq {
			best := 0
			for v := 1; v < len(scores); v++ {
				if scores[v] > scores[best] {
					best = v
				}
			}
			out[b][s] = best
		}
	}
	return out
}

// DropIgnored removes the positions where labels equal ignore from both
// predictions and labels. Sequences are aligned position by position; extra
// prediction positions beyond a label sequence are dropped too.
func DropIgnored(predictions, labels [][]int, ignore int) (preds, refs [][]int) {
	preds = make([][]int, len(labels))
	refs = make([][]int, len(labels))
	for b, labelSeq := range labels {
		var predSeq []int
		if b < len(predictions) {
			predSeq = predictions[b]
		}
		for s, label := range labelSeq {
			if label == ignore {
				continue
			}
			refs[b] = append(refs[b], label)
			if s < len(predSeq) {
				preds[b] = append(preds[b], predSeq[s])
			}
		}
	}
	return preds, refs
}
