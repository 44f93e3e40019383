package textmetrics

import "strings"

// ROUGEMetric reports ROUGE-1, ROUGE-2, ROUGE-L and ROUGE-Lsum F-measures
// averaged over samples.
type ROUGEMetric struct{}

// NewROUGEMetric creates a ROUGE metric.
func NewROUGEMetric() *ROUGEMetric { return &ROUGEMetric{} }

// Name returns the metric name.
func (m *ROUGEMetric) Name() string { return "rouge" }

// Compute returns rouge1, rouge2, rougeL and rougeLsum.
func (m *ROUGEMetric) Compute(predictions, references []string) (Report, error) {
	if err := checkInputs(predictions, references); err != nil {
		return nil, err
	}

	var r1, r2, rl, rlsum float64
	for i := range predictions {
		pred, ref := Tokenize(predictions[i]), Tokenize(references[i])
		r1 += rougeN(pred, ref, 1)
		r2 += rougeN(pred, ref, 2)
		rl += rougeL(pred, ref)
		rlsum += rougeLsum(predictions[i], references[i])
	}

	n := float64(len(predictions))
	return Report{
		"rouge1":    r1 / n,
		"rouge2":    r2 / n,
		"rougeL":    rl / n,
		"rougeLsum": rlsum / n,
	}, nil
}

func rougeN(pred, ref []string, n int) float64 {
	predGrams, refGrams := ngrams(pred, n), ngrams(ref, n)
	predTotal, refTotal := total(predGrams), total(refGrams)
	if predTotal == 0 || refTotal == 0 {
		return 0
	}

	hits := float64(overlap(predGrams, refGrams))
	return fMeasure(hits/float64(predTotal), hits/float64(refTotal))
}

func total(c map[string]int) int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}

func rougeL(pred, ref []string) float64 {
	if len(pred) == 0 || len(ref) == 0 {
		return 0
	}
	lcs := float64(len(lcsIndices(ref, pred)))
	return fMeasure(lcs/float64(len(pred)), lcs/float64(len(ref)))
}

// rougeLsum treats every line as a sentence and scores the union LCS of
// each reference sentence against all prediction sentences.
func rougeLsum(prediction, reference string) float64 {
	predSents, refSents := sentences(prediction), sentences(reference)

	var predAll, refAll []string
	for _, s := range predSents {
		predAll = append(predAll, s...)
	}
	for _, s := range refSents {
		refAll = append(refAll, s...)
	}
	if len(predAll) == 0 || len(refAll) == 0 {
		return 0
	}

	predCounts, refCounts := counts(predAll), counts(refAll)
	hits := 0
	for _, ref := range refSents {
		union := map[int]struct{}{}
		for _, pred := range predSents {
			for _, idx := range lcsIndices(ref, pred) {
				union[idx] = struct{}{}
			}
		}
		for idx := range len(ref) {
			if _, ok := union[idx]; !ok {
				continue
			}
			tok := ref[idx]
			if predCounts[tok] > 0 && refCounts[tok] > 0 {
				hits++
				predCounts[tok]--
				refCounts[tok]--
			}
		}
	}

	return fMeasure(float64(hits)/float64(len(predAll)), float64(hits)/float64(len(refAll)))
}

func sentences(text string) [][]string {
	var out [][]string
	for _, line := range strings.Split(text, "\n") {
		if toks := Tokenize(line); len(toks) > 0 {
			out = append(out, toks)
		}
	}
	return out
}

// lcsIndices returns the indices into ref of one longest common subsequence
// of ref and pred, in increasing order.
func lcsIndices(ref, pred []string) []int {
	rows, cols := len(ref), len(pred)
	table := make([][]int, rows+1)
	for i := range table {
		table[i] = make([]int, cols+1)
	}
	for i := 1; i <= rows; i++ {
		for j := 1; j <= cols; j++ {
			if ref[i-1] == pred[j-1] {
				table[i][j] = table[i-1][j-1] + 1
			} else {
				table[i][j] = max(table[i-1][j], table[i][j-1])
			}
		}
	}

	var idx []int
	for i, j := rows, cols; i > 0 && j > 0; {
		switch {
		case ref[i-1] == pred[j-1]:
			idx = append(idx, i-1)
			i--
			j--
		case table[i-1][j] >= table[i][j-1]:
			i--
		default:
			j--
		}
	}
	for l, r := 0, len(idx)-1; l < r; l, r = l+1, r-1 {
		idx[l], idx[r] = idx[r], idx[l]
	}
	return idx
}
