package metrics

import "fmt"

// RougeL returns the ROUGE-L F-measure of one hypothesis against one
// reference: the harmonic mean of LCS/len(hyp) and LCS/len(ref).
func RougeL(reference, hypothesis []int32) float64 {
	if len(reference) == 0 || len(hypothesis) == 0 {
		return 0
	}
	lcs := float64(lcsLength(reference, hypothesis))
	if lcs == 0 {
		return 0
	}
	precision := lcs / float64(len(hypothesis))
	recall := lcs / float64(len(reference))
	return 2 * precision * recall / (precision + recall)
}

// MeanRougeL averages RougeL over aligned pairs.
func MeanRougeL(references, hypotheses [][]int32) float64 {
	if len(references) != len(hypotheses) {
		panic(fmt.Sprintf("metrics.MeanRougeL: %d references for %d hypotheses", len(references), len(hypotheses)))
	}
	if len(references) == 0 {
		return 0
	}
	var total float64
	for i := range references {
		total += RougeL(references[i], hypotheses[i])
	}
	return total / float64(len(references))
}

// lcsLength computes the longest common subsequence length with a rolling row.
func lcsLength(a, b []int32) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				cur[j] = prev[j-1] + 1
			case prev[j] >= cur[j-1]:
				cur[j] = prev[j]
			default:
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
