// Package metrics scores generated answers against references.
//
// All metrics work on token id sequences: hypotheses are the greedy
// predictions cut at the first EOS, references are the answer ids with the
// special tokens removed.
package metrics

import (
	"fmt"
	"math"
	"strings"
)

// SmoothingEpsilon is added to zero n-gram match counts (NLTK "method1").
const SmoothingEpsilon = 0.1

// CorpusBLEU computes corpus-level BLEU-n with uniform weights 1/n over the
// 1..n-gram precisions, one reference per hypothesis.
//
// Precisions pool clipped n-gram matches over the whole corpus. A zero
// numerator is smoothed to SmoothingEpsilon. The brevity penalty is
// exp(1 - r/c) when the total hypothesis length c is below the total
// reference length r. The score is 0 when nothing matches at the unigram
// level or the hypotheses are empty.
func CorpusBLEU(references, hypotheses [][]int32, n int) float64 {
	if len(references) != len(hypotheses) {
		panic(fmt.Sprintf("metrics.CorpusBLEU: %d references for %d hypotheses", len(references), len(hypotheses)))
	}
	if n <= 0 {
		panic(fmt.Sprintf("metrics.CorpusBLEU: n must be positive, got %d", n))
	}

	matches := make([]int, n)
	totals := make([]int, n)
	hypLen, refLen := 0, 0
	for i, hyp := range hypotheses {
		ref := references[i]
		hypLen += len(hyp)
		refLen += len(ref)
		for order := 1; order <= n; order++ {
			m, t := clippedMatches(ref, hyp, order)
			matches[order-1] += m
			totals[order-1] += t
		}
	}

	if hypLen == 0 || matches[0] == 0 {
		return 0
	}

	var logSum float64
	for i := range n {
		num := float64(matches[i])
		if num == 0 {
			num = SmoothingEpsilon
		}
		logSum += math.Log(num / float64(max(totals[i], 1)))
	}
	return brevityPenalty(refLen, hypLen) * math.Exp(logSum/float64(n))
}

// brevityPenalty implements the BLEU length penalty.
func brevityPenalty(refLen, hypLen int) float64 {
	if hypLen > refLen {
		return 1
	}
	return math.Exp(1 - float64(refLen)/float64(hypLen))
}

// clippedMatches returns the number of hypothesis n-grams also present in
// the reference (each reference n-gram matched at most as often as it
// occurs) and the number of hypothesis n-grams.
func clippedMatches(ref, hyp []int32, n int) (matches, total int) {
	if len(hyp) < n {
		return 0, 0
	}
	refCounts := ngramCounts(ref, n)
	for gram, count := range ngramCounts(hyp, n) {
		matches += min(count, refCounts[gram])
		total += count
	}
	return matches, total
}

func ngramCounts(tokens []int32, n int) map[string]int {
	counts := make(map[string]int)
	for i := 0; i+n <= len(tokens); i++ {
		counts[ngramKey(tokens[i:i+n])]++
	}
	return counts
}

func ngramKey(gram []int32) string {
	var b strings.Builder
	for i, id := range gram {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprint(&b, id)
	}
	return b.String()
}
