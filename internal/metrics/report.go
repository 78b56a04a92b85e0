package metrics

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/vivqa/internal/encoder"
	"github.com/born-ml/vivqa/internal/generate"
)

// Special token ids removed from references, as produced by the encoders.
const (
	bosID = encoder.BOSID
	padID = encoder.PadID
	eosID = encoder.EOSID
)

// Scores are the metrics of one batch (or the average over an epoch).
type Scores struct {
	Loss   float64
	RougeL float64
	BLEU   [4]float64 // BLEU-1 .. BLEU-4
}

// Hypothesis cuts predicted ids at the first EOS (exclusive).
func Hypothesis(ids []int32) []int32 {
	return generate.TrimAtEOS(ids, eosID)
}

// Reference strips BOS, PAD and EOS from answer ids.
func Reference(ids []int32) []int32 {
	out := make([]int32, 0, len(ids))
	for _, id := range ids {
		if id != bosID && id != padID && id != eosID {
			out = append(out, id)
		}
	}
	return out
}

// Score computes ROUGE-L and BLEU-1..4 of predicted ids against answer ids.
func Score(answerIDs, predictedIDs [][]int32, loss float64) Scores {
	refs := make([][]int32, len(answerIDs))
	hyps := make([][]int32, len(predictedIDs))
	for i := range answerIDs {
		refs[i] = Reference(answerIDs[i])
	}
	for i := range predictedIDs {
		hyps[i] = Hypothesis(predictedIDs[i])
	}

	s := Scores{Loss: loss, RougeL: MeanRougeL(refs, hyps)}
	for n := 1; n <= 4; n++ {
		s.BLEU[n-1] = CorpusBLEU(refs, hyps, n)
	}
	return s
}

// Accumulator averages batch scores over an epoch.
type Accumulator struct {
	loss, rouge []float64
	bleu        [4][]float64
}

// Add records one batch.
func (a *Accumulator) Add(s Scores) {
	a.loss = append(a.loss, s.Loss)
	a.rouge = append(a.rouge, s.RougeL)
	for i, b := range s.BLEU {
		a.bleu[i] = append(a.bleu[i], b)
	}
}

// Batches returns the number of recorded batches.
func (a *Accumulator) Batches() int {
	return len(a.loss)
}

// Mean returns the per-batch average of every metric. With no batches all
// metrics are 0.
func (a *Accumulator) Mean() Scores {
	n := float64(len(a.loss))
	if n == 0 {
		return Scores{}
	}
	s := Scores{
		Loss:   floats.Sum(a.loss) / n,
		RougeL: floats.Sum(a.rouge) / n,
	}
	for i := range s.BLEU {
		s.BLEU[i] = floats.Sum(a.bleu[i]) / n
	}
	return s
}

// Row is one labelled line of a report (e.g. "epoch 3 train").
type Row struct {
	Label  string
	Scores Scores
}

// WriteReport renders rows as a table.
func WriteReport(w io.Writer, rows []Row) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Split", "Loss", "ROUGE-L", "BLEU-1", "BLEU-2", "BLEU-3", "BLEU-4"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	for _, r := range rows {
		s := r.Scores
		table.Append([]string{
			r.Label,
			fmt.Sprintf("%.4f", s.Loss),
			fmt.Sprintf("%.4f", s.RougeL),
			fmt.Sprintf("%.4f", s.BLEU[0]),
			fmt.Sprintf("%.4f", s.BLEU[1]),
			fmt.Sprintf("%.4f", s.BLEU[2]),
			fmt.Sprintf("%.4f", s.BLEU[3]),
		})
	}
	table.Render()
}
