package clustering

import "math"

// Tensor stores variable-length sequences in a rectangular array padded with NaN.
type Tensor struct {
	data    [][]float64
	lengths []int
	width   int
}

// NewTensor copies seqs into a tensor as wide as the longest sequence.
// Trailing NaN values in the input are treated as padding.
func NewTensor(seqs [][]float64) *Tensor {
	t := &Tensor{
		data:    make([][]float64, len(seqs)),
		lengths: make([]int, len(seqs)),
	}
	for i, s := range seqs {
		n := len(s)
		for n > 0 && math.IsNaN(s[n-1]) {
			n--
		}
		t.lengths[i] = n
		if n > t.width {
			t.width = n
		}
	}
	for i, s := range seqs {
		row := make([]float64, t.width)
		copy(row, s[:t.lengths[i]])
		for j := t.lengths[i]; j < t.width; j++ {
			row[j] = math.NaN()
		}
		t.data[i] = row
	}
	return t
}

// Len returns the number of sequences.
func (t *Tensor) Len() int {
	return len(t.data)
}

// Width returns the padded sequence length.
func (t *Tensor) Width() int {
	return t.width
}

// Row returns sequence i without its padding.
func (t *Tensor) Row(i int) []float64 {
	return t.data[i][:t.lengths[i]]
}

// Padded returns sequence i including NaN padding.
func (t *Tensor) Padded(i int) []float64 {
	return t.data[i]
}

// SeqLen returns the true length of sequence i.
func (t *Tensor) SeqLen(i int) int {
	return t.lengths[i]
}
