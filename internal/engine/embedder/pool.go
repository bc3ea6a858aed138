package embedder

import "fmt"

// Pooling selects how per-token hidden states collapse into one vector.
type Pooling int

const (
	// PoolAll averages over every position of the padded sequence,
	// including [PAD] positions. This reproduces the deployed classifier's
	// training-time embeddings and is the default.
	PoolAll Pooling = iota
	// PoolMasked averages over positions whose attention mask is 1.
	PoolMasked
)

// ParsePooling maps "all" / "masked" to a Pooling. Empty means PoolAll.
func ParsePooling(s string) (Pooling, error) {
	switch s {
	case "", "all":
		return PoolAll, nil
	case "masked":
		return PoolMasked, nil
	default:
		return PoolAll, fmt.Errorf("unknown pooling %q (want \"all\" or \"masked\")", s)
	}
}

func (p Pooling) String() string {
	if p == PoolMasked {
		return "masked"
	}
	return "all"
}

// pool dispatches to the configured pooling strategy.
func (p Pooling) pool(hidden []float32, mask []int64, batchSize, seqLen, dim int64) []float32 {
	if p == PoolMasked {
		return maskedMeanPool(hidden, mask, batchSize, seqLen, dim)
	}
	return meanPool(hidden, batchSize, seqLen, dim)
}

// meanPool computes the plain arithmetic mean over the sequence dimension.
//
// hidden: flat [batchSize * seqLen * dim] float32 (per-token hidden states)
//
// Returns flat [batchSize * dim] float32 (one pooled vector per sample).
func meanPool(hidden []float32, batchSize, seqLen, dim int64) []float32 {
	out := make([]float32, batchSize*dim)
	if seqLen == 0 {
		return out
	}

	for b := int64(0); b < batchSize; b++ {
		hiddenOff := b * seqLen * dim
		outOff := b * dim

		for s := int64(0); s < seqLen; s++ {
			tokOff := hiddenOff + s*dim
			for d := int64(0); d < dim; d++ {
				out[outOff+d] += hidden[tokOff+d]
			}
		}

		inv := 1.0 / float32(seqLen)
		for d := int64(0); d < dim; d++ {
			out[outOff+d] *= inv
		}
	}

	return out
}

// maskedMeanPool computes attention-mask-weighted mean pooling over the
// sequence dimension of transformer hidden states.
//
// mask: flat [batchSize * seqLen] int64 (1 for real tokens, 0 for padding)
func maskedMeanPool(hidden []float32, mask []int64, batchSize, seqLen, dim int64) []float32 {
	out := make([]float32, batchSize*dim)

	for b := int64(0); b < batchSize; b++ {
		maskOff := b * seqLen
		hiddenOff := b * seqLen * dim
		outOff := b * dim

		var count float32
		for s := int64(0); s < seqLen; s++ {
			if mask[maskOff+s] == 1 {
				count++
			}
		}
		if count == 0 {
			continue
		}

		for s := int64(0); s < seqLen; s++ {
			if mask[maskOff+s] != 1 {
				continue
			}
			tokOff := hiddenOff + s*dim
			for d := int64(0); d < dim; d++ {
				out[outOff+d] += hidden[tokOff+d]
			}
		}

		inv := 1.0 / count
		for d := int64(0); d < dim; d++ {
			out[outOff+d] *= inv
		}
	}

	return out
}
