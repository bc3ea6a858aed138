package classifier

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/agrolog/apollo/internal/model"
)

// Tensor names in logreg.safetensors.
const (
	coefName      = "coef"
	interceptName = "intercept"
)

// Head is a pre-trained logistic-regression classifier over sentence
// embeddings. It is immutable after loading and safe for concurrent use.
type Head struct {
	coef        [][]float64 // [rows][dim], rows is 1 or 2
	intercept   []float64   // [rows]
	dim         int
	multinomial bool
}

// Load reads classifier weights, choosing the format by file extension:
// .safetensors or .json. Errors match model.ErrArtifactLoad.
func Load(path string) (*Head, error) {
	var (
		h   *Head
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".safetensors":
		h, err = loadSafetensors(path)
	case ".json":
		h, err = loadJSON(path)
	default:
		err = fmt.Errorf("unsupported weights format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("classifier: %w: %w", model.ErrArtifactLoad, err)
	}
	return h, nil
}

func loadSafetensors(path string) (*Head, error) {
	tensors, metadata, err := readSafetensors(path)
	if err != nil {
		return nil, err
	}

	coef, ok := tensors[coefName]
	if !ok {
		return nil, fmt.Errorf("tensor %q not found in header", coefName)
	}
	intercept, ok := tensors[interceptName]
	if !ok {
		return nil, fmt.Errorf("tensor %q not found in header", interceptName)
	}
	if len(coef.shape) != 2 {
		return nil, fmt.Errorf("expected 2D %q tensor, got shape %v", coefName, coef.shape)
	}
	if len(intercept.shape) != 1 {
		return nil, fmt.Errorf("expected 1D %q tensor, got shape %v", interceptName, intercept.shape)
	}

	rows, dim := coef.shape[0], coef.shape[1]
	matrix := make([][]float64, rows)
	for i := range matrix {
		matrix[i] = coef.data[i*dim : (i+1)*dim : (i+1)*dim]
	}
	return newHead(matrix, intercept.data, metadata["multi_class"] == "multinomial")
}

// weightsFile is the JSON rendition of sklearn's coef_ and intercept_.
type weightsFile struct {
	Coef       [][]float64 `json:"coef"`
	Intercept  []float64   `json:"intercept"`
	MultiClass string      `json:"multi_class,omitempty"`
}

func loadJSON(path string) (*Head, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var w weightsFile
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("failed to parse weights: %w", err)
	}
	return newHead(w.Coef, w.Intercept, w.MultiClass == "multinomial")
}

// New builds a Head from in-memory weights. coef has one row (binary
// logistic) or two rows (one per class); intercept has one value per row.
func New(coef [][]float64, intercept []float64) (*Head, error) {
	h, err := newHead(coef, intercept, false)
	if err != nil {
		return nil, fmt.Errorf("classifier: %w: %w", model.ErrArtifactLoad, err)
	}
	return h, nil
}

func newHead(coef [][]float64, intercept []float64, multinomial bool) (*Head, error) {
	if len(coef) != 1 && len(coef) != 2 {
		return nil, fmt.Errorf("expected 1 or 2 coefficient rows, got %d", len(coef))
	}
	if len(intercept) != len(coef) {
		return nil, fmt.Errorf("intercept has %d values for %d coefficient rows", len(intercept), len(coef))
	}
	dim := len(coef[0])
	if dim == 0 {
		return nil, fmt.Errorf("coefficient rows are empty")
	}
	for i, row := range coef {
		if len(row) != dim {
			return nil, fmt.Errorf("coefficient row %d has %d values, want %d", i, len(row), dim)
		}
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("coefficient row %d contains a non-finite value", i)
			}
		}
	}
	return &Head{coef: coef, intercept: intercept, dim: dim, multinomial: multinomial}, nil
}

// Dim returns the feature count the head was trained on.
func (h *Head) Dim() int {
	return h.dim
}

// Probabilities returns the two-class distribution for vec. A vector of the
// wrong length yields a *model.DimensionMismatchError; it is never padded
// or truncated.
func (h *Head) Probabilities(vec []float32) (model.ClassProbabilities, error) {
	if len(vec) != h.dim {
		return model.ClassProbabilities{}, &model.DimensionMismatchError{Got: len(vec), Want: h.dim}
	}

	if len(h.coef) == 1 {
		z := h.decision(0, vec)
		if h.multinomial {
			// sklearn's multinomial binary case: softmax over [-z, z].
			return softmax(-z, z), nil
		}
		p := sigmoid(z)
		return model.ClassProbabilities{1 - p, p}, nil
	}
	return softmax(h.decision(0, vec), h.decision(1, vec)), nil
}

func (h *Head) decision(row int, vec []float32) float64 {
	sum := h.intercept[row]
	for j, w := range h.coef[row] {
		sum += w * float64(vec[j])
	}
	return sum
}

// sigmoid is written in the overflow-free form for both signs of z.
func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

func softmax(z0, z1 float64) model.ClassProbabilities {
	m := math.Max(z0, z1)
	e0, e1 := math.Exp(z0-m), math.Exp(z1-m)
	s := e0 + e1
	return model.ClassProbabilities{e0 / s, e1 / s}
}
