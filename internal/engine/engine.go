package engine

import (
	"context"
	"fmt"
	"math"

	"github.com/agrolog/apollo/internal/engine/embedder"
	"github.com/agrolog/apollo/internal/model"
)

// Head maps a sentence embedding to a two-class distribution.
type Head interface {
	Probabilities(vec []float32) (model.ClassProbabilities, error)
	Dim() int
}

// Engine orchestrates the embed → classify pipeline. Its components are
// read-only after New, so one Engine serves all goroutines.
type Engine struct {
	embedder embedder.Embedder
	head     Head
	sem      chan struct{}
	batched  bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithConcurrencyLimit bounds the number of simultaneous inference calls.
// n <= 0 means unbounded.
func WithConcurrencyLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.sem = make(chan struct{}, n)
		}
	}
}

// WithBatchInference lets ClassifyBatch run one padded inference call for
// the whole batch. Only results under masked pooling are independent of
// batch composition, so Open enables it for that mode alone.
func WithBatchInference() Option {
	return func(e *Engine) { e.batched = true }
}

// New creates an Engine. The embedding dimension must equal the head's
// feature count; a mismatch is reported here rather than per request.
func New(emb embedder.Embedder, head Head, opts ...Option) (*Engine, error) {
	if emb.Dim() != head.Dim() {
		return nil, fmt.Errorf("engine: %w", &model.DimensionMismatchError{Got: emb.Dim(), Want: head.Dim()})
	}
	e := &Engine{embedder: emb, head: head}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Dim returns the embedding dimension shared by the encoder and the head.
func (e *Engine) Dim() int {
	return e.head.Dim()
}

// Classify runs tokenize → embed → classify for a single text. Any text is
// accepted, including the empty string; over-long text is truncated by the
// tokenizer. No retries, no fallback values.
func (e *Engine) Classify(ctx context.Context, text string) (model.Classification, error) {
	release, err := e.acquire(ctx)
	if err != nil {
		return model.Classification{}, err
	}
	defer release()

	vec, err := e.embedder.Embed(text)
	if err != nil {
		return model.Classification{}, err
	}
	return e.classifyVector(vec)
}

// ClassifyBatch classifies texts in order. The first failure aborts the
// whole batch.
func (e *Engine) ClassifyBatch(ctx context.Context, texts []string) ([]model.Classification, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	if !e.batched {
		results := make([]model.Classification, 0, len(texts))
		for i, text := range texts {
			c, err := e.Classify(ctx, text)
			if err != nil {
				return nil, fmt.Errorf("engine: text %d: %w", i, err)
			}
			results = append(results, c)
		}
		return results, nil
	}

	release, err := e.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	vecs, err := e.embedder.EmbedBatch(texts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("engine: %w: %d embeddings for %d texts", model.ErrInference, len(vecs), len(texts))
	}
	results := make([]model.Classification, len(vecs))
	for i, vec := range vecs {
		c, err := e.classifyVector(vec)
		if err != nil {
			return nil, fmt.Errorf("engine: text %d: %w", i, err)
		}
		results[i] = c
	}
	return results, nil
}

// Close releases the encoder session.
func (e *Engine) Close() error {
	return e.embedder.Close()
}

func (e *Engine) classifyVector(vec []float32) (model.Classification, error) {
	probs, err := e.head.Probabilities(vec)
	if err != nil {
		return model.Classification{}, fmt.Errorf("engine: %w", err)
	}
	for i, p := range probs {
		if math.IsNaN(p) || p < 0 || p > 1 {
			return model.Classification{}, fmt.Errorf("engine: %w: class %d probability %v", model.ErrInference, i, p)
		}
	}
	return model.NewClassification(probs), nil
}

// acquire takes an inference slot when a concurrency limit is set.
func (e *Engine) acquire(ctx context.Context) (func(), error) {
	if e.sem == nil {
		return func() {}, nil
	}
	select {
	case e.sem <- struct{}{}:
		return func() { <-e.sem }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
