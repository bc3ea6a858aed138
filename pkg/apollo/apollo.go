package apollo

import (
	"context"
	"fmt"

	"github.com/agrolog/apollo/internal/engine"
	"github.com/agrolog/apollo/internal/engine/embedder"
	"github.com/agrolog/apollo/internal/model"
)

// Errors returned by Classify and New. Match them with errors.Is.
var (
	ErrTokenization      = model.ErrTokenization
	ErrInference         = model.ErrInference
	ErrDimensionMismatch = model.ErrDimensionMismatch
	ErrArtifactLoad      = model.ErrArtifactLoad
)

// Result is the outcome of classifying one message.
type Result struct {
	// Probability is P(operation) rounded to 2 decimals.
	Probability float64 `json:"probability"`
	// Prediction is 1 for an operation report, else 0. It is taken from the
	// unrounded probabilities.
	Prediction int `json:"prediction"`
	// Raw holds the unrounded [P(not operation), P(operation)].
	Raw [2]float64 `json:"-"`
}

// IsOperation reports whether the message was classified as an operation.
func (r Result) IsOperation() bool {
	return r.Prediction == model.ClassOperation
}

// Apollo is a message classifier. Safe for concurrent use.
type Apollo struct {
	engine *engine.Engine
}

// New loads the encoder, vocabulary and classifier weights. This is an
// expensive operation; create once, reuse across requests.
func New(opts ...Option) (*Apollo, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	p := resolvePaths(o)

	pooling := embedder.PoolAll
	if o.maskedPooling {
		pooling = embedder.PoolMasked
	}

	eng, err := engine.Open(engine.Config{
		ModelPath:           p.model,
		VocabPath:           p.vocab,
		TokenizerConfigPath: p.tokenizerConfig,
		ClassifierPath:      p.classifier,
		RuntimeLibPath:      p.runtimeLib,
		MaxSeqLen:           o.maxSeqLen,
		Pooling:             pooling,
		MaxConcurrent:       o.maxConcurrent,
	})
	if err != nil {
		return nil, fmt.Errorf("apollo: %w", err)
	}
	return &Apollo{engine: eng}, nil
}

// Classify classifies a single message. Any text is accepted; the empty
// string yields a well-formed result and over-long text is truncated.
func (a *Apollo) Classify(ctx context.Context, text string) (Result, error) {
	c, err := a.engine.Classify(ctx, text)
	if err != nil {
		return Result{}, err
	}
	return resultFrom(c), nil
}

// ClassifyBatch classifies several messages. Results are in input order and
// equal to calling Classify on each.
func (a *Apollo) ClassifyBatch(ctx context.Context, texts []string) ([]Result, error) {
	cs, err := a.engine.ClassifyBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	results := make([]Result, len(cs))
	for i, c := range cs {
		results[i] = resultFrom(c)
	}
	return results, nil
}

// Dim returns the embedding width the classifier was trained on.
func (a *Apollo) Dim() int {
	return a.engine.Dim()
}

// Close releases the ONNX session.
func (a *Apollo) Close() error {
	return a.engine.Close()
}

func resultFrom(c model.Classification) Result {
	return Result{
		Probability: c.Probability,
		Prediction:  c.Prediction,
		Raw:         c.Raw,
	}
}
