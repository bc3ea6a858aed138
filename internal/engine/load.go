package engine

import (
	"fmt"

	"github.com/agrolog/apollo/internal/engine/classifier"
	"github.com/agrolog/apollo/internal/engine/embedder"
)

// Config names the startup artifacts and inference settings.
type Config struct {
	ModelPath           string
	VocabPath           string
	TokenizerConfigPath string
	ClassifierPath      string
	RuntimeLibPath      string
	MaxSeqLen           int
	Pooling             embedder.Pooling
	MaxConcurrent       int
}

// Open loads every artifact named by cfg and wires them into an Engine.
// Any failure is returned before the caller starts serving.
func Open(cfg Config) (*Engine, error) {
	head, err := classifier.Load(cfg.ClassifierPath)
	if err != nil {
		return nil, err
	}

	emb, err := embedder.New(embedder.Config{
		ModelPath:           cfg.ModelPath,
		VocabPath:           cfg.VocabPath,
		TokenizerConfigPath: cfg.TokenizerConfigPath,
		RuntimeLibPath:      cfg.RuntimeLibPath,
		MaxSeqLen:           cfg.MaxSeqLen,
		Pooling:             cfg.Pooling,
	})
	if err != nil {
		return nil, err
	}

	opts := []Option{WithConcurrencyLimit(cfg.MaxConcurrent)}
	if cfg.Pooling == embedder.PoolMasked {
		opts = append(opts, WithBatchInference())
	}

	eng, err := New(emb, head, opts...)
	if err != nil {
		emb.Close()
		return nil, fmt.Errorf("%w (encoder %s, classifier %s)", err, cfg.ModelPath, cfg.ClassifierPath)
	}
	return eng, nil
}
