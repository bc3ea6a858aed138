package embedder

import (
	"fmt"
	"path/filepath"

	"github.com/agrolog/apollo/internal/model"
)

// Embedder produces sentence embeddings from text.
type Embedder interface {
	Embed(text string) ([]float32, error)
	EmbedBatch(texts []string) ([][]float32, error)
	Dim() int
	Close() error
}

// Config names the artifacts an ONNXEmbedder loads.
type Config struct {
	ModelPath           string // encoder, e.g. models/model.onnx
	VocabPath           string // WordPiece vocab.txt
	TokenizerConfigPath string // optional tokenizer_config.json
	RuntimeLibPath      string // libonnxruntime.so; defaults to the model's directory
	MaxSeqLen           int    // 0 takes the tokenizer config value
	Pooling             Pooling
}

// encoder turns a tokenized batch into per-token hidden states, flat
// [batchSize * seqLen * hiddenSize].
type encoder interface {
	infer(batch tokenized) ([]float32, error)
	hiddenSize() int64
	close() error
}

// ONNXEmbedder wraps the ONNX runtime and tokenizer for local embedding
// inference. All fields are read-only after New.
type ONNXEmbedder struct {
	enc     encoder
	tok     *tokenizer
	pooling Pooling
}

// New creates an ONNXEmbedder by loading the tokenizer and the encoder. The
// full pipeline is: tokenize → ONNX inference → mean pool. Errors match
// model.ErrArtifactLoad.
func New(cfg Config) (*ONNXEmbedder, error) {
	tokOpts, err := LoadTokenizerOptions(cfg.TokenizerConfigPath)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w: %w", model.ErrArtifactLoad, err)
	}
	if cfg.MaxSeqLen > 0 {
		tokOpts.MaxSeqLen = cfg.MaxSeqLen
	}

	tok, err := newTokenizer(cfg.VocabPath, tokOpts)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w: %w", model.ErrArtifactLoad, err)
	}

	libPath := cfg.RuntimeLibPath
	if libPath == "" {
		libPath = filepath.Join(filepath.Dir(cfg.ModelPath), "libonnxruntime.so")
	}
	sess, err := newONNXSession(cfg.ModelPath, libPath)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w: %w", model.ErrArtifactLoad, err)
	}

	return &ONNXEmbedder{enc: sess, tok: tok, pooling: cfg.Pooling}, nil
}

// Dim returns the embedding dimensionality (the encoder's hidden size).
func (e *ONNXEmbedder) Dim() int {
	return int(e.enc.hiddenSize())
}

// MaxSeqLen returns the context length inputs are truncated to.
func (e *ONNXEmbedder) MaxSeqLen() int {
	return e.tok.opts.MaxSeqLen
}

// Embed produces a single embedding vector for the given text. A single
// text is never padded, so both pooling modes agree here.
func (e *ONNXEmbedder) Embed(text string) ([]float32, error) {
	vecs, err := e.EmbedBatch([]string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch produces embedding vectors for multiple texts in one inference
// call. Shorter texts are padded to the longest; under PoolAll the padding
// positions take part in the mean.
func (e *ONNXEmbedder) EmbedBatch(texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	batch := e.tok.tokenizeBatch(texts)

	hidden, err := e.enc.infer(batch)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}

	dim := e.enc.hiddenSize()
	pooled := e.pooling.pool(hidden, batch.attentionMask, batch.batchSize, batch.seqLen, dim)

	results := make([][]float32, batch.batchSize)
	for i := int64(0); i < batch.batchSize; i++ {
		results[i] = pooled[i*dim : (i+1)*dim : (i+1)*dim]
	}
	return results, nil
}

// Close releases ONNX Runtime resources.
func (e *ONNXEmbedder) Close() error {
	if e.enc != nil {
		return e.enc.close()
	}
	return nil
}
