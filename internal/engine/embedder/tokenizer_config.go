package embedder

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/agrolog/apollo/internal/model"
)

const (
	// DefaultMaxSeqLen applies when neither the caller nor the tokenizer
	// config names a context length.
	DefaultMaxSeqLen = 512

	// HuggingFace writes a huge sentinel for "unbounded"; anything above
	// this is treated as unset.
	maxSaneSeqLen = 8192
)

// TokenizerOptions controls BERT BasicTokenizer normalization.
type TokenizerOptions struct {
	Lowercase    bool
	StripAccents bool
	MaxSeqLen    int
}

// DefaultTokenizerOptions mirrors BertTokenizer defaults.
func DefaultTokenizerOptions() TokenizerOptions {
	return TokenizerOptions{
		Lowercase:    true,
		StripAccents: true,
		MaxSeqLen:    DefaultMaxSeqLen,
	}
}

type tokenizerConfigFile struct {
	DoLowerCase    *bool    `json:"do_lower_case"`
	StripAccents   *bool    `json:"strip_accents"`
	ModelMaxLength *float64 `json:"model_max_length"`
}

// LoadTokenizerOptions reads a HuggingFace tokenizer_config.json. A missing
// file yields the defaults. strip_accents left null follows do_lower_case.
func LoadTokenizerOptions(path string) (TokenizerOptions, error) {
	opts := DefaultTokenizerOptions()
	if path == "" {
		return opts, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return opts, nil
	}
	if err != nil {
		return opts, fmt.Errorf("tokenizer config: %w: %w", model.ErrTokenization, err)
	}

	var cfg tokenizerConfigFile
	if err := json.Unmarshal(data, &cfg); err != nil {
		return opts, fmt.Errorf("tokenizer config: %w: %w", model.ErrTokenization, err)
	}

	if cfg.DoLowerCase != nil {
		opts.Lowercase = *cfg.DoLowerCase
	}
	opts.StripAccents = opts.Lowercase
	if cfg.StripAccents != nil {
		opts.StripAccents = *cfg.StripAccents
	}
	if cfg.ModelMaxLength != nil && *cfg.ModelMaxLength >= 2 && *cfg.ModelMaxLength <= maxSaneSeqLen {
		opts.MaxSeqLen = int(*cfg.ModelMaxLength)
	}
	return opts, nil
}
