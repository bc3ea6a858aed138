package apollo

import "path/filepath"

type options struct {
	modelDir            string
	modelPath           string
	vocabPath           string
	classifierPath      string
	tokenizerConfigPath string
	runtimeLibPath      string
	maxSeqLen           int
	maskedPooling       bool
	maxConcurrent       int
}

// Option configures an Apollo instance.
type Option func(*options)

// WithModelDir sets the directory containing the artifacts.
// Expects: model.onnx, vocab.txt, logreg.safetensors and optionally
// tokenizer_config.json and libonnxruntime.so.
func WithModelDir(dir string) Option {
	return func(o *options) {
		o.modelDir = dir
	}
}

// WithModelPaths sets explicit paths for the encoder, vocabulary and
// classifier weights. The classifier may be .safetensors or .json.
func WithModelPaths(model, vocab, classifier string) Option {
	return func(o *options) {
		o.modelPath = model
		o.vocabPath = vocab
		o.classifierPath = classifier
	}
}

// WithTokenizerConfig sets the path of tokenizer_config.json.
func WithTokenizerConfig(path string) Option {
	return func(o *options) {
		o.tokenizerConfigPath = path
	}
}

// WithMaxSeqLen caps the token sequence length, special tokens included.
// Longer input is truncated. Default: the tokenizer config, else 512.
func WithMaxSeqLen(n int) Option {
	return func(o *options) {
		o.maxSeqLen = n
	}
}

// WithMaskedPooling averages only real tokens. By default padding positions
// are averaged in as well, which is what the shipped classifier was trained on.
func WithMaskedPooling() Option {
	return func(o *options) {
		o.maskedPooling = true
	}
}

// WithRuntimeLibrary sets the path of the ONNX Runtime shared library.
func WithRuntimeLibrary(path string) Option {
	return func(o *options) {
		o.runtimeLibPath = path
	}
}

// WithMaxConcurrent bounds simultaneous inference calls. 0 means unbounded.
func WithMaxConcurrent(n int) Option {
	return func(o *options) {
		o.maxConcurrent = n
	}
}

type paths struct {
	model, vocab, classifier, tokenizerConfig, runtimeLib string
}

// resolvePaths determines artifact paths from the configured options.
// Explicit paths take precedence over modelDir.
func resolvePaths(o options) paths {
	dir := o.modelDir
	if dir == "" {
		dir = "models"
	}
	p := paths{
		model:           filepath.Join(dir, "model.onnx"),
		vocab:           filepath.Join(dir, "vocab.txt"),
		classifier:      filepath.Join(dir, "logreg.safetensors"),
		tokenizerConfig: filepath.Join(dir, "tokenizer_config.json"),
		runtimeLib:      filepath.Join(dir, "libonnxruntime.so"),
	}
	if o.modelPath != "" {
		p.model, p.vocab, p.classifier = o.modelPath, o.vocabPath, o.classifierPath
	}
	if o.tokenizerConfigPath != "" {
		p.tokenizerConfig = o.tokenizerConfigPath
	}
	if o.runtimeLibPath != "" {
		p.runtimeLib = o.runtimeLibPath
	}
	return p
}
