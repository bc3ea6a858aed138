package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Version is the current Apollo release version.
const Version = "0.4.0"

// Config holds all Apollo configuration.
type Config struct {
	Server ServerConfig
	Engine EngineConfig
	Log    LogConfig
	Audit  AuditConfig
	LLM    LLMConfig
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host            string
	Port            int
	GinMode         string        // "release", "debug", "test"
	RequestTimeout  time.Duration // per-request deadline; 0 disables
	ShutdownTimeout time.Duration
}

// Addr returns host:port for the listener.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// EngineConfig holds classification artifact paths and inference settings.
type EngineConfig struct {
	ModelDir            string
	ModelPath           string
	VocabPath           string
	TokenizerConfigPath string
	ClassifierPath      string
	RuntimeLibPath      string
	MaxSeqLen           int    // 0 takes tokenizer_config.json or 512
	Pooling             string // "all" or "masked"
	MaxConcurrent       int    // 0 is unbounded
}

// LogConfig holds slog settings and the optional rotating log file.
type LogConfig struct {
	Level      string
	Format     string // "json" or "text"
	File       string
	MaxSizeMB  int
	MaxBackups int
}

// AuditConfig holds the classification audit trail settings. With neither
// File nor WebhookURL set the trail is disabled.
type AuditConfig struct {
	File         string
	MaxSizeMB    int
	MaxBackups   int
	BufferSize   int
	Detail       string // "full" or "minimal"
	WebhookURL   string
	WebhookToken string
	WebhookBatch int
	WebhookFlush time.Duration
}

// Enabled reports whether any audit sink is configured.
func (a AuditConfig) Enabled() bool {
	return a.File != "" || a.WebhookURL != ""
}

// LLMConfig holds the OpenAI-compatible endpoint used by the extraction
// routes. An empty APIKey disables them.
type LLMConfig struct {
	APIKey           string
	Model            string
	BaseURL          string
	TranscriberModel string
	Timeout          time.Duration
	MaxRetries       int
}

// Enabled reports whether the extraction routes can call out.
func (c LLMConfig) Enabled() bool {
	return c.APIKey != ""
}

// LoadDotenv loads a .env file into the environment if one exists. Variables
// already set win over the file.
func LoadDotenv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// Load reads configuration from environment variables with sensible defaults.
// Artifact paths default to files inside APOLLO_MODEL_DIR.
func Load() Config {
	modelDir := getenv("APOLLO_MODEL_DIR", "models")
	inDir := func(name string) string { return filepath.Join(modelDir, name) }

	return Config{
		Server: ServerConfig{
			Host:            getenv("APOLLO_HOST", "0.0.0.0"),
			Port:            getenvInt("APOLLO_PORT", 8000),
			GinMode:         getenv("APOLLO_GIN_MODE", "release"),
			RequestTimeout:  getenvDuration("APOLLO_REQUEST_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getenvDuration("APOLLO_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Engine: EngineConfig{
			ModelDir:            modelDir,
			ModelPath:           getenv("APOLLO_MODEL_PATH", inDir("model.onnx")),
			VocabPath:           getenv("APOLLO_VOCAB_PATH", inDir("vocab.txt")),
			TokenizerConfigPath: getenv("APOLLO_TOKENIZER_CONFIG_PATH", inDir("tokenizer_config.json")),
			ClassifierPath:      getenv("APOLLO_CLASSIFIER_PATH", inDir("logreg.safetensors")),
			RuntimeLibPath:      getenv("APOLLO_ORT_LIB", inDir("libonnxruntime.so")),
			MaxSeqLen:           getenvInt("APOLLO_MAX_SEQ_LEN", 0),
			Pooling:             getenv("APOLLO_POOLING", "all"),
			MaxConcurrent:       getenvInt("APOLLO_MAX_CONCURRENT_INFERENCES", 0),
		},
		Log: LogConfig{
			Level:      getenv("APOLLO_LOG_LEVEL", "info"),
			Format:     getenv("APOLLO_LOG_FORMAT", "json"),
			File:       os.Getenv("APOLLO_LOG_FILE"),
			MaxSizeMB:  getenvInt("APOLLO_LOG_MAX_SIZE_MB", 100),
			MaxBackups: getenvInt("APOLLO_LOG_MAX_BACKUPS", 5),
		},
		Audit: AuditConfig{
			File:         os.Getenv("APOLLO_AUDIT_FILE"),
			MaxSizeMB:    getenvInt("APOLLO_AUDIT_MAX_SIZE_MB", 100),
			MaxBackups:   getenvInt("APOLLO_AUDIT_MAX_BACKUPS", 10),
			BufferSize:   getenvInt("APOLLO_AUDIT_BUFFER", 1024),
			Detail:       getenv("APOLLO_AUDIT_DETAIL", "full"),
			WebhookURL:   os.Getenv("APOLLO_AUDIT_WEBHOOK_URL"),
			WebhookToken: os.Getenv("APOLLO_AUDIT_WEBHOOK_TOKEN"),
			WebhookBatch: getenvInt("APOLLO_AUDIT_WEBHOOK_BATCH", 50),
			WebhookFlush: getenvDuration("APOLLO_AUDIT_WEBHOOK_FLUSH", 5*time.Second),
		},
		LLM: LLMConfig{
			APIKey:           os.Getenv("OPENAI_API_KEY"),
			Model:            getenv("OPENAI_MODEL", "gpt-4o-mini"),
			BaseURL:          strings.TrimRight(getenv("OPENAI_BASE_URL", "https://api.openai.com/v1"), "/"),
			TranscriberModel: getenv("TRANSCRIBER_MODEL", "whisper-1"),
			Timeout:          getenvDuration("OPENAI_TIMEOUT", 60*time.Second),
			MaxRetries:       getenvInt("OPENAI_MAX_RETRIES", 3),
		},
	}
}

// Validate checks the configuration for invalid values. It returns all
// problems joined, not just the first.
func (c Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range (APOLLO_PORT)", c.Server.Port))
	}
	switch c.Server.GinMode {
	case "release", "debug", "test":
	default:
		errs = append(errs, fmt.Errorf("gin mode %q must be release, debug or test", c.Server.GinMode))
	}
	if c.Server.RequestTimeout < 0 {
		errs = append(errs, fmt.Errorf("request timeout must be >= 0, got %v", c.Server.RequestTimeout))
	}

	for _, f := range []struct{ name, path string }{
		{"model", c.Engine.ModelPath},
		{"vocab", c.Engine.VocabPath},
		{"classifier", c.Engine.ClassifierPath},
	} {
		if _, err := os.Stat(f.path); err != nil {
			errs = append(errs, fmt.Errorf("%s file: %w", f.name, err))
		}
	}
	if c.Engine.MaxSeqLen != 0 && c.Engine.MaxSeqLen < 2 {
		errs = append(errs, fmt.Errorf("max sequence length must be >= 2, got %d", c.Engine.MaxSeqLen))
	}
	switch c.Engine.Pooling {
	case "", "all", "masked":
	default:
		errs = append(errs, fmt.Errorf("pooling %q must be all or masked", c.Engine.Pooling))
	}
	if c.Engine.MaxConcurrent < 0 {
		errs = append(errs, fmt.Errorf("max concurrent inferences must be >= 0, got %d", c.Engine.MaxConcurrent))
	}

	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log format %q must be json or text", c.Log.Format))
	}
	if c.Log.File != "" && c.Log.MaxSizeMB <= 0 {
		errs = append(errs, fmt.Errorf("log max size must be > 0, got %d", c.Log.MaxSizeMB))
	}
	if c.Audit.File != "" && c.Audit.MaxSizeMB <= 0 {
		errs = append(errs, fmt.Errorf("audit max size must be > 0, got %d", c.Audit.MaxSizeMB))
	}
	if c.Audit.Enabled() && c.Audit.BufferSize <= 0 {
		errs = append(errs, fmt.Errorf("audit buffer must be > 0, got %d", c.Audit.BufferSize))
	}
	switch strings.ToLower(c.Audit.Detail) {
	case "", "full", "minimal":
	default:
		errs = append(errs, fmt.Errorf("audit detail %q must be full or minimal", c.Audit.Detail))
	}
	if c.Audit.WebhookURL != "" && !isHTTPURL(c.Audit.WebhookURL) {
		errs = append(errs, fmt.Errorf("audit webhook %q must be an http(s) URL", c.Audit.WebhookURL))
	}
	if c.Audit.WebhookURL != "" && c.Audit.WebhookBatch <= 0 {
		errs = append(errs, fmt.Errorf("audit webhook batch must be > 0, got %d", c.Audit.WebhookBatch))
	}

	if c.LLM.Enabled() {
		if c.LLM.Model == "" {
			errs = append(errs, errors.New("OPENAI_MODEL is required when OPENAI_API_KEY is set"))
		}
		if !isHTTPURL(c.LLM.BaseURL) {
			errs = append(errs, fmt.Errorf("OPENAI_BASE_URL %q must be an http(s) URL", c.LLM.BaseURL))
		}
	}
	if c.LLM.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("llm max retries must be >= 0, got %d", c.LLM.MaxRetries))
	}

	return errors.Join(errs...)
}

func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
