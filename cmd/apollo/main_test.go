package main

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/agrolog/apollo/internal/config"
	"github.com/agrolog/apollo/internal/logging"
	"github.com/agrolog/apollo/internal/pipeline"
)

func TestSplitCommand(t *testing.T) {
	tests := []struct {
		args     []string
		wantCmd  string
		wantRest int
	}{
		{nil, "serve", 0},
		{[]string{"-addr", ":9000"}, "serve", 2},
		{[]string{"classify", "-in", "x.txt"}, "classify", 2},
		{[]string{"eval"}, "eval", 0},
		{[]string{"-h"}, "-h", 0},
	}
	for _, tt := range tests {
		cmd, rest := splitCommand(tt.args)
		if cmd != tt.wantCmd || len(rest) != tt.wantRest {
			t.Errorf("splitCommand(%v) = %q, %v; want %q with %d args", tt.args, cmd, rest, tt.wantCmd, tt.wantRest)
		}
	}
}

func TestLogOptions(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"chatty", slog.LevelInfo},
	}
	for _, tt := range tests {
		cfg := config.LogConfig{Level: tt.level, Format: "text", File: "/tmp/apollo.log", MaxSizeMB: 10, MaxBackups: 3}
		got := logOptions(cfg)
		want := logging.Options{Level: tt.want, Format: "text", File: "/tmp/apollo.log", MaxSizeMB: 10, MaxBackups: 3}
		if got != want {
			t.Errorf("logOptions(level=%q) = %+v, want %+v", tt.level, got, want)
		}
	}
}

func missingArtifacts(t *testing.T) config.Config {
	dir := t.TempDir()
	return config.Config{Engine: config.EngineConfig{
		ModelPath:      filepath.Join(dir, "model.onnx"),
		VocabPath:      filepath.Join(dir, "vocab.txt"),
		ClassifierPath: filepath.Join(dir, "logreg.safetensors"),
		Pooling:        "all",
	}}
}

func TestRunExitCodes(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantCode int
		wantOut  string
		wantErr  string
	}{
		{"version", []string{"version"}, 0, "apollo " + config.Version, ""},
		{"help", []string{"help"}, 0, "commands:", ""},
		{"unknown command", []string{"frobnicate"}, 2, "", "unknown command"},
		{"bad flag", []string{"classify", "-nope"}, 2, "", "flag provided but not defined"},
		{"bad detail", []string{"classify", "-detail", "loud"}, 1, "", ""},
		{"missing artifacts", []string{"eval"}, 1, "", ""},
		{"missing corpus", []string{"eval", "-corpus", "/nonexistent/corpus.json"}, 1, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := run(context.Background(), missingArtifacts(t), tt.args, strings.NewReader(""), &stdout, &stderr)
			if code != tt.wantCode {
				t.Fatalf("exit code = %d, want %d (stderr: %s)", code, tt.wantCode, stderr.String())
			}
			if tt.wantOut != "" && !strings.Contains(stdout.String(), tt.wantOut) {
				t.Errorf("stdout %q does not contain %q", stdout.String(), tt.wantOut)
			}
			if tt.wantErr != "" && !strings.Contains(stderr.String(), tt.wantErr) {
				t.Errorf("stderr %q does not contain %q", stderr.String(), tt.wantErr)
			}
		})
	}
}

func TestLoadCorpusDefault(t *testing.T) {
	corpus, err := loadCorpus("")
	if err != nil {
		t.Fatalf("load built-in corpus: %v", err)
	}
	if len(corpus) == 0 {
		t.Fatal("built-in corpus is empty")
	}
}

func TestPrintReport(t *testing.T) {
	r := pipeline.Report{
		Total:          4,
		TruePositives:  2,
		TrueNegatives:  1,
		FalseNegatives: 1,
		Misses:         []pipeline.Miss{{Description: "сев озимых", Expected: 1, Got: 0, Probability: 0.41}},
	}

	var buf bytes.Buffer
	printReport(&buf, r, true)
	out := buf.String()

	for _, want := range []string{"entries:   4", "accuracy:  0.750", "precision: 1.000", "recall:    0.667", "tp=2 fp=0 tn=1 fn=1", "сев озимых", "p=0.41"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	printReport(&buf, r, false)
	if strings.Contains(buf.String(), "misses:") {
		t.Error("misses should only be listed in verbose mode")
	}
}
