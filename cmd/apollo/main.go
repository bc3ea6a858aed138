package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/agrolog/apollo/internal/config"
	"github.com/agrolog/apollo/internal/engine"
	"github.com/agrolog/apollo/internal/engine/embedder"
	"github.com/agrolog/apollo/internal/logging"
)

const usage = `usage: apollo [command] [flags]

commands:
  serve      run the HTTP service (default)
  classify   classify messages from a file or stdin, one per line or NDJSON
  eval       run a labeled corpus and report accuracy
  version    print the version
`

func main() {
	if err := config.LoadDotenv(); err != nil {
		log.Fatalf("failed to load .env: %v", err)
	}
	cfg := config.Load()

	logCloser := logging.Init(logOptions(cfg.Log))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	code := run(ctx, cfg, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)

	stop()
	logCloser.Close()
	os.Exit(code)
}

// logOptions maps the environment log settings onto the slog setup.
func logOptions(cfg config.LogConfig) logging.Options {
	return logging.Options{
		Level:      logging.ParseLevel(cfg.Level),
		Format:     cfg.Format,
		File:       cfg.File,
		MaxSizeMB:  cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
	}
}

// run dispatches to a subcommand and returns the process exit code.
func run(ctx context.Context, cfg config.Config, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cmd, rest := splitCommand(args)

	var err error
	switch cmd {
	case "serve":
		err = runServe(ctx, cfg, rest)
	case "classify":
		err = runClassify(ctx, cfg, rest, stdin, stdout, stderr)
	case "eval":
		err = runEval(ctx, cfg, rest, stdout, stderr)
	case "version":
		fmt.Fprintf(stdout, "apollo %s\n", config.Version)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", cmd, usage)
		return 2
	}

	if err != nil {
		if errors.Is(err, errUsage) {
			return 2
		}
		slog.Error("apollo: command failed", "command", cmd, "error", err)
		return 1
	}
	return 0
}

// splitCommand takes the first non-flag argument as the command name.
func splitCommand(args []string) (string, []string) {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") && args[0] != "-h" && args[0] != "--help" {
		return "serve", args
	}
	return args[0], args[1:]
}

// openEngine loads every classification artifact. Failures here are fatal:
// nothing is served with a partial engine.
func openEngine(cfg config.EngineConfig) (*engine.Engine, error) {
	pooling, err := embedder.ParsePooling(cfg.Pooling)
	if err != nil {
		return nil, err
	}
	eng, err := engine.Open(engine.Config{
		ModelPath:           cfg.ModelPath,
		VocabPath:           cfg.VocabPath,
		TokenizerConfigPath: cfg.TokenizerConfigPath,
		ClassifierPath:      cfg.ClassifierPath,
		RuntimeLibPath:      cfg.RuntimeLibPath,
		MaxSeqLen:           cfg.MaxSeqLen,
		Pooling:             pooling,
		MaxConcurrent:       cfg.MaxConcurrent,
	})
	if err != nil {
		return nil, err
	}
	slog.Info("engine loaded",
		"model", cfg.ModelPath,
		"classifier", cfg.ClassifierPath,
		"dim", eng.Dim(),
		"pooling", pooling.String(),
		"max_concurrent", cfg.MaxConcurrent,
	)
	return eng, nil
}
