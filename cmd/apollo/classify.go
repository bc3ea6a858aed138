package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/agrolog/apollo/internal/config"
	"github.com/agrolog/apollo/internal/output"
	"github.com/agrolog/apollo/internal/output/stdout"
	"github.com/agrolog/apollo/internal/pipeline"
)

func runClassify(ctx context.Context, cfg config.Config, args []string, stdin io.Reader, stdoutW, stderr io.Writer) error {
	fs := newFlagSet("classify", stderr)
	in := fs.String("in", "", "input file (default stdin)")
	batch := fs.Int("batch", 16, "messages per engine call")
	pretty := fs.Bool("pretty", false, "indent JSON output")
	detail := fs.String("detail", "full", "record detail: full or minimal")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	d, err := output.ParseDetail(*detail)
	if err != nil {
		return err
	}

	r := stdin
	if *in != "" && *in != "-" {
		f, err := os.Open(*in)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		r = f
	}

	eng, err := openEngine(cfg.Engine)
	if err != nil {
		return err
	}
	defer eng.Close()

	p := pipeline.New(eng, stdout.NewWriter(stdoutW, d, *pretty), pipeline.WithBatchSize(*batch))
	runErr := p.Run(ctx, r)
	if err := p.Close(); err != nil && runErr == nil {
		runErr = err
	}
	slog.Info("classify finished", "processed", p.Processed(), "skipped", p.Skipped())
	return runErr
}
