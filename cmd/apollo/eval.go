package main

import (
	"context"
	"fmt"
	"io"

	"github.com/agrolog/apollo/internal/config"
	"github.com/agrolog/apollo/internal/engine/testdata"
	"github.com/agrolog/apollo/internal/pipeline"
)

func runEval(ctx context.Context, cfg config.Config, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("eval", stderr)
	corpusPath := fs.String("corpus", "", "labeled corpus JSON (default: built-in corpus)")
	minAcc := fs.Float64("min-accuracy", 0, "fail when accuracy is below this value")
	verbose := fs.Bool("v", false, "list misclassified entries")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	corpus, err := loadCorpus(*corpusPath)
	if err != nil {
		return err
	}

	eng, err := openEngine(cfg.Engine)
	if err != nil {
		return err
	}
	defer eng.Close()

	report, err := pipeline.Evaluate(ctx, eng, corpus)
	if err != nil {
		return err
	}
	printReport(stdout, report, *verbose)

	if report.Accuracy() < *minAcc {
		return fmt.Errorf("accuracy %.3f below required %.3f", report.Accuracy(), *minAcc)
	}
	return nil
}

func loadCorpus(path string) ([]testdata.CorpusEntry, error) {
	if path == "" {
		return testdata.LoadCorpus()
	}
	return testdata.LoadCorpusFile(path)
}

func printReport(w io.Writer, r pipeline.Report, verbose bool) {
	fmt.Fprintf(w, "entries:   %d\n", r.Total)
	fmt.Fprintf(w, "correct:   %d\n", r.Correct())
	fmt.Fprintf(w, "accuracy:  %.3f\n", r.Accuracy())
	fmt.Fprintf(w, "precision: %.3f\n", r.Precision())
	fmt.Fprintf(w, "recall:    %.3f\n", r.Recall())
	fmt.Fprintf(w, "confusion: tp=%d fp=%d tn=%d fn=%d\n",
		r.TruePositives, r.FalsePositives, r.TrueNegatives, r.FalseNegatives)

	if verbose && len(r.Misses) > 0 {
		fmt.Fprintln(w, "misses:")
		for _, m := range r.Misses {
			fmt.Fprintf(w, "  %-40s expected=%d got=%d p=%.2f\n", m.Description, m.Expected, m.Got, m.Probability)
		}
	}
}
