package pipeline

import (
	"context"
	"fmt"

	"github.com/agrolog/apollo/internal/engine/testdata"
	"github.com/agrolog/apollo/internal/model"
)

// Miss is a corpus entry the classifier got wrong.
type Miss struct {
	Description string
	Expected    int
	Got         int
	Probability float64
}

// Report summarizes a labeled evaluation run. Class 1 is the positive class.
type Report struct {
	Total          int
	TruePositives  int
	FalsePositives int
	TrueNegatives  int
	FalseNegatives int
	Misses         []Miss
}

// Correct returns the number of matching predictions.
func (r Report) Correct() int {
	return r.TruePositives + r.TrueNegatives
}

// Accuracy returns the share of correct predictions, or 0 for an empty run.
func (r Report) Accuracy() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Correct()) / float64(r.Total)
}

// Precision returns TP / (TP + FP), or 0 when nothing was predicted positive.
func (r Report) Precision() float64 {
	if d := r.TruePositives + r.FalsePositives; d > 0 {
		return float64(r.TruePositives) / float64(d)
	}
	return 0
}

// Recall returns TP / (TP + FN), or 0 when the corpus has no positives.
func (r Report) Recall() float64 {
	if d := r.TruePositives + r.FalseNegatives; d > 0 {
		return float64(r.TruePositives) / float64(d)
	}
	return 0
}

// Evaluate classifies every corpus entry and tallies the confusion matrix.
// Unlike Run, any classification error aborts the evaluation.
func Evaluate(ctx context.Context, cls Classifier, corpus []testdata.CorpusEntry) (Report, error) {
	var r Report
	for i, entry := range corpus {
		c, err := cls.Classify(ctx, entry.Message)
		if err != nil {
			return r, fmt.Errorf("evaluate entry %d (%s): %w", i, entry.Description, err)
		}
		r.Total++

		switch {
		case c.Prediction == model.ClassOperation && entry.Label == model.ClassOperation:
			r.TruePositives++
		case c.Prediction == model.ClassOperation:
			r.FalsePositives++
		case entry.Label == model.ClassOperation:
			r.FalseNegatives++
		default:
			r.TrueNegatives++
		}

		if c.Prediction != entry.Label {
			r.Misses = append(r.Misses, Miss{
				Description: entry.Description,
				Expected:    entry.Label,
				Got:         c.Prediction,
				Probability: c.Probability,
			})
		}
	}
	return r, nil
}
