package model

import "strconv"

// Class labels of the binary classifier.
const (
	ClassNotOperation = 0
	ClassOperation    = 1
)

// ClassProbabilities holds P(not operation) and P(operation). They sum to 1.
type ClassProbabilities [2]float64

// Argmax returns the index of the larger probability. Ties go to class 0.
func (p ClassProbabilities) Argmax() int {
	if p[ClassOperation] > p[ClassNotOperation] {
		return ClassOperation
	}
	return ClassNotOperation
}

// Classification is the outcome of classifying one message.
type Classification struct {
	Raw         ClassProbabilities // unrounded, as produced by the head
	Probability float64            // Raw[1] rounded to 2 decimals
	Prediction  int                // argmax of Raw
}

// NewClassification derives the rounded probability and the prediction from
// raw class probabilities. The prediction is taken before rounding.
func NewClassification(p ClassProbabilities) Classification {
	return Classification{
		Raw:         p,
		Probability: RoundProbability(p[ClassOperation]),
		Prediction:  p.Argmax(),
	}
}

// RoundProbability rounds to 2 decimal places using the exact decimal value
// of p, with ties to even.
func RoundProbability(p float64) float64 {
	v, _ := strconv.ParseFloat(strconv.FormatFloat(p, 'f', 2, 64), 64)
	return v
}
