package model

import (
	"errors"
	"fmt"
)

// Failure classes of the classification path. Callers match them with
// errors.Is; the concrete error usually wraps the underlying cause as well.
var (
	// ErrTokenization means the vocabulary artifact is missing or corrupt.
	ErrTokenization = errors.New("tokenization failed")

	// ErrInference means the encoder session faulted or returned malformed output.
	ErrInference = errors.New("inference failed")

	// ErrDimensionMismatch means the embedding width disagrees with the
	// classifier's trained feature count.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrArtifactLoad means a startup artifact could not be loaded. Fatal.
	ErrArtifactLoad = errors.New("artifact load failed")
)

// DimensionMismatchError reports the two disagreeing widths.
type DimensionMismatchError struct {
	Got  int
	Want int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: embedding has %d features, classifier expects %d", e.Got, e.Want)
}

// Is makes errors.Is(err, ErrDimensionMismatch) match.
func (e *DimensionMismatchError) Is(target error) bool {
	return target == ErrDimensionMismatch
}
