package output

import (
	"fmt"
	"strings"

	"github.com/agrolog/apollo/internal/model"
)

// Detail controls how much of a record reaches an output.
type Detail int

const (
	// DetailFull keeps the message text and the raw probabilities.
	DetailFull Detail = iota
	// DetailMinimal keeps only ids, timestamp and the published result.
	DetailMinimal
)

// ParseDetail accepts "full" (or empty) and "minimal".
func ParseDetail(s string) (Detail, error) {
	switch strings.ToLower(s) {
	case "", "full":
		return DetailFull, nil
	case "minimal":
		return DetailMinimal, nil
	default:
		return DetailFull, fmt.Errorf("unknown detail level %q", s)
	}
}

// FormatRecord returns a copy of the record with fields stripped according
// to detail. Stripped fields are omitted from JSON via omitempty.
func FormatRecord(r model.Record, detail Detail) model.Record {
	if detail == DetailMinimal {
		r.Message = ""
		r.Probabilities = nil
	}
	return r
}
