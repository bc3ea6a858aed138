package output

import (
	"context"

	"github.com/agrolog/apollo/internal/model"
)

// Output defines the interface for audit record destinations.
type Output interface {
	Write(ctx context.Context, rec model.Record) error
	Close() error
}
