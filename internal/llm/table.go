package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/agrolog/apollo/internal/model"
)

// rawRow mirrors model.TableRow with numbers left undecoded. Models write
// "", null, 12, "12 596,80" and similar for the same field.
type rawRow struct {
	Date         *string         `json:"date"`
	Division     string          `json:"division"`
	Operation    string          `json:"operation"`
	Culture      string          `json:"culture"`
	PerDay       json.RawMessage `json:"per_day"`
	PerOperation json.RawMessage `json:"per_operation"`
	ValDay       json.RawMessage `json:"val_day"`
	ValBeginning json.RawMessage `json:"val_beginning"`
}

// parseTable decodes a model answer into a table. Code fences are stripped.
func parseTable(content string) (model.Table, error) {
	trimmed := strings.TrimSpace(content)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var raw struct {
		Table *[]rawRow `json:"table"`
	}
	if err := json.Unmarshal([]byte(trimmed), &raw); err != nil {
		return model.Table{}, fmt.Errorf("%w: %w", ErrBadAnswer, err)
	}
	if raw.Table == nil {
		return model.Table{}, fmt.Errorf("%w: missing \"table\"", ErrBadAnswer)
	}

	rows := make([]model.TableRow, 0, len(*raw.Table))
	for i, r := range *raw.Table {
		row := model.TableRow{
			Division:  r.Division,
			Operation: r.Operation,
			Culture:   r.Culture,
		}
		if r.Date != nil && strings.TrimSpace(*r.Date) != "" {
			d := strings.TrimSpace(*r.Date)
			row.Date = &d
		}
		var err error
		for _, f := range []struct {
			name string
			src  json.RawMessage
			dst  **float64
		}{
			{"per_day", r.PerDay, &row.PerDay},
			{"per_operation", r.PerOperation, &row.PerOperation},
			{"val_day", r.ValDay, &row.ValDay},
			{"val_beginning", r.ValBeginning, &row.ValBeginning},
		} {
			if *f.dst, err = parseNumber(f.src); err != nil {
				return model.Table{}, fmt.Errorf("%w: row %d %s: %w", ErrBadAnswer, i, f.name, err)
			}
		}
		rows = append(rows, row)
	}
	return model.Table{Table: rows}, nil
}

// parseNumber accepts a JSON number, null, or a string using a space or
// non-breaking space as thousands separator and a comma as decimal mark.
// Empty strings and null give nil.
func parseNumber(raw json.RawMessage) (*float64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		s = strings.NewReplacer(" ", "", "\u00a0", "", ",", ".").Replace(strings.TrimSpace(s))
		if s == "" {
			return nil, nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("not a finite number: %q", s)
		}
		return &v, nil
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return &v, nil
}
