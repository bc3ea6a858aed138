package model

import "time"

// Record is an audit entry for one classification, written by outputs.
type Record struct {
	RequestID     string              `json:"request_id,omitempty"`
	Timestamp     time.Time           `json:"timestamp"`
	Source        string              `json:"source,omitempty"` // "http", "cli"
	Message       string              `json:"message,omitempty"`
	Probabilities *ClassProbabilities `json:"probabilities,omitempty"`
	Probability   float64             `json:"probability"`
	Prediction    int                 `json:"prediction"`
}

// NewRecord builds an audit record from a classification.
func NewRecord(requestID, source, message string, ts time.Time, c Classification) Record {
	raw := c.Raw
	return Record{
		RequestID:     requestID,
		Timestamp:     ts,
		Source:        source,
		Message:       message,
		Probabilities: &raw,
		Probability:   c.Probability,
		Prediction:    c.Prediction,
	}
}
