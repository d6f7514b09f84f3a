package model

import "time"

// PhaseRecord captures one state a run passed through.
type PhaseRecord struct {
	Phase     Phase         `json:"phase"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   time.Time     `json:"ended_at"`
	Duration  time.Duration `json:"duration"`
	Records   int           `json:"records"`
	Error     string        `json:"error,omitempty"`
}

// ErrorDetail is a load or phase error with its origin.
type ErrorDetail struct {
	Phase     Phase     `json:"phase"`
	Sink      string    `json:"sink,omitempty"`
	Message   string    `json:"message"`
	Severity  string    `json:"severity"` // "warning" or "fatal"
	Timestamp time.Time `json:"timestamp"`
}
