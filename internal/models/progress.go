package models

import "time"

// Progress is a live step update for one swap execution.
type Progress struct {
	ExecutionID string    `json:"execution_id"`
	Stage       string    `json:"stage"`
	Outcome     string    `json:"outcome,omitempty"`
	Attempt     int       `json:"attempt,omitempty"`
	TxHash      string    `json:"tx_hash,omitempty"`
	Message     string    `json:"message"`
	At          time.Time `json:"at"`
}
