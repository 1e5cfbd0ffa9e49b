package models

import "time"

// Swap history statuses.
const (
	StatusConfirmed = "confirmed"
	StatusReverted  = "reverted"
	StatusFailed    = "failed"
	// StatusPending marks a broadcast transaction whose receipt was not seen in time.
	StatusPending = "pending"
)

// SwapHistoryRecord is the persisted, write-once summary of a broadcast swap.
type SwapHistoryRecord struct {
	UserID     string    `json:"user_id"`
	TxHash     string    `json:"tx_hash"`
	SellToken  string    `json:"sell_token"`
	SellSymbol string    `json:"sell_symbol"`
	SellAmount string    `json:"sell_amount"`
	BuyToken   string    `json:"buy_token"`
	BuySymbol  string    `json:"buy_symbol"`
	BuyAmount  string    `json:"buy_amount"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// ExecutionEvent is the analytics row emitted once per terminal swap attempt.
type ExecutionEvent struct {
	ExecutionID string    `json:"execution_id"`
	Timestamp   time.Time `json:"timestamp"`
	Wallet      string    `json:"wallet"`
	UserID      string    `json:"user_id"`
	Pair        string    `json:"pair"`
	SellToken   string    `json:"sell_token"`
	BuyToken    string    `json:"buy_token"`
	SellAmount  string    `json:"sell_amount"`
	BuyAmount   string    `json:"buy_amount"`
	Outcome     string    `json:"outcome"`
	Stage       string    `json:"stage"`
	ErrorCode   string    `json:"error_code,omitempty"`
	TxHash      string    `json:"tx_hash,omitempty"`
	Attempts    int       `json:"attempts"`
	DurationMs  int64     `json:"duration_ms"`
}
