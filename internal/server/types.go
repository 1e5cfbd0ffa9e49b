package server

import (
	"github.com/aman-zulfiqar/intentswap/internal/ai"
	"github.com/aman-zulfiqar/intentswap/internal/swapengine"
)

// ErrorResponse represents a standardized error response format
type ErrorResponse struct {
	Error     string `json:"error"`                // Human-readable error message
	Code      int    `json:"code"`                 // HTTP status code
	ErrorCode string `json:"error_code,omitempty"` // Domain error code, e.g. quote_unavailable
	Details   any    `json:"details,omitempty"`    // Additional error details (dev mode only)
}

// HealthResponse represents the health check response
type HealthResponse struct {
	OK   bool              `json:"ok"`             // Service health status
	Deps map[string]string `json:"deps,omitempty"` // Per-dependency status
}

// SwapExecuteResponse carries the execution result, including failed ones, so
// callers can tell whether funds moved and whether retrying is safe.
type SwapExecuteResponse struct {
	Result    *swapengine.SwapResult `json:"result,omitempty"`
	Error     string                 `json:"error,omitempty"`
	ErrorCode string                 `json:"error_code,omitempty"`
}

// NonceConsumeRequest represents a request to spend a sign-in nonce
type NonceConsumeRequest struct {
	Nonce string `json:"nonce"`
}

// AIChatRequest represents one chat turn with the swap assistant
type AIChatRequest struct {
	Messages []ai.ChatMessage `json:"messages"`
	UserID   string           `json:"user_id"`
	Address  string           `json:"address"` // Optional recipient of bought tokens
}

// AIChatResponse represents the assistant's reply
type AIChatResponse struct {
	*ai.ChatResult
	TookMs int64 `json:"took_ms"`
}

// AIAskRequest represents a natural language query request
type AIAskRequest struct {
	Question string `json:"question"` // Natural language question about execution data
	Model    string `json:"model"`    // Optional AI model override
}

// AIAskResponse represents the response from an AI query
type AIAskResponse struct {
	SQL    string `json:"sql"`     // Generated SQL query
	Answer string `json:"answer"`  // Natural language answer
	TookMs int64  `json:"took_ms"` // Execution time in milliseconds
}
