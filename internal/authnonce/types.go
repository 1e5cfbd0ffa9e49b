package authnonce

import (
	"errors"
	"time"
)

// ErrNotFound covers unknown, expired and already consumed nonces.
var ErrNotFound = errors.New("nonce not found")

type Nonce struct {
	Value     string    `json:"nonce"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
