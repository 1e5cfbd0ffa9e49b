package swapengine

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	swaperr "github.com/aman-zulfiqar/intentswap/internal/errors"
	"github.com/aman-zulfiqar/intentswap/internal/tokens"
)

// GuardConfig defines pre-quote checks.
type GuardConfig struct {
	// Symbols allowed on either side of a swap (empty = allow all).
	AllowedTokens []string

	// CheckBalance compares the wallet's sell-token balance with the sell amount.
	CheckBalance bool
}

// BalanceSource is satisfied by balance.Reader.
type BalanceSource interface {
	Read(ctx context.Context, token tokens.TokenRef, holder common.Address) (*big.Int, error)
}

// GuardResult contains the guard outcome
type GuardResult struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`

	TokenNotAllowed bool     `json:"token_not_allowed,omitempty"`
	AllowedTokens   []string `json:"allowed_tokens,omitempty"`

	InsufficientBalance bool   `json:"insufficient_balance,omitempty"`
	BalanceUnknown      bool   `json:"balance_unknown,omitempty"`
	Balance             string `json:"balance,omitempty"`
	Required            string `json:"required,omitempty"`
}

// Err converts a rejection into the matching coded error.
func (r *GuardResult) Err() error {
	switch {
	case r == nil || r.Allowed:
		return nil
	case r.InsufficientBalance:
		return swaperr.New(swaperr.CodeInsufficientBalance, r.Reason)
	default:
		return swaperr.New(swaperr.CodeInvalid, r.Reason)
	}
}

// Guard enforces the allowlist and balance feasibility before quoting.
type Guard struct {
	config   GuardConfig
	balances BalanceSource
	logger   *logrus.Logger
}

func NewGuard(config GuardConfig, balances BalanceSource, logger *logrus.Logger) *Guard {
	if logger == nil {
		logger = logrus.New()
	}
	return &Guard{config: config, balances: balances, logger: logger}
}

// Check validates an intent against all guard rules. An unreadable balance
// does not block the swap; the quote's own balance issue still applies.
func (g *Guard) Check(ctx context.Context, intent *SwapIntent) (*GuardResult, error) {
	if intent == nil {
		return nil, fmt.Errorf("intent is nil")
	}
	result := &GuardResult{Allowed: true, AllowedTokens: g.config.AllowedTokens}

	// 1. Token allowlist
	if len(g.config.AllowedTokens) > 0 {
		if !g.isTokenAllowed(intent.SellToken.Symbol) || !g.isTokenAllowed(intent.BuyToken.Symbol) {
			result.Allowed = false
			result.TokenNotAllowed = true
			result.Reason = fmt.Sprintf("token not allowed: %s or %s", intent.SellToken.Symbol, intent.BuyToken.Symbol)
			return result, nil
		}
	}

	// 2. Balance feasibility
	if !g.config.CheckBalance || g.balances == nil {
		return result, nil
	}
	bal, err := g.balances.Read(ctx, intent.SellToken, intent.Taker)
	if err != nil {
		g.logger.WithFields(logrus.Fields{
			"token": intent.SellToken.Symbol,
			"error": err,
		}).Warn("balance unreadable, skipping feasibility check")
		result.BalanceUnknown = true
		return result, nil
	}
	result.Balance = tokens.FormatUnits(bal, intent.SellToken.Decimals)
	result.Required = intent.SellAmountHuman
	if bal.Cmp(intent.SellAmount) < 0 {
		result.Allowed = false
		result.InsufficientBalance = true
		result.Reason = fmt.Sprintf("insufficient %s balance: have %s, need %s",
			intent.SellToken.Symbol, result.Balance, result.Required)
	}
	return result, nil
}

// isTokenAllowed checks if a token is in the allowlist
func (g *Guard) isTokenAllowed(symbol string) bool {
	if len(g.config.AllowedTokens) == 0 {
		return true
	}
	for _, allowed := range g.config.AllowedTokens {
		if strings.EqualFold(allowed, symbol) {
			return true
		}
	}
	return false
}
