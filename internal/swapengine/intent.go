package swapengine

import (
	"context"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	swaperr "github.com/aman-zulfiqar/intentswap/internal/errors"
	"github.com/aman-zulfiqar/intentswap/internal/tokens"
)

// TokenResolver is satisfied by tokens.Resolver.
type TokenResolver interface {
	Resolve(ctx context.Context, nameOrAddress string) (tokens.TokenRef, error)
}

const maxSlippageBps = 10_000

// IntentParser turns loose intent requests into resolved SwapIntents.
type IntentParser struct {
	resolver TokenResolver
	taker    common.Address
}

func NewIntentParser(resolver TokenResolver, taker common.Address) *IntentParser {
	return &IntentParser{resolver: resolver, taker: taker}
}

// ValidateRequest checks the request shape without touching the network.
func (p *IntentParser) ValidateRequest(req IntentRequest) error {
	sell := strings.TrimSpace(req.SellToken)
	buy := strings.TrimSpace(req.BuyToken)
	if sell == "" || buy == "" {
		return swaperr.New(swaperr.CodeInvalid, "sell and buy token are required")
	}
	if strings.EqualFold(sell, buy) {
		return swaperr.New(swaperr.CodeInvalid, "sell and buy token must differ")
	}
	if strings.TrimSpace(req.SellAmount) == "" {
		return swaperr.New(swaperr.CodeInvalid, "sell amount is required")
	}
	if r := strings.TrimSpace(req.Recipient); r != "" && !common.IsHexAddress(r) {
		return swaperr.New(swaperr.CodeInvalid, "recipient is not a valid address")
	}
	if req.SlippageBps != nil && *req.SlippageBps > maxSlippageBps {
		return swaperr.New(swaperr.CodeInvalid, "slippage_bps must be <= 10000")
	}
	return nil
}

// Parse validates req, resolves both tokens and converts the amount to base units.
func (p *IntentParser) Parse(ctx context.Context, req IntentRequest) (*SwapIntent, error) {
	if err := p.ValidateRequest(req); err != nil {
		return nil, err
	}

	sell, err := p.resolver.Resolve(ctx, req.SellToken)
	if err != nil {
		return nil, err
	}
	buy, err := p.resolver.Resolve(ctx, req.BuyToken)
	if err != nil {
		return nil, err
	}
	if sell.Address == buy.Address {
		return nil, swaperr.New(swaperr.CodeInvalid, "sell and buy token must differ")
	}

	human := tokens.NormalizeDecimal(strings.TrimSpace(req.SellAmount))
	amount, err := tokens.ToBaseUnits(human, sell.Decimals)
	if err != nil {
		return nil, swaperr.Wrap(swaperr.CodeInvalid, "invalid sell amount", err)
	}
	if amount.Sign() <= 0 {
		return nil, swaperr.New(swaperr.CodeInvalid, "sell amount must be > 0")
	}

	intent := &SwapIntent{
		SellToken:       sell,
		BuyToken:        buy,
		SellAmountHuman: human,
		SellAmount:      amount,
		Taker:           p.taker,
		UserID:          strings.TrimSpace(req.UserID),
		SlippageBps:     req.SlippageBps,
		RequestedAt:     time.Now(),
	}
	if r := strings.TrimSpace(req.Recipient); r != "" {
		addr := common.HexToAddress(r)
		intent.Recipient = &addr
	}
	return intent, nil
}

// NeedsForwarding reports whether bought tokens go to someone other than the wallet.
func (i *SwapIntent) NeedsForwarding() bool {
	return i.Recipient != nil && *i.Recipient != i.Taker && *i.Recipient != (common.Address{})
}
