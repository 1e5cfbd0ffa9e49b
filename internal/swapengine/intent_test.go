package swapengine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	swaperr "github.com/aman-zulfiqar/intentswap/internal/errors"
	"github.com/aman-zulfiqar/intentswap/internal/tokens"
)

type mapResolver map[string]tokens.TokenRef

func (m mapResolver) Resolve(_ context.Context, name string) (tokens.TokenRef, error) {
	if ref, ok := m[strings.ToUpper(strings.TrimSpace(name))]; ok {
		return ref, nil
	}
	return tokens.TokenRef{}, swaperr.New(swaperr.CodeTokenNotFound, name)
}

func testParser() *IntentParser {
	return NewIntentParser(mapResolver{
		"USDC":  usdcRef,
		"WETH":  wethRef,
		"ETH":   ethRef,
		"USDC2": usdcRef, // alias resolving to the same address
	}, testTaker)
}

func slippage(v uint16) *uint16 { return &v }

func TestParse_ResolvesAndConverts(t *testing.T) {
	intent, err := testParser().Parse(context.Background(), IntentRequest{
		SellToken:   "usdc",
		BuyToken:    "weth",
		SellAmount:  " 012.500 ",
		UserID:      "u1",
		SlippageBps: slippage(50),
	})
	require.NoError(t, err)

	assert.Equal(t, usdcRef, intent.SellToken)
	assert.Equal(t, wethRef, intent.BuyToken)
	assert.Equal(t, "12.5", intent.SellAmountHuman)
	assert.Equal(t, "12500000", intent.SellAmount.String())
	assert.Equal(t, testTaker, intent.Taker)
	assert.Equal(t, "u1", intent.UserID)
	assert.Equal(t, uint16(50), *intent.SlippageBps)
	assert.Nil(t, intent.Recipient)
	assert.False(t, intent.NeedsForwarding())
}

func TestParse_Recipient(t *testing.T) {
	intent, err := testParser().Parse(context.Background(), IntentRequest{
		SellToken:  "ETH",
		BuyToken:   "USDC",
		SellAmount: "0.1",
		Recipient:  testRecipient.Hex(),
	})
	require.NoError(t, err)
	require.NotNil(t, intent.Recipient)
	assert.Equal(t, testRecipient, *intent.Recipient)
	assert.True(t, intent.NeedsForwarding())
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		req  IntentRequest
		code swaperr.Code
	}{
		{"missing sell token", IntentRequest{BuyToken: "WETH", SellAmount: "1"}, swaperr.CodeInvalid},
		{"same symbol", IntentRequest{SellToken: "USDC", BuyToken: "usdc", SellAmount: "1"}, swaperr.CodeInvalid},
		{"same address", IntentRequest{SellToken: "USDC", BuyToken: "USDC2", SellAmount: "1"}, swaperr.CodeInvalid},
		{"missing amount", IntentRequest{SellToken: "USDC", BuyToken: "WETH"}, swaperr.CodeInvalid},
		{"zero amount", IntentRequest{SellToken: "USDC", BuyToken: "WETH", SellAmount: "0.000"}, swaperr.CodeInvalid},
		{"negative amount", IntentRequest{SellToken: "USDC", BuyToken: "WETH", SellAmount: "-1"}, swaperr.CodeInvalid},
		{"too precise", IntentRequest{SellToken: "USDC", BuyToken: "WETH", SellAmount: "1.0000001"}, swaperr.CodeInvalid},
		{"bad recipient", IntentRequest{SellToken: "USDC", BuyToken: "WETH", SellAmount: "1", Recipient: "bob"}, swaperr.CodeInvalid},
		{"slippage too high", IntentRequest{SellToken: "USDC", BuyToken: "WETH", SellAmount: "1", SlippageBps: slippage(10_001)}, swaperr.CodeInvalid},
		{"unknown token", IntentRequest{SellToken: "PEPE", BuyToken: "WETH", SellAmount: "1"}, swaperr.CodeTokenNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intent, err := testParser().Parse(context.Background(), tt.req)
			require.Error(t, err)
			assert.Nil(t, intent)
			assert.Equal(t, tt.code, swaperr.CodeOf(err))
		})
	}
}

func TestValidateRequest_DoesNotResolve(t *testing.T) {
	p := NewIntentParser(mapResolver{}, testTaker)
	assert.NoError(t, p.ValidateRequest(IntentRequest{SellToken: "A", BuyToken: "B", SellAmount: "1"}))

	assert.NoError(t, p.ValidateRequest(IntentRequest{SellToken: "A", BuyToken: "B", SellAmount: "1", SlippageBps: slippage(10_000)}))
	assert.True(t, errors.Is(p.ValidateRequest(IntentRequest{SellToken: "A", BuyToken: "a", SellAmount: "1"}), swaperr.ErrInvalid))
}
