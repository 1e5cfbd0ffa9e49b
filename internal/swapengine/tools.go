package swapengine

import (
	"context"

	"github.com/aman-zulfiqar/intentswap/internal/ai"
)

// AgentTools exposes the engine to the AI agent.
type AgentTools struct {
	engine *Engine
	// Progress receives execution updates for tool-initiated swaps.
	Progress ProgressSink
}

var _ ai.Tools = (*AgentTools)(nil)

func NewAgentTools(engine *Engine) *AgentTools {
	return &AgentTools{engine: engine}
}

func (t *AgentTools) GetPrice(ctx context.Context, s ai.Session, args ai.SwapArgs) (any, error) {
	return t.engine.Price(ctx, IntentRequest{
		SellToken:  args.SellToken,
		BuyToken:   args.BuyToken,
		SellAmount: args.SellAmount,
		UserID:     s.UserID,
	})
}

// ExecuteSwap returns the result even on failure so the model can explain
// what happened and whether retrying is safe.
func (t *AgentTools) ExecuteSwap(ctx context.Context, s ai.Session, args ai.SwapArgs) (any, error) {
	res, err := t.engine.Execute(ctx, IntentRequest{
		SellToken:  args.SellToken,
		BuyToken:   args.BuyToken,
		SellAmount: args.SellAmount,
		Recipient:  s.Address,
		UserID:     s.UserID,
	}, t.Progress)
	if res == nil {
		return nil, err
	}
	return res, err
}

func (t *AgentTools) CheckBalance(ctx context.Context, s ai.Session, args ai.BalanceArgs) (any, error) {
	return t.engine.Balance(ctx, args.Token, s.Address)
}
