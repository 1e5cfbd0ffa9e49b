package ai

import (
	"context"

	"github.com/tmc/langchaingo/llms"
)

// Session identifies who the chat is acting for.
type Session struct {
	UserID string
	// Address receives bought tokens when set.
	Address string
}

// Tools is the swap surface the agent may call. Results are marshalled to
// JSON and returned to the model verbatim.
type Tools interface {
	GetPrice(ctx context.Context, s Session, args SwapArgs) (any, error)
	ExecuteSwap(ctx context.Context, s Session, args SwapArgs) (any, error)
	CheckBalance(ctx context.Context, s Session, args BalanceArgs) (any, error)
}

const (
	ToolGetPrice     = "get_price"
	ToolExecuteSwap  = "execute_swap"
	ToolCheckBalance = "check_balance"
	ToolAnalytics    = "swap_analytics"
)

func swapParameters(verb string) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"sell_token": map[string]any{
				"type":        "string",
				"description": "Token symbol or contract address to sell",
			},
			"buy_token": map[string]any{
				"type":        "string",
				"description": "Token symbol or contract address to buy",
			},
			"sell_amount": map[string]any{
				"type":        "string",
				"description": "Amount of sell_token to " + verb + ", in decimal string format",
			},
		},
		"required": []string{"sell_token", "buy_token", "sell_amount"},
	}
}

func toolDefinitions(withAnalytics bool) []llms.Tool {
	tools := []llms.Tool{
		{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        ToolGetPrice,
				Description: "Fetch an indicative swap price for the given parameters",
				Parameters:  swapParameters("price"),
			},
		},
		{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        ToolExecuteSwap,
				Description: "Execute the swap after explicit user confirmation. Approves, signs, submits and waits for confirmation.",
				Parameters:  swapParameters("sell"),
			},
		},
		{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        ToolCheckBalance,
				Description: "Check the balance of a specific token in the user's wallet",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"token": map[string]any{
							"type":        "string",
							"description": "Token symbol (e.g. 'ETH', 'USDC') or contract address",
						},
					},
					"required": []string{"token"},
				},
			},
		},
	}
	if withAnalytics {
		tools = append(tools, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        ToolAnalytics,
				Description: "Answer questions about past swap executions (volumes, success rates, recent activity)",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"question": map[string]any{"type": "string"},
					},
					"required": []string{"question"},
				},
			},
		})
	}
	return tools
}

const systemPrompt = `
You are a helpful AI swap agent and wallet assistant for IntentSwap on Base.

FOR TOKEN SWAPS:
Collect sell_token, buy_token and sell_amount from the user. Do not assume defaults for any of them.
1. Echo the parameters back to the user.
2. Call get_price with { sell_token, buy_token, sell_amount } and present the result.
3. Ask the user to confirm.
4. Only after explicit confirmation call execute_swap with the same parameters.
5. Report the outcome, including the transaction hash and explorer link when present.

FOR BALANCE CHECKS:
Call check_balance with the token the user asks about, then offer to help with anything else.

Rules:
- Never execute a swap without explicit confirmation.
- Do not fabricate token addresses. If a token is unknown, ask the user to clarify.
- If a tool returns an error, explain it plainly and say whether retrying is safe.
- Keep answers short and direct.
`
