package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

// scriptedModel replays canned responses and records what it was sent.
type scriptedModel struct {
	responses []*llms.ContentResponse
	calls     [][]llms.MessageContent
}

func (m *scriptedModel) GenerateContent(_ context.Context, msgs []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	m.calls = append(m.calls, msgs)
	if len(m.responses) == 0 {
		return nil, errors.New("no scripted response")
	}
	r := m.responses[0]
	m.responses = m.responses[1:]
	return r, nil
}

func (m *scriptedModel) Call(ctx context.Context, prompt string, opts ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, opts...)
}

func text(s string) *llms.ContentResponse {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: s}}}
}

func toolCall(id, name, args string) *llms.ContentResponse {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{
		ToolCalls: []llms.ToolCall{{
			ID:           id,
			Type:         "function",
			FunctionCall: &llms.FunctionCall{Name: name, Arguments: args},
		}},
	}}}
}

type fakeTools struct {
	prices   []SwapArgs
	swaps    []SwapArgs
	balances []BalanceArgs
	swapErr  error
}

func (f *fakeTools) GetPrice(_ context.Context, _ Session, a SwapArgs) (any, error) {
	f.prices = append(f.prices, a)
	return map[string]string{"buy_amount": "250.5"}, nil
}

func (f *fakeTools) ExecuteSwap(_ context.Context, _ Session, a SwapArgs) (any, error) {
	f.swaps = append(f.swaps, a)
	if f.swapErr != nil {
		return map[string]any{"retry_safe": true}, f.swapErr
	}
	return map[string]string{"tx_hash": "0xabc"}, nil
}

func (f *fakeTools) CheckBalance(_ context.Context, _ Session, a BalanceArgs) (any, error) {
	f.balances = append(f.balances, a)
	return map[string]string{"balance": "12.5"}, nil
}

func newTestAgent(t *testing.T, model llms.Model, tools Tools) *Agent {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	a, err := NewAgent(context.Background(), AgentConfig{LLM: model, Tools: tools, Logger: logger})
	require.NoError(t, err)
	return a
}

func TestChat_PlainReply(t *testing.T) {
	model := &scriptedModel{responses: []*llms.ContentResponse{text("  Hi! What would you like to swap?  ")}}
	a := newTestAgent(t, model, &fakeTools{})

	res, err := a.Chat(context.Background(), Session{UserID: "u1"}, []ChatMessage{{Role: "user", Content: "hello"}})
	require.NoError(t, err)
	assert.Equal(t, "Hi! What would you like to swap?", res.Reply)
	assert.Empty(t, res.ToolCalls)

	require.Len(t, model.calls, 1)
	assert.Equal(t, llms.ChatMessageTypeSystem, model.calls[0][0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, model.calls[0][1].Role)
}

func TestChat_ToolRoundTrip(t *testing.T) {
	model := &scriptedModel{responses: []*llms.ContentResponse{
		toolCall("call_1", ToolGetPrice, `"{\"sellToken\":\"ETH\",\"buyToken\":\"USDC\",\"sellAmount\":0.1}"`),
		text("0.1 ETH gets you about 250.5 USDC. Confirm?"),
	}}
	tools := &fakeTools{}
	a := newTestAgent(t, model, tools)

	res, err := a.Chat(context.Background(), Session{UserID: "u1"}, []ChatMessage{
		{Role: "user", Content: "price 0.1 eth to usdc"},
	})
	require.NoError(t, err)
	assert.Equal(t, "0.1 ETH gets you about 250.5 USDC. Confirm?", res.Reply)

	require.Len(t, tools.prices, 1)
	assert.Equal(t, SwapArgs{SellToken: "ETH", BuyToken: "USDC", SellAmount: "0.1"}, tools.prices[0])
	require.Len(t, res.ToolCalls, 1)
	assert.Equal(t, ToolGetPrice, res.ToolCalls[0].Name)
	assert.Empty(t, res.ToolCalls[0].Error)

	// second round carries the assistant tool call and the tool response
	require.Len(t, model.calls, 2)
	second := model.calls[1]
	last := second[len(second)-1]
	assert.Equal(t, llms.ChatMessageTypeTool, last.Role)
	resp, ok := last.Parts[0].(llms.ToolCallResponse)
	require.True(t, ok)
	assert.Equal(t, "call_1", resp.ToolCallID)
	assert.JSONEq(t, `{"buy_amount":"250.5"}`, resp.Content)
	assert.Equal(t, llms.ChatMessageTypeAI, second[len(second)-2].Role)
}

func TestChat_ToolErrorReachesModel(t *testing.T) {
	model := &scriptedModel{responses: []*llms.ContentResponse{
		toolCall("call_1", ToolExecuteSwap, `{"sell_token":"ETH","buy_token":"USDC","sell_amount":"1"}`),
		text("The swap failed; it is safe to retry."),
	}}
	tools := &fakeTools{swapErr: errors.New("quote unavailable")}
	a := newTestAgent(t, model, tools)

	res, err := a.Chat(context.Background(), Session{UserID: "u1"}, []ChatMessage{{Role: "user", Content: "yes, do it"}})
	require.NoError(t, err)
	require.Len(t, res.ToolCalls, 1)
	assert.Equal(t, "quote unavailable", res.ToolCalls[0].Error)

	last := model.calls[1][len(model.calls[1])-1]
	resp := last.Parts[0].(llms.ToolCallResponse)
	assert.JSONEq(t, `{"error":"quote unavailable"}`, resp.Content)
}

func TestChat_BadArgumentsAndUnknownTool(t *testing.T) {
	model := &scriptedModel{responses: []*llms.ContentResponse{
		toolCall("c1", ToolCheckBalance, `{}`),
		toolCall("c2", "launch_rocket", `{}`),
		text("ok"),
	}}
	tools := &fakeTools{}
	a := newTestAgent(t, model, tools)

	res, err := a.Chat(context.Background(), Session{}, []ChatMessage{{Role: "user", Content: "balance"}})
	require.NoError(t, err)
	require.Len(t, res.ToolCalls, 2)
	assert.Contains(t, res.ToolCalls[0].Error, "token")
	assert.Contains(t, res.ToolCalls[1].Error, "unknown tool")
	assert.Empty(t, tools.balances)
}

func TestChat_RoundLimit(t *testing.T) {
	var rs []*llms.ContentResponse
	for i := 0; i < 10; i++ {
		rs = append(rs, toolCall("c", ToolCheckBalance, `{"token":"ETH"}`))
	}
	model := &scriptedModel{responses: rs}
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	a, err := NewAgent(context.Background(), AgentConfig{LLM: model, Tools: &fakeTools{}, MaxToolRounds: 2, Logger: logger})
	require.NoError(t, err)

	_, err = a.Chat(context.Background(), Session{}, []ChatMessage{{Role: "user", Content: "loop"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "limit")
}

func TestChat_NoMessages(t *testing.T) {
	a := newTestAgent(t, &scriptedModel{}, nil)
	_, err := a.Chat(context.Background(), Session{}, nil)
	assert.Error(t, err)
}

func TestAsk_WithoutClickHouse(t *testing.T) {
	a := newTestAgent(t, &scriptedModel{}, nil)
	_, err := a.Ask(context.Background(), "how many swaps today?")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}

func TestNewAgent_RequiresKeyWithoutModel(t *testing.T) {
	_, err := NewAgent(context.Background(), AgentConfig{})
	assert.Error(t, err)
}

func TestSanitizeSQL(t *testing.T) {
	cases := map[string]string{
		"```sql\nSELECT count() FROM swap_executions;\n```": "SELECT count() FROM swap_executions",
		"SELECT 1 FROM swap_executions":                     "SELECT 1 FROM swap_executions",
		"sql SELECT outcome FROM swap_executions;":          "SELECT outcome FROM swap_executions",
	}
	for in, want := range cases {
		assert.Equal(t, want, sanitizeSQL(in))
	}
}

func TestValidateSQL(t *testing.T) {
	assert.NoError(t, validateSQL("SELECT outcome, count() FROM swap_executions GROUP BY outcome"))
	assert.Error(t, validateSQL(""))
	assert.Error(t, validateSQL("DELETE FROM swap_executions"))
	assert.Error(t, validateSQL("SELECT 1 FROM swap_executions; DROP TABLE swap_executions"))
	assert.Error(t, validateSQL("SELECT * FROM system.tables"))
	assert.Error(t, validateSQL("SELECT * FROM swap_executions WHERE 1 IN (SELECT 1) UNION ALL SELECT 1; "))
}
