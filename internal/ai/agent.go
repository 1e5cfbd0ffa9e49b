package ai

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// AgentConfig holds configuration for the AI agent.
type AgentConfig struct {
	// ClickHouse connection settings. Analytics questions are disabled when Addr is empty.
	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUsername string
	ClickHousePassword string

	// OpenRouter / LLM settings.
	OpenRouterAPIKey string
	// Model name as understood by OpenRouter, e.g. "openai/gpt-4.1-mini".
	Model string

	// LLM overrides the OpenRouter client.
	LLM llms.Model

	Tools Tools
	// MaxToolRounds bounds model↔tool round trips per chat turn.
	MaxToolRounds int

	Logger *logrus.Logger
}

// Agent chats with users about swaps and calls swap tools on their behalf.
// With ClickHouse configured it also answers analytics questions via NL→SQL.
type Agent struct {
	llm       llms.Model
	db        *sql.DB
	tools     Tools
	maxRounds int
	logger    *logrus.Logger
}

// NewAgent creates a new Agent with its own LLM and, optionally, ClickHouse clients.
func NewAgent(ctx context.Context, cfg AgentConfig) (*Agent, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.MaxToolRounds <= 0 {
		cfg.MaxToolRounds = 4
	}

	llm := cfg.LLM
	if llm == nil {
		if cfg.OpenRouterAPIKey == "" {
			return nil, fmt.Errorf("OPENROUTER_API_KEY is required")
		}
		if cfg.Model == "" {
			cfg.Model = "openai/gpt-4.1-mini"
		}
		// OpenRouter speaks the OpenAI API.
		var err error
		llm, err = openai.New(
			openai.WithToken(cfg.OpenRouterAPIKey),
			openai.WithBaseURL("https://openrouter.ai/api/v1"),
			openai.WithModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create OpenRouter LLM: %w", err)
		}
	}

	var db *sql.DB
	if cfg.ClickHouseAddr != "" {
		db = clickhouse.OpenDB(&clickhouse.Options{
			Addr: []string{cfg.ClickHouseAddr},
			Auth: clickhouse.Auth{
				Database: cfg.ClickHouseDatabase,
				Username: cfg.ClickHouseUsername,
				Password: cfg.ClickHousePassword,
			},
		})
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to ping ClickHouse from AI agent: %w", err)
		}
	}

	cfg.Logger.WithFields(logrus.Fields{
		"clickhouse": cfg.ClickHouseAddr,
		"model":      cfg.Model,
		"tools":      cfg.Tools != nil,
	}).Info("initialized AI agent")

	return &Agent{
		llm:       llm,
		db:        db,
		tools:     cfg.Tools,
		maxRounds: cfg.MaxToolRounds,
		logger:    cfg.Logger,
	}, nil
}

// Close closes underlying resources.
func (a *Agent) Close() error {
	if a.db != nil {
		a.logger.Debug("closing AI agent ClickHouse connection")
		return a.db.Close()
	}
	return nil
}

// ChatMessage is one prior turn. Role is "user" or "assistant".
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ToolInvocation records a tool call made while answering.
type ToolInvocation struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
	Result    any             `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
}

type ChatResult struct {
	Reply     string           `json:"reply"`
	ToolCalls []ToolInvocation `json:"tool_calls"`
}

// Chat answers the last user message, running tool calls until the model
// replies with text or the round limit is hit.
func (a *Agent) Chat(ctx context.Context, s Session, history []ChatMessage) (*ChatResult, error) {
	if len(history) == 0 {
		return nil, fmt.Errorf("no messages")
	}

	msgs := []llms.MessageContent{llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt)}
	for _, m := range history {
		role := llms.ChatMessageTypeHuman
		if strings.EqualFold(m.Role, "assistant") || strings.EqualFold(m.Role, "model") {
			role = llms.ChatMessageTypeAI
		}
		msgs = append(msgs, llms.TextParts(role, m.Content))
	}

	opts := []llms.CallOption{llms.WithMaxTokens(1024)}
	if a.tools != nil {
		opts = append(opts, llms.WithTools(toolDefinitions(a.db != nil)))
	}

	result := &ChatResult{ToolCalls: []ToolInvocation{}}
	for round := 0; round <= a.maxRounds; round++ {
		resp, err := a.llm.GenerateContent(ctx, msgs, opts...)
		if err != nil {
			return nil, fmt.Errorf("LLM chat failed: %w", err)
		}
		if len(resp.Choices) == 0 {
			return nil, fmt.Errorf("LLM returned no choices")
		}
		choice := resp.Choices[0]
		if len(choice.ToolCalls) == 0 || a.tools == nil {
			result.Reply = strings.TrimSpace(choice.Content)
			return result, nil
		}

		assistant := llms.MessageContent{Role: llms.ChatMessageTypeAI}
		for _, tc := range choice.ToolCalls {
			assistant.Parts = append(assistant.Parts, tc)
		}
		msgs = append(msgs, assistant)

		for _, tc := range choice.ToolCalls {
			inv := a.runTool(ctx, s, tc)
			result.ToolCalls = append(result.ToolCalls, inv)

			content, _ := json.Marshal(toolPayload(inv))
			msgs = append(msgs, llms.MessageContent{
				Role: llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{llms.ToolCallResponse{
					ToolCallID: tc.ID,
					Name:       inv.Name,
					Content:    string(content),
				}},
			})
		}
	}

	return nil, fmt.Errorf("tool call limit (%d rounds) exceeded", a.maxRounds)
}

func toolPayload(inv ToolInvocation) any {
	if inv.Error != "" {
		return map[string]string{"error": inv.Error}
	}
	return inv.Result
}

func (a *Agent) runTool(ctx context.Context, s Session, tc llms.ToolCall) ToolInvocation {
	inv := ToolInvocation{}
	if tc.FunctionCall == nil {
		inv.Error = "tool call without function"
		return inv
	}
	inv.Name = tc.FunctionCall.Name
	inv.Arguments = json.RawMessage(argsJSON(tc.FunctionCall.Arguments))

	log := a.logger.WithFields(logrus.Fields{"tool": inv.Name, "user": s.UserID})
	log.Debug("running tool")

	var (
		res any
		err error
	)
	switch inv.Name {
	case ToolGetPrice, ToolExecuteSwap:
		var args SwapArgs
		args, err = ParseSwapArgs(tc.FunctionCall.Arguments)
		if err == nil {
			if inv.Name == ToolGetPrice {
				res, err = a.tools.GetPrice(ctx, s, args)
			} else {
				res, err = a.tools.ExecuteSwap(ctx, s, args)
			}
		}
	case ToolCheckBalance:
		var args BalanceArgs
		args, err = ParseBalanceArgs(tc.FunctionCall.Arguments)
		if err == nil {
			res, err = a.tools.CheckBalance(ctx, s, args)
		}
	case ToolAnalytics:
		var m map[string]any
		m, err = argsMap(tc.FunctionCall.Arguments)
		if err == nil {
			var ask *AskResult
			ask, err = a.Ask(ctx, pick(m, "question"))
			if err == nil {
				res = ask
			}
		}
	default:
		err = fmt.Errorf("unknown tool %q", inv.Name)
	}

	if err != nil {
		log.WithError(err).Warn("tool failed")
		inv.Error = err.Error()
		// failed executions still carry a summary worth showing
		if res != nil {
			inv.Result = res
		}
		return inv
	}
	inv.Result = res
	return inv
}

// argsJSON keeps the raw arguments valid JSON for the invocation record.
func argsJSON(raw string) string {
	if json.Valid([]byte(raw)) {
		return raw
	}
	b, _ := json.Marshal(raw)
	return string(b)
}

// AskResult is the structured result of an Ask call.
type AskResult struct {
	SQL    string `json:"sql"`
	Answer string `json:"answer"`
}

// Ask takes a natural language question about past executions, generates SQL,
// executes it, and summarises the result.
func (a *Agent) Ask(ctx context.Context, question string) (*AskResult, error) {
	if a.db == nil {
		return nil, fmt.Errorf("analytics store is not configured")
	}
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("question is required")
	}

	sqlQuery, err := a.generateSQL(ctx, question)
	if err != nil {
		return nil, err
	}

	rowsJSON, err := a.runQuery(ctx, sqlQuery)
	if err != nil {
		return nil, err
	}

	answer, err := a.summariseResult(ctx, question, sqlQuery, rowsJSON)
	if err != nil {
		return nil, err
	}

	return &AskResult{
		SQL:    sqlQuery,
		Answer: answer,
	}, nil
}

// generateSQL asks the LLM to produce a safe SELECT query over swap_executions.
func (a *Agent) generateSQL(ctx context.Context, question string) (string, error) {
	prompt := fmt.Sprintf(`
You are an expert ClickHouse SQL generator.

Use ONLY the following table:
%s

Rules:
- Return a single SELECT query in ClickHouse SQL.
- Do NOT include any explanation or comments, only the SQL.
- The table is swap_executions.
- Use timestamp for time filtering.
- Use aggregate functions like count, countIf, sum, avg when appropriate.
- If user asks for "top" or "biggest" something, use ORDER BY ... DESC and LIMIT.
- Never modify data: no INSERT, UPDATE, DELETE, DROP, ALTER, CREATE, TRUNCATE.

User question:
%s
`, executionsSchemaDescription, question)

	resp, err := llms.GenerateFromSinglePrompt(
		ctx,
		a.llm,
		prompt,
		llms.WithMaxTokens(512),
	)
	if err != nil {
		return "", fmt.Errorf("LLM SQL generation failed: %w", err)
	}

	sqlQuery := sanitizeSQL(resp)
	if err := validateSQL(sqlQuery); err != nil {
		return "", err
	}

	a.logger.WithField("sql", sqlQuery).Debug("generated SQL from question")
	return sqlQuery, nil
}

// runQuery executes the generated SQL and encodes results as JSON.
func (a *Agent) runQuery(ctx context.Context, sqlQuery string) (string, error) {
	rows, err := a.db.QueryContext(ctx, sqlQuery)
	if err != nil {
		return "", fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return "", fmt.Errorf("failed to get columns: %w", err)
	}

	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		dest := make([]any, len(cols))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return "", fmt.Errorf("failed to scan row: %w", err)
		}

		rowMap := make(map[string]any, len(cols))
		for i, col := range cols {
			rowMap[col] = values[i]
		}
		out = append(out, rowMap)
	}

	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("row iteration error: %w", err)
	}

	data, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("failed to marshal rows to JSON: %w", err)
	}

	return string(data), nil
}

// summariseResult asks the LLM to answer the question given SQL + JSON results.
func (a *Agent) summariseResult(ctx context.Context, question, sqlQuery, rowsJSON string) (string, error) {
	prompt := fmt.Sprintf(`
You are a helpful assistant summarising swap execution analytics for a Base swap service.

User question:
%s

SQL that was executed:
%s

Query results in JSON (array of objects, can be empty):
%s

Instructions:
- If the result set is empty, say that no data was found for the question.
- Otherwise, answer concisely using bullet points and short sentences.
- Include key numbers (counts, amounts, success rates) rounded reasonably.
- Do not restate the raw JSON.
`, question, sqlQuery, rowsJSON)

	resp, err := llms.GenerateFromSinglePrompt(
		ctx,
		a.llm,
		prompt,
		llms.WithMaxTokens(512),
	)
	if err != nil {
		return "", fmt.Errorf("LLM summarisation failed: %w", err)
	}

	return strings.TrimSpace(resp), nil
}

// sanitizeSQL strips code fences and trailing semicolons from the LLM output.
func sanitizeSQL(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSpace(s)
		if strings.HasPrefix(strings.ToLower(s), "sql") {
			s = s[3:]
		}
	}
	s = strings.TrimSpace(s)
	if strings.HasPrefix(strings.ToLower(s), "sql") {
		s = s[3:]
	}
	s = strings.TrimSpace(s)
	if idx := strings.Index(s, "```"); idx >= 0 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, ";")
	return strings.TrimSpace(s)
}

// validateSQL enforces a conservative safety policy for generated SQL.
func validateSQL(s string) error {
	if s == "" {
		return fmt.Errorf("empty SQL generated by LLM")
	}

	upper := strings.ToUpper(strings.TrimSpace(s))

	if !strings.HasPrefix(upper, "SELECT") {
		return fmt.Errorf("only SELECT queries are allowed, got: %s", upper[:min(20, len(upper))])
	}

	disallowed := []string{
		"INSERT ", "UPDATE ", "DELETE ", "DROP ", "ALTER ", "TRUNCATE ",
		"CREATE ", "RENAME ", "ATTACH ", "DETACH ",
	}
	for _, kw := range disallowed {
		if strings.Contains(upper, kw) {
			return fmt.Errorf("disallowed SQL keyword %q in generated query", kw)
		}
	}

	if strings.Contains(s, ";") {
		return fmt.Errorf("multiple statements or semicolons are not allowed")
	}

	if !strings.Contains(upper, "FROM SWAP_EXECUTIONS") {
		return fmt.Errorf("query must target swap_executions table")
	}

	return nil
}
