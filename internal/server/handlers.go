package server

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/intentswap/internal/ai"
	"github.com/aman-zulfiqar/intentswap/internal/authnonce"
	"github.com/aman-zulfiqar/intentswap/internal/constants"
	swaperr "github.com/aman-zulfiqar/intentswap/internal/errors"
	"github.com/aman-zulfiqar/intentswap/internal/history"
	"github.com/aman-zulfiqar/intentswap/internal/models"
	"github.com/aman-zulfiqar/intentswap/internal/storage"
	"github.com/aman-zulfiqar/intentswap/internal/swapengine"
	"github.com/aman-zulfiqar/intentswap/internal/tokens"
)

var txHashRe = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

// SwapService is the engine surface the API exposes. *swapengine.Engine implements it.
type SwapService interface {
	Price(ctx context.Context, req swapengine.IntentRequest) (*swapengine.PriceView, error)
	Quote(ctx context.Context, req swapengine.IntentRequest) (*swapengine.QuoteView, error)
	Execute(ctx context.Context, req swapengine.IntentRequest, sink swapengine.ProgressSink) (*swapengine.SwapResult, error)
	Balance(ctx context.Context, token, address string) (*swapengine.BalanceView, error)
	ResolveToken(ctx context.Context, q string) (tokens.TokenRef, error)
	GetWalletInfo(ctx context.Context) (*swapengine.WalletInfo, error)
	RecentExecutions(ctx context.Context, limit int64) ([]*models.ExecutionEvent, error)
	Health(ctx context.Context) map[string]string
}

// NonceStore is implemented by *authnonce.Store.
type NonceStore interface {
	Issue(ctx context.Context) (*authnonce.Nonce, error)
	Consume(ctx context.Context, nonce string) error
}

// Assistant is implemented by *ai.Agent.
type Assistant interface {
	Chat(ctx context.Context, s ai.Session, history []ai.ChatMessage) (*ai.ChatResult, error)
	Ask(ctx context.Context, question string) (*ai.AskResult, error)
}

// Handlers contains all dependencies for API endpoint handlers
type Handlers struct {
	Swaps        SwapService          // Swap engine
	History      storage.HistoryStore // Swap history (optional)
	Nonces       NonceStore           // Redis-backed sign-in nonces (optional)
	AI           Assistant            // AI agent (optional)
	AIBaseConfig ai.AgentConfig       // Base configuration for per-request model overrides
	DevMode      bool                 // Enable detailed error responses in development
	Logger       *logrus.Logger       // Structured logger
}

// err returns a standardized JSON error response
// In dev mode, includes additional error details for debugging
func (h *Handlers) err(c echo.Context, code int, msg string, details any) error {
	resp := ErrorResponse{Error: msg, Code: code}
	if h.DevMode && details != nil {
		resp.Details = details
	}
	return c.JSON(code, resp)
}

// domainErr renders a coded engine error with its mapped status.
func (h *Handlers) domainErr(c echo.Context, err error) error {
	status := statusFor(err)
	code := swaperr.CodeOf(err)
	msg := err.Error()
	if e, ok := swaperr.As(err); ok && e.Message != "" {
		msg = e.Message
	}
	if code == swaperr.CodeInternal {
		h.logger().WithError(err).WithField("path", c.Path()).Error("request failed")
		msg = "internal server error"
	}
	resp := ErrorResponse{Error: msg, Code: status, ErrorCode: string(code)}
	if h.DevMode {
		resp.Details = map[string]any{"err": err.Error()}
	}
	return c.JSON(status, resp)
}

func (h *Handlers) logger() *logrus.Logger {
	if h.Logger == nil {
		h.Logger = logrus.New()
	}
	return h.Logger
}

// withTimeout creates a context with timeout, defaulting to 10 seconds if duration <= 0
func (h *Handlers) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 10 * time.Second
	}
	return context.WithTimeout(ctx, d)
}

// Health reports dependency status; ok tracks the RPC node only.
func (h *Handlers) Health(c echo.Context) error {
	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	deps := h.Swaps.Health(ctx)
	return c.JSON(http.StatusOK, HealthResponse{OK: deps["rpc"] == "ok", Deps: deps})
}

// Wallet returns the swap wallet's address, chain and native balance
func (h *Handlers) Wallet(c echo.Context) error {
	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	info, err := h.Swaps.GetWalletInfo(ctx)
	if err != nil {
		return h.domainErr(c, err)
	}
	return c.JSON(http.StatusOK, info)
}

// ResolveToken maps ?q= (symbol, name or address) to a token
func (h *Handlers) ResolveToken(c echo.Context) error {
	q := strings.TrimSpace(c.QueryParam("q"))
	if q == "" {
		return h.err(c, http.StatusBadRequest, "invalid q", map[string]any{"q": "required"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	ref, err := h.Swaps.ResolveToken(ctx, q)
	if err != nil {
		return h.domainErr(c, err)
	}
	return c.JSON(http.StatusOK, ref)
}

// SwapPrice returns an indicative price without a taker commitment
func (h *Handlers) SwapPrice(c echo.Context) error {
	var req swapengine.IntentRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	out, err := h.Swaps.Price(ctx, req)
	if err != nil {
		return h.domainErr(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// SwapQuote returns a firm quote for the swap wallet without executing it
func (h *Handlers) SwapQuote(c echo.Context) error {
	var req swapengine.IntentRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	out, err := h.Swaps.Quote(ctx, req)
	if err != nil {
		return h.domainErr(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// SwapExecute runs one swap attempt to a terminal state. The request context
// only bounds the attempt until the swap transaction is submitted.
func (h *Handlers) SwapExecute(c echo.Context) error {
	var req swapengine.IntentRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 60*time.Second)
	defer cancel()

	res, err := h.Swaps.Execute(ctx, req, nil)
	if res == nil {
		if err == nil {
			err = swaperr.New(swaperr.CodeInternal, "no result")
		}
		return h.domainErr(c, err)
	}
	if err != nil {
		return c.JSON(statusFor(err), SwapExecuteResponse{
			Result:    res,
			Error:     res.Summary.Message,
			ErrorCode: string(swaperr.CodeOf(err)),
		})
	}
	return c.JSON(http.StatusOK, SwapExecuteResponse{Result: res, ErrorCode: res.ErrorCode})
}

// Balance returns ?token= balance for ?address= (default: the swap wallet).
// An unreadable balance is reported as "0".
func (h *Handlers) Balance(c echo.Context) error {
	token := strings.TrimSpace(c.QueryParam("token"))
	if token == "" {
		return h.err(c, http.StatusBadRequest, "invalid token", map[string]any{"token": "required"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	out, err := h.Swaps.Balance(ctx, token, c.QueryParam("address"))
	if err != nil {
		return h.domainErr(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// HistoryCreate records a swap; repeating a tx hash returns the original record with 200
func (h *Handlers) HistoryCreate(c echo.Context) error {
	if h.History == nil {
		return h.err(c, http.StatusServiceUnavailable, "history is not configured", nil)
	}
	var rec models.SwapHistoryRecord
	if err := c.Bind(&rec); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	if !txHashRe.MatchString(strings.TrimSpace(rec.TxHash)) {
		return h.err(c, http.StatusBadRequest, "invalid tx_hash", map[string]any{"tx_hash": "must be 0x-prefixed 32-byte hex"})
	}
	if strings.TrimSpace(rec.UserID) == "" {
		return h.err(c, http.StatusBadRequest, "invalid user_id", map[string]any{"user_id": "required"})
	}
	switch rec.Status {
	case "", models.StatusConfirmed, models.StatusReverted, models.StatusFailed, models.StatusPending:
	default:
		return h.err(c, http.StatusBadRequest, "invalid status", map[string]any{"status": "confirmed, reverted, failed or pending"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	out, created, err := h.History.Create(ctx, rec)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to create history", map[string]any{"err": err.Error()})
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.JSON(status, out)
}

// HistoryList returns a user's newest swaps. Accepts user_id (required) and limit
func (h *Handlers) HistoryList(c echo.Context) error {
	if h.History == nil {
		return h.err(c, http.StatusServiceUnavailable, "history is not configured", nil)
	}
	userID := strings.TrimSpace(c.QueryParam("user_id"))
	if userID == "" {
		return h.err(c, http.StatusBadRequest, "invalid user_id", map[string]any{"user_id": "required"})
	}
	limit := 0
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return h.err(c, http.StatusBadRequest, "invalid limit", map[string]any{"limit": "must be an integer"})
		}
		limit = n
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.History.ListByUser(ctx, userID, history.ClampLimit(limit))
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to list history", nil)
	}
	if items == nil {
		items = []models.SwapHistoryRecord{}
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// RecentSwaps returns the most recent terminal execution attempts
// Accepts limit query parameter (default: 50, range: 1-100)
func (h *Handlers) RecentSwaps(c echo.Context) error {
	limitStr := c.QueryParam("limit")
	limit := constants.DefaultHistoryLimit
	if limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil {
			return h.err(c, http.StatusBadRequest, "invalid limit", map[string]any{"limit": "must be an integer"})
		}
		limit = n
	}
	if limit < 1 || limit > constants.MaxRecentExecutions {
		return h.err(c, http.StatusBadRequest, "invalid limit", map[string]any{"limit": "min 1 max 100"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Swaps.RecentExecutions(ctx, int64(limit))
	if err != nil {
		return h.err(c, http.StatusServiceUnavailable, "failed to get recent swaps", map[string]any{"err": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// NonceIssue creates a single-use sign-in nonce
func (h *Handlers) NonceIssue(c echo.Context) error {
	if h.Nonces == nil {
		return h.err(c, http.StatusServiceUnavailable, "nonces require redis", nil)
	}
	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	n, err := h.Nonces.Issue(ctx)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to issue nonce", nil)
	}
	return c.JSON(http.StatusCreated, n)
}

// NonceConsume spends a nonce; a second consume of the same nonce is a 404
func (h *Handlers) NonceConsume(c echo.Context) error {
	if h.Nonces == nil {
		return h.err(c, http.StatusServiceUnavailable, "nonces require redis", nil)
	}
	var req NonceConsumeRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	if err := authnonce.ValidateNonce(req.Nonce); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid nonce", map[string]any{"nonce": "invalid format"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	if err := h.Nonces.Consume(ctx, req.Nonce); err != nil {
		if errors.Is(err, authnonce.ErrNotFound) {
			return h.err(c, http.StatusNotFound, "nonce not found", nil)
		}
		return h.err(c, http.StatusInternalServerError, "failed to consume nonce", nil)
	}
	return c.JSON(http.StatusOK, map[string]any{"consumed": true})
}

// AIChat runs one chat turn; the assistant may quote, check balances or swap
func (h *Handlers) AIChat(c echo.Context) error {
	if h.AI == nil {
		return h.err(c, http.StatusBadRequest, "ai is not configured", nil)
	}
	var req AIChatRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	if len(req.Messages) == 0 {
		return h.err(c, http.StatusBadRequest, "messages are required", map[string]any{"messages": "required"})
	}
	if a := strings.TrimSpace(req.Address); a != "" && !common.IsHexAddress(a) {
		return h.err(c, http.StatusBadRequest, "invalid address", map[string]any{"address": "must be a hex address"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 90*time.Second)
	defer cancel()

	start := time.Now()
	res, err := h.AI.Chat(ctx, ai.Session{UserID: strings.TrimSpace(req.UserID), Address: strings.TrimSpace(req.Address)}, req.Messages)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "ai chat failed", map[string]any{"err": err.Error()})
	}
	return c.JSON(http.StatusOK, AIChatResponse{ChatResult: res, TookMs: time.Since(start).Milliseconds()})
}

// AIAsk processes natural language questions about execution analytics
// Supports optional model override for one-off requests
func (h *Handlers) AIAsk(c echo.Context) error {
	if h.AI == nil {
		return h.err(c, http.StatusBadRequest, "ai is not configured", nil)
	}

	var req AIAskRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		return h.err(c, http.StatusBadRequest, "question is required", map[string]any{"question": "required"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 45*time.Second)
	defer cancel()

	start := time.Now()

	// Use default AI agent or create temporary one with custom model
	agent := h.AI
	if m := strings.TrimSpace(req.Model); m != "" {
		cfg := h.AIBaseConfig
		cfg.Model = m
		tmp, err := ai.NewAgent(ctx, cfg)
		if err != nil {
			return h.err(c, http.StatusInternalServerError, "failed to create ai agent", nil)
		}
		defer func() {
			_ = tmp.Close() // Clean up temporary agent
		}()
		agent = tmp
	}

	res, err := agent.Ask(ctx, req.Question)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "ai ask failed", map[string]any{"err": err.Error()})
	}

	return c.JSON(http.StatusOK, AIAskResponse{SQL: res.SQL, Answer: res.Answer, TookMs: time.Since(start).Milliseconds()})
}
