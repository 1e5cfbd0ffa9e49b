package swapengine

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/intentswap/internal/allowance"
	"github.com/aman-zulfiqar/intentswap/internal/chain"
	"github.com/aman-zulfiqar/intentswap/internal/constants"
	swaperr "github.com/aman-zulfiqar/intentswap/internal/errors"
	"github.com/aman-zulfiqar/intentswap/internal/metrics"
	"github.com/aman-zulfiqar/intentswap/internal/models"
	"github.com/aman-zulfiqar/intentswap/internal/storage"
	"github.com/aman-zulfiqar/intentswap/internal/tokens"
	"github.com/aman-zulfiqar/intentswap/internal/wallet"
	"github.com/aman-zulfiqar/intentswap/internal/zeroex"
)

type Quoter interface {
	Quote(ctx context.Context, req zeroex.QuoteRequest) (*zeroex.QuoteResponse, error)
}

type Approver interface {
	EnsureAllowance(ctx context.Context, owner, token, spender common.Address, required *big.Int) (*allowance.Result, error)
}

type Permitter interface {
	SignAndSplice(ctx context.Context, quote *zeroex.QuoteResponse) ([]byte, error)
}

// TxSender is the slice of wallet.Wallet the executor drives.
type TxSender interface {
	Address() common.Address
	Prepare(ctx context.Context, req chain.TxRequest) (*types.Transaction, error)
	Broadcast(ctx context.Context, tx *types.Transaction) error
	WaitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	Send(ctx context.Context, req chain.TxRequest) (*types.Receipt, error)
}

// ExecutionRecorder fans out progress and keeps the recent executions list.
type ExecutionRecorder interface {
	AddRecentExecution(ctx context.Context, ev *models.ExecutionEvent) error
	PublishProgress(ctx context.Context, p *models.Progress) error
}

type ExecutorConfig struct {
	Quoter    Quoter
	Approver  Approver
	Permitter Permitter
	Wallet    TxSender

	// Balances is used for forwarding; Guard runs before quoting when set.
	Balances BalanceSource
	Guard    *Guard
	// Locker serialises attempts per wallet. Defaults to an in-process lock.
	Locker wallet.Locker

	// Best-effort sinks; any may be nil.
	History   storage.HistoryStore
	Analytics storage.ExecutionStore
	Recorder  ExecutionRecorder

	ChainID          int64
	SubmitAttempts   int
	SubmitRetryDelay time.Duration
	ConfirmTimeout   time.Duration
	ExplorerURL      string

	Logger *logrus.Logger
}

// Executor runs swap intents through
// Quoting → AllowanceCheck → Permit → Submitting → Confirming.
type Executor struct {
	quoter    Quoter
	approver  Approver
	permitter Permitter
	wallet    TxSender
	balances  BalanceSource
	guard     *Guard
	locker    wallet.Locker

	history   storage.HistoryStore
	analytics storage.ExecutionStore
	recorder  ExecutionRecorder

	chainID        int64
	attempts       int
	retryDelay     time.Duration
	confirmTimeout time.Duration
	explorerURL    string

	logger *logrus.Logger
}

func NewExecutor(cfg ExecutorConfig) (*Executor, error) {
	if cfg.Quoter == nil || cfg.Approver == nil || cfg.Permitter == nil || cfg.Wallet == nil {
		return nil, fmt.Errorf("executor: Quoter, Approver, Permitter and Wallet are required")
	}
	if cfg.Locker == nil {
		cfg.Locker = wallet.NewLocalLocker()
	}
	if cfg.ChainID == 0 {
		cfg.ChainID = constants.BaseChainID
	}
	if cfg.SubmitAttempts <= 0 {
		cfg.SubmitAttempts = constants.DefaultSubmitAttempts
	}
	if cfg.SubmitRetryDelay <= 0 {
		cfg.SubmitRetryDelay = constants.DefaultSubmitRetryDelay
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = constants.DefaultConfirmTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Executor{
		quoter:         cfg.Quoter,
		approver:       cfg.Approver,
		permitter:      cfg.Permitter,
		wallet:         cfg.Wallet,
		balances:       cfg.Balances,
		guard:          cfg.Guard,
		locker:         cfg.Locker,
		history:        cfg.History,
		analytics:      cfg.Analytics,
		recorder:       cfg.Recorder,
		chainID:        cfg.ChainID,
		attempts:       cfg.SubmitAttempts,
		retryDelay:     cfg.SubmitRetryDelay,
		confirmTimeout: cfg.ConfirmTimeout,
		explorerURL:    strings.TrimRight(cfg.ExplorerURL, "/"),
		logger:         cfg.Logger,
	}, nil
}

// Execute runs one attempt to a terminal state. The result is always returned;
// err is set only for Failed outcomes. Cancelling ctx aborts the attempt only
// until the swap transaction is submitted.
func (e *Executor) Execute(ctx context.Context, intent *SwapIntent, sink ProgressSink) (*SwapResult, error) {
	if intent == nil || intent.SellAmount == nil {
		return nil, swaperr.New(swaperr.CodeInvalid, "intent is incomplete")
	}
	now := time.Now()
	att := &SwapAttempt{
		ExecutionID: newExecutionID(),
		Intent:      intent,
		Stage:       StageQuoting,
		Outcome:     OutcomePending,
		StartedAt:   now,
		stageAt:     now,
	}

	metrics.InFlight.Inc()
	defer metrics.InFlight.Dec()

	unlock, err := e.locker.Lock(ctx, intent.Taker.Hex())
	if err != nil {
		code := swaperr.CodeInternal
		if ctx.Err() != nil {
			code = swaperr.CodeCancelled
		}
		return e.finish(ctx, att, sink, swaperr.Wrap(code, "acquire wallet lock", err))
	}
	defer unlock()

	return e.finish(ctx, att, sink, e.run(ctx, att, sink))
}

func (e *Executor) run(ctx context.Context, att *SwapAttempt, sink ProgressSink) error {
	intent := att.Intent

	// 1. Quoting
	e.enter(ctx, att, sink, StageQuoting, "requesting quote")
	if err := cancelled(ctx); err != nil {
		return err
	}
	if e.guard != nil {
		res, err := e.guard.Check(ctx, intent)
		if err != nil {
			return swaperr.Wrap(swaperr.CodeInternal, "guard check", err)
		}
		if err := res.Err(); err != nil {
			return err
		}
	}
	quote, err := e.quote(ctx, intent)
	if err != nil {
		return err
	}
	att.Quote = quote
	if b := quote.Issues.Balance; b != nil {
		return swaperr.New(swaperr.CodeInsufficientBalance,
			fmt.Sprintf("insufficient %s balance: have %s, need %s", intent.SellToken.Symbol,
				formatBase(b.Actual, intent.SellToken.Decimals), formatBase(b.Expected, intent.SellToken.Decimals)))
	}

	// 2. AllowanceCheck
	if err := cancelled(ctx); err != nil {
		return err
	}
	e.enter(ctx, att, sink, StageAllowanceCheck, "checking allowance")
	if err := e.ensureAllowance(ctx, att); err != nil {
		return err
	}

	// 3. Permit
	if err := cancelled(ctx); err != nil {
		return err
	}
	if quote.HasPermit() {
		e.enter(ctx, att, sink, StagePermit, "signing permit")
	}
	data, err := e.permitter.SignAndSplice(ctx, quote)
	if err != nil {
		if !errors.Is(err, swaperr.ErrSignatureDeclined) {
			err = swaperr.Wrap(swaperr.CodeSignatureDeclined, "sign permit", err)
		}
		return err
	}

	// 4. Submitting. Last point where the caller can still abort.
	if err := cancelled(ctx); err != nil {
		return err
	}
	detached := context.WithoutCancel(ctx)
	e.enter(detached, att, sink, StageSubmitting, "submitting swap transaction")
	if err := e.submit(detached, att, sink, data); err != nil {
		return err
	}

	// 5. Confirming
	e.enter(detached, att, sink, StageConfirming, "waiting for confirmation")
	if err := e.confirm(detached, att); err != nil {
		return err
	}

	// 6. Forwarding never changes the outcome.
	if intent.NeedsForwarding() {
		e.enter(detached, att, sink, StageForwarding, "forwarding bought tokens to recipient")
		att.ForwardTxHash, att.ForwardErr = e.forward(detached, att)
		if att.ForwardErr != nil {
			e.logger.WithFields(logrus.Fields{
				"execution_id": att.ExecutionID,
				"recipient":    intent.Recipient.Hex(),
				"error":        att.ForwardErr,
			}).Warn("forwarding failed")
		}
	}
	return nil
}

func (e *Executor) quote(ctx context.Context, intent *SwapIntent) (*zeroex.QuoteResponse, error) {
	req := zeroex.QuoteRequest{
		ChainID:     e.chainID,
		SellToken:   zeroexToken(intent.SellToken),
		BuyToken:    zeroexToken(intent.BuyToken),
		SellAmount:  intent.SellAmount.String(),
		Taker:       intent.Taker.Hex(),
		SlippageBps: intent.SlippageBps,
	}
	q, err := e.quoter.Quote(ctx, req)
	if err != nil {
		metrics.QuoteRequests.WithLabelValues("quote", "error").Inc()
		if ctx.Err() != nil {
			return nil, swaperr.Wrap(swaperr.CodeCancelled, "quote request cancelled", ctx.Err())
		}
		if _, ok := swaperr.As(err); ok {
			return nil, err
		}
		return nil, swaperr.Wrap(swaperr.CodeQuoteUnavailable, "fetch quote", err)
	}
	metrics.QuoteRequests.WithLabelValues("quote", "ok").Inc()
	return q, nil
}

func (e *Executor) ensureAllowance(ctx context.Context, att *SwapAttempt) error {
	intent, q := att.Intent, att.Quote
	if intent.SellToken.IsNative() || !q.NeedsAllowance() {
		e.logger.WithField("execution_id", att.ExecutionID).Debug("allowance sufficient, no approval needed")
		return nil
	}
	spender, err := q.AllowanceSpender()
	if err != nil {
		return swaperr.Wrap(swaperr.CodeApprovalFailed, "quote allowance issue", err)
	}
	required, err := q.SellAmountInt()
	if err != nil {
		return swaperr.Wrap(swaperr.CodeApprovalFailed, "quote sell amount", err)
	}

	res, err := e.approver.EnsureAllowance(ctx, intent.Taker, intent.SellToken.Address, spender, required)
	if res != nil && res.TxHash != "" {
		att.ApprovalTxHash = res.TxHash
		if res.GasUsed > 0 {
			metrics.GasUsed.WithLabelValues("approve").Observe(float64(res.GasUsed))
		}
	}
	if err != nil {
		if !errors.Is(err, swaperr.ErrApprovalFailed) {
			err = swaperr.Wrap(swaperr.CodeApprovalFailed, "ensure allowance", err)
		}
		return err
	}
	return nil
}

// submit signs the swap transaction once and broadcasts it, retrying transient
// failures with a fixed delay. Rebroadcasting the same signed transaction is
// idempotent at the node. When an earlier broadcast may have landed, a final
// failure is only declared after looking for a receipt.
func (e *Executor) submit(ctx context.Context, att *SwapAttempt, sink ProgressSink, data []byte) error {
	q := att.Quote
	to, err := q.TxTo()
	if err != nil {
		return swaperr.Wrap(swaperr.CodeSubmissionFailed, "quote transaction", err)
	}
	value, err := q.TxValue()
	if err != nil {
		return swaperr.Wrap(swaperr.CodeSubmissionFailed, "quote transaction", err)
	}
	req := chain.TxRequest{To: to, Data: data, Value: value, Gas: q.TxGas()}

	log := e.logger.WithField("execution_id", att.ExecutionID)
	var (
		lastErr   error
		uncertain bool
	)
	for attempt := 1; attempt <= e.attempts; attempt++ {
		att.SubmissionAttempts = attempt
		if attempt > 1 {
			e.progress(ctx, att, sink, fmt.Sprintf("retrying submission (attempt %d/%d)", attempt, e.attempts))
			time.Sleep(e.retryDelay)
		}

		if att.SignedTx == nil {
			tx, err := e.wallet.Prepare(ctx, req)
			if err != nil {
				lastErr = err
				retry, kind := shouldRetrySubmit(err)
				log.WithFields(logrus.Fields{"attempt": attempt, "kind": kind, "error": err}).Warn("prepare swap transaction failed")
				if !retry {
					break
				}
				continue
			}
			att.SignedTx = tx
			att.TxHash = tx.Hash().Hex()
		}

		err := e.wallet.Broadcast(ctx, att.SignedTx)
		if err == nil {
			att.Broadcast = true
			metrics.SubmissionAttempts.Observe(float64(attempt))
			log.WithFields(logrus.Fields{"attempt": attempt, "tx": att.TxHash}).Info("swap transaction broadcast")
			return nil
		}
		lastErr = err
		if mayHaveLanded(err) {
			uncertain = true
		}
		retry, kind := shouldRetrySubmit(err)
		log.WithFields(logrus.Fields{"attempt": attempt, "kind": kind, "tx": att.TxHash, "error": err}).Warn("broadcast failed")
		if !retry {
			break
		}
	}

	metrics.SubmissionAttempts.Observe(float64(att.SubmissionAttempts))
	if uncertain && e.reconcile(ctx, att, sink) {
		log.WithField("tx", att.TxHash).Info("swap transaction found on-chain after failed broadcast")
		return nil
	}

	msg := fmt.Sprintf("swap not submitted after %d attempt(s)", att.SubmissionAttempts)
	if uncertain {
		att.Unconfirmed = true
		msg = fmt.Sprintf("swap submission unconfirmed after %d attempt(s)", att.SubmissionAttempts)
	}
	serr := swaperr.Wrap(swaperr.CodeSubmissionFailed, msg, lastErr)
	if att.TxHash != "" {
		serr = serr.WithTx(att.TxHash)
	}
	return serr
}

// reconcile waits for a receipt of a signed transaction whose broadcasts all
// failed ambiguously. A receipt means a node took it after all.
func (e *Executor) reconcile(ctx context.Context, att *SwapAttempt, sink ProgressSink) bool {
	if att.SignedTx == nil {
		return false
	}
	e.progress(ctx, att, sink, "checking whether the swap transaction was mined")
	waitCtx, cancel := context.WithTimeout(ctx, e.confirmTimeout)
	defer cancel()

	receipt, err := e.wallet.WaitReceipt(waitCtx, att.SignedTx.Hash())
	if err != nil {
		return false
	}
	att.Broadcast = true
	att.Receipt = receipt
	return true
}

func (e *Executor) confirm(ctx context.Context, att *SwapAttempt) error {
	receipt := att.Receipt
	if receipt == nil {
		waitCtx, cancel := context.WithTimeout(ctx, e.confirmTimeout)
		defer cancel()

		var err error
		receipt, err = e.wallet.WaitReceipt(waitCtx, att.SignedTx.Hash())
		if err != nil {
			return swaperr.Wrap(swaperr.CodeConfirmationTimeout, "no receipt before deadline", err).WithTx(att.TxHash)
		}
		att.Receipt = receipt
	}
	metrics.GasUsed.WithLabelValues("swap").Observe(float64(receipt.GasUsed))

	if receipt.Status != types.ReceiptStatusSuccessful {
		att.Outcome = OutcomeReverted
		return swaperr.New(swaperr.CodeConfirmationReverted, "swap transaction reverted").WithTx(att.TxHash)
	}
	att.Outcome = OutcomeConfirmed
	return nil
}

// enter records a stage transition.
func (e *Executor) enter(ctx context.Context, att *SwapAttempt, sink ProgressSink, stage Stage, msg string) {
	now := time.Now()
	if att.Stage != stage {
		metrics.StageDuration.WithLabelValues(string(att.Stage)).Observe(now.Sub(att.stageAt).Seconds())
		att.stageAt = now
	}
	att.Stage = stage
	e.progress(ctx, att, sink, msg)
}

func (e *Executor) progress(ctx context.Context, att *SwapAttempt, sink ProgressSink, msg string) {
	p := models.Progress{
		ExecutionID: att.ExecutionID,
		Stage:       string(att.Stage),
		Attempt:     att.SubmissionAttempts,
		TxHash:      att.TxHash,
		Message:     msg,
		At:          time.Now().UTC(),
	}
	if att.Outcome != OutcomePending {
		p.Outcome = string(att.Outcome)
	}
	e.emit(ctx, sink, p)
}

func (e *Executor) emit(ctx context.Context, sink ProgressSink, p models.Progress) {
	if sink != nil {
		sink(p)
	}
	if e.recorder != nil {
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := e.recorder.PublishProgress(pubCtx, &p); err != nil {
			e.logger.WithFields(logrus.Fields{
				"execution_id": p.ExecutionID,
				"error":        err,
			}).Debug("publish progress failed")
		}
	}
}

// finish settles the outcome, reports it and hands the attempt off to storage.
func (e *Executor) finish(ctx context.Context, att *SwapAttempt, sink ProgressSink, err error) (*SwapResult, error) {
	att.CompletedAt = time.Now()
	metrics.StageDuration.WithLabelValues(string(att.Stage)).Observe(att.CompletedAt.Sub(att.stageAt).Seconds())
	if err != nil {
		att.Err = err
		if att.Outcome != OutcomeReverted {
			att.Outcome = OutcomeFailed
		}
	} else if att.Outcome == OutcomePending {
		att.Outcome = OutcomeConfirmed
	}

	res := e.buildResult(att)
	metrics.SwapsTotal.WithLabelValues(string(att.Outcome), res.ErrorCode).Inc()

	fields := logrus.Fields{
		"execution_id": att.ExecutionID,
		"outcome":      att.Outcome,
		"stage":        att.Stage,
		"pair":         res.SellToken + "-" + res.BuyToken,
		"attempts":     att.SubmissionAttempts,
		"tx":           att.TxHash,
		"duration":     res.Duration,
	}
	if att.Outcome == OutcomeConfirmed {
		e.logger.WithFields(fields).Info("swap confirmed")
	} else {
		fields["error"] = att.Err
		e.logger.WithFields(fields).Warn("swap did not complete")
	}

	e.emit(ctx, sink, models.Progress{
		ExecutionID: att.ExecutionID,
		Stage:       string(StageDone),
		Outcome:     string(att.Outcome),
		Attempt:     att.SubmissionAttempts,
		TxHash:      att.TxHash,
		Message:     res.Summary.Message,
		At:          att.CompletedAt.UTC(),
	})
	e.handOff(ctx, att, res)

	if att.Outcome == OutcomeFailed {
		return res, att.Err
	}
	return res, nil
}

func (e *Executor) buildResult(att *SwapAttempt) *SwapResult {
	in := att.Intent
	res := &SwapResult{
		ExecutionID:    att.ExecutionID,
		Outcome:        att.Outcome,
		Stage:          att.Stage,
		SellToken:      in.SellToken.Symbol,
		BuyToken:       in.BuyToken.Symbol,
		SellAmount:     in.SellAmountHuman,
		TxHash:         att.TxHash,
		ApprovalTxHash: att.ApprovalTxHash,
		ForwardTxHash:  att.ForwardTxHash,
		Attempts:       att.SubmissionAttempts,
		StartedAt:      att.StartedAt,
		CompletedAt:    att.CompletedAt,
		Duration:       att.CompletedAt.Sub(att.StartedAt),
	}
	if att.Quote != nil {
		res.BuyAmount = formatBase(att.Quote.BuyAmount, in.BuyToken.Decimals)
		res.MinBuyAmount = formatBase(att.Quote.MinBuyAmount, in.BuyToken.Decimals)
	}
	if att.Receipt != nil {
		res.GasUsed = att.Receipt.GasUsed
	}
	if att.ForwardErr != nil {
		res.ForwardError = att.ForwardErr.Error()
	}
	if att.Err != nil {
		res.ErrorCode = string(swaperr.CodeOf(att.Err))
		res.Error = att.Err.Error()
	}
	res.Summary = summarize(att, res, e.explorerURL)
	return res
}

// handOff writes history (only for swaps that were or may have been
// broadcast), analytics and the recent list. Failures are logged and never
// change the outcome.
func (e *Executor) handOff(ctx context.Context, att *SwapAttempt, res *SwapResult) {
	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	log := e.logger.WithField("execution_id", att.ExecutionID)
	in := att.Intent

	if e.history != nil && (att.Broadcast || att.Unconfirmed) && att.TxHash != "" {
		userID := in.UserID
		if userID == "" {
			userID = strings.ToLower(in.Taker.Hex())
		}
		rec := models.SwapHistoryRecord{
			UserID:     userID,
			TxHash:     att.TxHash,
			SellToken:  in.SellToken.Address.Hex(),
			SellSymbol: in.SellToken.Symbol,
			SellAmount: in.SellAmountHuman,
			BuyToken:   in.BuyToken.Address.Hex(),
			BuySymbol:  in.BuyToken.Symbol,
			BuyAmount:  res.BuyAmount,
			Status:     historyStatus(att),
			CreatedAt:  att.CompletedAt.UTC(),
		}
		if _, _, err := e.history.Create(hctx, rec); err != nil {
			log.WithError(err).Warn("failed to write swap history")
		}
	}

	ev := &models.ExecutionEvent{
		ExecutionID: att.ExecutionID,
		Timestamp:   att.CompletedAt.UTC(),
		Wallet:      in.Taker.Hex(),
		UserID:      in.UserID,
		Pair:        fmt.Sprintf("%s-%s", in.SellToken.Symbol, in.BuyToken.Symbol),
		SellToken:   in.SellToken.Symbol,
		BuyToken:    in.BuyToken.Symbol,
		SellAmount:  in.SellAmountHuman,
		BuyAmount:   res.BuyAmount,
		Outcome:     string(att.Outcome),
		Stage:       string(att.Stage),
		ErrorCode:   res.ErrorCode,
		TxHash:      att.TxHash,
		Attempts:    att.SubmissionAttempts,
		DurationMs:  res.Duration.Milliseconds(),
	}
	if e.analytics != nil {
		if err := e.analytics.InsertExecution(hctx, ev); err != nil {
			log.WithError(err).Warn("failed to insert execution analytics")
		}
	}
	if e.recorder != nil {
		if err := e.recorder.AddRecentExecution(hctx, ev); err != nil {
			log.WithError(err).Warn("failed to add recent execution")
		}
	}
}

func historyStatus(att *SwapAttempt) string {
	switch {
	case att.Outcome == OutcomeConfirmed:
		return models.StatusConfirmed
	case att.Outcome == OutcomeReverted:
		return models.StatusReverted
	case att.Unconfirmed, errors.Is(att.Err, swaperr.ErrConfirmationTimeout):
		return models.StatusPending
	default:
		return models.StatusFailed
	}
}

func cancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return swaperr.Wrap(swaperr.CodeCancelled, "cancelled before submission", err)
	}
	return nil
}

// zeroexToken renders a token the way the 0x API expects it.
func zeroexToken(t tokens.TokenRef) string {
	if t.IsNative() {
		return chain.ZeroExNativeToken.Hex()
	}
	return t.Address.Hex()
}

func formatBase(v string, decimals uint8) string {
	if v == "" {
		return ""
	}
	n, err := tokens.ParseBaseUnits(v)
	if err != nil {
		return v
	}
	return tokens.FormatUnits(n, decimals)
}

func newExecutionID() string {
	return "exec_" + uuid.NewString()
}
