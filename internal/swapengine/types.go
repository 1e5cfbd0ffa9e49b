package swapengine

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/aman-zulfiqar/intentswap/internal/models"
	"github.com/aman-zulfiqar/intentswap/internal/tokens"
	"github.com/aman-zulfiqar/intentswap/internal/zeroex"
)

// Stage is a step of the execution state machine.
type Stage string

const (
	StageQuoting        Stage = "quoting"
	StageAllowanceCheck Stage = "allowance_check"
	StagePermit         Stage = "permit"
	StageSubmitting     Stage = "submitting"
	StageConfirming     Stage = "confirming"
	StageForwarding     Stage = "forwarding"
	StageDone           Stage = "done"
)

type Outcome string

const (
	OutcomePending   Outcome = "pending"
	OutcomeConfirmed Outcome = "confirmed"
	OutcomeReverted  Outcome = "reverted"
	OutcomeFailed    Outcome = "failed"
)

// IntentRequest is the structured intent as it arrives from the chat layer or API.
type IntentRequest struct {
	SellToken  string `json:"sell_token"`
	BuyToken   string `json:"buy_token"`
	SellAmount string `json:"sell_amount"` // human units, decimal string

	// Recipient receives the bought tokens when it differs from the wallet.
	Recipient   string  `json:"recipient,omitempty"`
	UserID      string  `json:"user_id,omitempty"`
	SlippageBps *uint16 `json:"slippage_bps,omitempty"`
}

// SwapIntent is a validated, resolved intent. It is not modified after the
// quote is requested.
type SwapIntent struct {
	SellToken tokens.TokenRef
	BuyToken  tokens.TokenRef

	SellAmountHuman string
	SellAmount      *big.Int // base units

	Taker       common.Address
	Recipient   *common.Address
	UserID      string
	SlippageBps *uint16

	RequestedAt time.Time
}

// SwapAttempt is the mutable record of one trip through the state machine.
type SwapAttempt struct {
	ExecutionID string
	Intent      *SwapIntent
	Quote       *zeroex.QuoteResponse

	Stage   Stage
	Outcome Outcome

	ApprovalTxHash string
	SignedTx       *types.Transaction
	TxHash         string
	Broadcast      bool
	// Unconfirmed marks a swap transaction that may have reached the mempool
	// although no broadcast succeeded and no receipt was found.
	Unconfirmed bool
	Receipt     *types.Receipt

	SubmissionAttempts int
	ForwardTxHash      string
	ForwardErr         error
	Err                error

	StartedAt   time.Time
	CompletedAt time.Time

	stageAt time.Time
}

// Summary is the user-facing account of a terminal attempt: what happened,
// whether funds moved, whether gas was spent and whether retrying is safe.
// Retrying always means re-quoting; the same signed transaction is never resubmitted.
type Summary struct {
	Message    string `json:"message"`
	FundsMoved bool   `json:"funds_moved"`
	GasSpent   bool   `json:"gas_spent"`
	RetrySafe  bool   `json:"retry_safe"`
	// Unconfirmed means the swap transaction may still be mined, so FundsMoved
	// and GasSpent are not known yet.
	Unconfirmed    bool   `json:"unconfirmed,omitempty"`
	TxHash         string `json:"tx_hash,omitempty"`
	ApprovalTxHash string `json:"approval_tx_hash,omitempty"`
	ExplorerURL    string `json:"explorer_url,omitempty"`
}

// SwapResult is the final result returned to the caller
type SwapResult struct {
	ExecutionID string  `json:"execution_id"`
	Outcome     Outcome `json:"outcome"`
	Stage       Stage   `json:"stage"`

	SellToken    string `json:"sell_token"`
	BuyToken     string `json:"buy_token"`
	SellAmount   string `json:"sell_amount"`
	BuyAmount    string `json:"buy_amount,omitempty"`
	MinBuyAmount string `json:"min_buy_amount,omitempty"`

	TxHash         string `json:"tx_hash,omitempty"`
	ApprovalTxHash string `json:"approval_tx_hash,omitempty"`
	ForwardTxHash  string `json:"forward_tx_hash,omitempty"`
	ForwardError   string `json:"forward_error,omitempty"`

	Attempts int    `json:"attempts"`
	GasUsed  uint64 `json:"gas_used,omitempty"`

	ErrorCode string `json:"error_code,omitempty"`
	Error     string `json:"error,omitempty"`

	Summary Summary `json:"summary"`

	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
	Duration    time.Duration `json:"duration_ns"`
}

// ProgressSink receives every stage transition of an execution.
type ProgressSink func(models.Progress)

// PriceView is an indicative price in human units.
type PriceView struct {
	SellToken         tokens.TokenRef `json:"sell_token"`
	BuyToken          tokens.TokenRef `json:"buy_token"`
	SellAmount        string          `json:"sell_amount"`
	BuyAmount         string          `json:"buy_amount"`
	MinBuyAmount      string          `json:"min_buy_amount,omitempty"`
	Gas               string          `json:"gas,omitempty"`
	TotalNetworkFee   string          `json:"total_network_fee,omitempty"`
	AllowanceRequired bool            `json:"allowance_required"`
	BalanceShortfall  bool            `json:"balance_shortfall"`
}

// QuoteView is a binding quote together with the resolved intent it was requested for.
type QuoteView struct {
	PriceView
	Quote *zeroex.QuoteResponse `json:"quote"`
}

type BalanceView struct {
	Token   tokens.TokenRef `json:"token"`
	Address string          `json:"address"`
	Balance string          `json:"balance"`
}

type WalletInfo struct {
	Address    string `json:"address"`
	ChainID    int64  `json:"chain_id"`
	BalanceETH string `json:"balance_eth"`
}
