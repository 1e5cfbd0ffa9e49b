// Package allowance makes sure an ERC-20 spender is approved before a swap
// that pulls tokens through it.
package allowance

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/intentswap/internal/chain"
	swaperr "github.com/aman-zulfiqar/intentswap/internal/errors"
	"github.com/aman-zulfiqar/intentswap/internal/metrics"
)

// Sender submits a transaction and waits for its receipt.
type Sender interface {
	Send(ctx context.Context, req chain.TxRequest) (*types.Receipt, error)
}

type Result struct {
	Skipped bool
	// Pending is set when the approval was broadcast but not seen mined.
	Pending bool
	// Current is the allowance observed before any approval.
	Current *big.Int
	TxHash  string
	GasUsed uint64
}

type Manager struct {
	erc20  *chain.ERC20
	sender Sender
	logger *logrus.Logger
}

func NewManager(caller chain.Caller, sender Sender, logger *logrus.Logger) *Manager {
	if logger == nil {
		logger = logrus.New()
	}
	return &Manager{
		erc20:  chain.NewERC20(caller),
		sender: sender,
		logger: logger,
	}
}

// EnsureAllowance approves spender for MaxUint256 when the current allowance
// is below required. The approval is mined before it returns. Nothing here retries.
func (m *Manager) EnsureAllowance(ctx context.Context, owner, token, spender common.Address, required *big.Int) (*Result, error) {
	if required == nil || required.Sign() < 0 {
		return nil, swaperr.New(swaperr.CodeInvalid, "required allowance must be non-negative")
	}

	current, err := m.erc20.Allowance(ctx, token, owner, spender)
	if err != nil {
		metrics.ApprovalsTotal.WithLabelValues("read_failed").Inc()
		return nil, swaperr.Wrap(swaperr.CodeApprovalFailed, "read allowance", err)
	}
	if current.Cmp(required) >= 0 {
		metrics.ApprovalsTotal.WithLabelValues("skipped").Inc()
		return &Result{Skipped: true, Current: current}, nil
	}

	log := m.logger.WithFields(logrus.Fields{
		"token":    token.Hex(),
		"spender":  spender.Hex(),
		"current":  current.String(),
		"required": required.String(),
	})
	log.Info("approving spender")

	data, err := chain.PackApprove(spender, chain.MaxUint256)
	if err != nil {
		return nil, swaperr.Wrap(swaperr.CodeApprovalFailed, "encode approve", err)
	}
	receipt, err := m.sender.Send(ctx, chain.TxRequest{To: token, Data: data, Value: big.NewInt(0)})
	if err != nil {
		var unconfirmed *chain.UnconfirmedTxError
		if errors.As(err, &unconfirmed) {
			metrics.ApprovalsTotal.WithLabelValues("unconfirmed").Inc()
			res := &Result{Current: current, TxHash: unconfirmed.Hash.Hex(), Pending: true}
			log.WithField("tx", res.TxHash).Warn("approval broadcast but not confirmed")
			return res, swaperr.Wrap(swaperr.CodeApprovalFailed, "approval not confirmed", err).WithTx(res.TxHash)
		}
		metrics.ApprovalsTotal.WithLabelValues("failed").Inc()
		return nil, swaperr.Wrap(swaperr.CodeApprovalFailed, "approval transaction failed", err)
	}
	res := &Result{Current: current, TxHash: receipt.TxHash.Hex(), GasUsed: receipt.GasUsed}
	if receipt.Status != types.ReceiptStatusSuccessful {
		metrics.ApprovalsTotal.WithLabelValues("reverted").Inc()
		return res, swaperr.New(swaperr.CodeApprovalFailed, "approval reverted").WithTx(res.TxHash)
	}

	metrics.ApprovalsTotal.WithLabelValues("approved").Inc()
	log.WithField("tx", res.TxHash).Info("approval confirmed")
	return res, nil
}
