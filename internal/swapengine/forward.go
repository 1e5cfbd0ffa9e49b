package swapengine

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/core/types"

	"github.com/aman-zulfiqar/intentswap/internal/chain"
	"github.com/aman-zulfiqar/intentswap/internal/metrics"
)

// forward transfers min(quoted buy amount, wallet balance) of the bought
// token from the wallet to the intent's recipient.
func (e *Executor) forward(ctx context.Context, att *SwapAttempt) (string, error) {
	intent := att.Intent
	amount, err := att.Quote.BuyAmountInt()
	if err != nil {
		return "", fmt.Errorf("read quoted buy amount: %w", err)
	}
	if e.balances != nil {
		bal, err := e.balances.Read(ctx, intent.BuyToken, intent.Taker)
		if err != nil {
			return "", fmt.Errorf("read %s balance: %w", intent.BuyToken.Symbol, err)
		}
		if bal.Cmp(amount) < 0 {
			amount = bal
		}
	}
	if amount.Sign() <= 0 {
		return "", fmt.Errorf("no %s to forward", intent.BuyToken.Symbol)
	}

	req := chain.TxRequest{To: *intent.Recipient, Value: amount}
	if !intent.BuyToken.IsNative() {
		data, err := chain.PackTransfer(*intent.Recipient, amount)
		if err != nil {
			return "", fmt.Errorf("encode transfer: %w", err)
		}
		req = chain.TxRequest{To: intent.BuyToken.Address, Data: data}
	}

	receipt, err := e.wallet.Send(ctx, req)
	if err != nil {
		var unconfirmed *chain.UnconfirmedTxError
		if errors.As(err, &unconfirmed) {
			return unconfirmed.Hash.Hex(), fmt.Errorf("forward %s: %w", intent.BuyToken.Symbol, err)
		}
		return "", fmt.Errorf("forward %s: %w", intent.BuyToken.Symbol, err)
	}
	hash := receipt.TxHash.Hex()
	metrics.GasUsed.WithLabelValues("forward").Observe(float64(receipt.GasUsed))
	if receipt.Status != types.ReceiptStatusSuccessful {
		return hash, fmt.Errorf("forward transfer %s reverted", hash)
	}

	e.logger.WithField("execution_id", att.ExecutionID).
		WithField("tx", hash).
		Info("forwarded bought tokens")
	return hash, nil
}
