// Package balance reads live wallet balances for native ETH and ERC-20 tokens.
package balance

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/intentswap/internal/chain"
	swaperr "github.com/aman-zulfiqar/intentswap/internal/errors"
	"github.com/aman-zulfiqar/intentswap/internal/metrics"
	"github.com/aman-zulfiqar/intentswap/internal/tokens"
)

// Backend is what the reader needs from the node.
type Backend interface {
	chain.Caller
	chain.BalanceReader
}

// Reader never caches; every call hits the node.
type Reader struct {
	backend Backend
	erc20   *chain.ERC20
	logger  *logrus.Logger
}

func NewReader(backend Backend, logger *logrus.Logger) *Reader {
	if logger == nil {
		logger = logrus.New()
	}
	return &Reader{
		backend: backend,
		erc20:   chain.NewERC20(backend),
		logger:  logger,
	}
}

// Read returns the raw base-unit balance of holder.
func (r *Reader) Read(ctx context.Context, token tokens.TokenRef, holder common.Address) (*big.Int, error) {
	if token.IsNative() {
		v, err := r.backend.BalanceAt(ctx, holder, nil)
		if err != nil {
			return nil, swaperr.Wrap(swaperr.CodeBalanceReadFailed, "read native balance", err)
		}
		return v, nil
	}
	v, err := r.erc20.BalanceOf(ctx, token.Address, holder)
	if err != nil {
		return nil, swaperr.Wrap(swaperr.CodeBalanceReadFailed, "read token balance", err)
	}
	return v, nil
}

// GetBalance returns the balance formatted with the token's decimals. Read
// failures are logged and reported as "0".
func (r *Reader) GetBalance(ctx context.Context, token tokens.TokenRef, holder common.Address) string {
	v, err := r.Read(ctx, token, holder)
	if err != nil {
		metrics.BalanceReadFailures.Inc()
		r.logger.WithFields(logrus.Fields{
			"token":  token.Symbol,
			"holder": holder.Hex(),
			"error":  err,
		}).Warn("balance read failed")
		return "0"
	}
	return tokens.FormatUnits(v, token.Decimals)
}
