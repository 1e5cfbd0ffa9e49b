package balance

import (
	"context"
	"errors"
	"io"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/intentswap/internal/chain/chaintest"
	swaperr "github.com/aman-zulfiqar/intentswap/internal/errors"
	"github.com/aman-zulfiqar/intentswap/internal/tokens"
)

var (
	holder = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	usdc   = tokens.TokenRef{Address: common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"), Symbol: "USDC", Decimals: 6}
	eth    = tokens.TokenRef{Symbol: "ETH", Decimals: 18}
)

func newReader(b *chaintest.Backend) *Reader {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewReader(b, logger)
}

func TestGetBalance_ERC20(t *testing.T) {
	b := chaintest.NewBackend(8453)
	b.SetBalance(usdc.Address, holder, big.NewInt(12_345_000))

	assert.Equal(t, "12.345", newReader(b).GetBalance(context.Background(), usdc, holder))
}

func TestGetBalance_Native(t *testing.T) {
	b := chaintest.NewBackend(8453)
	wei, _ := new(big.Int).SetString("1500000000000000000", 10)
	b.SetNativeBalance(holder, wei)

	assert.Equal(t, "1.5", newReader(b).GetBalance(context.Background(), eth, holder))
}

func TestGetBalance_NotCached(t *testing.T) {
	b := chaintest.NewBackend(8453)
	r := newReader(b)
	b.SetBalance(usdc.Address, holder, big.NewInt(1_000_000))
	assert.Equal(t, "1", r.GetBalance(context.Background(), usdc, holder))

	b.SetBalance(usdc.Address, holder, big.NewInt(2_000_000))
	assert.Equal(t, "2", r.GetBalance(context.Background(), usdc, holder))
}

func TestGetBalance_ErrorReturnsZero(t *testing.T) {
	b := chaintest.NewBackend(8453)
	b.FailCalls(usdc.Address, errors.New("rpc down"))
	r := newReader(b)

	assert.Equal(t, "0", r.GetBalance(context.Background(), usdc, holder))

	_, err := r.Read(context.Background(), usdc, holder)
	require.Error(t, err)
	assert.True(t, errors.Is(err, swaperr.ErrBalanceReadFailed))
}
