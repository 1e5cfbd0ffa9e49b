package chain_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/intentswap/internal/chain"
	"github.com/aman-zulfiqar/intentswap/internal/chain/chaintest"
)

var (
	usdc    = common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913")
	owner   = common.HexToAddress("0x1111111111111111111111111111111111111111")
	spender = common.HexToAddress("0x000000000022D473030F116dDEE9F6B43aC78BA3")
)

func TestERC20_Reads(t *testing.T) {
	backend := chaintest.NewBackend(8453)
	backend.SetToken(usdc, "USDC", 6)
	backend.SetAllowance(usdc, owner, spender, big.NewInt(42))
	backend.SetBalance(usdc, owner, big.NewInt(1_500_000))

	erc20 := chain.NewERC20(backend)
	ctx := context.Background()

	allowance, err := erc20.Allowance(ctx, usdc, owner, spender)
	require.NoError(t, err)
	assert.Equal(t, int64(42), allowance.Int64())

	bal, err := erc20.BalanceOf(ctx, usdc, owner)
	require.NoError(t, err)
	assert.Equal(t, int64(1_500_000), bal.Int64())

	dec, err := erc20.Decimals(ctx, usdc)
	require.NoError(t, err)
	assert.Equal(t, uint8(6), dec)

	sym, err := erc20.Symbol(ctx, usdc)
	require.NoError(t, err)
	assert.Equal(t, "USDC", sym)
}

func TestERC20_CallError(t *testing.T) {
	backend := chaintest.NewBackend(8453)
	backend.FailCalls(usdc, errors.New("connection refused"))

	_, err := chain.NewERC20(backend).Decimals(context.Background(), usdc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestPackApprove(t *testing.T) {
	data, err := chain.PackApprove(spender, chain.MaxUint256)
	require.NoError(t, err)
	require.Len(t, data, 4+32+32)

	method, err := chain.ERC20ABI.MethodById(data[:4])
	require.NoError(t, err)
	assert.Equal(t, "approve", method.Name)

	args, err := method.Inputs.Unpack(data[4:])
	require.NoError(t, err)
	assert.Equal(t, spender, args[0].(common.Address))
	assert.Equal(t, 0, chain.MaxUint256.Cmp(args[1].(*big.Int)))
}

func TestIsNative(t *testing.T) {
	assert.True(t, chain.IsNative(common.Address{}))
	assert.True(t, chain.IsNative(chain.ZeroExNativeToken))
	assert.False(t, chain.IsNative(usdc))
}
