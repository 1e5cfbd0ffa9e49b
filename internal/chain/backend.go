// Package chain holds the EVM node surface the swap pipeline depends on and
// the ERC-20 calls it makes through it.
package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// NativeToken is the address the 0x API and this codebase use for the chain's native asset.
var NativeToken = common.Address{}

// ZeroExNativeToken is the sentinel 0x accepts for the native asset in query parameters.
var ZeroExNativeToken = common.HexToAddress("0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE")

// Caller performs read-only contract calls.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// BalanceReader reads native balances.
type BalanceReader interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// Backend is the subset of *ethclient.Client used by the wallet and readers.
type Backend interface {
	Caller
	BalanceReader

	ChainID(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	Close()
}

var _ Backend = (*ethclient.Client)(nil)

// Dial connects to an EVM JSON-RPC endpoint.
func Dial(ctx context.Context, rpcURL string) (*ethclient.Client, error) {
	return ethclient.DialContext(ctx, rpcURL)
}

// TxRequest is an unsigned call the wallet turns into a transaction.
type TxRequest struct {
	To    common.Address
	Data  []byte
	Value *big.Int
	// Gas is a lower bound for the gas limit; zero means estimate only.
	Gas uint64
}

// IsNative reports whether addr denotes the chain's native asset.
func IsNative(addr common.Address) bool {
	return addr == NativeToken || addr == ZeroExNativeToken
}

// UnconfirmedTxError reports a transaction that was broadcast but produced no
// receipt before the wait ended. It may still be mined.
type UnconfirmedTxError struct {
	Hash common.Hash
	Err  error
}

func (e *UnconfirmedTxError) Error() string {
	return fmt.Sprintf("transaction %s unconfirmed: %v", e.Hash.Hex(), e.Err)
}

func (e *UnconfirmedTxError) Unwrap() error { return e.Err }
