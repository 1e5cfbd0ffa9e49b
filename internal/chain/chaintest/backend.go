// Package chaintest provides an in-memory chain.Backend for tests.
package chaintest

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/aman-zulfiqar/intentswap/internal/chain"
)

type allowanceKey struct {
	token, owner, spender common.Address
}

type balanceKey struct {
	token, account common.Address
}

// Backend simulates ERC-20 state and transaction handling for one chain.
// Approve and transfer transactions mutate the simulated state when mined.
type Backend struct {
	mu sync.Mutex

	chainID *big.Int
	nonces  map[common.Address]uint64

	allowances map[allowanceKey]*big.Int
	balances   map[balanceKey]*big.Int
	native     map[common.Address]*big.Int
	decimals   map[common.Address]uint8
	symbols    map[common.Address]string
	callErrs   map[common.Address]error

	// SendErrs are returned by successive SendTransaction calls; nil entries succeed.
	SendErrs []error
	// EstimateErr is returned by EstimateGas when set.
	EstimateErr error
	// RevertTo makes receipts for transactions sent to these addresses fail.
	RevertTo map[common.Address]bool
	// WithholdReceipts keeps TransactionReceipt returning NotFound.
	WithholdReceipts bool

	Sent     []*types.Transaction
	receipts map[common.Hash]*types.Receipt
	sendCnt  int
}

func NewBackend(chainID int64) *Backend {
	return &Backend{
		chainID:    big.NewInt(chainID),
		nonces:     make(map[common.Address]uint64),
		allowances: make(map[allowanceKey]*big.Int),
		balances:   make(map[balanceKey]*big.Int),
		native:     make(map[common.Address]*big.Int),
		decimals:   make(map[common.Address]uint8),
		symbols:    make(map[common.Address]string),
		callErrs:   make(map[common.Address]error),
		RevertTo:   make(map[common.Address]bool),
		receipts:   make(map[common.Hash]*types.Receipt),
	}
}

var _ chain.Backend = (*Backend)(nil)

func (b *Backend) SetToken(token common.Address, symbol string, decimals uint8) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.symbols[token] = symbol
	b.decimals[token] = decimals
}

func (b *Backend) SetAllowance(token, owner, spender common.Address, amount *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.allowances[allowanceKey{token, owner, spender}] = new(big.Int).Set(amount)
}

func (b *Backend) Allowance(token, owner, spender common.Address) *big.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if v, ok := b.allowances[allowanceKey{token, owner, spender}]; ok {
		return new(big.Int).Set(v)
	}
	return big.NewInt(0)
}

func (b *Backend) SetBalance(token, account common.Address, amount *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances[balanceKey{token, account}] = new(big.Int).Set(amount)
}

func (b *Backend) SetNativeBalance(account common.Address, amount *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.native[account] = new(big.Int).Set(amount)
}

// FailCalls makes every CallContract against token return err.
func (b *Backend) FailCalls(token common.Address, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.callErrs[token] = err
}

// SentCount returns the number of accepted transactions.
func (b *Backend) SentCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.Sent)
}

func (b *Backend) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if msg.To == nil {
		return nil, fmt.Errorf("call without target")
	}
	token := *msg.To
	if err := b.callErrs[token]; err != nil {
		return nil, err
	}
	if len(msg.Data) < 4 {
		return nil, fmt.Errorf("short calldata")
	}
	method, err := chain.ERC20ABI.MethodById(msg.Data[:4])
	if err != nil {
		return nil, fmt.Errorf("execution reverted")
	}
	args, err := method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, err
	}

	switch method.Name {
	case "allowance":
		v := b.allowances[allowanceKey{token, args[0].(common.Address), args[1].(common.Address)}]
		return method.Outputs.Pack(orZero(v))
	case "balanceOf":
		v := b.balances[balanceKey{token, args[0].(common.Address)}]
		return method.Outputs.Pack(orZero(v))
	case "decimals":
		d, ok := b.decimals[token]
		if !ok {
			return nil, fmt.Errorf("execution reverted")
		}
		return method.Outputs.Pack(d)
	case "symbol":
		s, ok := b.symbols[token]
		if !ok {
			return nil, fmt.Errorf("execution reverted")
		}
		return method.Outputs.Pack(s)
	default:
		return method.Outputs.Pack(true)
	}
}

func (b *Backend) BalanceAt(_ context.Context, account common.Address, _ *big.Int) (*big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return orZero(b.native[account]), nil
}

func (b *Backend) ChainID(context.Context) (*big.Int, error) {
	return new(big.Int).Set(b.chainID), nil
}

func (b *Backend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	if b.EstimateErr != nil {
		return 0, b.EstimateErr
	}
	return 100_000, nil
}

func (b *Backend) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000), nil
}

func (b *Backend) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{Number: big.NewInt(1), BaseFee: big.NewInt(10_000_000)}, nil
}

func (b *Backend) PendingNonceAt(_ context.Context, account common.Address) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nonces[account], nil
}

func (b *Backend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	idx := b.sendCnt
	b.sendCnt++
	if idx < len(b.SendErrs) && b.SendErrs[idx] != nil {
		return b.SendErrs[idx]
	}

	from, err := types.Sender(types.LatestSignerForChainID(b.chainID), tx)
	if err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}
	if _, seen := b.receipts[tx.Hash()]; seen {
		return fmt.Errorf("already known")
	}
	b.nonces[from] = tx.Nonce() + 1
	b.Sent = append(b.Sent, tx)

	status := types.ReceiptStatusSuccessful
	if tx.To() != nil && b.RevertTo[*tx.To()] {
		status = types.ReceiptStatusFailed
	} else {
		b.apply(from, tx)
	}
	b.receipts[tx.Hash()] = &types.Receipt{
		Status:      status,
		TxHash:      tx.Hash(),
		GasUsed:     50_000,
		BlockNumber: big.NewInt(int64(len(b.Sent))),
	}
	return nil
}

// SetWithholdReceipts toggles WithholdReceipts while other goroutines poll.
func (b *Backend) SetWithholdReceipts(v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.WithholdReceipts = v
}

func (b *Backend) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.WithholdReceipts {
		return nil, ethereum.NotFound
	}
	r, ok := b.receipts[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}

func (b *Backend) Close() {}

// apply mirrors approve/transfer effects into the simulated state. Caller holds mu.
func (b *Backend) apply(from common.Address, tx *types.Transaction) {
	if tx.To() == nil || len(tx.Data()) < 4 {
		if tx.To() != nil && tx.Value() != nil && tx.Value().Sign() > 0 {
			to := *tx.To()
			b.native[from] = new(big.Int).Sub(orZero(b.native[from]), tx.Value())
			b.native[to] = new(big.Int).Add(orZero(b.native[to]), tx.Value())
		}
		return
	}
	method, err := chain.ERC20ABI.MethodById(tx.Data()[:4])
	if err != nil {
		return
	}
	args, err := method.Inputs.Unpack(tx.Data()[4:])
	if err != nil {
		return
	}
	token := *tx.To()
	switch method.Name {
	case "approve":
		b.allowances[allowanceKey{token, from, args[0].(common.Address)}] = new(big.Int).Set(args[1].(*big.Int))
	case "transfer":
		to := args[0].(common.Address)
		amt := args[1].(*big.Int)
		b.balances[balanceKey{token, from}] = new(big.Int).Sub(orZero(b.balances[balanceKey{token, from}]), amt)
		b.balances[balanceKey{token, to}] = new(big.Int).Add(orZero(b.balances[balanceKey{token, to}]), amt)
	}
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
