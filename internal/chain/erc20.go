package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// MaxUint256 represents the maximum possible uint256 value (2^256 - 1)
var MaxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

const erc20MinimalABI = `[
  {"type":"function","name":"allowance","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
  {"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
  {"type":"function","name":"transfer","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
]`

// ERC20ABI is the parsed minimal ERC-20 interface.
var ERC20ABI = mustParseABI(erc20MinimalABI)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("parse erc20 abi: %v", err))
	}
	return parsed
}

// ERC20 reads token state through a Caller.
type ERC20 struct {
	caller Caller
}

func NewERC20(caller Caller) *ERC20 {
	return &ERC20{caller: caller}
}

func (e *ERC20) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	out, err := e.call(ctx, token, "allowance", owner, spender)
	if err != nil {
		return nil, err
	}
	return asBigInt(out, "allowance")
}

func (e *ERC20) BalanceOf(ctx context.Context, token, account common.Address) (*big.Int, error) {
	out, err := e.call(ctx, token, "balanceOf", account)
	if err != nil {
		return nil, err
	}
	return asBigInt(out, "balanceOf")
}

func (e *ERC20) Decimals(ctx context.Context, token common.Address) (uint8, error) {
	out, err := e.call(ctx, token, "decimals")
	if err != nil {
		return 0, err
	}
	if len(out) == 0 {
		return 0, fmt.Errorf("empty decimals response")
	}
	d, ok := out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("invalid decimals format")
	}
	return d, nil
}

func (e *ERC20) Symbol(ctx context.Context, token common.Address) (string, error) {
	out, err := e.call(ctx, token, "symbol")
	if err != nil {
		return "", err
	}
	if len(out) == 0 {
		return "", fmt.Errorf("empty symbol response")
	}
	s, ok := out[0].(string)
	if !ok {
		return "", fmt.Errorf("invalid symbol format")
	}
	return s, nil
}

func (e *ERC20) call(ctx context.Context, token common.Address, method string, args ...any) ([]any, error) {
	data, err := ERC20ABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	raw, err := e.caller.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s on %s: %w", method, token.Hex(), err)
	}
	out, err := ERC20ABI.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return out, nil
}

func asBigInt(out []any, method string) (*big.Int, error) {
	if len(out) == 0 || out[0] == nil {
		return nil, fmt.Errorf("empty %s response", method)
	}
	v, ok := out[0].(*big.Int)
	if !ok || v == nil {
		return nil, fmt.Errorf("invalid %s format", method)
	}
	return v, nil
}

// PackApprove encodes approve(spender, amount).
func PackApprove(spender common.Address, amount *big.Int) ([]byte, error) {
	return ERC20ABI.Pack("approve", spender, amount)
}

// PackTransfer encodes transfer(to, amount).
func PackTransfer(to common.Address, amount *big.Int) ([]byte, error) {
	return ERC20ABI.Pack("transfer", to, amount)
}
