package zeroex

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

type PriceRequest struct {
	ChainID    int64
	SellToken  string
	BuyToken   string
	SellAmount string // base units

	Taker       string // optional for price
	SlippageBps *uint16
}

// QuoteRequest has the same shape as PriceRequest; Taker is required.
type QuoteRequest = PriceRequest

type PriceResponse struct {
	BlockNumber        string          `json:"blockNumber,omitempty"`
	BuyAmount          string          `json:"buyAmount"`
	BuyToken           string          `json:"buyToken"`
	SellAmount         string          `json:"sellAmount"`
	SellToken          string          `json:"sellToken"`
	MinBuyAmount       string          `json:"minBuyAmount"`
	Gas                string          `json:"gas,omitempty"`
	GasPrice           string          `json:"gasPrice,omitempty"`
	TotalNetworkFee    string          `json:"totalNetworkFee,omitempty"`
	LiquidityAvailable *bool           `json:"liquidityAvailable,omitempty"`
	Issues             Issues          `json:"issues"`
	Route              json.RawMessage `json:"route,omitempty"`
	Fees               json.RawMessage `json:"fees,omitempty"`
	ZID                string          `json:"zid,omitempty"`
}

type QuoteResponse struct {
	PriceResponse
	Permit2     *Permit2    `json:"permit2,omitempty"`
	Transaction Transaction `json:"transaction"`
}

type Issues struct {
	Allowance            *AllowanceIssue `json:"allowance"`
	Balance              *BalanceIssue   `json:"balance"`
	SimulationIncomplete bool            `json:"simulationIncomplete,omitempty"`
}

// AllowanceIssue is set when the taker has not approved Spender for the sell amount.
type AllowanceIssue struct {
	Actual  string `json:"actual"`
	Spender string `json:"spender"`
}

type BalanceIssue struct {
	Token    string `json:"token"`
	Actual   string `json:"actual"`
	Expected string `json:"expected"`
}

// Permit2 carries the typed data the taker signs off-chain. EIP712 is kept raw
// so the signer decodes it exactly as received.
type Permit2 struct {
	Type   string          `json:"type"`
	Hash   string          `json:"hash"`
	EIP712 json.RawMessage `json:"eip712"`
}

type Transaction struct {
	To       string `json:"to"`
	Data     string `json:"data"`
	Gas      string `json:"gas,omitempty"`
	GasPrice string `json:"gasPrice,omitempty"`
	Value    string `json:"value,omitempty"`
}

// Liquid reports false only when the API explicitly says no route exists.
func (p *PriceResponse) Liquid() bool {
	return p.LiquidityAvailable == nil || *p.LiquidityAvailable
}

func (q *QuoteResponse) NeedsAllowance() bool {
	return q.Issues.Allowance != nil
}

func (q *QuoteResponse) HasPermit() bool {
	return q.Permit2 != nil && len(q.Permit2.EIP712) > 0 && string(q.Permit2.EIP712) != "null"
}

// AllowanceSpender returns the spender the allowance issue names.
func (q *QuoteResponse) AllowanceSpender() (common.Address, error) {
	if q.Issues.Allowance == nil {
		return common.Address{}, fmt.Errorf("quote has no allowance issue")
	}
	if !common.IsHexAddress(q.Issues.Allowance.Spender) {
		return common.Address{}, fmt.Errorf("invalid allowance spender %q", q.Issues.Allowance.Spender)
	}
	return common.HexToAddress(q.Issues.Allowance.Spender), nil
}

func (q *QuoteResponse) SellAmountInt() (*big.Int, error) {
	return parseUint(q.SellAmount, "sellAmount")
}

func (q *QuoteResponse) BuyAmountInt() (*big.Int, error) {
	return parseUint(q.BuyAmount, "buyAmount")
}

// TxData decodes transaction.data.
func (q *QuoteResponse) TxData() ([]byte, error) {
	if strings.TrimSpace(q.Transaction.Data) == "" {
		return nil, fmt.Errorf("quote transaction has no data")
	}
	b, err := hexutil.Decode(q.Transaction.Data)
	if err != nil {
		return nil, fmt.Errorf("decode transaction data: %w", err)
	}
	return b, nil
}

func (q *QuoteResponse) TxTo() (common.Address, error) {
	if !common.IsHexAddress(q.Transaction.To) {
		return common.Address{}, fmt.Errorf("invalid transaction target %q", q.Transaction.To)
	}
	return common.HexToAddress(q.Transaction.To), nil
}

func (q *QuoteResponse) TxValue() (*big.Int, error) {
	if strings.TrimSpace(q.Transaction.Value) == "" {
		return big.NewInt(0), nil
	}
	return parseUint(q.Transaction.Value, "transaction.value")
}

// TxGas returns the API's gas estimate, or zero when absent.
func (q *QuoteResponse) TxGas() uint64 {
	v, err := parseUint(q.Transaction.Gas, "transaction.gas")
	if err != nil || !v.IsUint64() {
		return 0
	}
	return v.Uint64()
}

func parseUint(v, field string) (*big.Int, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, fmt.Errorf("%s is empty", field)
	}
	var (
		out *big.Int
		ok  bool
	)
	if strings.HasPrefix(v, "0x") {
		out, ok = new(big.Int).SetString(v[2:], 16)
	} else {
		out, ok = new(big.Int).SetString(v, 10)
	}
	if !ok || out.Sign() < 0 {
		return nil, fmt.Errorf("invalid %s %q", field, v)
	}
	return out, nil
}
