package ai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// SwapArgs are the normalised arguments of get_price and execute_swap.
type SwapArgs struct {
	SellToken  string `json:"sell_token"`
	BuyToken   string `json:"buy_token"`
	SellAmount string `json:"sell_amount"`
}

type BalanceArgs struct {
	Token string `json:"token"`
}

// Models send tool arguments in several shapes: a JSON object string, that
// string JSON-encoded again, or an already decoded map. Keys may be snake or
// camel case and amounts may be numbers or strings. These parsers accept all
// of them and nothing else reaches the swap core.

func ParseSwapArgs(raw any) (SwapArgs, error) {
	m, err := argsMap(raw)
	if err != nil {
		return SwapArgs{}, err
	}
	out := SwapArgs{
		SellToken:  pick(m, "sell_token", "sellToken", "from_token", "fromToken"),
		BuyToken:   pick(m, "buy_token", "buyToken", "to_token", "toToken"),
		SellAmount: pick(m, "sell_amount", "sellAmount", "amount"),
	}
	var missing []string
	if out.SellToken == "" {
		missing = append(missing, "sell_token")
	}
	if out.BuyToken == "" {
		missing = append(missing, "buy_token")
	}
	if out.SellAmount == "" {
		missing = append(missing, "sell_amount")
	}
	if len(missing) > 0 {
		return out, fmt.Errorf("missing arguments: %s", strings.Join(missing, ", "))
	}
	return out, nil
}

func ParseBalanceArgs(raw any) (BalanceArgs, error) {
	m, err := argsMap(raw)
	if err != nil {
		return BalanceArgs{}, err
	}
	out := BalanceArgs{Token: pick(m, "token", "token_symbol", "tokenSymbol", "symbol")}
	if out.Token == "" {
		return out, fmt.Errorf("missing arguments: token")
	}
	return out, nil
}

func argsMap(raw any) (map[string]any, error) {
	switch v := raw.(type) {
	case nil:
		return nil, fmt.Errorf("no tool arguments")
	case map[string]any:
		return v, nil
	case json.RawMessage:
		return decodeArgs([]byte(v), 0)
	case []byte:
		return decodeArgs(v, 0)
	case string:
		return decodeArgs([]byte(v), 0)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("unsupported tool arguments %T", raw)
		}
		return decodeArgs(b, 0)
	}
}

// decodeArgs unwraps up to two levels of string encoding.
func decodeArgs(b []byte, depth int) (map[string]any, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil, fmt.Errorf("no tool arguments")
	}
	if b[0] == '"' && depth < 2 {
		var inner string
		if err := json.Unmarshal(b, &inner); err != nil {
			return nil, fmt.Errorf("decode tool arguments: %w", err)
		}
		return decodeArgs([]byte(inner), depth+1)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode tool arguments: %w", err)
	}
	return m, nil
}

func pick(m map[string]any, keys ...string) string {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case string:
			if s := strings.TrimSpace(t); s != "" {
				return s
			}
		case json.Number:
			return t.String()
		case float64:
			return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%f", t), "0"), ".")
		case int, int64:
			return fmt.Sprintf("%d", t)
		}
	}
	return ""
}
