package tokens

import (
	"context"
	"fmt"
	"strings"

	"github.com/aman-zulfiqar/intentswap/internal/constants"
	"github.com/aman-zulfiqar/intentswap/internal/rpc"
)

// SearchResult is one asset returned by the metadata search.
type SearchResult struct {
	Address  string `json:"address"`
	ChainID  int64  `json:"chainId"`
	Decimals uint8  `json:"decimals"`
	Image    string `json:"image"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
}

// Searcher looks up token metadata by free-text term.
type Searcher interface {
	Search(ctx context.Context, term string) ([]SearchResult, error)
}

// RPCSearcher queries the CDP swap-asset JSON-RPC method.
type RPCSearcher struct {
	client *rpc.Client
}

func NewRPCSearcher(client *rpc.Client) *RPCSearcher {
	return &RPCSearcher{client: client}
}

// SearchURL joins the CDP endpoint with its API key path segment.
func SearchURL(base, apiKey string) string {
	base = strings.TrimRight(base, "/")
	if apiKey == "" {
		return base
	}
	return base + "/" + apiKey
}

func (s *RPCSearcher) Search(ctx context.Context, term string) ([]SearchResult, error) {
	params := []any{map[string]string{
		"limit":  "1",
		"search": term,
	}}
	var out []SearchResult
	if err := s.client.Call(ctx, constants.TokenSearchMethod, params, &out); err != nil {
		return nil, fmt.Errorf("token search %q: %w", term, err)
	}
	return out, nil
}
