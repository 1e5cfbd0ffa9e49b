package tokens

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// TokenRef identifies a token on the configured chain.
type TokenRef struct {
	Address  common.Address `json:"address"`
	Symbol   string         `json:"symbol"`
	Decimals uint8          `json:"decimals"`
	Name     string         `json:"name,omitempty"`
}

// IsNative reports whether the token is the chain's native asset.
func (t TokenRef) IsNative() bool {
	return t.Address == (common.Address{})
}

// Entry is one registry row. Decimals is optional in YAML; unset means 18.
type Entry struct {
	Symbol   string `yaml:"symbol"`
	Name     string `yaml:"name"`
	Address  string `yaml:"address"`
	Decimals *uint8 `yaml:"decimals"`
}

type registryFile struct {
	Tokens []Entry `yaml:"tokens"`
}

// Registry is the trusted symbol/address table consulted before any remote lookup.
type Registry struct {
	mu        sync.RWMutex
	bySymbol  map[string]TokenRef
	byAddress map[common.Address]TokenRef
}

func u8(v uint8) *uint8 { return &v }

// baseTokens are well-known Base mainnet assets.
var baseTokens = []Entry{
	{Symbol: "ETH", Name: "Ether", Address: "0x0000000000000000000000000000000000000000", Decimals: u8(18)},
	{Symbol: "WETH", Name: "Wrapped Ether", Address: "0x4200000000000000000000000000000000000006", Decimals: u8(18)},
	{Symbol: "USDC", Name: "USD Coin", Address: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", Decimals: u8(6)},
	{Symbol: "USDbC", Name: "USD Base Coin", Address: "0xd9aAEc86B65D86f6A7B5B1b0c42FFA531710b6CA", Decimals: u8(6)},
	{Symbol: "DAI", Name: "Dai Stablecoin", Address: "0x50c5725949A6F0c72E6C4a641F24049A917DB0Cb", Decimals: u8(18)},
	{Symbol: "cbETH", Name: "Coinbase Wrapped Staked ETH", Address: "0x2Ae3F1Ec7F1F5012CFEab0185bfc7aa3cf0DEc22", Decimals: u8(18)},
	{Symbol: "cbBTC", Name: "Coinbase Wrapped BTC", Address: "0xcbB7C0000aB88B473b1f5aFd9ef808440eed33Bf", Decimals: u8(8)},
	{Symbol: "AERO", Name: "Aerodrome", Address: "0x940181a94A35A4569E4529A3CDfB74e38FD98631", Decimals: u8(18)},
}

// NewRegistry returns a registry holding the built-in Base tokens.
func NewRegistry() *Registry {
	r := &Registry{
		bySymbol:  make(map[string]TokenRef),
		byAddress: make(map[common.Address]TokenRef),
	}
	for _, e := range baseTokens {
		// built-ins are known-good
		_ = r.Add(e)
	}
	return r
}

// LoadRegistry returns the built-in registry with entries from a YAML file
// layered on top. An empty path yields the built-ins only.
//
//	tokens:
//	  - symbol: DEGEN
//	    address: "0x4ed4E862860beD51a9570b96d89aF5E1B0Efefed"
//	    decimals: 18
func LoadRegistry(path string) (*Registry, error) {
	r := NewRegistry()
	if strings.TrimSpace(path) == "" {
		return r, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read token registry: %w", err)
	}
	var f registryFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse token registry: %w", err)
	}
	for i, e := range f.Tokens {
		if err := r.Add(e); err != nil {
			return nil, fmt.Errorf("token registry entry %d: %w", i, err)
		}
	}
	return r, nil
}

// Add inserts or overrides an entry.
func (r *Registry) Add(e Entry) error {
	sym := strings.TrimSpace(e.Symbol)
	if sym == "" {
		return fmt.Errorf("symbol is required")
	}
	if !common.IsHexAddress(e.Address) {
		return fmt.Errorf("invalid address %q for %s", e.Address, sym)
	}
	dec := uint8(18)
	if e.Decimals != nil {
		dec = *e.Decimals
	}
	ref := TokenRef{
		Address:  common.HexToAddress(e.Address),
		Symbol:   sym,
		Decimals: dec,
		Name:     e.Name,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.bySymbol[strings.ToUpper(sym)]; ok {
		delete(r.byAddress, old.Address)
	}
	r.bySymbol[strings.ToUpper(sym)] = ref
	r.byAddress[ref.Address] = ref
	return nil
}

// BySymbol matches case-insensitively.
func (r *Registry) BySymbol(symbol string) (TokenRef, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ref, ok := r.bySymbol[strings.ToUpper(strings.TrimSpace(symbol))]
	return ref, ok
}

func (r *Registry) ByAddress(addr common.Address) (TokenRef, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ref, ok := r.byAddress[addr]
	return ref, ok
}

// Symbols lists registered symbols, used for allowlists and help text.
func (r *Registry) Symbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.bySymbol))
	for _, ref := range r.bySymbol {
		out = append(out, ref.Symbol)
	}
	return out
}
