// Package tokens resolves user-supplied token names or addresses into
// on-chain token references and converts between human and base-unit amounts.
package tokens

import (
	"context"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/intentswap/internal/chain"
	swaperr "github.com/aman-zulfiqar/intentswap/internal/errors"
)

type ResolverConfig struct {
	Registry *Registry
	// Caller reads decimals()/symbol() for address inputs.
	Caller chain.Caller
	// Searcher is optional; without it unknown symbols are not found.
	Searcher Searcher
	// ChainID filters search results that name another chain.
	ChainID int64
	Logger  *logrus.Logger
}

type Resolver struct {
	registry *Registry
	erc20    *chain.ERC20
	searcher Searcher
	chainID  int64
	logger   *logrus.Logger
}

func NewResolver(cfg ResolverConfig) *Resolver {
	if cfg.Registry == nil {
		cfg.Registry = NewRegistry()
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Resolver{
		registry: cfg.Registry,
		erc20:    chain.NewERC20(cfg.Caller),
		searcher: cfg.Searcher,
		chainID:  cfg.ChainID,
		logger:   cfg.Logger,
	}
}

func (r *Resolver) Registry() *Registry { return r.registry }

// Resolve maps a symbol, name or hex address to a TokenRef.
// Decimals are never guessed: they come from the chain or the registry.
func (r *Resolver) Resolve(ctx context.Context, nameOrAddress string) (TokenRef, error) {
	in := strings.TrimSpace(nameOrAddress)
	if in == "" {
		return TokenRef{}, swaperr.New(swaperr.CodeTokenNotFound, "token is required")
	}

	if strings.HasPrefix(strings.ToLower(in), "0x") {
		if !common.IsHexAddress(in) {
			return TokenRef{}, swaperr.New(swaperr.CodeTokenNotFound, "malformed token address "+in)
		}
		return r.resolveAddress(ctx, common.HexToAddress(in))
	}

	if ref, ok := r.registry.BySymbol(in); ok {
		return ref, nil
	}
	return r.search(ctx, in)
}

func (r *Resolver) resolveAddress(ctx context.Context, addr common.Address) (TokenRef, error) {
	if chain.IsNative(addr) {
		if ref, ok := r.registry.ByAddress(chain.NativeToken); ok {
			return ref, nil
		}
		return TokenRef{Address: chain.NativeToken, Symbol: "ETH", Decimals: 18, Name: "Ether"}, nil
	}

	known, isKnown := r.registry.ByAddress(addr)

	dec, err := r.erc20.Decimals(ctx, addr)
	if err != nil {
		if isKnown {
			r.logger.WithFields(logrus.Fields{
				"token": addr.Hex(),
				"error": err,
			}).Warn("decimals read failed, using registry value")
			return known, nil
		}
		return TokenRef{}, swaperr.Wrap(swaperr.CodeTokenNotFound, "cannot read decimals for "+addr.Hex(), err)
	}

	ref := TokenRef{Address: addr, Decimals: dec}
	if isKnown {
		ref.Symbol = known.Symbol
		ref.Name = known.Name
		return ref, nil
	}
	if sym, err := r.erc20.Symbol(ctx, addr); err == nil {
		ref.Symbol = sym
	} else {
		r.logger.WithField("token", addr.Hex()).Debug("symbol read failed")
		ref.Symbol = addr.Hex()
	}
	return ref, nil
}

func (r *Resolver) search(ctx context.Context, term string) (TokenRef, error) {
	if r.searcher == nil {
		return TokenRef{}, swaperr.New(swaperr.CodeTokenNotFound, "unknown token "+term)
	}
	results, err := r.searcher.Search(ctx, term)
	if err != nil {
		r.logger.WithFields(logrus.Fields{
			"term":  term,
			"error": err,
		}).Warn("token search failed")
		return TokenRef{}, swaperr.Wrap(swaperr.CodeTokenNotFound, "token search failed for "+term, err)
	}
	for _, res := range results {
		if r.chainID != 0 && res.ChainID != 0 && res.ChainID != r.chainID {
			continue
		}
		if !common.IsHexAddress(res.Address) {
			continue
		}
		return TokenRef{
			Address:  common.HexToAddress(res.Address),
			Symbol:   res.Symbol,
			Decimals: res.Decimals,
			Name:     res.Name,
		}, nil
	}
	return TokenRef{}, swaperr.New(swaperr.CodeTokenNotFound, "unknown token "+term)
}
