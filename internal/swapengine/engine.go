package swapengine

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/intentswap/internal/allowance"
	"github.com/aman-zulfiqar/intentswap/internal/balance"
	"github.com/aman-zulfiqar/intentswap/internal/cache"
	"github.com/aman-zulfiqar/intentswap/internal/config"
	"github.com/aman-zulfiqar/intentswap/internal/constants"
	swaperr "github.com/aman-zulfiqar/intentswap/internal/errors"
	"github.com/aman-zulfiqar/intentswap/internal/history"
	"github.com/aman-zulfiqar/intentswap/internal/metrics"
	"github.com/aman-zulfiqar/intentswap/internal/models"
	"github.com/aman-zulfiqar/intentswap/internal/permit"
	"github.com/aman-zulfiqar/intentswap/internal/rpc"
	"github.com/aman-zulfiqar/intentswap/internal/storage"
	"github.com/aman-zulfiqar/intentswap/internal/tokens"
	"github.com/aman-zulfiqar/intentswap/internal/wallet"
	"github.com/aman-zulfiqar/intentswap/internal/zeroex"
)

// PriceQuoter is satisfied by zeroex.Client.
type PriceQuoter interface {
	Quoter
	Price(ctx context.Context, req zeroex.PriceRequest) (*zeroex.PriceResponse, error)
}

// Engine is the main orchestrator for swap operations
type Engine struct {
	wallet     *wallet.Wallet
	quotes     PriceQuoter
	resolver   TokenResolver
	balances   *balance.Reader
	parser     *IntentParser
	executor   *Executor
	history    storage.HistoryStore
	redisCache *cache.RedisCache
	clickhouse *cache.ClickHouseStore
	chainID    int64
	logger     *logrus.Logger
}

// EngineConfig holds the engine's collaborators. Wallet, Quotes and Resolver
// are required; the stores are optional.
type EngineConfig struct {
	Wallet   *wallet.Wallet
	Quotes   PriceQuoter
	Resolver TokenResolver

	History    storage.HistoryStore
	Redis      *cache.RedisCache
	ClickHouse *cache.ClickHouseStore

	Guard GuardConfig

	ChainID          int64
	SubmitAttempts   int
	SubmitRetryDelay time.Duration
	ConfirmTimeout   time.Duration
	ExplorerURL      string

	Logger *logrus.Logger
}

// NewEngine wires the executor and its collaborators around one wallet.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Wallet == nil || cfg.Quotes == nil || cfg.Resolver == nil {
		return nil, fmt.Errorf("engine: Wallet, Quotes and Resolver are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.ChainID == 0 {
		cfg.ChainID = cfg.Wallet.ChainID().Int64()
	}

	w := cfg.Wallet
	balances := balance.NewReader(w.Backend(), cfg.Logger)

	execCfg := ExecutorConfig{
		Quoter:           cfg.Quotes,
		Approver:         allowance.NewManager(w.Backend(), w, cfg.Logger),
		Permitter:        permit.NewSigner(w.Signer()),
		Wallet:           w,
		Balances:         balances,
		Guard:            NewGuard(cfg.Guard, balances, cfg.Logger),
		Locker:           wallet.NewLocalLocker(),
		History:          cfg.History,
		ChainID:          cfg.ChainID,
		SubmitAttempts:   cfg.SubmitAttempts,
		SubmitRetryDelay: cfg.SubmitRetryDelay,
		ConfirmTimeout:   cfg.ConfirmTimeout,
		ExplorerURL:      cfg.ExplorerURL,
		Logger:           cfg.Logger,
	}
	// nil pointers must not reach the interface fields
	if cfg.Redis != nil {
		execCfg.Recorder = cfg.Redis
		execCfg.Locker = wallet.NewRedisLocker(cfg.Redis.Client(), constants.DefaultWalletLockTTL)
	}
	if cfg.ClickHouse != nil {
		execCfg.Analytics = cfg.ClickHouse
	}

	executor, err := NewExecutor(execCfg)
	if err != nil {
		return nil, err
	}

	return &Engine{
		wallet:     w,
		quotes:     cfg.Quotes,
		resolver:   cfg.Resolver,
		balances:   balances,
		parser:     NewIntentParser(cfg.Resolver, w.Address()),
		executor:   executor,
		history:    cfg.History,
		redisCache: cfg.Redis,
		clickhouse: cfg.ClickHouse,
		chainID:    cfg.ChainID,
		logger:     cfg.Logger,
	}, nil
}

// NewEngineFromEnv creates an engine from loaded configuration. Redis is
// optional at runtime: an unreachable server is logged and skipped.
func NewEngineFromEnv(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*Engine, error) {
	if logger == nil {
		logger = logrus.New()
	}

	// 1. Wallet
	w, err := wallet.NewWalletFromEnv(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}

	// 2. 0x client
	quotes := zeroex.NewClient(cfg.ZeroExBaseURL, cfg.ZeroExAPIKey, cfg.ChainID)
	if cfg.HTTPTimeout > 0 {
		quotes.HTTP.Timeout = cfg.HTTPTimeout
	}

	// 3. Token registry + resolver
	registry := tokens.NewRegistry()
	if cfg.TokenRegistryPath != "" {
		registry, err = tokens.LoadRegistry(cfg.TokenRegistryPath)
		if err != nil {
			_ = w.Close()
			return nil, fmt.Errorf("failed to load token registry: %w", err)
		}
	}
	var searcher tokens.Searcher
	if cfg.CDPAPIKey != "" {
		searcher = tokens.NewRPCSearcher(rpc.NewClient(rpc.ClientConfig{
			BaseURL:      tokens.SearchURL(cfg.TokenSearchURL, cfg.CDPAPIKey),
			Timeout:      cfg.HTTPTimeout,
			MaxRetries:   cfg.MaxRetries,
			RetryBackoff: cfg.RetryBackoff,
			Logger:       logger,
		}))
	}
	resolver := tokens.NewResolver(tokens.ResolverConfig{
		Registry: registry,
		Caller:   w.Backend(),
		Searcher: searcher,
		ChainID:  cfg.ChainID,
		Logger:   logger,
	})

	// 4. History store
	hist, err := history.OpenStore(cfg.HistoryDBPath)
	if err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to open history store: %w", err)
	}

	// 5. Redis cache
	var redisCache *cache.RedisCache
	if cfg.RedisAddr != "" {
		rc := cache.NewRedisCache(cfg.RedisAddr, logger)
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := rc.Ping(pingCtx)
		cancel()
		if err != nil {
			logger.WithFields(logrus.Fields{
				"addr":  cfg.RedisAddr,
				"error": err,
			}).Warn("redis unavailable, running without progress pub/sub and distributed lock")
			_ = rc.Close()
		} else {
			redisCache = rc
		}
	}

	// 6. ClickHouse
	var clickhouseStore *cache.ClickHouseStore
	if cfg.ClickHouseAddr != "" && cfg.ClickHouseDatabase != "" {
		ch, err := cache.NewClickHouseStore(ctx, cache.ClickHouseConfig{
			Addr:     cfg.ClickHouseAddr,
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUsername,
			Password: cfg.ClickHousePassword,
			Logger:   logger,
		})
		if err != nil {
			_ = w.Close()
			_ = hist.Close()
			if redisCache != nil {
				_ = redisCache.Close()
			}
			return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
		}
		clickhouseStore = ch
	}

	return NewEngine(EngineConfig{
		Wallet:     w,
		Quotes:     quotes,
		Resolver:   resolver,
		History:    hist,
		Redis:      redisCache,
		ClickHouse: clickhouseStore,
		Guard: GuardConfig{
			AllowedTokens: cfg.AllowedTokens,
			CheckBalance:  true,
		},
		ChainID:          cfg.ChainID,
		SubmitAttempts:   cfg.SubmitAttempts,
		SubmitRetryDelay: cfg.SubmitRetryDelay,
		ConfirmTimeout:   cfg.ConfirmTimeout,
		ExplorerURL:      cfg.ExplorerURL,
		Logger:           logger,
	})
}

// ParseIntent validates and resolves a request without quoting it.
func (e *Engine) ParseIntent(ctx context.Context, req IntentRequest) (*SwapIntent, error) {
	return e.parser.Parse(ctx, req)
}

// Price returns an indicative price for a swap intent without executing
func (e *Engine) Price(ctx context.Context, req IntentRequest) (*PriceView, error) {
	intent, err := e.parser.Parse(ctx, req)
	if err != nil {
		return nil, err
	}
	resp, err := e.quotes.Price(ctx, zeroex.PriceRequest{
		ChainID:     e.chainID,
		SellToken:   zeroexToken(intent.SellToken),
		BuyToken:    zeroexToken(intent.BuyToken),
		SellAmount:  intent.SellAmount.String(),
		Taker:       intent.Taker.Hex(),
		SlippageBps: intent.SlippageBps,
	})
	if err != nil {
		metrics.QuoteRequests.WithLabelValues("price", "error").Inc()
		return nil, err
	}
	metrics.QuoteRequests.WithLabelValues("price", "ok").Inc()
	return priceView(intent, resp), nil
}

// Quote returns a binding quote for the wallet without executing it.
func (e *Engine) Quote(ctx context.Context, req IntentRequest) (*QuoteView, error) {
	intent, err := e.parser.Parse(ctx, req)
	if err != nil {
		return nil, err
	}
	q, err := e.executor.quote(ctx, intent)
	if err != nil {
		return nil, err
	}
	return &QuoteView{PriceView: *priceView(intent, &q.PriceResponse), Quote: q}, nil
}

// Execute parses the request and runs it through the executor. Parse
// failures return before any attempt exists.
func (e *Engine) Execute(ctx context.Context, req IntentRequest, sink ProgressSink) (*SwapResult, error) {
	intent, err := e.parser.Parse(ctx, req)
	if err != nil {
		return nil, err
	}
	return e.executor.Execute(ctx, intent, sink)
}

// Balance reads token's balance for address, or for the wallet when address is empty.
func (e *Engine) Balance(ctx context.Context, token, address string) (*BalanceView, error) {
	ref, err := e.resolver.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	holder := e.wallet.Address()
	if a := strings.TrimSpace(address); a != "" {
		if !common.IsHexAddress(a) {
			return nil, swaperr.New(swaperr.CodeInvalid, "address is not a valid hex address")
		}
		holder = common.HexToAddress(a)
	}
	return &BalanceView{
		Token:   ref,
		Address: holder.Hex(),
		Balance: e.balances.GetBalance(ctx, ref, holder),
	}, nil
}

func (e *Engine) ResolveToken(ctx context.Context, q string) (tokens.TokenRef, error) {
	return e.resolver.Resolve(ctx, q)
}

func (e *Engine) WalletAddress() common.Address {
	return e.wallet.Address()
}

// GetWalletInfo returns wallet status
func (e *Engine) GetWalletInfo(ctx context.Context) (*WalletInfo, error) {
	bal, err := e.wallet.NativeBalance(ctx)
	if err != nil {
		return nil, swaperr.Wrap(swaperr.CodeBalanceReadFailed, "read wallet balance", err)
	}
	return &WalletInfo{
		Address:    e.wallet.Address().Hex(),
		ChainID:    e.chainID,
		BalanceETH: tokens.FormatUnits(bal, 18),
	}, nil
}

// History returns the swap history store, or nil when none is configured.
func (e *Engine) History() storage.HistoryStore {
	return e.history
}

// Redis returns the shared Redis cache, or nil when Redis is not in use.
func (e *Engine) Redis() *cache.RedisCache {
	return e.redisCache
}

// RecentExecutions returns the newest terminal attempts from the recent list.
func (e *Engine) RecentExecutions(ctx context.Context, limit int64) ([]*models.ExecutionEvent, error) {
	if e.redisCache == nil {
		return nil, fmt.Errorf("recent executions require redis")
	}
	if limit <= 0 || limit > constants.MaxRecentExecutions {
		limit = constants.MaxRecentExecutions
	}
	return e.redisCache.GetRecentExecutions(ctx, limit)
}

// Health pings every configured dependency. Missing ones are reported as "disabled".
func (e *Engine) Health(ctx context.Context) map[string]string {
	out := map[string]string{"rpc": "ok", "redis": "disabled", "clickhouse": "disabled"}
	if _, err := e.wallet.Backend().ChainID(ctx); err != nil {
		out["rpc"] = err.Error()
	}
	if e.redisCache != nil {
		out["redis"] = "ok"
		if err := e.redisCache.Ping(ctx); err != nil {
			out["redis"] = err.Error()
		}
	}
	if e.clickhouse != nil {
		out["clickhouse"] = "ok"
		if err := e.clickhouse.Ping(ctx); err != nil {
			out["clickhouse"] = err.Error()
		}
	}
	return out
}

// Close cleans up all resources
func (e *Engine) Close() error {
	var errs []error

	if err := e.wallet.Close(); err != nil {
		errs = append(errs, fmt.Errorf("wallet close: %w", err))
	}

	if e.history != nil {
		if err := e.history.Close(); err != nil {
			errs = append(errs, fmt.Errorf("history close: %w", err))
		}
	}

	if e.redisCache != nil {
		if err := e.redisCache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}

	if e.clickhouse != nil {
		if err := e.clickhouse.Close(); err != nil {
			errs = append(errs, fmt.Errorf("clickhouse close: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}

	return nil
}

func priceView(intent *SwapIntent, resp *zeroex.PriceResponse) *PriceView {
	v := &PriceView{
		SellToken:         intent.SellToken,
		BuyToken:          intent.BuyToken,
		SellAmount:        intent.SellAmountHuman,
		BuyAmount:         formatBase(resp.BuyAmount, intent.BuyToken.Decimals),
		MinBuyAmount:      formatBase(resp.MinBuyAmount, intent.BuyToken.Decimals),
		Gas:               resp.Gas,
		AllowanceRequired: resp.Issues.Allowance != nil && !intent.SellToken.IsNative(),
		BalanceShortfall:  resp.Issues.Balance != nil,
	}
	if resp.TotalNetworkFee != "" {
		if fee, ok := new(big.Int).SetString(resp.TotalNetworkFee, 10); ok {
			v.TotalNetworkFee = tokens.FormatUnits(fee, 18)
		}
	}
	return v
}
