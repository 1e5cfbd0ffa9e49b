package constants

import "time"

// Chains
const (
	BaseChainID = 8453
)

// 0x Swap API
const (
	ZeroExBaseURL      = "https://api.0x.org"
	ZeroExPricePath    = "/swap/permit2/price"
	ZeroExQuotePath    = "/swap/permit2/quote"
	ZeroExVersion      = "v2"
	ZeroExAPIKeyHeader = "0x-api-key"
	ZeroExVersionHdr   = "0x-version"
)

// Token metadata search (OnchainKit / CDP JSON-RPC)
const (
	TokenSearchMethod = "cdp_listSwapAssets"
)

// Redis keys
const (
	RedisKeyRecentExecutions = "swaps:recent"
	RedisKeyAuthNoncePrefix  = "auth:nonce:"
	RedisKeyWalletLockPrefix = "wallet:lock:"
)

// Redis Pub/Sub channels
const (
	PubSubChannelProgress       = "swaps:progress"
	PubSubChannelProgressPrefix = "swaps:progress:"
)

// Limits
const (
	MaxRecentExecutions = 100
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

// Execution defaults
const (
	DefaultSubmitAttempts   = 3
	DefaultSubmitRetryDelay = 2 * time.Second
	DefaultConfirmTimeout   = 2 * time.Minute
	DefaultPollInterval     = 2 * time.Second
	DefaultWalletLockTTL    = 5 * time.Minute
	DefaultAuthNonceTTL     = 5 * time.Minute
)
