package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// API server
	APIAddr string
	APIKey  string
	DevMode bool

	// Chain
	RPCURL      string
	ChainID     int64
	ExplorerURL string

	// 0x Swap API
	ZeroExBaseURL string
	ZeroExAPIKey  string

	// Token metadata
	TokenSearchURL    string
	CDPAPIKey         string
	TokenRegistryPath string

	// Server wallet
	WalletPrivateKey       string
	WalletKeystoreDir      string
	WalletKeystorePassword string

	// Redis settings
	RedisAddr string

	// ClickHouse settings
	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUsername string
	ClickHousePassword string

	// History store
	HistoryDBPath string

	// AI
	OpenRouterAPIKey string
	AIModel          string

	// HTTP client settings
	HTTPTimeout  time.Duration
	MaxRetries   int
	RetryBackoff time.Duration

	// Execution
	SubmitAttempts   int
	SubmitRetryDelay time.Duration
	ConfirmTimeout   time.Duration
	PollInterval     time.Duration
	GasMultiplier    float64
	SimulateTx       bool
	AllowedTokens    []string
}

func Load() *Config {
	return &Config{
		// API
		APIAddr: getEnv("API_ADDR", ":8090"),
		APIKey:  getEnv("API_KEY", ""),
		DevMode: getBoolEnv("DEV_MODE", false),

		// Chain (Base mainnet)
		RPCURL:      getEnv("RPC_URL", "https://mainnet.base.org"),
		ChainID:     getInt64Env("CHAIN_ID", 8453),
		ExplorerURL: getEnv("EXPLORER_URL", "https://basescan.org"),

		// 0x
		ZeroExBaseURL: getEnv("ZERO_EX_BASE_URL", "https://api.0x.org"),
		ZeroExAPIKey:  getEnv("ZERO_EX_API_KEY", ""),

		// Tokens
		TokenSearchURL:    getEnv("TOKEN_SEARCH_URL", "https://api.developer.coinbase.com/rpc/v1/base"),
		CDPAPIKey:         getEnv("CDP_API_KEY", ""),
		TokenRegistryPath: getEnv("TOKEN_REGISTRY_PATH", ""),

		// Wallet
		WalletPrivateKey:       getEnv("WALLET_PRIVATE_KEY", ""),
		WalletKeystoreDir:      getEnv("WALLET_KEYSTORE_DIR", ""),
		WalletKeystorePassword: getEnv("WALLET_KEYSTORE_PASSWORD", ""),

		// Redis
		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),

		// ClickHouse
		ClickHouseAddr:     getEnv("CLICKHOUSE_ADDR", ""),
		ClickHouseDatabase: getEnv("CLICKHOUSE_DATABASE", "intentswap"),
		ClickHouseUsername: getEnv("CLICKHOUSE_USERNAME", "default"),
		ClickHousePassword: getEnv("CLICKHOUSE_PASSWORD", ""),

		// History
		HistoryDBPath: getEnv("HISTORY_DB_PATH", "data/history.db"),

		// AI
		OpenRouterAPIKey: getEnv("OPENROUTER_API_KEY", ""),
		AIModel:          getEnv("AI_MODEL", "openai/gpt-4.1-mini"),

		// HTTP
		HTTPTimeout:  getDurationEnv("HTTP_TIMEOUT", 12*time.Second),
		MaxRetries:   getIntEnv("MAX_RETRIES", 3),
		RetryBackoff: getDurationEnv("RETRY_BACKOFF", 500*time.Millisecond),

		// Execution
		SubmitAttempts:   getIntEnv("SUBMIT_ATTEMPTS", 3),
		SubmitRetryDelay: getDurationEnv("SUBMIT_RETRY_DELAY", 2*time.Second),
		ConfirmTimeout:   getDurationEnv("CONFIRM_TIMEOUT", 2*time.Minute),
		PollInterval:     getDurationEnv("RECEIPT_POLL_INTERVAL", 2*time.Second),
		GasMultiplier:    getFloatEnv("GAS_MULTIPLIER", 1.2),
		SimulateTx:       getBoolEnv("SIMULATE_TX", true),
		AllowedTokens:    getListEnv("ALLOWED_TOKENS"),
	}
}

// Validate checks values that have no usable default.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIAddr) == "" {
		return fmt.Errorf("API_ADDR is required")
	}
	if strings.TrimSpace(c.RPCURL) == "" {
		return fmt.Errorf("RPC_URL is required")
	}
	if c.ChainID <= 0 {
		return fmt.Errorf("CHAIN_ID must be > 0")
	}
	if c.SubmitAttempts < 1 {
		return fmt.Errorf("SUBMIT_ATTEMPTS must be >= 1")
	}
	if c.SubmitRetryDelay < 0 {
		return fmt.Errorf("SUBMIT_RETRY_DELAY must be >= 0")
	}
	if c.ConfirmTimeout <= 0 {
		return fmt.Errorf("CONFIRM_TIMEOUT must be > 0")
	}
	if c.GasMultiplier < 1 {
		return fmt.Errorf("GAS_MULTIPLIER must be >= 1")
	}
	if c.WalletKeystoreDir != "" && c.WalletKeystorePassword == "" {
		return fmt.Errorf("WALLET_KEYSTORE_PASSWORD is required with WALLET_KEYSTORE_DIR")
	}
	return nil
}

// HasWallet reports whether a signing key source is configured.
func (c *Config) HasWallet() bool {
	return c.WalletPrivateKey != "" || c.WalletKeystoreDir != ""
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getInt64Env(key string, defaultVal int64) int64 {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			return i
		}
	}
	return defaultVal
}

func getBoolEnv(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getFloatEnv(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getListEnv(key string) []string {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(val, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, strings.ToUpper(p))
		}
	}
	return out
}
