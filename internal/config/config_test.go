package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CHAIN_ID", "")
	t.Setenv("SUBMIT_ATTEMPTS", "")
	t.Setenv("SUBMIT_RETRY_DELAY", "")

	cfg := Load()
	assert.Equal(t, int64(8453), cfg.ChainID)
	assert.Equal(t, 3, cfg.SubmitAttempts)
	assert.Equal(t, 2*time.Second, cfg.SubmitRetryDelay)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("CHAIN_ID", "84532")
	t.Setenv("SUBMIT_RETRY_DELAY", "250ms")
	t.Setenv("ALLOWED_TOKENS", "usdc, weth,,eth")
	t.Setenv("SIMULATE_TX", "false")
	t.Setenv("GAS_MULTIPLIER", "not-a-number")

	cfg := Load()
	assert.Equal(t, int64(84532), cfg.ChainID)
	assert.Equal(t, 250*time.Millisecond, cfg.SubmitRetryDelay)
	assert.Equal(t, []string{"USDC", "WETH", "ETH"}, cfg.AllowedTokens)
	assert.False(t, cfg.SimulateTx)
	assert.Equal(t, 1.2, cfg.GasMultiplier)
}

func TestValidate(t *testing.T) {
	cfg := Load()
	require.NoError(t, cfg.Validate())

	bad := *cfg
	bad.SubmitAttempts = 0
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.WalletKeystoreDir = "/tmp/ks"
	bad.WalletKeystorePassword = ""
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.GasMultiplier = 0.5
	assert.Error(t, bad.Validate())
}
