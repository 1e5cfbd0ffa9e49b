package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aman-zulfiqar/intentswap/internal/config"
	"github.com/aman-zulfiqar/intentswap/internal/swapengine"
)

var rootCmd = &cobra.Command{
	Use:   "swapengine",
	Short: "Quote and execute token swaps on Base through the 0x Swap API",
	Long: `swapengine drives the IntentSwap engine from the command line using the
configured server wallet.

Configuration comes from the environment (.env is loaded), overridden by
INTENTSWAP_* variables, an optional .intentswap.yaml in $HOME or the current
directory, and finally flags.

Examples:
  swapengine price 0.1 ETH to USDC
  swapengine swap 100 USDC to WETH --slippage-bps 50
  swapengine balance USDC
  swapengine resolve 0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Version:       "0.1.0",
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
	rootCmd.PersistentFlags().String("rpc-url", "", "Base JSON-RPC endpoint")
	rootCmd.PersistentFlags().String("history-db", "", "Swap history SQLite path")

	_ = viper.BindPFlag("rpc_url", rootCmd.PersistentFlags().Lookup("rpc-url"))
	_ = viper.BindPFlag("history_db_path", rootCmd.PersistentFlags().Lookup("history-db"))
}

// loadConfig layers viper (INTENTSWAP_* env, .intentswap.yaml, flags) over config.Load.
func loadConfig() (*config.Config, error) {
	viper.SetConfigName(".intentswap")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME")
	viper.AddConfigPath(".")
	viper.SetEnvPrefix("INTENTSWAP")
	viper.AutomaticEnv()
	_ = viper.ReadInConfig()

	cfg := config.Load()
	overrides := map[string]*string{
		"rpc_url":             &cfg.RPCURL,
		"zero_ex_base_url":    &cfg.ZeroExBaseURL,
		"zero_ex_api_key":     &cfg.ZeroExAPIKey,
		"cdp_api_key":         &cfg.CDPAPIKey,
		"token_registry_path": &cfg.TokenRegistryPath,
		"wallet_private_key":  &cfg.WalletPrivateKey,
		"wallet_keystore_dir": &cfg.WalletKeystoreDir,
		"redis_addr":          &cfg.RedisAddr,
		"history_db_path":     &cfg.HistoryDBPath,
		"explorer_url":        &cfg.ExplorerURL,
	}
	for key, dst := range overrides {
		if v := viper.GetString(key); v != "" {
			*dst = v
		}
	}
	if viper.IsSet("chain_id") {
		cfg.ChainID = viper.GetInt64("chain_id")
	}
	if viper.IsSet("submit_attempts") {
		cfg.SubmitAttempts = viper.GetInt("submit_attempts")
	}
	if viper.IsSet("allowed_tokens") {
		cfg.AllowedTokens = viper.GetStringSlice("allowed_tokens")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.HasWallet() {
		return nil, fmt.Errorf("no wallet configured: set WALLET_PRIVATE_KEY or WALLET_KEYSTORE_DIR (or INTENTSWAP_WALLET_PRIVATE_KEY)")
	}
	return cfg, nil
}

// withEngine builds an engine for one command and closes it afterwards.
func withEngine(cmd *cobra.Command, fn func(ctx context.Context, engine *swapengine.Engine) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05"})
	logger.SetOutput(io.Discard)
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		logger.SetOutput(os.Stderr)
		logger.SetLevel(logrus.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := swapengine.NewEngineFromEnv(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer engine.Close()

	return fn(ctx, engine)
}

func jsonOutput(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func printError(err error) {
	color.New(color.FgRed).Fprintf(os.Stderr, "\nError: %v\n\n", err)
}

// parseSwapArgs accepts "<amount> <sell> to <buy>" or "<amount> <sell> <buy>".
func parseSwapArgs(args []string) (amount, sell, buy string, err error) {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		if !strings.EqualFold(a, "to") {
			parts = append(parts, a)
		}
	}
	if len(parts) != 3 {
		return "", "", "", fmt.Errorf("expected <amount> <sell-token> to <buy-token>, got %q", strings.Join(args, " "))
	}
	return parts[0], parts[1], parts[2], nil
}
