package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/aman-zulfiqar/intentswap/internal/history"
	"github.com/aman-zulfiqar/intentswap/internal/models"
	"github.com/aman-zulfiqar/intentswap/internal/swapengine"
)

var balanceCmd = &cobra.Command{
	Use:   "balance <token>",
	Short: "Show a token balance for the wallet or another address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		address, _ := cmd.Flags().GetString("address")
		return withEngine(cmd, func(ctx context.Context, engine *swapengine.Engine) error {
			view, err := engine.Balance(ctx, args[0], address)
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return printJSON(view)
			}
			fmt.Printf("%s %s  (%s)\n", color.CyanString(view.Balance), view.Token.Symbol, view.Address)
			return nil
		})
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <symbol|address>",
	Short: "Resolve a token symbol or address on Base",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, engine *swapengine.Engine) error {
			ref, err := engine.ResolveToken(ctx, args[0])
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return printJSON(ref)
			}
			fmt.Printf("%s  %s  decimals=%d\n", color.CyanString(ref.Symbol), ref.Address.Hex(), ref.Decimals)
			if ref.Name != "" {
				fmt.Println(ref.Name)
			}
			return nil
		})
	},
}

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Show the server wallet address and ETH balance",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, engine *swapengine.Engine) error {
			info, err := engine.GetWalletInfo(ctx)
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return printJSON(info)
			}
			fmt.Printf("Address:  %s\n", info.Address)
			fmt.Printf("Chain:    %d\n", info.ChainID)
			fmt.Printf("Balance:  %s ETH\n", color.CyanString(info.BalanceETH))
			return nil
		})
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded swaps for a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		limit, _ := cmd.Flags().GetInt("limit")
		return withEngine(cmd, func(ctx context.Context, engine *swapengine.Engine) error {
			store := engine.History()
			if store == nil {
				return fmt.Errorf("swap history is not configured")
			}
			if user == "" {
				user = strings.ToLower(engine.WalletAddress().Hex())
			}
			records, err := store.ListByUser(ctx, user, history.ClampLimit(limit))
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return printJSON(records)
			}
			if len(records) == 0 {
				color.Yellow("No swaps recorded for %s", user)
				return nil
			}
			for _, r := range records {
				status := r.Status
				switch status {
				case models.StatusConfirmed:
					status = color.GreenString(status)
				case models.StatusFailed, models.StatusReverted:
					status = color.RedString(status)
				default:
					status = color.YellowString(status)
				}
				fmt.Printf("%s  %s %s -> %s %s  %s  %s\n",
					r.CreatedAt.Format("2006-01-02 15:04"), r.SellAmount, r.SellSymbol,
					r.BuyAmount, r.BuySymbol, status, r.TxHash)
			}
			return nil
		})
	},
}

func init() {
	balanceCmd.Flags().String("address", "", "Holder address (defaults to the wallet)")
	historyCmd.Flags().String("user", "", "User id (defaults to the wallet address)")
	historyCmd.Flags().Int("limit", 20, "Maximum records to list")
	rootCmd.AddCommand(balanceCmd, resolveCmd, walletCmd, historyCmd)
}
