package main

import (
	"context"
	"fmt"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/aman-zulfiqar/intentswap/internal/swapengine"
)

var priceCmd = &cobra.Command{
	Use:   "price <amount> <sell-token> to <buy-token>",
	Short: "Get an indicative price",
	Args:  cobra.RangeArgs(3, 4),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := intentFromArgs(cmd, args)
		if err != nil {
			return err
		}
		return withEngine(cmd, func(ctx context.Context, engine *swapengine.Engine) error {
			s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
			s.Suffix = " Fetching price..."
			if !jsonOutput(cmd) {
				s.Start()
			}
			view, err := engine.Price(ctx, req)
			s.Stop()
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return printJSON(view)
			}
			printPriceView(view)
			return nil
		})
	},
}

var quoteCmd = &cobra.Command{
	Use:   "quote <amount> <sell-token> to <buy-token>",
	Short: "Get a binding quote for the server wallet",
	Args:  cobra.RangeArgs(3, 4),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := intentFromArgs(cmd, args)
		if err != nil {
			return err
		}
		return withEngine(cmd, func(ctx context.Context, engine *swapengine.Engine) error {
			s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
			s.Suffix = " Fetching quote..."
			if !jsonOutput(cmd) {
				s.Start()
			}
			view, err := engine.Quote(ctx, req)
			s.Stop()
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return printJSON(view)
			}
			printPriceView(&view.PriceView)
			if view.Quote != nil {
				fmt.Printf("Settlement:   %s\n", view.Quote.Transaction.To)
				if view.Quote.HasPermit() {
					fmt.Println("Permit2:      signature required")
				}
			}
			return nil
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{priceCmd, quoteCmd} {
		c.Flags().Uint16("slippage-bps", 0, "Slippage tolerance in basis points (0 uses the 0x default)")
		c.Flags().String("recipient", "", "Address that receives the bought tokens")
		c.Flags().String("user", "", "User id recorded with the swap")
		rootCmd.AddCommand(c)
	}
}

func intentFromArgs(cmd *cobra.Command, args []string) (swapengine.IntentRequest, error) {
	amount, sell, buy, err := parseSwapArgs(args)
	if err != nil {
		return swapengine.IntentRequest{}, err
	}
	req := swapengine.IntentRequest{SellToken: sell, BuyToken: buy, SellAmount: amount}
	req.Recipient, _ = cmd.Flags().GetString("recipient")
	req.UserID, _ = cmd.Flags().GetString("user")
	if cmd.Flags().Changed("slippage-bps") {
		bps, _ := cmd.Flags().GetUint16("slippage-bps")
		req.SlippageBps = &bps
	}
	return req, nil
}

func printPriceView(v *swapengine.PriceView) {
	cyan := color.New(color.FgCyan).SprintFunc()
	fmt.Printf("\n%s %s -> %s %s\n\n", cyan(v.SellAmount), v.SellToken.Symbol, cyan(v.BuyAmount), v.BuyToken.Symbol)
	if v.MinBuyAmount != "" {
		fmt.Printf("Min received: %s %s\n", v.MinBuyAmount, v.BuyToken.Symbol)
	}
	if v.TotalNetworkFee != "" {
		fmt.Printf("Network fee:  %s ETH\n", v.TotalNetworkFee)
	}
	if v.AllowanceRequired {
		color.Yellow("An approval transaction is required before this swap.")
	}
	if v.BalanceShortfall {
		color.Red("The wallet balance is too low for this swap.")
	}
}
