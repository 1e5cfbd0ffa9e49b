package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/aman-zulfiqar/intentswap/internal/models"
	"github.com/aman-zulfiqar/intentswap/internal/swapengine"
)

var swapCmd = &cobra.Command{
	Use:     "swap <amount> <sell-token> to <buy-token>",
	Aliases: []string{"execute"},
	Short:   "Quote and execute a swap with the server wallet",
	Args:    cobra.RangeArgs(3, 4),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := intentFromArgs(cmd, args)
		if err != nil {
			return err
		}
		yes, _ := cmd.Flags().GetBool("yes")
		asJSON := jsonOutput(cmd)

		return withEngine(cmd, func(ctx context.Context, engine *swapengine.Engine) error {
			if !yes {
				view, err := engine.Price(ctx, req)
				if err != nil {
					return err
				}
				printPriceView(view)
				if !confirm(fmt.Sprintf("Swap %s %s for about %s %s?", view.SellAmount, view.SellToken.Symbol, view.BuyAmount, view.BuyToken.Symbol)) {
					color.Yellow("Swap cancelled")
					return nil
				}
			}

			s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
			s.Suffix = " Starting swap..."
			var sink swapengine.ProgressSink
			if !asJSON {
				s.Start()
				sink = func(p models.Progress) {
					s.Lock()
					s.Suffix = " " + p.Message
					s.Unlock()
				}
			}
			res, err := engine.Execute(ctx, req, sink)
			s.Stop()

			if res == nil {
				return err
			}
			if asJSON {
				if perr := printJSON(res); perr != nil {
					return perr
				}
				return err
			}
			printResult(res)
			return err
		})
	},
}

func init() {
	swapCmd.Flags().Uint16("slippage-bps", 0, "Slippage tolerance in basis points (0 uses the 0x default)")
	swapCmd.Flags().String("recipient", "", "Address that receives the bought tokens")
	swapCmd.Flags().String("user", "", "User id recorded with the swap")
	swapCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
	rootCmd.AddCommand(swapCmd)
}

func confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func printResult(res *swapengine.SwapResult) {
	fmt.Println()
	switch res.Outcome {
	case swapengine.OutcomeConfirmed:
		color.Green("✓ %s", res.Summary.Message)
	case swapengine.OutcomeReverted:
		color.Yellow("! %s", res.Summary.Message)
	default:
		color.Red("✗ %s", res.Summary.Message)
	}
	fmt.Println()
	fmt.Printf("Execution:  %s\n", res.ExecutionID)
	fmt.Printf("Attempts:   %d\n", res.Attempts)
	if res.ApprovalTxHash != "" {
		fmt.Printf("Approval:   %s\n", res.ApprovalTxHash)
	}
	if res.TxHash != "" {
		fmt.Printf("Swap tx:    %s\n", res.TxHash)
	}
	if res.ForwardTxHash != "" {
		fmt.Printf("Forward tx: %s\n", res.ForwardTxHash)
	}
	if res.Summary.ExplorerURL != "" {
		color.Cyan("%s", res.Summary.ExplorerURL)
	}
	if !res.Summary.RetrySafe {
		color.Yellow("Check the transaction before retrying.")
	}
}
