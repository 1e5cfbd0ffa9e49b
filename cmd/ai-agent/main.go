package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/intentswap/internal/ai"
	"github.com/aman-zulfiqar/intentswap/internal/config"
	"github.com/aman-zulfiqar/intentswap/internal/models"
	"github.com/aman-zulfiqar/intentswap/internal/swapengine"
)

func main() {
	_, filename, _, _ := runtime.Caller(0)
	_ = godotenv.Load(filepath.Join(filepath.Dir(filename), "../..", ".env"))

	queryFlag := flag.String("q", "", "Run a single analytics question against ClickHouse and exit")
	modelFlag := flag.String("model", "", "OpenRouter model name (defaults to AI_MODEL)")
	userFlag := flag.String("user", "", "User id recorded with swaps")
	addrFlag := flag.String("address", "", "Recipient address for swaps and balance checks")
	noSwaps := flag.Bool("no-swaps", false, "Chat without wallet tools")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logger.SetLevel(logrus.WarnLevel)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}
	if cfg.OpenRouterAPIKey == "" {
		logger.Fatal("OPENROUTER_API_KEY is required for the AI agent. Please set it in your environment or config.")
	}
	model := cfg.AIModel
	if *modelFlag != "" {
		model = *modelFlag
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	agentCfg := ai.AgentConfig{
		ClickHouseAddr:     cfg.ClickHouseAddr,
		ClickHouseDatabase: cfg.ClickHouseDatabase,
		ClickHouseUsername: cfg.ClickHouseUsername,
		ClickHousePassword: cfg.ClickHousePassword,
		OpenRouterAPIKey:   cfg.OpenRouterAPIKey,
		Model:              model,
		Logger:             logger,
	}

	// Swaps need a wallet; analytics-only mode does not.
	if *queryFlag == "" && !*noSwaps && cfg.HasWallet() {
		engine, err := swapengine.NewEngineFromEnv(ctx, cfg, logger)
		if err != nil {
			logger.WithError(err).Fatal("failed to create swap engine")
		}
		defer engine.Close()

		tools := swapengine.NewAgentTools(engine)
		tools.Progress = func(p models.Progress) {
			fmt.Fprintln(color.Output, color.HiBlackString("  … %s", p.Message))
		}
		agentCfg.Tools = tools
	}

	agent, err := ai.NewAgent(ctx, agentCfg)
	if err != nil {
		logger.WithError(err).Fatal("failed to create AI agent")
	}
	defer agent.Close()

	if *queryFlag != "" {
		if err := runSingle(ctx, agent, *queryFlag); err != nil {
			logger.WithError(err).Fatal("query failed")
		}
		return
	}

	runREPL(ctx, agent, ai.Session{UserID: *userFlag, Address: *addrFlag}, agentCfg.Tools != nil)
}

func runSingle(ctx context.Context, agent *ai.Agent, q string) error {
	res, err := agent.Ask(ctx, q)
	if err != nil {
		return err
	}

	fmt.Printf("SQL:\n%s\n\n", res.SQL)
	fmt.Printf("Answer:\n%s\n", res.Answer)
	return nil
}

func runREPL(ctx context.Context, agent *ai.Agent, session ai.Session, swaps bool) {
	fmt.Println("IntentSwap assistant (Base, via 0x)")
	if swaps {
		fmt.Println("Ask for prices, balances or swaps, e.g. \"swap 10 USDC for WETH\".")
	} else {
		color.Yellow("No wallet configured: swap tools are disabled.")
	}
	fmt.Println("Empty line to exit.")
	fmt.Println()

	reader := bufio.NewReader(os.Stdin)
	var history []ai.ChatMessage

	for {
		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			fmt.Println("error reading input:", err)
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			fmt.Println("bye")
			return
		}

		// Short cooldown to avoid hammering the LLM if user spams enter.
		time.Sleep(200 * time.Millisecond)

		history = append(history, ai.ChatMessage{Role: "user", Content: line})
		res, err := agent.Chat(ctx, session, history)
		if err != nil {
			history = history[:len(history)-1]
			color.Red("error: %v", err)
			if ctx.Err() != nil {
				return
			}
			continue
		}

		for _, tc := range res.ToolCalls {
			if tc.Error != "" {
				fmt.Fprintln(color.Output, color.RedString("  [%s] %s", tc.Name, tc.Error))
				continue
			}
			fmt.Fprintln(color.Output, color.HiBlackString("  [%s] %s", tc.Name, string(tc.Arguments)))
		}
		fmt.Printf("\n%s\n\n", res.Reply)
		history = append(history, ai.ChatMessage{Role: "assistant", Content: res.Reply})
	}
}
