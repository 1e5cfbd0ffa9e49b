package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/intentswap/internal/ai"
	"github.com/aman-zulfiqar/intentswap/internal/authnonce"
	"github.com/aman-zulfiqar/intentswap/internal/config"
	"github.com/aman-zulfiqar/intentswap/internal/constants"
	"github.com/aman-zulfiqar/intentswap/internal/server"
	"github.com/aman-zulfiqar/intentswap/internal/swapengine"
)

// env bootstrap function
func loadEnv(logger *logrus.Logger) {
	// Get the project root directory (where go.mod is)
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	envPath := filepath.Join(projectRoot, ".env")

	if err := godotenv.Load(envPath); err != nil {
		logger.Warnf("no .env file found at %s, using system environment variables", envPath)
	} else {
		logger.Infof("loaded .env from %s", envPath)
	}
}

// main is the entry point for the API server
// It wires the swap engine, optional stores and the AI agent, then serves HTTP until signalled
func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logger.SetLevel(logrus.InfoLevel)

	// load .env BEFORE anything reads os.Getenv
	loadEnv(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}
	if cfg.DevMode {
		logger.SetLevel(logrus.DebugLevel)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown (Ctrl+C, SIGTERM)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	engine, err := swapengine.NewEngineFromEnv(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize swap engine")
	}
	defer func() {
		if err := engine.Close(); err != nil {
			logger.WithError(err).Warn("engine close")
		}
	}()
	logger.WithField("wallet", engine.WalletAddress().Hex()).Info("swap wallet ready")

	h := &server.Handlers{
		Swaps:   engine,
		History: engine.History(),
		DevMode: cfg.DevMode,
		Logger:  logger,
	}

	// Nonces live in Redis so every API instance sees them
	if rc := engine.Redis(); rc != nil {
		nonces, err := authnonce.NewStore(rc.Client(), constants.DefaultAuthNonceTTL)
		if err != nil {
			logger.WithError(err).Fatal("failed to create nonce store")
		}
		h.Nonces = nonces
	}

	// AI agent (optional)
	aiBase := ai.AgentConfig{
		ClickHouseAddr:     cfg.ClickHouseAddr,
		ClickHouseDatabase: cfg.ClickHouseDatabase,
		ClickHouseUsername: cfg.ClickHouseUsername,
		ClickHousePassword: cfg.ClickHousePassword,
		OpenRouterAPIKey:   cfg.OpenRouterAPIKey,
		Model:              cfg.AIModel,
		Tools:              swapengine.NewAgentTools(engine),
		Logger:             logger,
	}
	h.AIBaseConfig = aiBase
	if cfg.OpenRouterAPIKey != "" {
		agent, err := ai.NewAgent(ctx, aiBase)
		if err != nil {
			logger.WithError(err).Warn("failed to initialize ai agent")
		} else {
			h.AI = agent
			defer func() {
				_ = agent.Close() // Clean up AI resources on shutdown
			}()
		}
	}

	srv, err := server.NewServer(server.ServerDeps{
		Handlers: h,
		Config: server.ServerConfig{
			Addr:    cfg.APIAddr,
			DevMode: cfg.DevMode,
			APIKey:  cfg.APIKey,
		},
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create http server")
	}

	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
		_ = srv.Shutdown(context.Background())
	}()

	logger.WithField("addr", cfg.APIAddr).Info("api server starting")
	if err := srv.Start(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			if err := srv.WaitClosed(context.Background()); err != nil {
				fmt.Println(err)
			}
			return
		}
		logger.WithError(err).Fatal("api server failed")
	}
}
