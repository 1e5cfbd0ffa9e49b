// Command subscriber tails live swap progress from Redis pub/sub.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/intentswap/internal/cache"
	"github.com/aman-zulfiqar/intentswap/internal/config"
	"github.com/aman-zulfiqar/intentswap/internal/models"
)

func loadEnv() {
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	_ = godotenv.Load(filepath.Join(projectRoot, ".env"))
}

func main() {
	loadEnv()

	execID := flag.String("execution", "", "follow a single execution id (default: all)")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	rc := cache.NewRedisCache(cfg.RedisAddr, logger)
	defer rc.Close()
	if err := rc.Ping(ctx); err != nil {
		logger.WithError(err).Fatal("failed to connect to Redis")
	}

	var (
		updates <-chan *models.Progress
		err     error
	)
	if *execID != "" {
		updates, err = rc.SubscribeExecution(ctx, *execID)
	} else {
		updates, err = rc.SubscribeProgress(ctx)
	}
	if err != nil {
		logger.WithError(err).Fatal("subscribe failed")
	}

	logger.WithField("addr", cfg.RedisAddr).Info("subscriber running, press Ctrl+C to stop")

	for {
		select {
		case <-sigChan:
			logger.Info("shutting down subscriber")
			return
		case p, ok := <-updates:
			if !ok {
				logger.Warn("progress channel closed")
				return
			}
			printProgress(p)
		}
	}
}

func printProgress(p *models.Progress) {
	stage := color.CyanString("%-16s", p.Stage)
	switch p.Outcome {
	case "confirmed":
		stage = color.GreenString("%-16s", p.Stage)
	case "reverted", "failed":
		stage = color.RedString("%-16s", p.Stage)
	}
	line := p.At.Format("15:04:05") + " " + p.ExecutionID + " " + stage + " " + p.Message
	if p.TxHash != "" {
		line += " " + color.New(color.Faint).Sprint(p.TxHash)
	}
	if p.Attempt > 1 {
		line += color.YellowString(" (attempt %d)", p.Attempt)
	}
	fmt.Fprintln(color.Output, line)
}
