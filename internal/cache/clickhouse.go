package cache

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/intentswap/internal/models"
	"github.com/aman-zulfiqar/intentswap/internal/storage"
)

type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
	Logger   *logrus.Logger
}

// ClickHouseStore records one analytics row per terminal swap attempt.
type ClickHouseStore struct {
	conn driver.Conn
}

var _ storage.ExecutionStore = (*ClickHouseStore)(nil)

const createExecutionsTable = `
	CREATE TABLE IF NOT EXISTS swap_executions (
		execution_id String,
		timestamp DateTime64(3),
		wallet String,
		user_id String,
		pair String,
		sell_token String,
		buy_token String,
		sell_amount String,
		buy_amount String,
		outcome LowCardinality(String),
		stage LowCardinality(String),
		error_code LowCardinality(String),
		tx_hash String,
		attempts UInt8,
		duration_ms Int64
	) ENGINE = MergeTree
	ORDER BY (timestamp, execution_id)
`

func NewClickHouseStore(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseStore, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}
	if err := conn.Exec(ctx, createExecutionsTable); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create swap_executions: %w", err)
	}

	cfg.Logger.WithField("addr", cfg.Addr).Info("connected to ClickHouse")
	return &ClickHouseStore{conn: conn}, nil
}

func (c *ClickHouseStore) InsertExecution(ctx context.Context, ev *models.ExecutionEvent) error {
	query := `
		INSERT INTO swap_executions (
			execution_id, timestamp, wallet, user_id, pair, sell_token, buy_token,
			sell_amount, buy_amount, outcome, stage, error_code, tx_hash, attempts, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	err := c.conn.Exec(ctx, query,
		ev.ExecutionID,
		ev.Timestamp,
		ev.Wallet,
		ev.UserID,
		ev.Pair,
		ev.SellToken,
		ev.BuyToken,
		ev.SellAmount,
		ev.BuyAmount,
		ev.Outcome,
		ev.Stage,
		ev.ErrorCode,
		ev.TxHash,
		uint8(ev.Attempts),
		ev.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("failed to insert execution: %w", err)
	}
	return nil
}

func (c *ClickHouseStore) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

func (c *ClickHouseStore) Close() error {
	return c.conn.Close()
}
