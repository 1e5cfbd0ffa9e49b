package storage

import (
	"context"
	"io"

	"github.com/aman-zulfiqar/intentswap/internal/models"
)

// HistoryStore persists swap history records keyed by transaction hash.
type HistoryStore interface {
	// Create inserts rec unless a record with the same tx hash exists, in which
	// case the existing record is returned and created is false.
	Create(ctx context.Context, rec models.SwapHistoryRecord) (out models.SwapHistoryRecord, created bool, err error)

	// GetByHash returns the record for txHash.
	GetByHash(ctx context.Context, txHash string) (*models.SwapHistoryRecord, error)

	// ListByUser returns the newest records for userID.
	ListByUser(ctx context.Context, userID string, limit int) ([]models.SwapHistoryRecord, error)

	io.Closer
}

// ExecutionCache keeps recent executions and fans out live progress.
type ExecutionCache interface {
	// AddRecentExecution adds an event to the recent executions list
	AddRecentExecution(ctx context.Context, ev *models.ExecutionEvent) error

	// GetRecentExecutions retrieves the most recent execution events
	GetRecentExecutions(ctx context.Context, limit int64) ([]*models.ExecutionEvent, error)

	// PublishProgress publishes a progress update to the Pub/Sub channels
	PublishProgress(ctx context.Context, p *models.Progress) error

	// SubscribeProgress subscribes to progress updates for all executions
	SubscribeProgress(ctx context.Context) (<-chan *models.Progress, error)

	// Ping checks if the cache is reachable
	Ping(ctx context.Context) error

	io.Closer
}

// ExecutionStore defines the interface for persistent execution analytics
type ExecutionStore interface {
	// InsertExecution inserts an execution event into the store
	InsertExecution(ctx context.Context, ev *models.ExecutionEvent) error

	// Ping checks if the store is reachable
	Ping(ctx context.Context) error

	io.Closer
}
