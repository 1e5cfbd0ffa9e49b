// Package history persists executed swaps in SQLite, one row per transaction hash.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"github.com/aman-zulfiqar/intentswap/internal/constants"
	"github.com/aman-zulfiqar/intentswap/internal/models"
	"github.com/aman-zulfiqar/intentswap/internal/storage"
)

var ErrNotFound = errors.New("history record not found")

type Store struct {
	db *sql.DB
	// mu serialises writers in this process; lock covers other processes.
	mu   sync.Mutex
	lock *flock.Flock
}

var _ storage.HistoryStore = (*Store)(nil)

// OpenStore opens (or creates) the database at path. Writes from every
// process sharing the file serialise on path + ".lock".
func OpenStore(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("history store path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	queries := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		`CREATE TABLE IF NOT EXISTS swap_history (
			tx_hash TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			sell_token TEXT NOT NULL,
			sell_symbol TEXT NOT NULL,
			sell_amount TEXT NOT NULL,
			buy_token TEXT NOT NULL,
			buy_symbol TEXT NOT NULL,
			buy_amount TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);`,
		"CREATE INDEX IF NOT EXISTS idx_swap_history_user_created ON swap_history(user_id, created_at DESC);",
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init history schema: %w", err)
		}
	}
	return &Store{db: db, lock: flock.New(path + ".lock")}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Create stores rec unless its tx hash is already present. Either way the
// stored row is returned; created reports whether this call wrote it.
func (s *Store) Create(ctx context.Context, rec models.SwapHistoryRecord) (models.SwapHistoryRecord, bool, error) {
	rec.TxHash = strings.ToLower(strings.TrimSpace(rec.TxHash))
	if rec.TxHash == "" {
		return models.SwapHistoryRecord{}, false, fmt.Errorf("create history: missing tx hash")
	}
	if strings.TrimSpace(rec.UserID) == "" {
		return models.SwapHistoryRecord{}, false, fmt.Errorf("create history: missing user id")
	}
	if rec.Status == "" {
		rec.Status = models.StatusConfirmed
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	locked, err := s.lock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return models.SwapHistoryRecord{}, false, fmt.Errorf("lock history store: %w", err)
	}
	if !locked {
		return models.SwapHistoryRecord{}, false, fmt.Errorf("lock history store: timeout acquiring lock")
	}
	defer func() { _ = s.lock.Unlock() }()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO swap_history (tx_hash, user_id, sell_token, sell_symbol, sell_amount, buy_token, buy_symbol, buy_amount, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tx_hash) DO NOTHING
	`, rec.TxHash, rec.UserID, rec.SellToken, rec.SellSymbol, rec.SellAmount,
		rec.BuyToken, rec.BuySymbol, rec.BuyAmount, rec.Status, rec.CreatedAt.UnixMilli())
	if err != nil {
		return models.SwapHistoryRecord{}, false, fmt.Errorf("insert history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return models.SwapHistoryRecord{}, false, fmt.Errorf("insert history: %w", err)
	}

	stored, err := s.GetByHash(ctx, rec.TxHash)
	if err != nil {
		return models.SwapHistoryRecord{}, false, err
	}
	return *stored, n == 1, nil
}

func (s *Store) GetByHash(ctx context.Context, txHash string) (*models.SwapHistoryRecord, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+" WHERE tx_hash = ?", strings.ToLower(strings.TrimSpace(txHash)))
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read history: %w", err)
	}
	return &rec, nil
}

// ListByUser returns newest first. limit <= 0 means the default; it is capped.
func (s *Store) ListByUser(ctx context.Context, userID string, limit int) ([]models.SwapHistoryRecord, error) {
	limit = ClampLimit(limit)
	rows, err := s.db.QueryContext(ctx, selectColumns+" WHERE user_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?", userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	out := make([]models.SwapHistoryRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}
	return out, nil
}

func ClampLimit(limit int) int {
	if limit <= 0 {
		return constants.DefaultHistoryLimit
	}
	if limit > constants.MaxHistoryLimit {
		return constants.MaxHistoryLimit
	}
	return limit
}

const selectColumns = `SELECT tx_hash, user_id, sell_token, sell_symbol, sell_amount, buy_token, buy_symbol, buy_amount, status, created_at FROM swap_history`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (models.SwapHistoryRecord, error) {
	var (
		rec     models.SwapHistoryRecord
		created int64
	)
	err := row.Scan(&rec.TxHash, &rec.UserID, &rec.SellToken, &rec.SellSymbol, &rec.SellAmount,
		&rec.BuyToken, &rec.BuySymbol, &rec.BuyAmount, &rec.Status, &created)
	if err != nil {
		return rec, err
	}
	rec.CreatedAt = time.UnixMilli(created).UTC()
	return rec, nil
}
