package history

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/intentswap/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleRecord(hash string) models.SwapHistoryRecord {
	return models.SwapHistoryRecord{
		UserID:     "user-1",
		TxHash:     hash,
		SellToken:  "0x4200000000000000000000000000000000000006",
		SellSymbol: "WETH",
		SellAmount: "0.1",
		BuyToken:   "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		BuySymbol:  "USDC",
		BuyAmount:  "300.5",
	}
}

func TestStore_CreateDefaultsStatus(t *testing.T) {
	store := openTestStore(t)

	rec, created, err := store.Create(context.Background(), sampleRecord("0xAA"))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, models.StatusConfirmed, rec.Status)
	assert.Equal(t, "0xaa", rec.TxHash)
	assert.False(t, rec.CreatedAt.IsZero())
}

func TestStore_DuplicateReturnsOriginal(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first := sampleRecord("0xbb")
	first.CreatedAt = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	orig, created, err := store.Create(ctx, first)
	require.NoError(t, err)
	require.True(t, created)

	dup := sampleRecord("0xBB")
	dup.BuyAmount = "999"
	dup.Status = models.StatusReverted
	got, created, err := store.Create(ctx, dup)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, orig, got)
	assert.Equal(t, "300.5", got.BuyAmount)
}

func TestStore_ConcurrentCreateSingleRow(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		creates int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, created, err := store.Create(ctx, sampleRecord("0xcc"))
			if err != nil {
				return
			}
			if created {
				mu.Lock()
				creates++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, creates)

	list, err := store.ListByUser(ctx, "user-1", 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestStore_ListByUserNewestFirst(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		rec := sampleRecord(fmt.Sprintf("0x%02d", i))
		rec.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		_, _, err := store.Create(ctx, rec)
		require.NoError(t, err)
	}
	other := sampleRecord("0xff")
	other.UserID = "user-2"
	_, _, err := store.Create(ctx, other)
	require.NoError(t, err)

	list, err := store.ListByUser(ctx, "user-1", 3)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "0x04", list[0].TxHash)
	assert.Equal(t, "0x02", list[2].TxHash)
}

func TestStore_GetByHashMissing(t *testing.T) {
	store := openTestStore(t)

	_, err := store.GetByHash(context.Background(), "0xnope")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestStore_CreateValidation(t *testing.T) {
	store := openTestStore(t)

	rec := sampleRecord("")
	_, _, err := store.Create(context.Background(), rec)
	assert.Error(t, err)

	rec = sampleRecord("0x1")
	rec.UserID = ""
	_, _, err = store.Create(context.Background(), rec)
	assert.Error(t, err)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 50, ClampLimit(0))
	assert.Equal(t, 10, ClampLimit(10))
	assert.Equal(t, 200, ClampLimit(5000))
}
