package storage

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ptnguyen/checkout/internal/core/domain"
)

func TestMemoryLedger_ReserveAndRestock(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()

	// untracked products read as zero
	available, err := ledger.GetAvailable(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 0, available)

	ok, err := ledger.Reserve(ctx, "p1", 1)
	require.NoError(t, err)
	assert.False(t, ok, "reserving untracked stock must fail")

	_, err = ledger.Restock(ctx, "p1", 10)
	require.NoError(t, err)

	ok, err = ledger.Reserve(ctx, "p1", 4)
	require.NoError(t, err)
	assert.True(t, ok)

	available, err = ledger.GetAvailable(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 6, available)

	// a reservation larger than stock leaves it untouched
	ok, err = ledger.Reserve(ctx, "p1", 7)
	require.NoError(t, err)
	assert.False(t, ok)
	available, _ = ledger.GetAvailable(ctx, "p1")
	assert.Equal(t, 6, available)
}

func TestMemoryLedger_RestockRejectsNegativeResult(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()
	_, err := ledger.Restock(ctx, "p1", 5)
	require.NoError(t, err)

	_, err = ledger.Restock(ctx, "p1", -10)
	assert.ErrorIs(t, err, ErrNegativeStock)

	available, _ := ledger.GetAvailable(ctx, "p1")
	assert.Equal(t, 5, available)
}

func TestMemoryLedger_SetQuantity(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()

	require.NoError(t, ledger.SetQuantity(ctx, "p1", 42))
	available, _ := ledger.GetAvailable(ctx, "p1")
	assert.Equal(t, 42, available)

	assert.ErrorIs(t, ledger.SetQuantity(ctx, "p1", -1), ErrNegativeStock)
}

func TestMemoryLedger_ListSortedByProduct(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()

	empty, err := ledger.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, ledger.SetQuantity(ctx, "p2", 7))
	require.NoError(t, ledger.SetQuantity(ctx, "p1", 3))

	records, err := ledger.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "p1", records[0].ProductID)
	assert.Equal(t, 3, records[0].Available)
	assert.Equal(t, "p2", records[1].ProductID)
	assert.Equal(t, 7, records[1].Available)
}

func TestMemoryLedger_ConcurrentReserveNeverOversells(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()
	require.NoError(t, ledger.SetQuantity(ctx, "p1", 100))

	const attempts = 150
	var successes int64
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := ledger.Reserve(ctx, "p1", 1)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if ok {
				atomic.AddInt64(&successes, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(100), successes)
	available, _ := ledger.GetAvailable(ctx, "p1")
	assert.Equal(t, 0, available)
}

func TestMemoryStore_CartRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	missing, err := store.GetByUserID(ctx, "user-1")
	require.NoError(t, err)
	assert.Nil(t, missing)

	now := time.Now().UTC()
	cart := domain.NewCart("cart-1", "user-1", now)
	cart.AddItem("item-1", domain.Product{ID: "p1", Name: "Widget", Price: decimal.RequireFromString("3.00")}, 2, now)
	require.NoError(t, store.Save(ctx, cart))

	loaded, err := store.GetByUserID(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Len(t, loaded.Items, 1)
	assert.True(t, loaded.TotalPrice.Equal(decimal.RequireFromString("6.00")))

	// mutating the loaded copy must not leak into the store
	loaded.Clear(now)
	again, _ := store.GetByUserID(ctx, "user-1")
	assert.Len(t, again.Items, 1)
}

func TestMemoryStore_OrdersNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	base := time.Now().UTC()

	for i, id := range []string{"o1", "o2", "o3"} {
		require.NoError(t, store.Create(ctx, &domain.Order{
			ID:          id,
			UserID:      "user-1",
			TotalAmount: decimal.Zero,
			OrderDate:   base.Add(time.Duration(i) * time.Minute),
			Status:      domain.OrderStatusPending,
		}))
	}

	orders, err := store.ListByUserID(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, orders, 3)
	assert.Equal(t, "o3", orders[0].ID)
	assert.Equal(t, "o1", orders[2].ID)
}

func TestMemoryStore_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	order := &domain.Order{ID: "o1", UserID: "user-1", TotalAmount: decimal.Zero, Status: domain.OrderStatusPending}
	require.NoError(t, store.Create(ctx, order))

	order.Status = domain.OrderStatusShipped
	require.NoError(t, store.UpdateStatus(ctx, order))

	loaded, _ := store.GetByID(ctx, "o1")
	assert.Equal(t, domain.OrderStatusShipped, loaded.Status)
}

func TestMemoryStore_UpdateStatusUnknownOrder(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	order := &domain.Order{ID: "ghost", UserID: "user-1", TotalAmount: decimal.Zero, Status: domain.OrderStatusShipped}
	assert.ErrorIs(t, store.UpdateStatus(ctx, order), ErrOrderMissing)
}
