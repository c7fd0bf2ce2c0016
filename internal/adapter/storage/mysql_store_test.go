package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ptnguyen/checkout/internal/core/domain"
)

func TestMySQLStore_UpdateStatusUnknownOrder(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	store := NewMySQLStore(db)

	order := &domain.Order{
		ID:          "no-such-order",
		UserID:      "user-1",
		TotalAmount: decimal.Zero,
		Status:      domain.OrderStatusShipped,
		UpdatedAt:   time.Now().UTC(),
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, order.ID); err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	err := store.UpdateStatus(ctx, order)
	if !errors.Is(err, ErrOrderMissing) {
		t.Fatalf("expected ErrOrderMissing, got %v", err)
	}
}
