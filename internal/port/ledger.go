package port

import (
	"context"

	"github.com/ptnguyen/checkout/internal/core/domain"
)

type InventoryLedger interface {
	// GetAvailable returns current stock, 0 for untracked products.
	GetAvailable(ctx context.Context, productID string) (int, error)

	// List returns every tracked record, ordered by product ID.
	List(ctx context.Context) ([]domain.InventoryRecord, error)

	// Reserve atomically decrements stock by quantity iff enough is
	// available, returning false (and leaving stock unchanged) otherwise.
	// It never partially decrements.
	Reserve(ctx context.Context, productID string, quantity int) (bool, error)

	// Restock adds delta back, creating the record if needed. Used for
	// initial stocking and for compensation of granted reservations.
	Restock(ctx context.Context, productID string, delta int) (int, error)

	// SetQuantity is the administrative absolute override.
	SetQuantity(ctx context.Context, productID string, quantity int) error
}
