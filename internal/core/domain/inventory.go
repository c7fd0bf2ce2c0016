package domain

import "time"

// InventoryRecord tracks the available quantity for one product. Available
// never goes negative; all mutation goes through the ledger's reserve and
// restock operations.
type InventoryRecord struct {
	ProductID string
	Available int
	Version   int // optimistic locking
	CreatedAt time.Time
	UpdatedAt time.Time
}
