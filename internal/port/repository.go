package port

import (
	"context"

	"github.com/ptnguyen/checkout/internal/core/domain"
)

type CartRepository interface {
	// GetByUserID returns the user's cart or nil if none exists yet.
	GetByUserID(ctx context.Context, userID string) (*domain.Cart, error)

	// Save persists the cart and its items as one unit.
	Save(ctx context.Context, cart *domain.Cart) error
}

type OrderRepository interface {
	// Create persists a new order with its items as one unit.
	Create(ctx context.Context, order *domain.Order) error

	// GetByID returns the order or nil if unknown.
	GetByID(ctx context.Context, orderID string) (*domain.Order, error)

	// ListByUserID returns the user's orders newest first.
	ListByUserID(ctx context.Context, userID string) ([]domain.Order, error)

	// UpdateStatus persists a status change for an existing order.
	UpdateStatus(ctx context.Context, order *domain.Order) error
}

type ProductRepository interface {
	// GetByID returns the product or nil if unknown.
	GetByID(ctx context.Context, productID string) (*domain.Product, error)
}

type UserRepository interface {
	// GetByID returns the user or nil if unknown.
	GetByID(ctx context.Context, userID string) (*domain.User, error)
}
