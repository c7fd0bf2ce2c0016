package port

import (
	"context"

	"github.com/ptnguyen/checkout/internal/core/domain"
)

type EventPublisher interface {
	// OrderCreated announces a freshly persisted order.
	OrderCreated(ctx context.Context, order *domain.Order) error

	// OrderCancelled announces a cancellation after inventory has been
	// restocked.
	OrderCancelled(ctx context.Context, order *domain.Order) error
}
