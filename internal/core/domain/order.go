package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusShipped   OrderStatus = "SHIPPED"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

var ErrInvalidTransition = errors.New("invalid order status transition")

// OrderItem is an immutable snapshot of a purchased line: the unit price is
// the catalog price at checkout time and never changes afterwards.
type OrderItem struct {
	ProductID string
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order is created only by the checkout orchestrator. Everything but
// Status is fixed at creation; orders are never deleted.
type Order struct {
	ID          string
	UserID      string
	Items       []OrderItem
	TotalAmount decimal.Decimal
	OrderDate   time.Time
	Status      OrderStatus
	UpdatedAt   time.Time
}

// allowed transitions; CANCELLED and DELIVERED are terminal
var transitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped: {OrderStatusDelivered},
}

// TransitionTo moves the order to the target status if the state machine
// allows it.
func (o *Order) TransitionTo(target OrderStatus, now time.Time) error {
	for _, next := range transitions[o.Status] {
		if next == target {
			o.Status = target
			o.UpdatedAt = now
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, target)
}
