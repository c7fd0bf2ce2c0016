package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ptnguyen/checkout/internal/core/domain"
	"github.com/ptnguyen/checkout/internal/port"
)

var (
	ErrEmptyCart     = errors.New("cart is empty")
	ErrOrderNotFound = errors.New("order not found")
)

// InsufficientStockError names the first product whose reservation failed.
type InsufficientStockError struct {
	ProductID string
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s", e.ProductID)
}

// CheckoutService converts a user's cart into an immutable order. The whole
// conversion is atomic from the caller's point of view: either the order is
// persisted, stock is decremented, and the cart is cleared, or none of
// those effects remain.
type CheckoutService struct {
	carts     port.CartRepository
	orders    port.OrderRepository
	products  port.ProductRepository
	users     port.UserRepository
	ledger    port.InventoryLedger
	publisher port.EventPublisher
	logger    zerolog.Logger
}

func NewCheckoutService(
	carts port.CartRepository,
	orders port.OrderRepository,
	products port.ProductRepository,
	users port.UserRepository,
	ledger port.InventoryLedger,
	publisher port.EventPublisher,
	logger zerolog.Logger,
) *CheckoutService {
	return &CheckoutService{
		carts:     carts,
		orders:    orders,
		products:  products,
		users:     users,
		ledger:    ledger,
		publisher: publisher,
		logger:    logger.With().Str("component", "checkout").Logger(),
	}
}

// Checkout reserves stock for every cart line, snapshots current catalog
// prices into a PENDING order, persists it, and clears the cart. Any
// failure after the first granted reservation compensates the reservations
// already made, in reverse order, before the error is returned.
func (s *CheckoutService) Checkout(ctx context.Context, userID string) (*domain.Order, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	cart, err := s.carts.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if cart == nil || cart.IsEmpty() {
		return nil, ErrEmptyCart
	}

	// Reserve in ascending product ID so concurrent checkouts touching
	// overlapping products acquire stock in the same order.
	lines := make([]domain.CartItem, len(cart.Items))
	copy(lines, cart.Items)
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })

	var granted []domain.CartItem
	for _, line := range lines {
		ok, err := s.ledger.Reserve(ctx, line.ProductID, line.Quantity)
		if err != nil {
			s.compensate(ctx, granted)
			return nil, fmt.Errorf("reserve stock for %s: %w", line.ProductID, err)
		}
		if !ok {
			s.compensate(ctx, granted)
			return nil, &InsufficientStockError{ProductID: line.ProductID}
		}
		granted = append(granted, line)
	}

	// Snapshot prices in cart order so the order lines read like the cart.
	now := time.Now().UTC()
	items := make([]domain.OrderItem, 0, len(cart.Items))
	total := decimal.Zero
	for _, line := range cart.Items {
		product, err := s.products.GetByID(ctx, line.ProductID)
		if err != nil {
			s.compensate(ctx, granted)
			return nil, fmt.Errorf("load product %s: %w", line.ProductID, err)
		}
		if product == nil {
			s.compensate(ctx, granted)
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, line.ProductID)
		}
		item := domain.OrderItem{
			ProductID: product.ID,
			Name:      product.Name,
			UnitPrice: product.Price,
			Quantity:  line.Quantity,
		}
		items = append(items, item)
		total = total.Add(item.Subtotal())
	}

	order := &domain.Order{
		ID:          uuid.NewString(),
		UserID:      userID,
		Items:       items,
		TotalAmount: total,
		OrderDate:   now,
		Status:      domain.OrderStatusPending,
		UpdatedAt:   now,
	}

	// Clear the cart before writing the order so the order row is the last
	// effect: a failed attempt never leaves an order behind. A failed save
	// here leaves the stored cart untouched.
	original := make([]domain.CartItem, len(cart.Items))
	copy(original, cart.Items)
	cart.Clear(now)
	if err := s.carts.Save(ctx, cart); err != nil {
		s.compensate(ctx, granted)
		return nil, fmt.Errorf("clear cart: %w", err)
	}

	if err := s.orders.Create(ctx, order); err != nil {
		s.compensate(ctx, granted)
		s.restoreCart(ctx, cart, original)
		return nil, fmt.Errorf("persist order: %w", err)
	}

	s.logger.Info().
		Str("order_id", order.ID).
		Str("user_id", userID).
		Str("total", order.TotalAmount.String()).
		Int("lines", len(order.Items)).
		Msg("checkout completed")

	if err := s.publisher.OrderCreated(ctx, order); err != nil {
		s.logger.Warn().Err(err).Str("order_id", order.ID).Msg("order created event not published")
	}
	return order, nil
}

// CancelOrder cancels a PENDING order and returns its reserved stock to the
// ledger. Orders already shipped or delivered cannot be cancelled.
func (s *CheckoutService) CancelOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}

	if err := order.TransitionTo(domain.OrderStatusCancelled, time.Now().UTC()); err != nil {
		return nil, err
	}
	if err := s.orders.UpdateStatus(ctx, order); err != nil {
		return nil, fmt.Errorf("persist cancellation: %w", err)
	}

	for _, item := range order.Items {
		if _, err := s.ledger.Restock(ctx, item.ProductID, item.Quantity); err != nil {
			s.logger.Error().Err(err).
				Str("order_id", order.ID).
				Str("product_id", item.ProductID).
				Int("quantity", item.Quantity).
				Msg("restock on cancel failed")
		}
	}

	s.logger.Info().Str("order_id", order.ID).Msg("order cancelled")

	if err := s.publisher.OrderCancelled(ctx, order); err != nil {
		s.logger.Warn().Err(err).Str("order_id", order.ID).Msg("order cancelled event not published")
	}
	return order, nil
}

// UpdateOrderStatus applies a plain status transition (ship, deliver).
// Cancellation goes through CancelOrder so the restock happens.
func (s *CheckoutService) UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) (*domain.Order, error) {
	if status == domain.OrderStatusCancelled {
		return s.CancelOrder(ctx, orderID)
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}

	if err := order.TransitionTo(status, time.Now().UTC()); err != nil {
		return nil, err
	}
	if err := s.orders.UpdateStatus(ctx, order); err != nil {
		return nil, fmt.Errorf("persist status: %w", err)
	}
	return order, nil
}

func (s *CheckoutService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// ListUserOrders returns the user's orders newest first.
func (s *CheckoutService) ListUserOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	orders, err := s.orders.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// compensate returns every granted reservation of the current attempt to
// the ledger, newest grant first. A failed restock is logged and the rest
// still run; stopping halfway would understate inventory even more.
func (s *CheckoutService) compensate(ctx context.Context, granted []domain.CartItem) {
	for i := len(granted) - 1; i >= 0; i-- {
		line := granted[i]
		if _, err := s.ledger.Restock(ctx, line.ProductID, line.Quantity); err != nil {
			s.logger.Error().Err(err).
				Str("product_id", line.ProductID).
				Int("quantity", line.Quantity).
				Msg("CRITICAL compensation failed, inventory understated")
		}
	}
}

// restoreCart puts the pre-checkout lines back after the order write fails.
func (s *CheckoutService) restoreCart(ctx context.Context, cart *domain.Cart, items []domain.CartItem) {
	cart.SetItems(items, time.Now().UTC())
	if err := s.carts.Save(ctx, cart); err != nil {
		s.logger.Error().Err(err).
			Str("cart_id", cart.ID).
			Msg("CRITICAL cart restore failed after order persist error")
	}
}
