package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ptnguyen/checkout/internal/core/domain"
)

var testNow = time.Now().UTC()

// Mock CartRepository
type mockCartRepo struct {
	mu       sync.Mutex
	carts    map[string]*domain.Cart
	failSave bool
}

func newMockCartRepo() *mockCartRepo {
	return &mockCartRepo{carts: make(map[string]*domain.Cart)}
}

func (m *mockCartRepo) GetByUserID(ctx context.Context, userID string) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cart, ok := m.carts[userID]
	if !ok {
		return nil, nil
	}
	c := *cart
	c.Items = append([]domain.CartItem(nil), cart.Items...)
	return &c, nil
}

func (m *mockCartRepo) Save(ctx context.Context, cart *domain.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave {
		return errors.New("cart save failed")
	}
	c := *cart
	c.Items = append([]domain.CartItem(nil), cart.Items...)
	m.carts[cart.UserID] = &c
	return nil
}

// Mock OrderRepository
type mockOrderRepo struct {
	mu         sync.Mutex
	orders     map[string]*domain.Order
	failCreate bool
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{orders: make(map[string]*domain.Order)}
}

func (m *mockOrderRepo) Create(ctx context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreate {
		return errors.New("order create failed")
	}
	o := *order
	m.orders[order.ID] = &o
	return nil
}

func (m *mockOrderRepo) GetByID(ctx context.Context, orderID string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[orderID]
	if !ok {
		return nil, nil
	}
	o := *order
	return &o, nil
}

func (m *mockOrderRepo) ListByUserID(ctx context.Context, userID string) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *mockOrderRepo) UpdateStatus(ctx context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if stored, ok := m.orders[order.ID]; ok {
		stored.Status = order.Status
		stored.UpdatedAt = order.UpdatedAt
	}
	return nil
}

func (m *mockOrderRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

// Mock ProductRepository with mutable prices
type mockProductRepo struct {
	mu       sync.Mutex
	products map[string]domain.Product
}

func newMockProductRepo(products ...domain.Product) *mockProductRepo {
	m := &mockProductRepo{products: make(map[string]domain.Product)}
	for _, p := range products {
		m.products[p.ID] = p
	}
	return m
}

func (m *mockProductRepo) GetByID(ctx context.Context, productID string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *mockProductRepo) setPrice(productID, price string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.products[productID]
	p.Price = decimal.RequireFromString(price)
	m.products[productID] = p
}

// Mock UserRepository
type mockUserRepo struct {
	users map[string]domain.User
}

func newMockUserRepo(ids ...string) *mockUserRepo {
	m := &mockUserRepo{users: make(map[string]domain.User)}
	for _, id := range ids {
		m.users[id] = domain.User{ID: id}
	}
	return m
}

func (m *mockUserRepo) GetByID(ctx context.Context, userID string) (*domain.User, error) {
	u, ok := m.users[userID]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

// Mock InventoryLedger
type mockLedger struct {
	mu    sync.Mutex
	stock map[string]int
}

func newMockLedger() *mockLedger {
	return &mockLedger{stock: make(map[string]int)}
}

func (m *mockLedger) GetAvailable(ctx context.Context, productID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stock[productID], nil
}

func (m *mockLedger) List(ctx context.Context) ([]domain.InventoryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.InventoryRecord, 0, len(m.stock))
	for id, qty := range m.stock {
		out = append(out, domain.InventoryRecord{ProductID: id, Available: qty})
	}
	return out, nil
}

func (m *mockLedger) Reserve(ctx context.Context, productID string, quantity int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stock[productID] < quantity {
		return false, nil
	}
	m.stock[productID] -= quantity
	return true, nil
}

func (m *mockLedger) Restock(ctx context.Context, productID string, delta int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stock[productID] += delta
	return m.stock[productID], nil
}

func (m *mockLedger) SetQuantity(ctx context.Context, productID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stock[productID] = quantity
	return nil
}

type noopPublisher struct{}

func (noopPublisher) OrderCreated(context.Context, *domain.Order) error   { return nil }
func (noopPublisher) OrderCancelled(context.Context, *domain.Order) error { return nil }

type checkoutFixture struct {
	carts    *mockCartRepo
	orders   *mockOrderRepo
	products *mockProductRepo
	users    *mockUserRepo
	ledger   *mockLedger
	svc      *CheckoutService
}

func newCheckoutFixture(products ...domain.Product) *checkoutFixture {
	f := &checkoutFixture{
		carts:    newMockCartRepo(),
		orders:   newMockOrderRepo(),
		products: newMockProductRepo(products...),
		users:    newMockUserRepo("user-1", "user-2"),
		ledger:   newMockLedger(),
	}
	f.svc = NewCheckoutService(f.carts, f.orders, f.products, f.users, f.ledger, noopPublisher{}, zerolog.Nop())
	return f
}

func (f *checkoutFixture) fillCart(userID string, lines ...domain.CartItem) {
	cart := domain.NewCart("cart-"+userID, userID, testNow)
	cart.SetItems(lines, testNow)
	f.carts.carts[userID] = cart
}

func line(itemID, productID, price string, qty int) domain.CartItem {
	return domain.CartItem{
		ID:        itemID,
		ProductID: productID,
		UnitPrice: decimal.RequireFromString(price),
		Quantity:  qty,
	}
}

func TestCheckout_Success(t *testing.T) {
	f := newCheckoutFixture(domain.Product{ID: "prod-a", Name: "Product A", Price: decimal.RequireFromString("99.99")})
	f.ledger.stock["prod-a"] = 5
	f.fillCart("user-1", line("item-1", "prod-a", "99.99", 2))

	order, err := f.svc.Checkout(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if order.Status != domain.OrderStatusPending {
		t.Errorf("expected PENDING, got %s", order.Status)
	}
	if len(order.Items) != 1 || order.Items[0].Quantity != 2 {
		t.Fatalf("unexpected order items: %+v", order.Items)
	}
	if !order.Items[0].UnitPrice.Equal(decimal.RequireFromString("99.99")) {
		t.Errorf("expected unit price 99.99, got %s", order.Items[0].UnitPrice)
	}
	if !order.TotalAmount.Equal(decimal.RequireFromString("199.98")) {
		t.Errorf("expected total 199.98, got %s", order.TotalAmount)
	}
	if f.ledger.stock["prod-a"] != 3 {
		t.Errorf("expected stock 3, got %d", f.ledger.stock["prod-a"])
	}

	cart, _ := f.carts.GetByUserID(context.Background(), "user-1")
	if !cart.IsEmpty() {
		t.Errorf("expected empty cart, got %d items", len(cart.Items))
	}
	stored, _ := f.orders.GetByID(context.Background(), order.ID)
	if stored == nil {
		t.Error("expected order to be persisted")
	}
}

func TestCheckout_InsufficientStock(t *testing.T) {
	f := newCheckoutFixture(domain.Product{ID: "prod-b", Name: "Product B", Price: decimal.RequireFromString("5.00")})
	f.ledger.stock["prod-b"] = 3
	f.fillCart("user-1", line("item-1", "prod-b", "5.00", 10))

	_, err := f.svc.Checkout(context.Background(), "user-1")

	var insufficient *InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if insufficient.ProductID != "prod-b" {
		t.Errorf("expected prod-b, got %s", insufficient.ProductID)
	}
	if f.ledger.stock["prod-b"] != 3 {
		t.Errorf("expected stock unchanged at 3, got %d", f.ledger.stock["prod-b"])
	}

	cart, _ := f.carts.GetByUserID(context.Background(), "user-1")
	if len(cart.Items) != 1 || cart.Items[0].Quantity != 10 {
		t.Errorf("expected cart untouched, got %+v", cart.Items)
	}
	if f.orders.count() != 0 {
		t.Errorf("expected no orders, got %d", f.orders.count())
	}
}

func TestCheckout_EmptyCart(t *testing.T) {
	f := newCheckoutFixture()
	f.fillCart("user-1")

	_, err := f.svc.Checkout(context.Background(), "user-1")
	if !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}
}

func TestCheckout_MissingCart(t *testing.T) {
	f := newCheckoutFixture()

	_, err := f.svc.Checkout(context.Background(), "user-1")
	if !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}
}

func TestCheckout_UserNotFound(t *testing.T) {
	f := newCheckoutFixture()

	_, err := f.svc.Checkout(context.Background(), "nobody")
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestCheckout_PriceSnapshotReadAtCheckout(t *testing.T) {
	f := newCheckoutFixture(domain.Product{ID: "prod-a", Name: "Product A", Price: decimal.RequireFromString("10.00")})
	f.ledger.stock["prod-a"] = 10
	f.fillCart("user-1", line("item-1", "prod-a", "10.00", 2))

	// catalog price changes between add-to-cart and checkout
	f.products.setPrice("prod-a", "15.00")

	order, err := f.svc.Checkout(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !order.TotalAmount.Equal(decimal.RequireFromString("30.00")) {
		t.Errorf("expected total 30.00, got %s", order.TotalAmount)
	}

	// later catalog changes never touch the snapshot
	f.products.setPrice("prod-a", "20.00")
	stored, _ := f.orders.GetByID(context.Background(), order.ID)
	if !stored.TotalAmount.Equal(decimal.RequireFromString("30.00")) {
		t.Errorf("expected snapshot total 30.00, got %s", stored.TotalAmount)
	}
}

func TestCheckout_CompensatesPartialReservations(t *testing.T) {
	f := newCheckoutFixture(
		domain.Product{ID: "prod-a", Name: "Product A", Price: decimal.RequireFromString("1.00")},
		domain.Product{ID: "prod-b", Name: "Product B", Price: decimal.RequireFromString("2.00")},
	)
	f.ledger.stock["prod-a"] = 5
	f.ledger.stock["prod-b"] = 1
	f.fillCart("user-1",
		line("item-1", "prod-a", "1.00", 2),
		line("item-2", "prod-b", "2.00", 3),
	)

	_, err := f.svc.Checkout(context.Background(), "user-1")

	var insufficient *InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if insufficient.ProductID != "prod-b" {
		t.Errorf("expected prod-b to fail, got %s", insufficient.ProductID)
	}
	// the granted prod-a reservation must have been returned
	if f.ledger.stock["prod-a"] != 5 {
		t.Errorf("expected prod-a restored to 5, got %d", f.ledger.stock["prod-a"])
	}
	if f.ledger.stock["prod-b"] != 1 {
		t.Errorf("expected prod-b unchanged at 1, got %d", f.ledger.stock["prod-b"])
	}
	if f.orders.count() != 0 {
		t.Errorf("expected no orders, got %d", f.orders.count())
	}
}

func TestCheckout_CompensatesOnOrderPersistFailure(t *testing.T) {
	f := newCheckoutFixture(domain.Product{ID: "prod-a", Name: "Product A", Price: decimal.RequireFromString("4.00")})
	f.ledger.stock["prod-a"] = 5
	f.fillCart("user-1", line("item-1", "prod-a", "4.00", 2))
	f.orders.failCreate = true

	_, err := f.svc.Checkout(context.Background(), "user-1")
	if err == nil {
		t.Fatal("expected error")
	}

	if f.ledger.stock["prod-a"] != 5 {
		t.Errorf("expected stock restored to 5, got %d", f.ledger.stock["prod-a"])
	}
	cart, _ := f.carts.GetByUserID(context.Background(), "user-1")
	if len(cart.Items) != 1 || cart.Items[0].Quantity != 2 {
		t.Errorf("expected cart restored, got %+v", cart.Items)
	}
	if f.orders.count() != 0 {
		t.Errorf("expected no orders, got %d", f.orders.count())
	}
}

func TestCheckout_CompensatesOnCartSaveFailure(t *testing.T) {
	f := newCheckoutFixture(domain.Product{ID: "prod-a", Name: "Product A", Price: decimal.RequireFromString("4.00")})
	f.ledger.stock["prod-a"] = 5
	f.fillCart("user-1", line("item-1", "prod-a", "4.00", 2))
	f.carts.failSave = true

	_, err := f.svc.Checkout(context.Background(), "user-1")
	if err == nil {
		t.Fatal("expected error")
	}

	if f.ledger.stock["prod-a"] != 5 {
		t.Errorf("expected stock restored to 5, got %d", f.ledger.stock["prod-a"])
	}
	if f.orders.count() != 0 {
		t.Errorf("expected no orders, got %d", f.orders.count())
	}
}

func TestCheckout_ConcurrentLastUnit(t *testing.T) {
	f := newCheckoutFixture(domain.Product{ID: "prod-a", Name: "Product A", Price: decimal.RequireFromString("9.99")})
	f.ledger.stock["prod-a"] = 1
	f.fillCart("user-1", line("item-1", "prod-a", "9.99", 1))
	f.fillCart("user-2", line("item-2", "prod-a", "9.99", 1))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, userID := range []string{"user-1", "user-2"} {
		wg.Add(1)
		go func(i int, userID string) {
			defer wg.Done()
			_, errs[i] = f.svc.Checkout(context.Background(), userID)
		}(i, userID)
	}
	wg.Wait()

	var succeeded, insufficient int
	for _, err := range errs {
		var stockErr *InsufficientStockError
		switch {
		case err == nil:
			succeeded++
		case errors.As(err, &stockErr):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 || insufficient != 1 {
		t.Errorf("expected exactly one winner, got %d successes and %d stock failures", succeeded, insufficient)
	}
	if f.ledger.stock["prod-a"] != 0 {
		t.Errorf("expected stock 0, got %d", f.ledger.stock["prod-a"])
	}
	if f.orders.count() != 1 {
		t.Errorf("expected exactly one order, got %d", f.orders.count())
	}
}

func TestCancelOrder_RestocksItems(t *testing.T) {
	f := newCheckoutFixture(domain.Product{ID: "prod-a", Name: "Product A", Price: decimal.RequireFromString("4.00")})
	f.ledger.stock["prod-a"] = 5
	f.fillCart("user-1", line("item-1", "prod-a", "4.00", 2))

	order, err := f.svc.Checkout(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.ledger.stock["prod-a"] != 3 {
		t.Fatalf("expected stock 3 after checkout, got %d", f.ledger.stock["prod-a"])
	}

	cancelled, err := f.svc.CancelOrder(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cancelled.Status != domain.OrderStatusCancelled {
		t.Errorf("expected CANCELLED, got %s", cancelled.Status)
	}
	if f.ledger.stock["prod-a"] != 5 {
		t.Errorf("expected stock back at 5, got %d", f.ledger.stock["prod-a"])
	}
}

func TestCancelOrder_RejectedAfterShipping(t *testing.T) {
	f := newCheckoutFixture(domain.Product{ID: "prod-a", Name: "Product A", Price: decimal.RequireFromString("4.00")})
	f.ledger.stock["prod-a"] = 5
	f.fillCart("user-1", line("item-1", "prod-a", "4.00", 2))

	order, err := f.svc.Checkout(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.svc.UpdateOrderStatus(context.Background(), order.ID, domain.OrderStatusShipped); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = f.svc.CancelOrder(context.Background(), order.ID)
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if f.ledger.stock["prod-a"] != 3 {
		t.Errorf("expected stock to stay at 3, got %d", f.ledger.stock["prod-a"])
	}
}

func TestUpdateOrderStatus_ShipThenDeliver(t *testing.T) {
	f := newCheckoutFixture(domain.Product{ID: "prod-a", Name: "Product A", Price: decimal.RequireFromString("4.00")})
	f.ledger.stock["prod-a"] = 5
	f.fillCart("user-1", line("item-1", "prod-a", "4.00", 1))

	order, err := f.svc.Checkout(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	shipped, err := f.svc.UpdateOrderStatus(context.Background(), order.ID, domain.OrderStatusShipped)
	if err != nil || shipped.Status != domain.OrderStatusShipped {
		t.Fatalf("expected SHIPPED, got %v (%v)", shipped, err)
	}
	delivered, err := f.svc.UpdateOrderStatus(context.Background(), order.ID, domain.OrderStatusDelivered)
	if err != nil || delivered.Status != domain.OrderStatusDelivered {
		t.Fatalf("expected DELIVERED, got %v (%v)", delivered, err)
	}
}
