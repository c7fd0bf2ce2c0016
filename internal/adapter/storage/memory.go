package storage

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/ptnguyen/checkout/internal/core/domain"
)

// ErrNegativeStock rejects restocks or overrides that would leave an
// inventory quantity below zero.
var ErrNegativeStock = errors.New("stock quantity would go negative")

// ErrOrderMissing reports a status update against an order ID that was
// never persisted.
var ErrOrderMissing = errors.New("order does not exist")

// MemoryStore keeps users, products, carts, and orders in process memory.
// It backs the dev mode and the service tests; the contract matches the
// MySQL store.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]domain.User
	products map[string]domain.Product
	carts    map[string]domain.Cart // keyed by user ID
	orders   map[string]domain.Order
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]domain.User),
		products: make(map[string]domain.Product),
		carts:    make(map[string]domain.Cart),
		orders:   make(map[string]domain.Order),
	}
}

func (s *MemoryStore) PutUser(u domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *MemoryStore) PutProduct(p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

func (s *MemoryStore) GetByUserID(ctx context.Context, userID string) (*domain.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cart, ok := s.carts[userID]
	if !ok {
		return nil, nil
	}
	return copyCart(cart), nil
}

func (s *MemoryStore) Save(ctx context.Context, cart *domain.Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[cart.UserID] = *copyCart(*cart)
	return nil
}

func (s *MemoryStore) Create(ctx context.Context, order *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[order.ID] = *copyOrder(*order)
	return nil
}

func (s *MemoryStore) GetByID(ctx context.Context, orderID string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	order, ok := s.orders[orderID]
	if !ok {
		return nil, nil
	}
	return copyOrder(order), nil
}

func (s *MemoryStore) ListByUserID(ctx context.Context, userID string) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Order
	for _, order := range s.orders {
		if order.UserID == userID {
			out = append(out, *copyOrder(order))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderDate.After(out[j].OrderDate) })
	return out, nil
}

func (s *MemoryStore) UpdateStatus(ctx context.Context, order *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.orders[order.ID]
	if !ok {
		return ErrOrderMissing
	}
	stored.Status = order.Status
	stored.UpdatedAt = order.UpdatedAt
	s.orders[order.ID] = stored
	return nil
}

// ProductReader and UserReader views over the same store.

func (s *MemoryStore) Products() *memoryProducts { return &memoryProducts{s} }
func (s *MemoryStore) Users() *memoryUsers       { return &memoryUsers{s} }

type memoryProducts struct{ s *MemoryStore }

func (p *memoryProducts) GetByID(ctx context.Context, productID string) (*domain.Product, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()
	product, ok := p.s.products[productID]
	if !ok {
		return nil, nil
	}
	return &product, nil
}

type memoryUsers struct{ s *MemoryStore }

func (u *memoryUsers) GetByID(ctx context.Context, userID string) (*domain.User, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()
	user, ok := u.s.users[userID]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

func copyCart(cart domain.Cart) *domain.Cart {
	items := make([]domain.CartItem, len(cart.Items))
	copy(items, cart.Items)
	cart.Items = items
	return &cart
}

func copyOrder(order domain.Order) *domain.Order {
	items := make([]domain.OrderItem, len(order.Items))
	copy(items, order.Items)
	order.Items = items
	return &order
}

// MemoryLedger is the in-process inventory ledger. Reservations against the
// same product serialize on the mutex, so concurrent checkouts can never
// drive a quantity below zero.
type MemoryLedger struct {
	mu      sync.Mutex
	records map[string]*domain.InventoryRecord
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{records: make(map[string]*domain.InventoryRecord)}
}

func (l *MemoryLedger) GetAvailable(ctx context.Context, productID string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[productID]
	if !ok {
		return 0, nil
	}
	return rec.Available, nil
}

func (l *MemoryLedger) List(ctx context.Context) ([]domain.InventoryRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.InventoryRecord, 0, len(l.records))
	for _, rec := range l.records {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (l *MemoryLedger) Reserve(ctx context.Context, productID string, quantity int) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[productID]
	if !ok || rec.Available < quantity {
		return false, nil
	}
	rec.Available -= quantity
	rec.Version++
	rec.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (l *MemoryLedger) Restock(ctx context.Context, productID string, delta int) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec := l.record(productID)
	if rec.Available+delta < 0 {
		return rec.Available, ErrNegativeStock
	}
	rec.Available += delta
	rec.Version++
	rec.UpdatedAt = time.Now().UTC()
	return rec.Available, nil
}

func (l *MemoryLedger) SetQuantity(ctx context.Context, productID string, quantity int) error {
	if quantity < 0 {
		return ErrNegativeStock
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	rec := l.record(productID)
	rec.Available = quantity
	rec.Version++
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

// record returns the tracked record, creating an empty one lazily.
// Callers must hold the mutex.
func (l *MemoryLedger) record(productID string) *domain.InventoryRecord {
	rec, ok := l.records[productID]
	if !ok {
		now := time.Now().UTC()
		rec = &domain.InventoryRecord{ProductID: productID, CreatedAt: now, UpdatedAt: now}
		l.records[productID] = rec
	}
	return rec
}
