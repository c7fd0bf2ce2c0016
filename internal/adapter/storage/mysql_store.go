package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ptnguyen/checkout/internal/core/domain"
)

// MySQLStore persists users, products, carts, and orders. Carts and orders
// are written together with their lines inside one transaction.
type MySQLStore struct {
	db *sql.DB
}

func NewMySQLStore(db *sql.DB) *MySQLStore {
	return &MySQLStore{db: db}
}

func (m *MySQLStore) GetByUserID(ctx context.Context, userID string) (*domain.Cart, error) {
	var (
		cart  domain.Cart
		total string
	)
	err := m.db.QueryRowContext(ctx, `
		SELECT id, user_id, total_price, created_at, updated_at
		FROM carts WHERE user_id = ?`, userID,
	).Scan(&cart.ID, &cart.UserID, &total, &cart.CreatedAt, &cart.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query cart: %w", err)
	}
	if cart.TotalPrice, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("parse cart total: %w", err)
	}

	rows, err := m.db.QueryContext(ctx, `
		SELECT id, product_id, name, unit_price, quantity
		FROM cart_items WHERE cart_id = ? ORDER BY position`, cart.ID)
	if err != nil {
		return nil, fmt.Errorf("query cart items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			item  domain.CartItem
			price string
		)
		if err := rows.Scan(&item.ID, &item.ProductID, &item.Name, &price, &item.Quantity); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		if item.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("parse item price: %w", err)
		}
		cart.Items = append(cart.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cart items: %w", err)
	}
	return &cart, nil
}

func (m *MySQLStore) Save(ctx context.Context, cart *domain.Cart) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO carts (id, user_id, total_price, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE total_price = VALUES(total_price), updated_at = VALUES(updated_at)`,
		cart.ID, cart.UserID, cart.TotalPrice.String(), cart.CreatedAt, cart.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert cart: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = ?`, cart.ID); err != nil {
		return fmt.Errorf("delete cart items: %w", err)
	}
	for pos, item := range cart.Items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO cart_items (id, cart_id, product_id, name, unit_price, quantity, position)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			item.ID, cart.ID, item.ProductID, item.Name, item.UnitPrice.String(), item.Quantity, pos,
		)
		if err != nil {
			return fmt.Errorf("insert cart item: %w", err)
		}
	}
	return tx.Commit()
}

func (m *MySQLStore) Create(ctx context.Context, order *domain.Order) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, total_amount, status, order_date, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		order.ID, order.UserID, order.TotalAmount.String(), order.Status, order.OrderDate, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for pos, item := range order.Items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, product_id, name, unit_price, quantity, position)
			VALUES (?, ?, ?, ?, ?, ?)`,
			order.ID, item.ProductID, item.Name, item.UnitPrice.String(), item.Quantity, pos,
		)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return tx.Commit()
}

func (m *MySQLStore) GetByID(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := m.scanOrder(m.db.QueryRowContext(ctx, `
		SELECT id, user_id, total_amount, status, order_date, updated_at
		FROM orders WHERE id = ?`, orderID))
	if err != nil || order == nil {
		return order, err
	}
	if err := m.loadItems(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (m *MySQLStore) ListByUserID(ctx context.Context, userID string) ([]domain.Order, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, user_id, total_amount, status, order_date, updated_at
		FROM orders WHERE user_id = ? ORDER BY order_date DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		order, err := m.scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	for i := range orders {
		if err := m.loadItems(ctx, &orders[i]); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (m *MySQLStore) UpdateStatus(ctx context.Context, order *domain.Order) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE orders SET status = ?, updated_at = ? WHERE id = ?`,
		order.Status, order.UpdatedAt, order.ID,
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if rows == 0 {
		return ErrOrderMissing
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (m *MySQLStore) scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		order domain.Order
		total string
	)
	err := row.Scan(&order.ID, &order.UserID, &total, &order.Status, &order.OrderDate, &order.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan order: %w", err)
	}
	if order.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("parse order total: %w", err)
	}
	return &order, nil
}

func (m *MySQLStore) loadItems(ctx context.Context, order *domain.Order) error {
	rows, err := m.db.QueryContext(ctx, `
		SELECT product_id, name, unit_price, quantity
		FROM order_items WHERE order_id = ? ORDER BY position`, order.ID)
	if err != nil {
		return fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			item  domain.OrderItem
			price string
		)
		if err := rows.Scan(&item.ProductID, &item.Name, &price, &item.Quantity); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		if item.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return fmt.Errorf("parse order item price: %w", err)
		}
		order.Items = append(order.Items, item)
	}
	return rows.Err()
}

// Products and Users expose the read-only catalog views the core consumes.

func (m *MySQLStore) Products() *mysqlProducts { return &mysqlProducts{db: m.db} }
func (m *MySQLStore) Users() *mysqlUsers       { return &mysqlUsers{db: m.db} }

type mysqlProducts struct{ db *sql.DB }

func (p *mysqlProducts) GetByID(ctx context.Context, productID string) (*domain.Product, error) {
	var (
		product domain.Product
		price   string
	)
	err := p.db.QueryRowContext(ctx, `
		SELECT id, name, price, category, created_at, updated_at
		FROM products WHERE id = ?`, productID,
	).Scan(&product.ID, &product.Name, &price, &product.Category, &product.CreatedAt, &product.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	if product.Price, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("parse product price: %w", err)
	}
	return &product, nil
}

type mysqlUsers struct{ db *sql.DB }

func (u *mysqlUsers) GetByID(ctx context.Context, userID string) (*domain.User, error) {
	var user domain.User
	err := u.db.QueryRowContext(ctx, `
		SELECT id, name, email, created_at FROM users WHERE id = ?`, userID,
	).Scan(&user.ID, &user.Name, &user.Email, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &user, nil
}
