package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ptnguyen/checkout/internal/core/domain"
)

// MySQLLedger keeps inventory in the inventory table. Reserve relies on a
// conditional UPDATE so concurrent reservations against one product
// serialize on the row lock and can never drive quantity negative.
type MySQLLedger struct {
	db *sql.DB
}

func NewMySQLLedger(db *sql.DB) *MySQLLedger {
	return &MySQLLedger{db: db}
}

func (l *MySQLLedger) GetAvailable(ctx context.Context, productID string) (int, error) {
	var available int
	err := l.db.QueryRowContext(ctx, `
		SELECT available FROM inventory WHERE product_id = ?`, productID,
	).Scan(&available)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query inventory: %w", err)
	}
	return available, nil
}

func (l *MySQLLedger) List(ctx context.Context) ([]domain.InventoryRecord, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT product_id, available, version, created_at, updated_at
		FROM inventory ORDER BY product_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}
	defer rows.Close()

	var out []domain.InventoryRecord
	for rows.Next() {
		var rec domain.InventoryRecord
		if err := rows.Scan(&rec.ProductID, &rec.Available, &rec.Version, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan inventory row: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}
	return out, nil
}

func (l *MySQLLedger) Reserve(ctx context.Context, productID string, quantity int) (bool, error) {
	result, err := l.db.ExecContext(ctx, `
		UPDATE inventory
		SET available = available - ?, version = version + 1, updated_at = NOW()
		WHERE product_id = ? AND available >= ?`,
		quantity, productID, quantity,
	)
	if err != nil {
		return false, fmt.Errorf("reserve stock: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reserve stock: %w", err)
	}
	return rows > 0, nil
}

func (l *MySQLLedger) Restock(ctx context.Context, productID string, delta int) (int, error) {
	if delta < 0 {
		// Negative adjustments must not take the quantity below zero.
		result, err := l.db.ExecContext(ctx, `
			UPDATE inventory
			SET available = available + ?, version = version + 1, updated_at = NOW()
			WHERE product_id = ? AND available + ? >= 0`,
			delta, productID, delta,
		)
		if err != nil {
			return 0, fmt.Errorf("restock: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("restock: %w", err)
		}
		if rows == 0 {
			return 0, ErrNegativeStock
		}
		return l.GetAvailable(ctx, productID)
	}

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO inventory (product_id, available, version, created_at, updated_at)
		VALUES (?, ?, 1, NOW(), NOW())
		ON DUPLICATE KEY UPDATE available = available + VALUES(available),
			version = version + 1, updated_at = NOW()`,
		productID, delta,
	)
	if err != nil {
		return 0, fmt.Errorf("restock: %w", err)
	}
	return l.GetAvailable(ctx, productID)
}

func (l *MySQLLedger) SetQuantity(ctx context.Context, productID string, quantity int) error {
	if quantity < 0 {
		return ErrNegativeStock
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO inventory (product_id, available, version, created_at, updated_at)
		VALUES (?, ?, 1, NOW(), NOW())
		ON DUPLICATE KEY UPDATE available = VALUES(available),
			version = version + 1, updated_at = NOW()`,
		productID, quantity,
	)
	if err != nil {
		return fmt.Errorf("set stock: %w", err)
	}
	return nil
}
