package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is catalog data, read-only to the checkout core.
type Product struct {
	ID        string
	Name      string
	Price     decimal.Decimal
	Category  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type User struct {
	ID        string
	Name      string
	Email     string
	CreatedAt time.Time
}
