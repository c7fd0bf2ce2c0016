package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ptnguyen/checkout/internal/core/domain"
	"github.com/ptnguyen/checkout/internal/port"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrProductNotFound = errors.New("product not found")
	ErrCartNotFound    = errors.New("cart not found")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
)

type CartService struct {
	carts    port.CartRepository
	products port.ProductRepository
	users    port.UserRepository
	logger   zerolog.Logger
}

func NewCartService(carts port.CartRepository, products port.ProductRepository, users port.UserRepository, logger zerolog.Logger) *CartService {
	return &CartService{
		carts:    carts,
		products: products,
		users:    users,
		logger:   logger.With().Str("component", "cart").Logger(),
	}
}

// GetCart returns the user's cart, creating an empty one on first use.
func (s *CartService) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
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
	if cart != nil {
		return cart, nil
	}

	cart = domain.NewCart(uuid.NewString(), userID, time.Now().UTC())
	if err := s.carts.Save(ctx, cart); err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}
	return cart, nil
}

// AddItem adds quantity of the product to the user's cart, accumulating
// onto an existing line. Stock is not checked here; checkout is the single
// authority on availability.
func (s *CartService) AddItem(ctx context.Context, userID, productID string, quantity int) (*domain.Cart, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("load product: %w", err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}

	cart.AddItem(uuid.NewString(), *product, quantity, time.Now().UTC())
	if err := s.carts.Save(ctx, cart); err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}

	s.logger.Debug().
		Str("user_id", userID).
		Str("product_id", productID).
		Int("quantity", quantity).
		Msg("item added to cart")
	return cart, nil
}

// UpdateItemQuantity sets the line's quantity; zero or negative removes it.
func (s *CartService) UpdateItemQuantity(ctx context.Context, userID, itemID string, quantity int) (*domain.Cart, error) {
	cart, err := s.loadCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	cart.UpdateItemQuantity(itemID, quantity, time.Now().UTC())
	if err := s.carts.Save(ctx, cart); err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}
	return cart, nil
}

// RemoveItem deletes the line; removing an absent line is not an error.
func (s *CartService) RemoveItem(ctx context.Context, userID, itemID string) (*domain.Cart, error) {
	cart, err := s.loadCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	cart.RemoveItem(itemID, time.Now().UTC())
	if err := s.carts.Save(ctx, cart); err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}
	return cart, nil
}

// Clear empties the cart, keeping the cart record itself.
func (s *CartService) Clear(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := s.loadCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	cart.Clear(time.Now().UTC())
	if err := s.carts.Save(ctx, cart); err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}
	return cart, nil
}

func (s *CartService) loadCart(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := s.carts.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if cart == nil {
		return nil, ErrCartNotFound
	}
	return cart, nil
}
