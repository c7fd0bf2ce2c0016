package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/ptnguyen/checkout/internal/adapter/storage"
	"github.com/ptnguyen/checkout/internal/core/domain"
	"github.com/ptnguyen/checkout/internal/core/service"
	"github.com/ptnguyen/checkout/internal/port"
)

type HTTPHandler struct {
	carts    *service.CartService
	checkout *service.CheckoutService
	ledger   port.InventoryLedger
	logger   zerolog.Logger
}

func NewHTTPHandler(carts *service.CartService, checkout *service.CheckoutService, ledger port.InventoryLedger, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		carts:    carts,
		checkout: checkout,
		ledger:   ledger,
		logger:   logger.With().Str("component", "http").Logger(),
	}
}

func (h *HTTPHandler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health)

	r.Route("/api", func(r chi.Router) {
		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/cart", h.getCart)
			r.Post("/cart/items", h.addCartItem)
			r.Put("/cart/items/{itemID}", h.updateCartItem)
			r.Delete("/cart/items/{itemID}", h.removeCartItem)
			r.Delete("/cart", h.clearCart)
			r.Post("/checkout", h.doCheckout)
			r.Get("/orders", h.listOrders)
		})
		r.Route("/orders/{orderID}", func(r chi.Router) {
			r.Get("/", h.getOrder)
			r.Post("/cancel", h.cancelOrder)
			r.Put("/status", h.updateOrderStatus)
		})
		r.Route("/inventory", func(r chi.Router) {
			r.Get("/", h.listStock)
			r.Route("/{productID}", func(r chi.Router) {
				r.Get("/", h.getStock)
				r.Post("/restock", h.restock)
				r.Put("/", h.setStock)
			})
		})
	})
	return r
}

type cartItemView struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	UnitPrice string `json:"unit_price"`
	Quantity  int    `json:"quantity"`
}

type cartView struct {
	ID         string         `json:"id"`
	UserID     string         `json:"user_id"`
	Items      []cartItemView `json:"items"`
	TotalPrice string         `json:"total_price"`
}

type orderItemView struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	UnitPrice string `json:"unit_price"`
	Quantity  int    `json:"quantity"`
}

type orderView struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Items       []orderItemView `json:"items"`
	TotalAmount string          `json:"total_amount"`
	OrderDate   time.Time       `json:"order_date"`
	Status      string          `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *HTTPHandler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) getCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.carts.GetCart(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartView(cart))
}

type addItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (h *HTTPHandler) addCartItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.ProductID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "product_id is required"})
		return
	}

	cart, err := h.carts.AddItem(r.Context(), chi.URLParam(r, "userID"), req.ProductID, req.Quantity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartView(cart))
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

func (h *HTTPHandler) updateCartItem(w http.ResponseWriter, r *http.Request) {
	var req updateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	cart, err := h.carts.UpdateItemQuantity(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "itemID"), req.Quantity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartView(cart))
}

func (h *HTTPHandler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	cart, err := h.carts.RemoveItem(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "itemID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartView(cart))
}

func (h *HTTPHandler) clearCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.carts.Clear(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartView(cart))
}

func (h *HTTPHandler) doCheckout(w http.ResponseWriter, r *http.Request) {
	order, err := h.checkout.Checkout(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderView(order))
}

func (h *HTTPHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.checkout.GetOrder(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderView(order))
}

func (h *HTTPHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.checkout.ListUserOrders(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	views := make([]orderView, 0, len(orders))
	for i := range orders {
		views = append(views, toOrderView(&orders[i]))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *HTTPHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.checkout.CancelOrder(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderView(order))
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *HTTPHandler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	order, err := h.checkout.UpdateOrderStatus(r.Context(), chi.URLParam(r, "orderID"), domain.OrderStatus(req.Status))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderView(order))
}

type stockView struct {
	ProductID string `json:"product_id"`
	Available int    `json:"available"`
}

func (h *HTTPHandler) listStock(w http.ResponseWriter, r *http.Request) {
	records, err := h.ledger.List(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	views := make([]stockView, 0, len(records))
	for _, rec := range records {
		views = append(views, stockView{ProductID: rec.ProductID, Available: rec.Available})
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *HTTPHandler) getStock(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")
	available, err := h.ledger.GetAvailable(r.Context(), productID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stockView{ProductID: productID, Available: available})
}

type stockRequest struct {
	Quantity int `json:"quantity"`
}

func (h *HTTPHandler) restock(w http.ResponseWriter, r *http.Request) {
	var req stockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	productID := chi.URLParam(r, "productID")
	available, err := h.ledger.Restock(r.Context(), productID, req.Quantity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stockView{ProductID: productID, Available: available})
}

func (h *HTTPHandler) setStock(w http.ResponseWriter, r *http.Request) {
	var req stockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	productID := chi.URLParam(r, "productID")
	if err := h.ledger.SetQuantity(r.Context(), productID, req.Quantity); err != nil {
		h.writeError(w, err)
		return
	}
	available, err := h.ledger.GetAvailable(r.Context(), productID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stockView{ProductID: productID, Available: available})
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	var insufficient *service.InsufficientStockError

	switch {
	case errors.As(err, &insufficient):
		writeJSON(w, http.StatusConflict, errorResponse{Error: insufficient.Error()})
	case errors.Is(err, service.ErrEmptyCart):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "cart is empty"})
	case errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrProductNotFound),
		errors.Is(err, service.ErrCartNotFound),
		errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, storage.ErrOrderMissing):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, storage.ErrNegativeStock):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrInvalidTransition):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		h.logger.Error().Err(err).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func toCartView(cart *domain.Cart) cartView {
	view := cartView{
		ID:         cart.ID,
		UserID:     cart.UserID,
		Items:      make([]cartItemView, 0, len(cart.Items)),
		TotalPrice: cart.TotalPrice.String(),
	}
	for _, item := range cart.Items {
		view.Items = append(view.Items, cartItemView{
			ID:        item.ID,
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice.String(),
			Quantity:  item.Quantity,
		})
	}
	return view
}

func toOrderView(order *domain.Order) orderView {
	view := orderView{
		ID:          order.ID,
		UserID:      order.UserID,
		Items:       make([]orderItemView, 0, len(order.Items)),
		TotalAmount: order.TotalAmount.String(),
		OrderDate:   order.OrderDate,
		Status:      string(order.Status),
	}
	for _, item := range order.Items {
		view.Items = append(view.Items, orderItemView{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice.String(),
			Quantity:  item.Quantity,
		})
	}
	return view
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
