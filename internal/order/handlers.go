package order

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/kiosko-dev/backend-kiosko/internal/common"
	"github.com/kiosko-dev/backend-kiosko/internal/currency"
	"github.com/kiosko-dev/backend-kiosko/internal/promo"
	"github.com/kiosko-dev/backend-kiosko/internal/store"
)

// Handler exposes the authenticated order endpoints.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

func authedUser(w http.ResponseWriter, r *http.Request) (pgtype.UUID, bool) {
	raw, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return pgtype.UUID{}, false
	}
	id, err := store.ToUUID(raw)
	if err != nil {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid user identity", nil)
		return pgtype.UUID{}, false
	}
	return id, true
}

type checkoutPayload struct {
	Currency        string `json:"currency" validate:"omitempty,len=3"`
	BillingAddress  Addr   `json:"billingAddress"`
	DeliveryAddress Addr   `json:"deliveryAddress"`
}

// Checkout converts the user's cart into a pending order.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	var payload checkoutPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid checkout fields", nil)
			return
		}
	}
	created, err := h.Svc.Checkout(r.Context(), userID, Input{
		Currency:        payload.Currency,
		BillingAddress:  payload.BillingAddress,
		DeliveryAddress: payload.DeliveryAddress,
	})
	if err != nil {
		renderOrderError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": map[string]any{
		"id":       store.UUIDString(created.ID),
		"number":   created.Number,
		"status":   created.Status,
		"currency": created.Currency,
		"total":    created.Total,
	}})
}

// Get returns one of the user's orders with its line items.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	orderID, err := store.ToUUID(chi.URLParam(r, "orderID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	o, items, err := h.Svc.Get(r.Context(), userID, orderID)
	if err != nil {
		renderOrderError(w, err)
		return
	}
	lines := make([]map[string]any, 0, len(items))
	for _, it := range items {
		lines = append(lines, map[string]any{
			"productSkuId": store.UUIDString(it.ProductSkuID),
			"quantity":     it.Quantity,
			"unitPrice":    it.UnitPrice,
		})
	}
	data := map[string]any{
		"id":       store.UUIDString(o.ID),
		"number":   o.Number,
		"status":   o.Status,
		"currency": o.Currency,
		"total":    o.Total,
		"items":    lines,
	}
	if p, found, err := h.Svc.LatestPayment(r.Context(), o.ID); err == nil && found {
		data["payment"] = map[string]any{
			"sessionId": p.SessionID,
			"status":    p.Status,
		}
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": data})
}

// List returns the user's orders, newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	page, perPage := common.ParsePagination(r, 20, 100)
	orders, err := h.Svc.List(r.Context(), userID, page, perPage)
	if err != nil {
		renderOrderError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(orders))
	for _, o := range orders {
		out = append(out, map[string]any{
			"id":       store.UUIDString(o.ID),
			"number":   o.Number,
			"status":   o.Status,
			"currency": o.Currency,
			"total":    o.Total,
		})
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": out,
		"meta": common.Pagination{Page: page, PerPage: perPage, TotalItems: len(out)},
	})
}

func renderOrderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrPendingLimit):
		common.JSONError(w, http.StatusConflict, "PENDING_LIMIT", "pending order limit reached", nil)
	case errors.Is(err, ErrCartEmpty):
		common.JSONError(w, http.StatusConflict, "CART_EMPTY", "cart is empty or out of stock", nil)
	case errors.Is(err, ErrInsufficientStock):
		common.JSONError(w, http.StatusConflict, "OUT_OF_STOCK", "not enough stock available", nil)
	case errors.Is(err, ErrPromoExhausted):
		common.JSONError(w, http.StatusConflict, "PROMO_INVALID", "promocode usage limit reached", nil)
	case errors.Is(err, promo.ErrNotYetActive),
		errors.Is(err, promo.ErrExpired),
		errors.Is(err, promo.ErrInactive):
		common.JSONError(w, http.StatusConflict, "PROMO_INVALID", err.Error(), nil)
	case errors.Is(err, currency.ErrRatesUnavailable):
		common.JSONError(w, http.StatusServiceUnavailable, "RATES_UNAVAILABLE", "exchange rates unavailable", nil)
	case errors.Is(err, currency.ErrUnknownCurrency):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "unknown currency", nil)
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order operation failed", nil)
	}
}
