package cart

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/kiosko-dev/backend-kiosko/internal/common"
	"github.com/kiosko-dev/backend-kiosko/internal/currency"
	"github.com/kiosko-dev/backend-kiosko/internal/promo"
	"github.com/kiosko-dev/backend-kiosko/internal/store"
)

// Handler exposes the authenticated cart endpoints.
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

// Get returns the priced cart view, optionally converted via ?currency=.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	target := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("currency")))
	view, err := h.Svc.GetPriced(r.Context(), userID, target)
	if err != nil {
		renderCartError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

type setItemPayload struct {
	ProductSkuID string `json:"productSkuId" validate:"required,uuid4"`
	Quantity     int32  `json:"quantity" validate:"gte=0,lte=999"`
}

// SetItem adds or updates a cart line. Quantity zero removes it.
func (h *Handler) SetItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	var payload setItemPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid cart item fields", nil)
			return
		}
	}
	skuID, err := store.ToUUID(payload.ProductSkuID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid sku id", nil)
		return
	}
	if err := h.Svc.SetItem(r.Context(), userID, skuID, payload.Quantity); err != nil {
		renderCartError(w, err)
		return
	}
	view, err := h.Svc.GetPriced(r.Context(), userID, "")
	if err != nil {
		renderCartError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

// RemoveItem drops a cart line by SKU id.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	skuID, err := store.ToUUID(chi.URLParam(r, "skuID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid sku id", nil)
		return
	}
	if err := h.Svc.RemoveItem(r.Context(), userID, skuID); err != nil {
		renderCartError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"removed": true}})
}

// Clear empties the cart.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	if err := h.Svc.Clear(r.Context(), userID); err != nil {
		renderCartError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"cleared": true}})
}

type applyPromoPayload struct {
	Code string `json:"code" validate:"required,min=3,max=64"`
}

// ApplyPromocode attaches a redeemable promocode to the cart.
func (h *Handler) ApplyPromocode(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	var payload applyPromoPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid promocode", nil)
			return
		}
	}
	rule, err := h.Svc.ApplyPromocode(r.Context(), userID, payload.Code)
	if err != nil {
		renderCartError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"code": rule.Code, "kind": rule.Kind}})
}

// RemovePromocode detaches any promocode from the cart.
func (h *Handler) RemovePromocode(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	if err := h.Svc.RemovePromocode(r.Context(), userID); err != nil {
		renderCartError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"removed": true}})
}

func renderCartError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, promo.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "promocode not found", nil)
	case errors.Is(err, promo.ErrNotYetActive),
		errors.Is(err, promo.ErrExpired),
		errors.Is(err, promo.ErrInactive):
		common.JSONError(w, http.StatusConflict, "PROMO_INVALID", err.Error(), nil)
	case errors.Is(err, currency.ErrRatesUnavailable):
		common.JSONError(w, http.StatusServiceUnavailable, "RATES_UNAVAILABLE", "exchange rates unavailable", nil)
	case errors.Is(err, currency.ErrUnknownCurrency):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "unknown currency", nil)
	case errors.Is(err, ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart operation failed", nil)
	}
}
