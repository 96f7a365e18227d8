package payment

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/kiosko-dev/backend-kiosko/internal/common"
	"github.com/kiosko-dev/backend-kiosko/internal/order"
	"github.com/kiosko-dev/backend-kiosko/internal/store"
)

// Handler exposes payment session and capture endpoints.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

type createSessionPayload struct {
	OrderID string `json:"orderId" validate:"required,uuid4"`
}

// CreateSession opens a gateway checkout session for one of the user's orders.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	raw, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	userID, err := store.ToUUID(raw)
	if err != nil {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid user identity", nil)
		return
	}
	var payload createSessionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid session fields", nil)
			return
		}
	}
	orderID, err := store.ToUUID(payload.OrderID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	p, err := h.Svc.CreateSession(r.Context(), userID, orderID)
	if err != nil {
		renderPaymentError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": map[string]any{
		"sessionId":   p.SessionID,
		"redirectUrl": p.RedirectURL.String,
		"amount":      p.Amount,
		"currency":    p.Currency,
		"status":      p.Status,
	}})
}

type capturePayload struct {
	SessionID string `json:"sessionId" validate:"required,min=4,max=128"`
}

// Capture settles a checkout session against the gateway.
func (h *Handler) Capture(w http.ResponseWriter, r *http.Request) {
	var payload capturePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid capture fields", nil)
			return
		}
	}
	p, err := h.Svc.Capture(r.Context(), strings.TrimSpace(payload.SessionID))
	if err != nil {
		renderPaymentError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"sessionId": p.SessionID,
		"status":    p.Status,
	}})
}

func renderPaymentError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, order.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order or payment not found", nil)
	case errors.Is(err, ErrOrderNotPending), errors.Is(err, ErrPaymentNotPending):
		common.JSONError(w, http.StatusConflict, "CONFLICT", err.Error(), nil)
	case errors.Is(err, ErrOrderExpired):
		common.JSONError(w, http.StatusConflict, "ORDER_EXPIRED", "order payment window expired", nil)
	case errors.Is(err, ErrNotPaid):
		common.JSONError(w, http.StatusConflict, "NOT_PAID", "payment not completed", nil)
	case errors.Is(err, ErrGateway):
		common.JSONError(w, http.StatusBadGateway, "GATEWAY", "payment gateway error", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "payment operation failed", nil)
	}
}
