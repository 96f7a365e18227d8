package promo

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/kiosko-dev/backend-kiosko/internal/common"
	"github.com/kiosko-dev/backend-kiosko/internal/store"
)

// Handler exposes administrative promocode management endpoints.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

type promocodePayload struct {
	Code          string    `json:"code" validate:"required,min=3,max=64"`
	Kind          string    `json:"kind" validate:"required,oneof=fixed percent"`
	DiscountValue int64     `json:"discountValue" validate:"required,gt=0"`
	ValidFrom     time.Time `json:"validFrom" validate:"required"`
	ValidTo       time.Time `json:"validTo" validate:"required,gtfield=ValidFrom"`
	UsageLimit    int32     `json:"usageLimit" validate:"required,gt=0"`
}

func (h *Handler) decodeAndValidate(r *http.Request, payload *promocodePayload) error {
	if err := json.NewDecoder(r.Body).Decode(payload); err != nil {
		return common.BadRequest("BAD_REQUEST", "invalid payload")
	}
	if payload.Kind == KindPercent && payload.DiscountValue > 100 {
		return common.BadRequest("BAD_REQUEST", "percent discount cannot exceed 100")
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			details := map[string]string{}
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) {
				for _, fe := range verrs {
					details[fe.Field()] = fe.Tag()
				}
			}
			return &common.AppError{Code: "VALIDATION", Message: "invalid promocode fields", HTTPStatus: http.StatusBadRequest, Details: details}
		}
	}
	return nil
}

func timestamptz(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}

// Create inserts a new promocode.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil || h.Svc.Q == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "promo service not configured", nil)
		return
	}
	var payload promocodePayload
	if err := h.decodeAndValidate(r, &payload); err != nil {
		common.RenderError(w, err)
		return
	}
	row, err := h.Svc.Q.CreatePromocode(r.Context(), store.CreatePromocodeParams{
		Code:          strings.TrimSpace(payload.Code),
		Kind:          store.PromoKind(payload.Kind),
		DiscountValue: payload.DiscountValue,
		ValidFrom:     timestamptz(payload.ValidFrom),
		ValidTo:       timestamptz(payload.ValidTo),
		UsageLimit:    payload.UsageLimit,
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			common.JSONError(w, http.StatusConflict, "CONFLICT", "promocode code already exists", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to create promocode", nil)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": RuleFromModel(row)})
}

// Update rewrites the mutable fields of a promocode identified by code.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil || h.Svc.Q == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "promo service not configured", nil)
		return
	}
	code := strings.TrimSpace(chi.URLParam(r, "code"))
	if code == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "code is required", nil)
		return
	}
	var payload promocodePayload
	payload.Code = code
	if err := h.decodeAndValidate(r, &payload); err != nil {
		common.RenderError(w, err)
		return
	}
	row, err := h.Svc.Q.UpdatePromocode(r.Context(), store.UpdatePromocodeParams{
		Code:          code,
		Kind:          store.PromoKind(payload.Kind),
		DiscountValue: payload.DiscountValue,
		ValidFrom:     timestamptz(payload.ValidFrom),
		ValidTo:       timestamptz(payload.ValidTo),
		UsageLimit:    payload.UsageLimit,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "promocode not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to update promocode", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": RuleFromModel(row)})
}

// Get returns a promocode without enforcing validity so admins can inspect
// inactive codes.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(chi.URLParam(r, "code"))
	if code == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "code is required", nil)
		return
	}
	rule, err := h.Svc.GetByCode(r.Context(), code, false)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "promocode not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load promocode", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rule})
}
