package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"autorenta-settlement/internal/logger"
	"autorenta-settlement/internal/repository"
	"autorenta-settlement/internal/service"
)

type SplitHandler struct {
	splitSvc service.SplitService
	validate *validator.Validate
}

func NewSplitHandler(splitSvc service.SplitService) *SplitHandler {
	return &SplitHandler{
		splitSvc: splitSvc,
		validate: validator.New(),
	}
}

type collectorRequest struct {
	UserID     string  `json:"user_id" validate:"required"`
	Percentage float64 `json:"percentage" validate:"required,gt=0,lte=100"`
}

type distributeRequest struct {
	PaymentIntentID       string             `json:"payment_intent_id" validate:"required"`
	BookingID             string             `json:"booking_id"`
	TotalAmountCents      int64              `json:"total_amount_cents" validate:"required,gt=0"`
	Currency              string             `json:"currency" validate:"required"`
	Collectors            []collectorRequest `json:"collectors" validate:"required,min=1,dive"`
	PlatformFeePercentage float64            `json:"platform_fee_percentage" validate:"gte=0,lt=100"`
}

func (h *SplitHandler) Distribute(w http.ResponseWriter, r *http.Request) {
	var req distributeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondSplitError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondSplitError(w, http.StatusBadRequest, err.Error())
		return
	}

	collectors := make([]service.CollectorShare, 0, len(req.Collectors))
	for _, c := range req.Collectors {
		collectors = append(collectors, service.CollectorShare{
			CollectorID: c.UserID,
			Percentage:  c.Percentage,
		})
	}

	result, err := h.splitSvc.Distribute(r.Context(), service.DistributeRequest{
		PaymentID:        req.PaymentIntentID,
		BookingID:        req.BookingID,
		TotalAmountCents: req.TotalAmountCents,
		Currency:         req.Currency,
		Collectors:       collectors,
		PlatformFeePct:   req.PlatformFeePercentage,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSplitValidation):
			respondSplitError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, repository.ErrNotFound):
			respondSplitError(w, http.StatusNotFound, "payment intent not found")
		default:
			logger.Error("split distribution failed", "paymentIntentID", req.PaymentIntentID, "error", err)
			respondSplitError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"splits":  result.Splits,
		"summary": result.Summary,
	})
}

func respondSplitError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]any{"success": false, "error": message})
}
