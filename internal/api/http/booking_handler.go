package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"autorenta-settlement/internal/logger"
	"autorenta-settlement/internal/repository"
	"autorenta-settlement/internal/service"
)

// BookingHandler exposes the settlement operations on a booking: clean
// completion, completion with charges, and the dispute lifecycle.
type BookingHandler struct {
	depositSvc service.DepositService
	disputeSvc service.DisputeService
	validate   *validator.Validate
}

func NewBookingHandler(depositSvc service.DepositService, disputeSvc service.DisputeService) *BookingHandler {
	return &BookingHandler{
		depositSvc: depositSvc,
		disputeSvc: disputeSvc,
		validate:   validator.New(),
	}
}

type chargesRequest struct {
	DamageFeeCents int64  `json:"damage_fee_cents" validate:"gte=0"`
	FuelFeeCents   int64  `json:"fuel_fee_cents" validate:"gte=0"`
	LateFeeCents   int64  `json:"late_fee_cents" validate:"gte=0"`
	Description    string `json:"description"`
}

func (c chargesRequest) toCharges() service.DepositCharges {
	return service.DepositCharges{
		DamageFeeCents: c.DamageFeeCents,
		FuelFeeCents:   c.FuelFeeCents,
		LateFeeCents:   c.LateFeeCents,
		Description:    c.Description,
	}
}

type resolveRequest struct {
	Resolution    string `json:"resolution" validate:"required,oneof=approved partial rejected"`
	ApprovedCents int64  `json:"approved_cents" validate:"gte=0"`
}

func (h *BookingHandler) CompleteClean(w http.ResponseWriter, r *http.Request) {
	bookingID := mux.Vars(r)["id"]

	booking, err := h.depositSvc.CompleteClean(r.Context(), bookingID)
	if err != nil {
		h.respondSettlementError(w, bookingID, err)
		return
	}
	respondJSON(w, http.StatusOK, booking)
}

func (h *BookingHandler) CompleteWithDamages(w http.ResponseWriter, r *http.Request) {
	bookingID := mux.Vars(r)["id"]

	var req chargesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	booking, err := h.depositSvc.CompleteWithDamages(r.Context(), bookingID, req.toCharges())
	if err != nil {
		h.respondSettlementError(w, bookingID, err)
		return
	}
	respondJSON(w, http.StatusOK, booking)
}

func (h *BookingHandler) FinishWithInspection(w http.ResponseWriter, r *http.Request) {
	bookingID := mux.Vars(r)["id"]

	var req chargesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	booking, err := h.disputeSvc.FinishWithInspection(r.Context(), bookingID, req.toCharges())
	if err != nil {
		h.respondSettlementError(w, bookingID, err)
		return
	}
	respondJSON(w, http.StatusOK, booking)
}

func (h *BookingHandler) OpenDispute(w http.ResponseWriter, r *http.Request) {
	bookingID := mux.Vars(r)["id"]

	var req chargesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	booking, err := h.disputeSvc.OpenDispute(r.Context(), bookingID, req.toCharges())
	if err != nil {
		h.respondSettlementError(w, bookingID, err)
		return
	}
	respondJSON(w, http.StatusCreated, booking)
}

func (h *BookingHandler) ResolveDispute(w http.ResponseWriter, r *http.Request) {
	bookingID := mux.Vars(r)["id"]

	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	booking, err := h.disputeSvc.ResolveDispute(r.Context(), bookingID,
		service.DisputeResolution(req.Resolution), req.ApprovedCents)
	if err != nil {
		h.respondSettlementError(w, bookingID, err)
		return
	}
	respondJSON(w, http.StatusOK, booking)
}

func (h *BookingHandler) respondSettlementError(w http.ResponseWriter, bookingID string, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		respondError(w, http.StatusNotFound, "booking not found")
	case errors.Is(err, service.ErrGuaranteeNotSettleable):
		respondError(w, http.StatusConflict, err.Error())
	default:
		logger.Error("settlement operation failed", "bookingID", bookingID, "error", err)
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	}
}
