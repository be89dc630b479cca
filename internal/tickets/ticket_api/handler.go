package ticket_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"eventcircle/internal/auth"
	"eventcircle/internal/booking"
	"eventcircle/internal/logger"
	"eventcircle/internal/tickets"
	"eventcircle/internal/tickets/qr"
	"eventcircle/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	Service *tickets.Service
	Logger  *logger.Logger
}

func NewHandler(service *tickets.Service, log *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

// GetSales returns the daily sales counters of an event.
func (h *Handler) GetSales(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")

	report, err := h.Service.Sales(r.Context(), eventID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetSales: %v", err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to load sales", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Ticket sales", report))
}

// CheckPass verifies a scanned pass.
// Expected POST request body: {"encrypted_qr": "base64url string"}
func (h *Handler) CheckPass(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")

	var body struct {
		EncryptedQR string `json:"encrypted_qr"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.EncryptedQR == "" {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", "encrypted_qr is required"))
		return
	}

	pass, err := h.Service.CheckPass(r.Context(), auth.UserID(r.Context()), eventID, body.EncryptedQR)
	switch {
	case err == nil:
		utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Pass is valid", pass))
	case errors.Is(err, tickets.ErrNotEventOwner):
		utils.WriteJSON(w, http.StatusForbidden, utils.ErrorResponse("Forbidden", err.Error()))
	case errors.Is(err, booking.ErrEventNotFound):
		utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("Event not found", err.Error()))
	case errors.Is(err, qr.ErrInvalidPass), errors.Is(err, tickets.ErrPassMismatch), errors.Is(err, tickets.ErrNoBooking):
		utils.WriteJSON(w, http.StatusUnprocessableEntity, utils.ErrorResponse("Pass rejected", err.Error()))
	default:
		h.Logger.Error("API", fmt.Sprintf("CheckPass: %v", err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Pass check failed", err.Error()))
	}
}
