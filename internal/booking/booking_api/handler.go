package booking_api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"eventcircle/internal/auth"
	"eventcircle/internal/booking"
	"eventcircle/internal/logger"
	"eventcircle/internal/models"
	"eventcircle/internal/utils"

	"github.com/go-chi/chi/v5"
)

// BookingService is the part of *booking.Service the handlers call.
type BookingService interface {
	RequestBooking(ctx context.Context, userID, eventID string) (*booking.Result, error)
	ConfirmPayment(ctx context.Context, reference, eventID, userID string) (*booking.Result, error)
	MyTickets(ctx context.Context, userID string) ([]models.TicketSummary, error)
	GetBooking(ctx context.Context, eventID, userID string) (*models.EventBooking, error)
}

// PassRenderer turns a booking into a QR image.
type PassRenderer interface {
	PNG(b *models.EventBooking) ([]byte, error)
}

type Handler struct {
	Service     BookingService
	Passes      PassRenderer
	FrontendURL string
	Logger      *logger.Logger
}

func NewHandler(service BookingService, passes PassRenderer, frontendURL string, log *logger.Logger) *Handler {
	return &Handler{
		Service:     service,
		Passes:      passes,
		FrontendURL: strings.TrimRight(frontendURL, "/"),
		Logger:      log,
	}
}

type paidBookingResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	Reference        string `json:"reference"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type verifyResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	RedirectURL string `json:"redirectUrl"`
}

// BookEvent handles POST /events/book/{eventId}.
func (h *Handler) BookEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	userID := auth.UserID(r.Context())
	if userID == "" {
		utils.WriteJSON(w, http.StatusUnauthorized, messageResponse{Message: "Unauthorized"})
		return
	}
	h.Logger.Info("API", fmt.Sprintf("BookEvent: eventId=%s userId=%s", eventID, userID))

	res, err := h.Service.RequestBooking(r.Context(), userID, eventID)
	if err != nil {
		status := bookingStatus(err)
		if status == http.StatusInternalServerError {
			h.Logger.Error("API", fmt.Sprintf("BookEvent: %v", err))
		}
		utils.WriteJSON(w, status, messageResponse{Message: publicMessage(err)})
		return
	}

	if res.State == booking.StatePaymentInitiated {
		utils.WriteJSON(w, http.StatusOK, paidBookingResponse{
			AuthorizationURL: res.AuthorizationURL,
			Reference:        res.Reference,
		})
		return
	}
	utils.WriteJSON(w, http.StatusOK, messageResponse{Message: res.Message})
}

// VerifyPayment handles the gateway callback GET /events/payment/verify.
// It always answers with JSON and leaves the redirect to the caller.
func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	reference := q.Get("reference")
	if reference == "" {
		// Paystack sends the reference as trxref as well.
		reference = q.Get("trxref")
	}
	eventID := q.Get("eventId")
	userID := q.Get("userId")

	res, err := h.Service.ConfirmPayment(r.Context(), reference, eventID, userID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, booking.ErrMissingParams) || errors.Is(err, booking.ErrInvalidID) {
			status = http.StatusBadRequest
		} else {
			h.Logger.Error("API", fmt.Sprintf("VerifyPayment: reference=%s: %v", reference, err))
		}
		utils.WriteJSON(w, status, verifyResponse{
			Success:     false,
			Message:     publicMessage(err),
			RedirectURL: h.redirect("failed", eventID, reference),
		})
		return
	}

	utils.WriteJSON(w, http.StatusOK, verifyResponse{
		Success:     true,
		Message:     res.Message,
		RedirectURL: h.redirect("success", eventID, reference),
	})
}

// MyTickets handles GET /users/me/tickets.
func (h *Handler) MyTickets(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.Service.MyTickets(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		status := bookingStatus(err)
		if status == http.StatusInternalServerError {
			h.Logger.Error("API", fmt.Sprintf("MyTickets: %v", err))
		}
		utils.WriteJSON(w, status, utils.ErrorResponse("Failed to load tickets", publicMessage(err)))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("My tickets", tickets))
}

// TicketPass handles GET /events/{eventId}/ticket and answers with a PNG.
func (h *Handler) TicketPass(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")

	b, err := h.Service.GetBooking(r.Context(), eventID, auth.UserID(r.Context()))
	if err != nil {
		status := bookingStatus(err)
		if status == http.StatusInternalServerError {
			h.Logger.Error("API", fmt.Sprintf("TicketPass: %v", err))
		}
		utils.WriteJSON(w, status, utils.ErrorResponse("No ticket for this event", publicMessage(err)))
		return
	}

	png, err := h.Passes.PNG(b)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("TicketPass: render QR for %s: %v", b.ID, err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to render ticket", "internal error"))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

func (h *Handler) redirect(outcome, eventID, reference string) string {
	q := url.Values{}
	if eventID != "" {
		q.Set("eventId", eventID)
	}
	if reference != "" {
		q.Set("reference", reference)
	}
	target := h.FrontendURL + "/payment/" + outcome
	if len(q) > 0 {
		target += "?" + q.Encode()
	}
	return target
}

func bookingStatus(err error) int {
	switch booking.Classify(err) {
	case booking.KindValidation, booking.KindDenied:
		return http.StatusBadRequest
	case booking.KindNotFound:
		return http.StatusNotFound
	default:
		if errors.Is(err, booking.ErrAmountMismatch) {
			return http.StatusBadRequest
		}
		return http.StatusInternalServerError
	}
}

// publicMessage hides internal and gateway error detail from clients.
func publicMessage(err error) string {
	switch booking.Classify(err) {
	case booking.KindInternal:
		return "Internal server error"
	case booking.KindGateway:
		for _, sentinel := range []error{booking.ErrAmountMismatch, booking.ErrPaymentInitFailed, booking.ErrPaymentVerificationFailed} {
			if errors.Is(err, sentinel) {
				return sentinel.Error()
			}
		}
	}
	return err.Error()
}
