package earnings_api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"eventcircle/internal/auth"
	"eventcircle/internal/booking"
	"eventcircle/internal/earnings"
	"eventcircle/internal/logger"
	"eventcircle/internal/models"
	"eventcircle/internal/money"
	"eventcircle/internal/utils"

	"github.com/gin-gonic/gin"
)

// Paths lists every route the engine serves, for mounting under the main router.
var Paths = []string{
	"/api/users/withdrawals",
	"/api/users/me/earnings",
	"/api/admin/earnings",
}

type EarningsService interface {
	Balance(ctx context.Context, userID string) (money.Amount, error)
	RequestWithdrawal(ctx context.Context, userID string) (*models.Withdrawal, error)
	ListWithdrawals(ctx context.Context, userID string) ([]models.Withdrawal, error)
	PlatformReport(ctx context.Context) (*models.PlatformEarningsReport, error)
}

type EarningsHandler struct {
	service  EarningsService
	adminIDs []string
	logger   *logger.Logger
}

func NewEarningsHandler(service EarningsService, adminIDs []string, logger *logger.Logger) *EarningsHandler {
	return &EarningsHandler{service: service, adminIDs: adminIDs, logger: logger}
}

// Engine builds the gin engine. Authentication is applied by the outer router.
func (h *EarningsHandler) Engine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.POST("/api/users/withdrawals", h.RequestWithdrawal)
	r.GET("/api/users/withdrawals", h.ListWithdrawals)
	r.GET("/api/users/me/earnings", h.GetBalance)
	r.GET("/api/admin/earnings", auth.RequireAdmin(h.adminIDs, h.logger), h.PlatformEarnings)
	return r
}

func (h *EarningsHandler) GetBalance(c *gin.Context) {
	userID := auth.UserID(c.Request.Context())

	balance, err := h.service.Balance(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, "Failed to load earnings", err)
		return
	}
	c.JSON(http.StatusOK, utils.SuccessResponse("Earnings balance", gin.H{"total_earnings": balance}))
}

func (h *EarningsHandler) RequestWithdrawal(c *gin.Context) {
	userID := auth.UserID(c.Request.Context())

	w, err := h.service.RequestWithdrawal(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, earnings.ErrTransferFailed) && w != nil {
			c.JSON(http.StatusBadGateway, utils.APIResponse{
				Success: false,
				Message: "Withdrawal failed",
				Data:    w,
				Error:   w.FailureReason,
			})
			return
		}
		h.respondError(c, "Withdrawal not possible", err)
		return
	}
	c.JSON(http.StatusCreated, utils.SuccessResponse("Withdrawal completed", w))
}

func (h *EarningsHandler) ListWithdrawals(c *gin.Context) {
	list, err := h.service.ListWithdrawals(c.Request.Context(), auth.UserID(c.Request.Context()))
	if err != nil {
		h.respondError(c, "Failed to load withdrawals", err)
		return
	}
	c.JSON(http.StatusOK, utils.SuccessResponse("Withdrawals", list))
}

func (h *EarningsHandler) PlatformEarnings(c *gin.Context) {
	report, err := h.service.PlatformReport(c.Request.Context())
	if err != nil {
		h.respondError(c, "Failed to load platform earnings", err)
		return
	}
	c.JSON(http.StatusOK, utils.SuccessResponse("Platform earnings", report))
}

func (h *EarningsHandler) respondError(c *gin.Context, message string, err error) {
	switch {
	case errors.Is(err, earnings.ErrBelowMinimum), errors.Is(err, earnings.ErrNoPayoutRecipient):
		c.JSON(http.StatusBadRequest, utils.ErrorResponse(message, err.Error()))
	case errors.Is(err, earnings.ErrWithdrawalInProgress):
		c.JSON(http.StatusConflict, utils.ErrorResponse(message, err.Error()))
	case errors.Is(err, booking.ErrUserNotFound):
		c.JSON(http.StatusNotFound, utils.ErrorResponse(message, err.Error()))
	default:
		h.logger.Error("API", fmt.Sprintf("%s: %v", message, err))
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse(message, "internal error"))
	}
}
