package handler

import (
	"errors"
	"net/http"

	"github.com/iliyamo/event-ticketing/internal/payment"
	"github.com/iliyamo/event-ticketing/internal/repository"
	"github.com/labstack/echo/v4"
)

// RefundHandler exposes the admin-only refund operation.
type RefundHandler struct {
	Coordinator *payment.Coordinator
}

// NewRefundHandler constructs a RefundHandler.
func NewRefundHandler(coordinator *payment.Coordinator) *RefundHandler {
	if coordinator == nil {
		panic("nil coordinator passed to NewRefundHandler")
	}
	return &RefundHandler{Coordinator: coordinator}
}

// Refund handles POST /v1/payments/:id/refund.  The amount bound is
// enforced before eligibility, so an oversized request is rejected even
// against an already-refunded payment.  release_inventory additionally
// returns the order's sold units to the pool.
func (h *RefundHandler) Refund(c echo.Context) error {
	paymentID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payment id"})
	}
	var body struct {
		AmountCents      uint32 `json:"amount_cents"`
		Reason           string `json:"reason"`
		ReleaseInventory bool   `json:"release_inventory"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	err = h.Coordinator.Refund(c.Request().Context(), payment.RefundInput{
		PaymentID:        paymentID,
		AmountCents:      body.AmountCents,
		Reason:           body.Reason,
		ReleaseInventory: body.ReleaseInventory,
	})
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, echo.Map{"status": "refunded", "amount_cents": body.AmountCents})
	case errors.Is(err, repository.ErrPaymentNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "payment not found"})
	case errors.Is(err, payment.ErrRefundExceedsAmount):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refund amount exceeds paid amount"})
	case errors.Is(err, payment.ErrRefundNotEligible):
		return c.JSON(http.StatusConflict, echo.Map{"error": "payment is not refundable in its current state"})
	default:
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "refund failed"})
	}
}
