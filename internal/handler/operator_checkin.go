package handler

import (
	"net/http"
	"time"

	"github.com/iliyamo/event-ticketing/internal/checkin"
	"github.com/iliyamo/event-ticketing/internal/queue"
	queue_publisher "github.com/iliyamo/event-ticketing/internal/service"
	"github.com/labstack/echo/v4"
)

// CheckinHandler admits ticket holders at the gate.  Operators post the
// raw scanned QR payload; the response tells the scanning device exactly
// what to display.
type CheckinHandler struct {
	Validator *checkin.Validator
}

// NewCheckinHandler constructs a CheckinHandler.
func NewCheckinHandler(validator *checkin.Validator) *CheckinHandler {
	if validator == nil {
		panic("nil validator passed to NewCheckinHandler")
	}
	return &CheckinHandler{Validator: validator}
}

// CheckIn handles POST /v1/checkin.  success admits the holder (including
// a grace-window rescan), already_used and invalid are rejections with
// distinct reasons.  The audit event is published after the state change
// is durable; publish failures never fail the scan.
func (h *CheckinHandler) CheckIn(c echo.Context) error {
	if _, err := getUserID(c); err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		QRPayload string `json:"qr_payload"`
	}
	if err := c.Bind(&body); err != nil || body.QRPayload == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "qr_payload is required"})
	}
	operator := getOperator(c)

	outcome, t, err := h.Validator.CheckIn(c.Request().Context(), body.QRPayload, operator)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "check-in failed"})
	}

	switch outcome {
	case checkin.Success:
		_ = queue_publisher.PublishTicketCheckedIn(c.Request().Context(), queue.TicketCheckedInEvent{
			TicketID:     t.ID,
			TicketNumber: t.TicketNumber,
			EventID:      t.EventID,
			Operator:     operator,
			CheckedInAt:  time.Now().UTC().Format(time.RFC3339),
		})
		return c.JSON(http.StatusOK, echo.Map{"result": outcome, "ticket": t})
	case checkin.AlreadyUsed:
		return c.JSON(http.StatusConflict, echo.Map{"result": outcome, "ticket": t})
	default:
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"result": outcome})
	}
}
