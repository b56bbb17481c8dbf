package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/iliyamo/event-ticketing/internal/gateway"
	"github.com/iliyamo/event-ticketing/internal/payment"
	"github.com/iliyamo/event-ticketing/internal/repository"
	"github.com/labstack/echo/v4"
)

// maxWebhookBody caps how much of a webhook payload is read.  Gateways
// send small JSON documents; anything larger is suspect.
const maxWebhookBody = 1 << 20

// WebhookHandler is the unauthenticated ingress for gateway callbacks.
// Authenticity comes from the per-gateway signature, not from a session.
type WebhookHandler struct {
	Coordinator *payment.Coordinator
}

// NewWebhookHandler constructs a WebhookHandler.
func NewWebhookHandler(coordinator *payment.Coordinator) *WebhookHandler {
	if coordinator == nil {
		panic("nil coordinator passed to NewWebhookHandler")
	}
	return &WebhookHandler{Coordinator: coordinator}
}

// Receive handles POST /v1/webhooks/:gateway.  Signature failures return
// 401 so the gateway's dashboard shows the misconfiguration.  Unknown
// references and duplicate deliveries return 200: the gateway has nothing
// to retry and retrying would change nothing.
func (h *WebhookHandler) Receive(c echo.Context) error {
	name := c.Param("gateway")
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable body"})
	}

	err = h.Coordinator.HandleGatewayCallback(c.Request().Context(), name, body, c.Request().Header)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, echo.Map{"status": "processed"})
	case errors.Is(err, gateway.ErrUnknownGateway):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown gateway"})
	case errors.Is(err, gateway.ErrSignatureMismatch):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "signature verification failed"})
	case errors.Is(err, repository.ErrPaymentNotFound):
		// logged server-side; acknowledged so the gateway stops retrying
		return c.JSON(http.StatusOK, echo.Map{"status": "ignored"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "webhook processing failed"})
	}
}
