package handler

import (
	"errors"
	"net/http"

	"github.com/iliyamo/event-ticketing/internal/payment"
	"github.com/iliyamo/event-ticketing/internal/repository"
	"github.com/labstack/echo/v4"
)

// OrderHandler turns active holds into pending orders and lets buyers
// read back their orders with any issued tickets.
type OrderHandler struct {
	Coordinator *payment.Coordinator
	OrderRepo   *repository.OrderRepo
	TicketRepo  *repository.TicketRepo
}

// NewOrderHandler constructs an OrderHandler.  All dependencies must be
// non-nil.
func NewOrderHandler(coordinator *payment.Coordinator, orderRepo *repository.OrderRepo, ticketRepo *repository.TicketRepo) *OrderHandler {
	if coordinator == nil || orderRepo == nil || ticketRepo == nil {
		panic("nil dependency passed to NewOrderHandler")
	}
	return &OrderHandler{Coordinator: coordinator, OrderRepo: orderRepo, TicketRepo: ticketRepo}
}

// Create handles POST /v1/orders.  The body carries the hold token from a
// prior reservation plus checkout details.  A 502 with the pending order
// is returned when the gateway could not produce a checkout URL; the
// client may retry checkout for the same order.
func (h *OrderHandler) Create(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		HoldToken   string `json:"hold_token"`
		Email       string `json:"email"`
		Gateway     string `json:"gateway"`
		Currency    string `json:"currency"`
		RedirectURL string `json:"redirect_url"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.HoldToken == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "hold_token is required"})
	}
	if body.Currency == "" {
		body.Currency = "USD"
	}

	result, err := h.Coordinator.CreateOrder(c.Request().Context(), payment.CreateOrderInput{
		HoldToken:   body.HoldToken,
		BuyerID:     userID,
		BuyerEmail:  body.Email,
		Gateway:     body.Gateway,
		Currency:    body.Currency,
		RedirectURL: body.RedirectURL,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrHoldNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "hold not found or expired"})
		case errors.Is(err, payment.ErrPaymentIntentFailure):
			// order exists but checkout could not be created; surface both
			return c.JSON(http.StatusBadGateway, echo.Map{
				"error": "payment gateway unavailable, retry checkout",
				"order": result.Order,
			})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "order creation failed"})
		}
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"order":        result.Order,
		"checkout_url": result.Intent.CheckoutURL,
		"reference":    result.Intent.Reference,
	})
}

// Get handles GET /v1/orders/:id.  Buyers can only read their own orders;
// any issued tickets are embedded so the client can render QR codes.
func (h *OrderHandler) Get(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	orderID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid order id"})
	}
	ctx := c.Request().Context()

	order, err := h.OrderRepo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "order not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	role, _ := c.Get("role").(string)
	if order.BuyerID != userID && role != "ADMIN" {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	tickets, err := h.TicketRepo.ListByOrder(ctx, orderID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"order": order, "tickets": tickets})
}
