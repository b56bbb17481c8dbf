package handler

import (
	"errors"
	"net/http"

	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/repository"
	"github.com/labstack/echo/v4"
)

// PublicHandler exposes unauthenticated browse endpoints.  Responses are
// sanitized: hold tokens never leave the server and per-seat reservation
// deadlines are only echoed for seats currently reserved.
type PublicHandler struct {
	EventRepo   *repository.EventRepo
	SeatRepo    *repository.SeatRepo
	PackageRepo *repository.PackageRepo
}

// NewPublicHandler constructs a PublicHandler.  All dependencies must be
// non-nil.
func NewPublicHandler(eventRepo *repository.EventRepo, seatRepo *repository.SeatRepo, packageRepo *repository.PackageRepo) *PublicHandler {
	if eventRepo == nil || seatRepo == nil || packageRepo == nil {
		panic("nil repository passed to NewPublicHandler")
	}
	return &PublicHandler{EventRepo: eventRepo, SeatRepo: seatRepo, PackageRepo: packageRepo}
}

// packageAvailability is the wire shape for one package row: the raw
// counters plus the derived number of units a buyer could still reserve
// right now.
type packageAvailability struct {
	model.TicketPackage
	QuantityHeld      uint32 `json:"quantity_held"`
	QuantityRemaining uint32 `json:"quantity_remaining"`
}

// GetAvailability handles GET /v1/events/:id/availability.  It returns the
// event header, every seat with its current status and every package with
// its remaining quantity.  The remaining figure already subtracts active
// holds, so a client that sees 0 cannot reserve even though quantity_sold
// has not moved yet.
func (h *PublicHandler) GetAvailability(c echo.Context) error {
	eventID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	ctx := c.Request().Context()

	event, err := h.EventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	seats, err := h.SeatRepo.ListByEvent(ctx, eventID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	packages, held, err := h.PackageRepo.ListByEvent(ctx, eventID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	pkgs := make([]packageAvailability, 0, len(packages))
	for _, p := range packages {
		heldQty := held[p.ID]
		remaining := uint32(0)
		if p.QuantityAvailable > p.QuantitySold+heldQty {
			remaining = p.QuantityAvailable - p.QuantitySold - heldQty
		}
		pkgs = append(pkgs, packageAvailability{TicketPackage: p, QuantityHeld: heldQty, QuantityRemaining: remaining})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"event":    event,
		"seats":    seats,
		"packages": pkgs,
	})
}
