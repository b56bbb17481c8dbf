package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/iliyamo/event-ticketing/internal/repository"
	"github.com/iliyamo/event-ticketing/internal/reservation"
	"github.com/labstack/echo/v4"
)

// BookingHandler lets authenticated customers take and release holds on
// event inventory.  It assumes JWT authentication and role validation
// have already been performed by middleware.
type BookingHandler struct {
	EventRepo *repository.EventRepo
	Manager   *reservation.Manager
	HoldTTL   time.Duration
}

// NewBookingHandler constructs a BookingHandler.  All dependencies must be
// non-nil.
func NewBookingHandler(eventRepo *repository.EventRepo, manager *reservation.Manager, holdTTL time.Duration) *BookingHandler {
	if eventRepo == nil || manager == nil {
		panic("nil dependency passed to NewBookingHandler")
	}
	return &BookingHandler{EventRepo: eventRepo, Manager: manager, HoldTTL: holdTTL}
}

// Reserve handles POST /v1/events/:id/reserve.  The body names explicit
// seat IDs, package quantities or both; the attempt is all-or-nothing and
// a 409 with the conflict reason is returned when any requested unit is
// taken.  On success the client receives the hold token and its expiry.
func (h *BookingHandler) Reserve(c echo.Context) error {
	if _, err := getUserID(c); err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	eventID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	ctx := c.Request().Context()

	if _, err := h.EventRepo.GetByID(ctx, eventID); err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	var body reservation.Items
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	// deduplicate seat IDs to avoid double-counting one seat in the
	// all-or-nothing row comparison
	unique := make([]uint64, 0, len(body.SeatIDs))
	seen := make(map[uint64]struct{})
	for _, id := range body.SeatIDs {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			unique = append(unique, id)
		}
	}
	body.SeatIDs = unique
	if len(body.SeatIDs) == 0 && len(body.Packages) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "nothing to reserve"})
	}

	hold, err := h.Manager.Reserve(ctx, eventID, body, h.HoldTTL)
	if err != nil {
		if errors.Is(err, repository.ErrReservationConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "requested units are not available"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reservation failed"})
	}
	return c.JSON(http.StatusCreated, hold)
}

// Release handles DELETE /v1/reservations/:token.  Releasing a token that
// no longer holds anything returns 404; releasing twice is therefore
// visible to the client but harmless to inventory.
func (h *BookingHandler) Release(c echo.Context) error {
	if _, err := getUserID(c); err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	token := c.Param("token")
	if token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing hold token"})
	}
	if err := h.Manager.Release(c.Request().Context(), token); err != nil {
		if errors.Is(err, repository.ErrHoldNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "hold not found or already released"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "release failed"})
	}
	return c.NoContent(http.StatusNoContent)
}
