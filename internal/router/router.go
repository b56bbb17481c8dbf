package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/event-ticketing/internal/config"
	"github.com/iliyamo/event-ticketing/internal/handler"
	"github.com/iliyamo/event-ticketing/internal/middleware"
)

// Handlers bundles every handler the router wires up.  main constructs
// this once after all dependencies are built.
type Handlers struct {
	Health  *handler.HealthHandler
	Public  *handler.PublicHandler
	Booking *handler.BookingHandler
	Order   *handler.OrderHandler
	Webhook *handler.WebhookHandler
	Refund  *handler.RefundHandler
	Checkin *handler.CheckinHandler
}

// Register wires all application routes onto the provided Echo instance.
//
// Route groups:
//   - unauthenticated: health, availability browsing, gateway webhooks
//   - CUSTOMER: reserve/release holds, create and read orders
//   - OPERATOR/ADMIN: gate check-in (rate limited per operator)
//   - ADMIN: refunds
//
// Webhooks carry no JWT; their authenticity is the gateway signature
// checked inside the handler.
func Register(e *echo.Echo, h Handlers, jwtSecret string, rdb *redis.Client) {
	// Health endpoint for load balancers and monitoring systems.
	e.GET("/healthz", h.Health.Health)

	// Public browsing.  Availability is cacheable for a short window; the
	// middleware degrades to a pass-through when Redis is unavailable.
	pub := e.Group("/v1")
	if rdb != nil {
		pub.Use(middleware.NewRedisCache(config.LoadCacheConfig(), rdb))
	}
	pub.GET("/events/:id/availability", h.Public.GetAvailability)

	// Gateway callbacks are unauthenticated by design; the handler
	// verifies the per-gateway signature before trusting anything.
	e.POST("/v1/webhooks/:gateway", h.Webhook.Receive)

	// Customer endpoints require a valid access token with a buyer role.
	customer := e.Group("/v1")
	customer.Use(middleware.JWTAuth(jwtSecret))
	customer.Use(middleware.RequireRole("CUSTOMER", "OPERATOR", "ADMIN"))
	customer.POST("/events/:id/reserve", h.Booking.Reserve)
	customer.DELETE("/reservations/:token", h.Booking.Release)
	customer.POST("/orders", h.Order.Create)
	customer.GET("/orders/:id", h.Order.Get)

	// Gate scanning.  Rate limited per operator so a wedged scanner
	// cannot hammer the database.
	gate := e.Group("/v1")
	gate.Use(middleware.JWTAuth(jwtSecret))
	gate.Use(middleware.RequireRole("OPERATOR", "ADMIN"))
	if rdb != nil {
		gate.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	}
	gate.POST("/checkin", h.Checkin.CheckIn)

	// Refunds are admin-only.
	admin := e.Group("/v1")
	admin.Use(middleware.JWTAuth(jwtSecret))
	admin.Use(middleware.RequireRole("ADMIN"))
	admin.POST("/payments/:id/refund", h.Refund.Refund)
}
