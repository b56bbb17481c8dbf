package main // Entry point package

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/checkin"
	"github.com/iliyamo/event-ticketing/internal/config"
	"github.com/iliyamo/event-ticketing/internal/database"
	"github.com/iliyamo/event-ticketing/internal/gateway"
	"github.com/iliyamo/event-ticketing/internal/handler"
	"github.com/iliyamo/event-ticketing/internal/payment"
	"github.com/iliyamo/event-ticketing/internal/queue"
	"github.com/iliyamo/event-ticketing/internal/repository"
	"github.com/iliyamo/event-ticketing/internal/reservation"
	"github.com/iliyamo/event-ticketing/internal/router"
	"github.com/iliyamo/event-ticketing/internal/ticket"
)

// sweepInterval is how often the background sweeper reclaims expired
// holds.  Reserve also sweeps lazily, so this only bounds how long a
// lapsed hold can linger when nobody is booking.
const sweepInterval = time.Minute

func main() {
	// Load .env when present; real deployments set the environment
	// directly and the file is absent.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Redis is optional: without it, response caching and rate limiting
	// are disabled and everything else keeps working.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable, caching and rate limiting disabled")
	}

	// Repositories share the single pooled DB handle.
	eventRepo := repository.NewEventRepo(db)
	seatRepo := repository.NewSeatRepo(db)
	packageRepo := repository.NewPackageRepo(db)
	orderRepo := repository.NewOrderRepo(db)
	paymentRepo := repository.NewPaymentRepo(db)
	ticketRepo := repository.NewTicketRepo(db)

	// Gateway adapters.  Only configured gateways are registered; the
	// registry refuses to start when the default one is missing.
	gatewayTimeout := time.Duration(cfg.GatewayTimeoutSec) * time.Second
	var adapters []gateway.Adapter
	if cfg.FlwSecretKey != "" {
		adapters = append(adapters, gateway.NewFlutterwave(cfg.FlwSecretKey, cfg.FlwWebhookHash, gatewayTimeout))
	}
	if cfg.PaystackSecretKey != "" {
		adapters = append(adapters, gateway.NewPaystack(cfg.PaystackSecretKey, gatewayTimeout))
	}
	registry, err := gateway.NewRegistry(cfg.DefaultGateway, adapters...)
	if err != nil {
		log.Fatalf("gateway: %v", err)
	}

	manager := reservation.NewManager(db, seatRepo, packageRepo)
	issuer := ticket.NewIssuer(cfg.TicketSecret, ticketRepo)
	coordinator := payment.NewCoordinator(db, eventRepo, seatRepo, packageRepo, orderRepo, paymentRepo, ticketRepo, issuer, registry)
	grace := time.Duration(cfg.CheckinGraceSec) * time.Second
	validator := checkin.NewValidator(db, cfg.TicketSecret, grace, ticketRepo, eventRepo)

	// Background workers: the hold sweeper and the audit consumer.  Both
	// stop when the process exits; neither blocks startup.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go manager.RunSweeper(ctx, sweepInterval)
	go func() {
		if err := queue.StartAuditConsumer(); err != nil {
			log.Printf("audit-consumer: %v", err)
		}
	}()

	holdTTL := time.Duration(cfg.ReservationTTLMin) * time.Minute
	e := echo.New()
	router.Register(e, router.Handlers{
		Health:  handler.NewHealthHandler(db),
		Public:  handler.NewPublicHandler(eventRepo, seatRepo, packageRepo),
		Booking: handler.NewBookingHandler(eventRepo, manager, holdTTL),
		Order:   handler.NewOrderHandler(coordinator, orderRepo, ticketRepo),
		Webhook: handler.NewWebhookHandler(coordinator),
		Refund:  handler.NewRefundHandler(coordinator),
		Checkin: handler.NewCheckinHandler(validator),
	}, cfg.JWTSecret, rdb)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
