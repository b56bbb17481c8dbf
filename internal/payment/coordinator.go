// Package payment orchestrates the purchase flow: reservation -> order ->
// payment intent -> webhook-driven confirmation or failure -> ticket
// issuance or inventory release. The coordinator owns every state
// transition on orders and payments; gateways are consulted through the
// adapter registry and never trusted until their webhook signature
// verifies.
package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/iliyamo/event-ticketing/internal/gateway"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/queue"
	"github.com/iliyamo/event-ticketing/internal/repository"
	queue_publisher "github.com/iliyamo/event-ticketing/internal/service"
	"github.com/iliyamo/event-ticketing/internal/ticket"
)

// ErrPaymentIntentFailure wraps a failed or unreachable gateway during
// intent creation. The order stays pending; intent creation is safe to
// retry.
var ErrPaymentIntentFailure = errors.New("payment intent creation failed")

// ErrRefundExceedsAmount is returned when a refund asks for more than the
// original payment, regardless of the payment's status.
var ErrRefundExceedsAmount = errors.New("refund exceeds paid amount")

// ErrRefundNotEligible is returned when the payment is not in completed
// state.
var ErrRefundNotEligible = errors.New("payment not eligible for refund")

// Coordinator wires the repositories, the gateway registry and the ticket
// issuer together. One instance serves all gateways.
type Coordinator struct {
	db       *sql.DB
	events   *repository.EventRepo
	seats    *repository.SeatRepo
	packages *repository.PackageRepo
	orders   *repository.OrderRepo
	payments *repository.PaymentRepo
	tickets  *repository.TicketRepo
	issuer   *ticket.Issuer
	gateways *gateway.Registry
}

// NewCoordinator constructs a Coordinator. All dependencies must be
// non-nil.
func NewCoordinator(db *sql.DB, events *repository.EventRepo, seats *repository.SeatRepo, packages *repository.PackageRepo, orders *repository.OrderRepo, payments *repository.PaymentRepo, tickets *repository.TicketRepo, issuer *ticket.Issuer, gateways *gateway.Registry) *Coordinator {
	return &Coordinator{
		db:       db,
		events:   events,
		seats:    seats,
		packages: packages,
		orders:   orders,
		payments: payments,
		tickets:  tickets,
		issuer:   issuer,
		gateways: gateways,
	}
}

// CreateOrderInput describes a checkout request built from an active hold.
type CreateOrderInput struct {
	HoldToken   string
	BuyerID     uint64
	BuyerEmail  string
	Gateway     string // empty selects the configured default
	Currency    string
	RedirectURL string
}

// CreateOrderResult is handed back to the handler: the pending order and
// the hosted checkout the buyer is redirected to. Intent is nil when
// intent creation failed; the order then stays pending and the caller may
// retry.
type CreateOrderResult struct {
	Order  *model.TicketOrder
	Intent *gateway.Intent
}

// newReference builds the caller-generated transaction reference stored
// on the payment row before the gateway ever sees it.
func newReference(orderID uint64) string {
	return fmt.Sprintf("order-%d-%d", orderID, time.Now().UTC().UnixNano())
}

// CreateOrder persists a pending order priced from the units held under
// the given token, creates the payment row with its transaction
// reference, and then asks the gateway for a hosted payment intent. The
// hold itself is left in place; it is only consumed by the webhook
// outcome. Intent creation happens outside the transaction: a gateway
// timeout leaves a retryable pending order, never a confirmed one.
func (c *Coordinator) CreateOrder(ctx context.Context, in CreateOrderInput) (*CreateOrderResult, error) {
	adapter := c.gateways.Default()
	if in.Gateway != "" {
		var err error
		adapter, err = c.gateways.Get(in.Gateway)
		if err != nil {
			return nil, err
		}
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	heldSeats, err := c.seats.ActiveByTokenTx(ctx, tx, in.HoldToken)
	if err != nil {
		return nil, err
	}
	heldPackages, err := c.packages.ActiveHoldsByTokenTx(ctx, tx, in.HoldToken)
	if err != nil {
		return nil, err
	}
	if len(heldSeats) == 0 && len(heldPackages) == 0 {
		return nil, repository.ErrHoldNotFound
	}

	var eventID uint64
	var total uint32
	items := make([]model.OrderItem, 0, len(heldSeats)+len(heldPackages))
	for _, s := range heldSeats {
		eventID = s.EventID
		total += s.PriceCents
		seatID := s.ID
		items = append(items, model.OrderItem{SeatID: &seatID, Quantity: 1, UnitPriceCents: s.PriceCents})
	}
	for _, h := range heldPackages {
		eventID = h.EventID
		total += h.PriceCents * h.Quantity
		packageID := h.PackageID
		items = append(items, model.OrderItem{PackageID: &packageID, Quantity: h.Quantity, UnitPriceCents: h.PriceCents})
	}

	order := &model.TicketOrder{
		BuyerID:          in.BuyerID,
		EventID:          eventID,
		FinalAmountCents: total,
		Currency:         in.Currency,
		Status:           model.OrderPending,
		PaymentStatus:    model.PaymentPending,
	}
	if err := c.orders.CreateTx(ctx, tx, order, in.HoldToken); err != nil {
		return nil, err
	}
	for i := range items {
		items[i].OrderID = order.ID
	}
	if err := c.orders.CreateItemsBulkTx(ctx, tx, items); err != nil {
		return nil, err
	}

	payment := &model.Payment{
		OrderID:              order.ID,
		Gateway:              adapter.Name(),
		TransactionReference: newReference(order.ID),
		AmountCents:          total,
		Currency:             in.Currency,
		Status:               model.PaymentPending,
	}
	if err := c.payments.CreateTx(ctx, tx, payment); err != nil {
		return nil, err
	}
	if err := c.orders.SetPaymentTx(ctx, tx, order.ID, payment.ID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	order.PaymentID = &payment.ID

	intent, err := adapter.CreatePaymentIntent(ctx, &gateway.IntentRequest{
		Reference:     payment.TransactionReference,
		AmountCents:   total,
		Currency:      in.Currency,
		RedirectURL:   in.RedirectURL,
		CustomerEmail: in.BuyerEmail,
	})
	if err != nil {
		log.Printf("coordinator: intent creation failed for order %d via %s: %v", order.ID, adapter.Name(), err)
		return &CreateOrderResult{Order: order}, fmt.Errorf("%w: %v", ErrPaymentIntentFailure, err)
	}
	return &CreateOrderResult{Order: order, Intent: intent}, nil
}

// HandleGatewayCallback is the single ingress point for all gateway
// webhooks. The signature is verified before any field of the payload is
// trusted; processing is idempotent per transaction reference, so
// duplicate and out-of-order deliveries collapse into no-ops.
func (c *Coordinator) HandleGatewayCallback(ctx context.Context, gatewayName string, rawPayload []byte, header http.Header) error {
	adapter, err := c.gateways.Get(gatewayName)
	if err != nil {
		return err
	}
	if err := adapter.VerifyWebhook(rawPayload, header); err != nil {
		log.Printf("coordinator: webhook signature rejected for gateway %s", gatewayName)
		return err
	}
	event, err := adapter.ParseWebhook(rawPayload)
	if err != nil {
		return err
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	payment, err := c.payments.GetByReferenceForUpdateTx(ctx, tx, event.Reference)
	if err != nil {
		if errors.Is(err, repository.ErrPaymentNotFound) {
			log.Printf("coordinator: webhook for unknown reference %q dropped", event.Reference)
		}
		return err
	}
	if payment.Status != model.PaymentPending {
		// Terminal already; a duplicate or late delivery. No-op.
		log.Printf("coordinator: webhook for payment %d ignored, already %s", payment.ID, payment.Status)
		return nil
	}

	if event.Outcome == gateway.OutcomeSuccess {
		confirmed, err := c.applySuccessTx(ctx, tx, payment, string(event.Raw))
		if err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		committed = true
		if confirmed != nil {
			c.publishConfirmed(ctx, confirmed)
		}
		return nil
	}

	if err := c.applyFailureTx(ctx, tx, payment, string(event.Raw)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// confirmedOrder carries what the post-commit publisher needs.
type confirmedOrder struct {
	order   *model.TicketOrder
	payment *model.Payment
	tickets []model.EventTicket
}

// applySuccessTx marks the payment completed and finalizes the order:
// held units become sold, tickets are minted and the event counter moves,
// all inside the caller's transaction. When the hold expired and some
// unit was resold in the meantime, the order is cancelled instead and
// flagged for manual refund; losing the race after expiry is an accepted
// outcome, not a fault.
func (c *Coordinator) applySuccessTx(ctx context.Context, tx *sql.Tx, payment *model.Payment, raw string) (*confirmedOrder, error) {
	if err := c.payments.MarkCompletedTx(ctx, tx, payment.ID, raw); err != nil {
		return nil, err
	}
	order, err := c.orders.GetByIDTx(ctx, tx, payment.OrderID)
	if err != nil {
		return nil, err
	}
	if order.Status != model.OrderPending {
		log.Printf("coordinator: order %d already %s, skipping issuance", order.ID, order.Status)
		return nil, nil
	}
	token, err := c.orders.HoldTokenByOrderTx(ctx, tx, order.ID)
	if err != nil {
		return nil, err
	}
	items, err := c.orders.ItemsByOrderTx(ctx, tx, order.ID)
	if err != nil {
		return nil, err
	}

	var seatUnits, packageUnits uint32
	for _, it := range items {
		if it.SeatID != nil {
			seatUnits++
		} else if it.PackageID != nil {
			packageUnits += it.Quantity
		}
	}

	sold, err := c.seats.MarkSoldByTokenTx(ctx, tx, token)
	if err != nil {
		return nil, err
	}
	lost := sold != int64(seatUnits)
	if !lost && packageUnits > 0 {
		holds, err := c.packages.ActiveHoldsByTokenTx(ctx, tx, token)
		if err != nil {
			return nil, err
		}
		var heldUnits uint32
		for _, h := range holds {
			heldUnits += h.Quantity
		}
		if heldUnits != packageUnits {
			lost = true
		} else {
			for _, h := range holds {
				if err := c.packages.MarkSoldTx(ctx, tx, h.PackageID, h.Quantity); err != nil {
					if errors.Is(err, repository.ErrReservationConflict) {
						lost = true
						break
					}
					return nil, err
				}
			}
		}
	}
	if _, err := c.packages.DeleteHoldsByTokenTx(ctx, tx, token); err != nil {
		return nil, err
	}

	if lost {
		// The buyer paid but the hold lapsed and the inventory went to
		// someone else. Cancel the order and release whatever this token
		// still had; the completed payment is surfaced for manual refund.
		log.Printf("coordinator: order %d lost its hold before confirmation, flagging payment %d for refund", order.ID, payment.ID)
		if _, err := c.seats.ReleaseByTokenTx(ctx, tx, token); err != nil {
			return nil, err
		}
		if err := c.orders.TransitionTx(ctx, tx, order.ID, model.OrderPending, model.OrderCancelled, model.PaymentCompleted); err != nil {
			return nil, err
		}
		return nil, nil
	}

	totalUnits := int(seatUnits + packageUnits)
	if err := c.events.AddRegisteredTx(ctx, tx, order.EventID, uint32(totalUnits)); err != nil {
		return nil, err
	}
	tickets, err := c.issuer.IssueTicketsTx(ctx, tx, order, totalUnits)
	if err != nil {
		return nil, err
	}
	if err := c.orders.TransitionTx(ctx, tx, order.ID, model.OrderPending, model.OrderConfirmed, model.PaymentCompleted); err != nil {
		return nil, err
	}
	order.Status = model.OrderConfirmed
	order.PaymentStatus = model.PaymentCompleted
	return &confirmedOrder{order: order, payment: payment, tickets: tickets}, nil
}

// applyFailureTx marks the payment failed, cancels the order and releases
// the held inventory so other buyers can take it immediately.
func (c *Coordinator) applyFailureTx(ctx context.Context, tx *sql.Tx, payment *model.Payment, raw string) error {
	if err := c.payments.MarkFailedTx(ctx, tx, payment.ID, raw); err != nil {
		return err
	}
	order, err := c.orders.GetByIDTx(ctx, tx, payment.OrderID)
	if err != nil {
		return err
	}
	if order.Status != model.OrderPending {
		return nil
	}
	token, err := c.orders.HoldTokenByOrderTx(ctx, tx, order.ID)
	if err != nil {
		return err
	}
	if _, err := c.seats.ReleaseByTokenTx(ctx, tx, token); err != nil {
		return err
	}
	if _, err := c.packages.DeleteHoldsByTokenTx(ctx, tx, token); err != nil {
		return err
	}
	return c.orders.TransitionTx(ctx, tx, order.ID, model.OrderPending, model.OrderCancelled, model.PaymentFailed)
}

func (c *Coordinator) publishConfirmed(ctx context.Context, co *confirmedOrder) {
	numbers := make([]string, 0, len(co.tickets))
	for _, t := range co.tickets {
		numbers = append(numbers, t.TicketNumber)
	}
	_ = queue_publisher.PublishOrderConfirmed(ctx, queue.OrderConfirmedEvent{
		OrderID:          co.order.ID,
		BuyerID:          co.order.BuyerID,
		EventID:          co.order.EventID,
		Gateway:          co.payment.Gateway,
		Reference:        co.payment.TransactionReference,
		FinalAmountCents: co.order.FinalAmountCents,
		Currency:         co.order.Currency,
		TicketNumbers:    numbers,
		ConfirmedAt:      time.Now().UTC().Format(time.RFC3339),
	})
}

// RefundInput describes a refund request. ReleaseInventory additionally
// returns the order's sold units to the pool; by default refunding cancels
// the tickets but keeps the inventory consumed.
type RefundInput struct {
	PaymentID        uint64
	AmountCents      uint32
	Reason           string
	ReleaseInventory bool
}

// Refund reverses a completed payment. The payment row is locked for the
// whole mutation: eligibility is checked and the gateway is called under
// that lock, so concurrent refund requests serialize and the loser sees a
// refunded row before it ever reaches the gateway. The amount bound is
// enforced before eligibility, so an oversized request fails regardless
// of the payment's status. On success the payment and order become
// refunded and the order's still-valid tickets are cancelled.
func (c *Coordinator) Refund(ctx context.Context, in RefundInput) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	payment, err := c.payments.GetByIDForUpdateTx(ctx, tx, in.PaymentID)
	if err != nil {
		return err
	}
	if in.AmountCents == 0 || in.AmountCents > payment.AmountCents {
		return ErrRefundExceedsAmount
	}
	if payment.Status != model.PaymentCompleted {
		return ErrRefundNotEligible
	}

	adapter, err := c.gateways.Get(payment.Gateway)
	if err != nil {
		return err
	}
	// A gateway failure rolls everything back; the payment stays
	// completed and the refund is retryable.
	if err := adapter.Refund(ctx, payment.TransactionReference, in.AmountCents); err != nil {
		return fmt.Errorf("refund via %s: %w", payment.Gateway, err)
	}

	if err := c.payments.MarkRefundedTx(ctx, tx, payment.ID, in.AmountCents); err != nil {
		if errors.Is(err, repository.ErrPaymentNotFound) {
			return ErrRefundNotEligible
		}
		return err
	}
	if err := c.orders.TransitionTx(ctx, tx, payment.OrderID, model.OrderConfirmed, model.OrderRefunded, model.PaymentRefunded); err != nil && !errors.Is(err, repository.ErrOrderNotFound) {
		return err
	}
	if _, err := c.tickets.CancelByOrderTx(ctx, tx, payment.OrderID); err != nil {
		return err
	}

	if in.ReleaseInventory {
		if err := c.releaseOrderInventoryTx(ctx, tx, payment.OrderID); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	log.Printf("coordinator: payment %d refunded %d cents (%s)", payment.ID, in.AmountCents, in.Reason)
	return nil
}

// releaseOrderInventoryTx is the explicit sold-inventory release hook:
// seats return to available and package quantities are handed back.
func (c *Coordinator) releaseOrderInventoryTx(ctx context.Context, tx *sql.Tx, orderID uint64) error {
	items, err := c.orders.ItemsByOrderTx(ctx, tx, orderID)
	if err != nil {
		return err
	}
	var seatIDs []uint64
	for _, it := range items {
		if it.SeatID != nil {
			seatIDs = append(seatIDs, *it.SeatID)
		} else if it.PackageID != nil {
			if err := c.packages.ReleaseSoldTx(ctx, tx, *it.PackageID, it.Quantity); err != nil {
				return err
			}
		}
	}
	if _, err := c.seats.ReleaseSoldTx(ctx, tx, seatIDs); err != nil {
		return err
	}
	return nil
}
