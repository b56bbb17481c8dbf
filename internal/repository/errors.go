// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as the
// reservation manager, the payment coordinator and the handlers to
// distinguish failure scenarios with errors.Is instead of string
// comparisons.
package repository

import "errors"

// ErrReservationConflict is returned when one or more requested inventory
// units are no longer fully available. The whole reservation attempt is
// rolled back; no partial holds remain. Handlers should translate this
// into an HTTP 409 response.
var ErrReservationConflict = errors.New("reservation conflict")

// ErrHoldNotFound is returned when a hold token does not reference any
// active (non-expired) hold. This covers both unknown tokens and holds
// that have already been swept.
var ErrHoldNotFound = errors.New("hold not found or expired")

// ErrEventNotFound is returned when the referenced event does not exist.
var ErrEventNotFound = errors.New("event not found")

// ErrOrderNotFound is returned when the referenced order does not exist.
var ErrOrderNotFound = errors.New("order not found")

// ErrPaymentNotFound is returned when no payment matches the given id or
// transaction reference. Webhook processing logs and drops the callback
// in that case instead of failing the request.
var ErrPaymentNotFound = errors.New("payment not found")

// ErrTicketNotFound is returned when a scanned ticket id does not exist.
var ErrTicketNotFound = errors.New("ticket not found")
