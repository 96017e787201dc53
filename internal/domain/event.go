package domain

import (
	"fmt"
	"strings"
)

// EventType identifies a domain event that can be delivered to subscribers.
//
// The catalog below is the single source of truth for both subscription
// validation and dispatch filtering; a type that cannot be subscribed can
// never be fired at a subscription either.
type EventType string

const (
	EventAppointmentCreated   EventType = "appointment.created"
	EventAppointmentUpdated   EventType = "appointment.updated"
	EventAppointmentCancelled EventType = "appointment.cancelled"
	EventAppointmentCompleted EventType = "appointment.completed"
	EventAppointmentDeleted   EventType = "appointment.deleted"
	EventReservationCreated   EventType = "reservation.created"
	EventReservationUpdated   EventType = "reservation.updated"
	EventReservationCancelled EventType = "reservation.cancelled"
	EventCustomerCreated      EventType = "customer.created"
	EventCustomerUpdated      EventType = "customer.updated"
	EventInvoiceCreated       EventType = "invoice.created"
	EventInvoicePaid          EventType = "invoice.paid"
	EventJobCreated           EventType = "job.created"
	EventJobCompleted         EventType = "job.completed"
	EventCallCompleted        EventType = "call.completed"
	EventQuoteCreated         EventType = "quote.created"
	EventQuoteAccepted        EventType = "quote.accepted"
)

// EventTestFire marks synthetic deliveries triggered by an operator. It is
// deliberately outside the subscribable catalog: a test fire bypasses the
// subscription's event filter, so nothing can (or needs to) subscribe to it.
const EventTestFire EventType = "test.fire"

var eventCatalog = []EventType{
	EventAppointmentCreated,
	EventAppointmentUpdated,
	EventAppointmentCancelled,
	EventAppointmentCompleted,
	EventAppointmentDeleted,
	EventReservationCreated,
	EventReservationUpdated,
	EventReservationCancelled,
	EventCustomerCreated,
	EventCustomerUpdated,
	EventInvoiceCreated,
	EventInvoicePaid,
	EventJobCreated,
	EventJobCompleted,
	EventCallCompleted,
	EventQuoteCreated,
	EventQuoteAccepted,
}

func (e EventType) String() string { return string(e) }

func (e EventType) IsValid() bool {
	for _, known := range eventCatalog {
		if e == known {
			return true
		}
	}
	return false
}

func ParseEventTypeFromString(s string) (EventType, error) {
	et := EventType(strings.ToLower(strings.TrimSpace(s)))
	if !et.IsValid() {
		return "", fmt.Errorf("%w: unknown event type %q", ErrValidation, s)
	}
	return et, nil
}

// AllEventTypes returns a copy of the event catalog.
func AllEventTypes() []EventType {
	catalog := make([]EventType, len(eventCatalog))
	copy(catalog, eventCatalog)
	return catalog
}
