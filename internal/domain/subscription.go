package domain

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Origin records how a subscription was registered.
type Origin string

const (
	OriginManual      Origin = "MANUAL"
	OriginIntegration Origin = "INTEGRATION"
)

func (o Origin) String() string { return string(o) }

func (o Origin) IsValid() bool {
	switch o {
	case OriginManual, OriginIntegration:
		return true
	}
	return false
}

func ParseOriginFromString(s string) (Origin, error) {
	o := Origin(strings.ToUpper(strings.TrimSpace(s)))
	if !o.IsValid() {
		return "", fmt.Errorf("%w: invalid origin %q", ErrValidation, s)
	}
	return o, nil
}

// Subscription is a tenant's registration of a destination URL and the
// event types it wants delivered there.
type Subscription struct {
	ID          string
	TenantID    string
	URL         string
	Secret      string
	Events      []EventType
	Active      bool
	Description string
	Origin      Origin
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (s *Subscription) Validate() error {
	if strings.TrimSpace(s.TenantID) == "" {
		return fmt.Errorf("%w: tenantId is required", ErrValidation)
	}
	if err := ValidateEndpointURL(s.URL); err != nil {
		return err
	}
	if err := ValidateEvents(s.Events); err != nil {
		return err
	}
	if !s.Origin.IsValid() {
		return fmt.Errorf("%w: invalid origin %q", ErrValidation, s.Origin)
	}
	return nil
}

// Wants reports whether the subscription is subscribed to the event type.
func (s *Subscription) Wants(eventType EventType) bool {
	for _, et := range s.Events {
		if et == eventType {
			return true
		}
	}
	return false
}

// ValidateEndpointURL rejects anything that is not an absolute http(s) URL.
func ValidateEndpointURL(raw string) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return fmt.Errorf("%w: url is required", ErrValidation)
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return fmt.Errorf("%w: invalid url %q", ErrValidation, raw)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%w: url scheme must be http or https, got %q", ErrValidation, parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%w: url host is required", ErrValidation)
	}

	return nil
}

// ValidateEvents rejects empty sets and event types outside the catalog.
func ValidateEvents(events []EventType) error {
	if len(events) == 0 {
		return fmt.Errorf("%w: at least one event type is required", ErrValidation)
	}
	for _, et := range events {
		if !et.IsValid() {
			return fmt.Errorf("%w: unknown event type %q", ErrValidation, et)
		}
	}
	return nil
}
