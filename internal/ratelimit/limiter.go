package ratelimit

import "context"

// RateLimiter bounds outbound delivery throughput per tenant, so one tenant's
// fan-out burst cannot starve every other tenant's egress.
type RateLimiter interface {
	Allow(ctx context.Context, tenantID string) (bool, error)
	Wait(ctx context.Context, tenantID string) error
}
