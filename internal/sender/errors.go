package sender

import (
	"context"
	"errors"
	"net"
	"net/url"
)

// ErrTimeout is wrapped into transport errors caused by the per-attempt
// deadline, so the ledger can record "request timeout" instead of the raw
// client error text.
var ErrTimeout = errors.New("request timeout")

func classifySendError(err error) error {
	if err == nil {
		return nil
	}
	if IsTimeout(err) {
		return ErrTimeout
	}
	return err
}

// IsTimeout reports whether a transport error was caused by the request
// deadline rather than an immediate failure like connection refused.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return false
}
