package sender

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Request timeout per HTTP try. The retry schedule lives in the delivery
// worker; the sender makes exactly one attempt per call.
const DefaultTimeout = 10 * time.Second

const (
	HeaderSignature = "X-Webhook-Signature"
	HeaderEvent     = "X-Webhook-Event"
	HeaderDelivery  = "X-Webhook-Delivery"

	UserAgent = "Fieldline-Webhooks/1.0"
)

// Request carries everything one signed webhook POST needs. Body is the exact
// envelope byte sequence the signature was computed over.
type Request struct {
	URL        string
	Body       []byte
	Signature  string
	EventType  string
	DeliveryID string
}

// Response captures the receiver's answer for the ledger.
type Response struct {
	StatusCode int
	Body       string
}

// Accepted reports whether the receiver acknowledged the delivery.
func (r *Response) Accepted() bool {
	return r != nil && r.StatusCode >= http.StatusOK && r.StatusCode < http.StatusMultipleChoices
}

// Sender is the outbound webhook delivery port. A non-nil error means the
// request never produced an HTTP response (timeout, DNS, connection refused);
// a non-2xx response is returned as a Response, not an error.
type Sender interface {
	Send(ctx context.Context, req Request) (*Response, error)
}

// HTTPSender delivers webhooks over HTTP using a resty client.
type HTTPSender struct {
	client *resty.Client
}

func NewHTTPSender() *HTTPSender {
	client := resty.New()
	client.SetTimeout(DefaultTimeout)
	client.SetRetryCount(0)

	s, _ := NewHTTPSenderWithClient(client)
	return s
}

func NewHTTPSenderWithClient(client *resty.Client) (*HTTPSender, error) {
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(DefaultTimeout)
	}
	// Retries are the worker's responsibility, on its own schedule.
	client.SetRetryCount(0)

	return &HTTPSender{client: client}, nil
}

func (s *HTTPSender) Send(ctx context.Context, req Request) (*Response, error) {
	if s == nil || s.client == nil {
		return nil, fmt.Errorf("sender is not initialized")
	}
	if strings.TrimSpace(req.URL) == "" {
		return nil, fmt.Errorf("destination url is required")
	}

	response, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", UserAgent).
		SetHeader(HeaderSignature, req.Signature).
		SetHeader(HeaderEvent, req.EventType).
		SetHeader(HeaderDelivery, req.DeliveryID).
		SetBody(req.Body).
		Post(req.URL)
	if err != nil {
		return nil, classifySendError(err)
	}
	if response == nil {
		return nil, fmt.Errorf("receiver returned empty response")
	}

	return &Response{
		StatusCode: response.StatusCode(),
		Body:       response.String(),
	}, nil
}
