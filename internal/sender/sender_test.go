package sender

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/fieldline/webhook-engine/internal/signature"
)

func TestHTTPSenderSendSuccess(t *testing.T) {
	t.Parallel()

	body := []byte(`{"event":"invoice.paid","timestamp":"2024-05-01T10:00:00Z","data":{"id":7}}`)
	secret := "whsec_testsecret"
	sig := signature.Sign(body, secret)

	var gotBody []byte
	var gotHeaders http.Header

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}

		var err error
		gotBody, err = io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("failed to read request body: %v", err)
		}
		gotHeaders = r.Header.Clone()

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"received":true}`))
	}))
	defer server.Close()

	s := NewHTTPSender()
	resp, err := s.Send(context.Background(), Request{
		URL:        server.URL,
		Body:       body,
		Signature:  sig,
		EventType:  "invoice.paid",
		DeliveryID: "d-1",
	})
	if err != nil {
		t.Fatalf("Send() unexpected error: %v", err)
	}

	if !resp.Accepted() {
		t.Fatalf("Accepted() = false for status %d", resp.StatusCode)
	}
	if resp.Body != `{"received":true}` {
		t.Fatalf("response body = %q", resp.Body)
	}

	if string(gotBody) != string(body) {
		t.Fatalf("wire body = %q, want the exact envelope bytes %q", gotBody, body)
	}
	if got := gotHeaders.Get(HeaderSignature); got != sig {
		t.Fatalf("%s = %q, want %q", HeaderSignature, got, sig)
	}
	if !signature.Verify(gotBody, secret, gotHeaders.Get(HeaderSignature)) {
		t.Fatal("received signature should verify over the received raw body")
	}
	if got := gotHeaders.Get(HeaderEvent); got != "invoice.paid" {
		t.Fatalf("%s = %q, want invoice.paid", HeaderEvent, got)
	}
	if got := gotHeaders.Get(HeaderDelivery); got != "d-1" {
		t.Fatalf("%s = %q, want d-1", HeaderDelivery, got)
	}
	if got := gotHeaders.Get("User-Agent"); got != UserAgent {
		t.Fatalf("User-Agent = %q, want %q", got, UserAgent)
	}
	if got := gotHeaders.Get("Content-Type"); got != "application/json" {
		t.Fatalf("Content-Type = %q, want application/json", got)
	}
}

func TestHTTPSenderSendNonSuccessStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`upstream exploded`))
	}))
	defer server.Close()

	s := NewHTTPSender()
	resp, err := s.Send(context.Background(), Request{
		URL:       server.URL,
		Body:      []byte(`{}`),
		EventType: "job.created",
	})
	if err != nil {
		t.Fatalf("non-2xx must not be a transport error, got: %v", err)
	}

	if resp.Accepted() {
		t.Fatal("Accepted() = true for status 500")
	}
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("StatusCode = %d, want 500", resp.StatusCode)
	}
	if resp.Body != "upstream exploded" {
		t.Fatalf("response body = %q", resp.Body)
	}
}

func TestHTTPSenderSendTimeout(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client := resty.New()
	client.SetTimeout(20 * time.Millisecond)

	s, err := NewHTTPSenderWithClient(client)
	if err != nil {
		t.Fatalf("NewHTTPSenderWithClient() error = %v", err)
	}

	_, err = s.Send(context.Background(), Request{
		URL:  server.URL,
		Body: []byte(`{}`),
	})
	if err == nil {
		t.Fatal("Send() should fail when the deadline elapses")
	}
	if !IsTimeout(err) {
		t.Fatalf("IsTimeout() = false for %v", err)
	}
}

func TestHTTPSenderSendConnectionRefused(t *testing.T) {
	t.Parallel()

	// Reserve a port, then close it so nothing listens there.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	s := NewHTTPSender()
	_, err := s.Send(context.Background(), Request{
		URL:  url,
		Body: []byte(`{}`),
	})
	if err == nil {
		t.Fatal("Send() should fail when nothing is listening")
	}
	if IsTimeout(err) {
		t.Fatalf("connection refused should not classify as timeout: %v", err)
	}
}
