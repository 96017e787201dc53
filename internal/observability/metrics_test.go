package observability

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsDeliveryCollectors(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()

	metrics.IncDeliveryCompleted("invoice.paid", "success")
	metrics.IncDeliveryCompleted("invoice.paid", "failed")
	metrics.ObserveDeliveryAttemptDuration("invoice.paid", 120*time.Millisecond)
	metrics.IncWorkerInFlight()
	metrics.DecWorkerInFlight()
	metrics.IncRetry("invoice.paid")

	if got := testutil.ToFloat64(metrics.deliveriesTotal.WithLabelValues("invoice.paid", "success")); got != 1 {
		t.Fatalf("deliveries_total{success} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.deliveriesTotal.WithLabelValues("invoice.paid", "failed")); got != 1 {
		t.Fatalf("deliveries_total{failed} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.retriesTotal.WithLabelValues("invoice.paid")); got != 1 {
		t.Fatalf("retries_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.workerInflight); got != 0 {
		t.Fatalf("worker_inflight = %v, want 0", got)
	}
}

func TestMetricsNormalizesEventLabel(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()
	metrics.IncDeliveryCompleted("  Invoice.Paid ", "success")
	metrics.IncDeliveryCompleted("", "success")

	if got := testutil.ToFloat64(metrics.deliveriesTotal.WithLabelValues("invoice.paid", "success")); got != 1 {
		t.Fatalf("deliveries_total{invoice.paid} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.deliveriesTotal.WithLabelValues("unknown", "success")); got != 1 {
		t.Fatalf("deliveries_total{unknown} = %v, want 1", got)
	}
}

func TestMetricsHTTPMiddlewareRecordsRequest(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()
	app := fiber.New()
	app.Use(metrics.HTTPMiddleware())
	app.Get("/livez", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest("GET", "/livez", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	if got := testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues("GET", "/livez", "200")); got != 1 {
		t.Fatalf("http_requests_total = %v, want 1", got)
	}
}

func TestMetricsHTTPMiddlewareRecordsHandlerError(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()
	app := fiber.New()
	app.Use(metrics.HTTPMiddleware())
	app.Get("/boom", func(c *fiber.Ctx) error {
		return errors.New("boom")
	})

	req := httptest.NewRequest("GET", "/boom", nil)
	if _, err := app.Test(req); err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}

	if got := testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues("GET", "/boom", "500")); got != 1 {
		t.Fatalf("http_requests_total = %v, want 1", got)
	}
}
