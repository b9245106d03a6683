package connection

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/yndnr/pixelflut-go/internal/server/httpserver"
	"github.com/yndnr/pixelflut-go/internal/telemetry/metric"
)

func TestHTTPClient(t *testing.T) {
	ready := true
	router := httpserver.NewRouter(&httpserver.RouterConfig{
		Metrics: metric.NewRegistry(),
		Ready:   func() bool { return ready },
	})
	srv := httptest.NewServer(router)
	defer srv.Close()

	c := NewHTTPClient(strings.TrimPrefix(srv.URL, "http://"), 0)
	ctx := context.Background()

	if err := c.Health(ctx); err != nil {
		t.Errorf("Health() = %v", err)
	}
	body, err := c.Metrics(ctx)
	if err != nil {
		t.Fatalf("Metrics() error = %v", err)
	}
	if !strings.Contains(body, "pixelflut_") {
		t.Errorf("metrics body missing pixelflut metrics")
	}

	ready = false
	if err := c.Health(ctx); err == nil || !strings.Contains(err.Error(), "503") {
		t.Errorf("Health() = %v, want 503 error", err)
	}
}

func TestHTTPClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	if err := NewHTTPClient(url, 0).Health(context.Background()); err == nil {
		t.Error("Health() against a closed server should fail")
	}
}
