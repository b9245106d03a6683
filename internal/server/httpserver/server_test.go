package httpserver

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/yndnr/pixelflut-go/internal/telemetry/metric"
)

func TestNew(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	s := New(":8080", handler)
	if s == nil {
		t.Fatal("New returned nil")
	}
	if s.httpServer == nil {
		t.Error("httpServer is nil")
	}
	if s.Addr() != nil {
		t.Error("Addr should be nil before Listen")
	}
}

func TestServer_StartShutdown(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("hello"))
	})

	s := New("127.0.0.1:0", handler)
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	resp, err := http.Get("http://" + s.Addr().String() + "/")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "hello" {
		t.Errorf("body = %q", body)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown error: %v", err)
	}

	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Error("timeout waiting for the serve loop to return")
	}
}

func get(t *testing.T, h http.Handler, path string) (int, string, http.Header) {
	t.Helper()
	s := New("127.0.0.1:0", h)
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	defer s.Shutdown(context.Background())

	resp, err := http.Get("http://" + s.Addr().String() + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body), resp.Header
}

func TestRouter_Healthz(t *testing.T) {
	code, body, hdr := get(t, NewRouter(&RouterConfig{}), "/healthz")
	if code != http.StatusOK || body != "ok\n" {
		t.Errorf("GET /healthz = %d %q", code, body)
	}
	if hdr.Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestRouter_HealthzNotReady(t *testing.T) {
	r := NewRouter(&RouterConfig{Ready: func() bool { return false }})
	code, _, _ := get(t, r, "/healthz")
	if code != http.StatusServiceUnavailable {
		t.Errorf("GET /healthz while draining = %d, want 503", code)
	}
}

func TestRouter_Metrics(t *testing.T) {
	m := metric.NewRegistry()
	m.AddCommands(metric.CommandSetPixel, 3)

	code, body, _ := get(t, NewRouter(&RouterConfig{Metrics: m}), "/metrics")
	if code != http.StatusOK {
		t.Fatalf("GET /metrics = %d", code)
	}
	if !strings.Contains(body, `pixelflut_commands_total{command="px_set"} 3`) {
		t.Errorf("metrics output missing command counter:\n%s", body)
	}
}

func TestRouter_UnknownPath(t *testing.T) {
	code, _, _ := get(t, NewRouter(&RouterConfig{}), "/nope")
	if code != http.StatusNotFound {
		t.Errorf("GET /nope = %d, want 404", code)
	}
}

func TestRecover(t *testing.T) {
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), RequestID(), Recover(slog.New(slog.NewTextHandler(io.Discard, nil))))

	code, _, _ := get(t, h, "/")
	if code != http.StatusInternalServerError {
		t.Errorf("panicking handler returned %d, want 500", code)
	}
}

func TestRequestID_Preserved(t *testing.T) {
	var seen string
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestIDFromContext(r.Context())
	}), RequestID())

	s := New("127.0.0.1:0", h)
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	defer s.Shutdown(context.Background())

	req, _ := http.NewRequest(http.MethodGet, "http://"+s.Addr().String()+"/", nil)
	req.Header.Set("X-Request-ID", "abc")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if seen != "abc" {
		t.Errorf("request id = %q, want abc", seen)
	}
}

func TestGetClientIP(t *testing.T) {
	r := &http.Request{RemoteAddr: "10.0.0.1:1234", Header: http.Header{}}
	if ip := getClientIP(r); ip != "10.0.0.1" {
		t.Errorf("getClientIP = %q", ip)
	}
	r.Header.Set("X-Forwarded-For", "1.2.3.4, 10.0.0.1")
	if ip := getClientIP(r); ip != "1.2.3.4" {
		t.Errorf("getClientIP with XFF = %q", ip)
	}
}
