package wsserver

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/yndnr/pixelflut-go/internal/core/domain"
	"github.com/yndnr/pixelflut-go/internal/server/protocol"
	"github.com/yndnr/pixelflut-go/internal/storage/memory"
	"github.com/yndnr/pixelflut-go/internal/telemetry/metric"
)

type testServer struct {
	srv      *Server
	canvas   *memory.Canvas
	registry *protocol.Registry
	metrics  *metric.Registry
	url      string
}

func startServer(t *testing.T, mutate func(*Config)) *testServer {
	t.Helper()
	canvas, err := memory.New(3, 3)
	if err != nil {
		t.Fatal(err)
	}
	cfg := DefaultConfig()
	cfg.Address = "127.0.0.1:0"
	cfg.Path = "/canvas"
	if mutate != nil {
		mutate(cfg)
	}

	ts := &testServer{
		canvas:   canvas,
		registry: protocol.NewRegistry(),
		metrics:  metric.NewRegistry(),
	}
	h := protocol.NewHandler(canvas, protocol.DefaultHandlerConfig(), ts.metrics, nil)
	ts.srv = New(cfg, h, ts.registry, ts.metrics, nil)
	if err := ts.srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	ts.url = "ws://" + ts.srv.Addr().String() + cfg.Path

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		_ = ts.srv.Shutdown(ctx)
		ts.registry.CloseAll()
	})
	return ts
}

func dial(t *testing.T, ts *testServer) *websocket.Conn {
	t.Helper()
	c, _, err := websocket.DefaultDialer.Dial(ts.url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", ts.url, err)
	}
	t.Cleanup(func() { c.Close() })
	_ = c.SetReadDeadline(time.Now().Add(5 * time.Second))
	return c
}

func TestServer_MessageRoundTrip(t *testing.T) {
	ts := startServer(t, nil)
	c := dial(t, ts)

	if err := c.WriteMessage(websocket.TextMessage, []byte("PX 1 1 FF0000\nPX 1 1\nSIZE")); err != nil {
		t.Fatal(err)
	}
	mt, msg, err := c.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if mt != websocket.TextMessage {
		t.Errorf("message type = %d, want text", mt)
	}
	if string(msg) != "PX 1 1 FF0000\nSIZE 3 3\n" {
		t.Errorf("response = %q", msg)
	}
}

func TestServer_BinaryMessage(t *testing.T) {
	ts := startServer(t, nil)
	c := dial(t, ts)

	if err := c.WriteMessage(websocket.BinaryMessage, []byte("PX 0 0 00FF00\nPX 1 0 0000FF")); err != nil {
		t.Fatal(err)
	}
	if err := c.WriteMessage(websocket.TextMessage, []byte("PX 1 0")); err != nil {
		t.Fatal(err)
	}
	_, msg, err := c.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	if string(msg) != "PX 1 0 0000FF\n" {
		t.Errorf("response = %q", msg)
	}
	if got, _ := ts.canvas.Get(0, 0); got != domain.RGB(0, 0xFF, 0) {
		t.Errorf("(0,0) = %v", got)
	}
}

func TestServer_NoCarryOverBetweenMessages(t *testing.T) {
	ts := startServer(t, nil)
	c := dial(t, ts)

	_ = c.WriteMessage(websocket.TextMessage, []byte("PX 2 "))
	_ = c.WriteMessage(websocket.TextMessage, []byte("2 FFFFFF\n"))
	_ = c.WriteMessage(websocket.TextMessage, []byte("PX 2 2"))

	_, msg, err := c.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	if string(msg) != "PX 2 2 000000\n" {
		t.Errorf("split command across messages was applied: %q", msg)
	}
}

func TestServer_OversizedMessageClosesConnection(t *testing.T) {
	ts := startServer(t, func(cfg *Config) {
		cfg.MaxMessageSize = 64
	})
	c := dial(t, ts)

	if err := c.WriteMessage(websocket.TextMessage, []byte(strings.Repeat("PX 0 0 FFFFFF\n", 10))); err != nil {
		t.Fatal(err)
	}
	if _, _, err := c.ReadMessage(); err == nil {
		t.Fatal("expected the connection to be closed")
	}

	deadline := time.Now().Add(2 * time.Second)
	for testutil.ToFloat64(ts.metrics.LimitExceeded.WithLabelValues(protocol.TransportWebSocket)) != 1 {
		if time.Now().After(deadline) {
			t.Fatal("limit violation was not counted")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestServer_WrongPath(t *testing.T) {
	ts := startServer(t, nil)
	url := strings.TrimSuffix(ts.url, "/canvas") + "/other"
	if _, _, err := websocket.DefaultDialer.Dial(url, nil); err == nil {
		t.Error("upgrade on an unknown path should fail")
	}
}

func TestServer_RegistryForceClose(t *testing.T) {
	ts := startServer(t, nil)
	c := dial(t, ts)

	_ = c.WriteMessage(websocket.TextMessage, []byte("SIZE"))
	if _, _, err := c.ReadMessage(); err != nil {
		t.Fatal(err)
	}
	if ts.registry.Count() != 1 {
		t.Fatalf("registry count = %d, want 1", ts.registry.Count())
	}
	ts.registry.CloseAll()
	if _, _, err := c.ReadMessage(); err == nil {
		t.Error("force-closed connection should fail reads")
	}
}

func TestServer_RejectsAfterShutdown(t *testing.T) {
	ts := startServer(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := ts.srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() = %v", err)
	}
	if _, _, err := websocket.DefaultDialer.Dial(ts.url, nil); err == nil {
		t.Error("dial after shutdown should fail")
	}
}

func TestServer_FailedUpgradeReleasesSlot(t *testing.T) {
	ts := startServer(t, nil)

	// A plain GET reaches the handler but fails the upgrade.
	resp, err := http.Get("http://" + ts.srv.Addr().String() + "/canvas")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("plain GET status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := ts.srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() after failed upgrade = %v", err)
	}
}

func TestServer_AcquireAfterShutdown(t *testing.T) {
	ts := startServer(t, nil)
	c := dial(t, ts)
	_ = c.WriteMessage(websocket.TextMessage, []byte("SIZE"))
	if _, _, err := c.ReadMessage(); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_ = ts.srv.Shutdown(ctx)

	if ts.srv.acquire() {
		t.Fatal("acquire() after Shutdown should report false")
	}
	ts.registry.CloseAll()

	done := make(chan struct{})
	go func() {
		ts.srv.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("open session was not tracked until it ended")
	}
}
