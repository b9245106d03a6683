package metric

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func scrape(t *testing.T, r *Registry) string {
	t.Helper()
	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(body)
}

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	if r.registry == nil {
		t.Fatal("registry should not be nil")
	}

	body := scrape(t, r)
	if !strings.Contains(body, "go_goroutines") {
		t.Error("expected go runtime metrics")
	}
	if !strings.Contains(body, "process_") {
		t.Error("expected process metrics")
	}
}

func TestGlobal(t *testing.T) {
	if Global() != Global() {
		t.Error("Global should return the same registry")
	}
	if Handler() == nil {
		t.Error("Handler should not be nil")
	}
}

func TestConnectionMetrics(t *testing.T) {
	r := NewRegistry()
	r.IncConnection("tcp")
	r.IncConnection("tcp")
	r.IncConnection("ws")
	r.DecConnection("tcp")

	if got := testutil.ToFloat64(r.ConnectionsActive.WithLabelValues("tcp")); got != 1 {
		t.Errorf("tcp active = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.ConnectionsTotal.WithLabelValues("tcp")); got != 2 {
		t.Errorf("tcp total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.ConnectionsActive.WithLabelValues("ws")); got != 1 {
		t.Errorf("ws active = %v, want 1", got)
	}

	body := scrape(t, r)
	if !strings.Contains(body, `pixelflut_connections_total{transport="tcp"} 2`) {
		t.Errorf("missing tcp connection total in:\n%s", body)
	}
}

func TestCommandMetrics(t *testing.T) {
	r := NewRegistry()
	r.AddCommands(CommandSetPixel, 5)
	r.AddCommands(CommandSetPixel, 3)
	r.AddCommands(CommandMalformed, 1)
	r.AddCommands(CommandGetPixel, 0)

	if got := testutil.ToFloat64(r.CommandsTotal.WithLabelValues(CommandSetPixel)); got != 8 {
		t.Errorf("px_set = %v, want 8", got)
	}

	body := scrape(t, r)
	if !strings.Contains(body, `pixelflut_commands_total{command="malformed"} 1`) {
		t.Error("missing malformed counter")
	}
	if strings.Contains(body, `command="px_get"`) {
		t.Error("zero adds should not create a series")
	}
}

func TestSnapshotMetrics(t *testing.T) {
	r := NewRegistry()
	r.ObserveSnapshot(0.02, 1920014, 1700000000)
	r.IncSnapshotFailure()

	if got := testutil.ToFloat64(r.SnapshotSize); got != 1920014 {
		t.Errorf("snapshot size = %v", got)
	}
	if got := testutil.ToFloat64(r.SnapshotFailures); got != 1 {
		t.Errorf("snapshot failures = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(r.SnapshotDuration); got != 1 {
		t.Errorf("histogram series = %d, want 1", got)
	}
}

func TestLimitAndDropMetrics(t *testing.T) {
	r := NewRegistry()
	r.IncLimitExceeded("unix")
	r.IncDatagramDropped()
	r.IncDatagramDropped()
	r.AddBytesReceived("udp", 128)

	if got := testutil.ToFloat64(r.LimitExceeded.WithLabelValues("unix")); got != 1 {
		t.Errorf("limit exceeded = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.DatagramsDropped); got != 2 {
		t.Errorf("dropped = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.BytesReceived.WithLabelValues("udp")); got != 128 {
		t.Errorf("bytes = %v, want 128", got)
	}
}
