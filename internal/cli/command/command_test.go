package command

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/pixelflut-go/internal/core/domain"
	"github.com/yndnr/pixelflut-go/internal/server/httpserver"
	"github.com/yndnr/pixelflut-go/internal/server/localserver"
	"github.com/yndnr/pixelflut-go/internal/server/protocol"
	"github.com/yndnr/pixelflut-go/internal/server/streamserver"
	"github.com/yndnr/pixelflut-go/internal/storage/memory"
	"github.com/yndnr/pixelflut-go/internal/storage/snapshot"
	"github.com/yndnr/pixelflut-go/internal/telemetry/metric"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "pixelflut-cli")
	if err != nil {
		panic(err)
	}
	os.Setenv("PIXELFLUT_CLI_CONFIG", filepath.Join(dir, "cli.yaml"))
	code := m.Run()
	os.RemoveAll(dir)
	os.Exit(code)
}

type backend struct {
	canvas *memory.Canvas
	addr   string
	socket string
}

// startBackend serves a 4x3 canvas over TCP and a unix socket.
func startBackend(t *testing.T) *backend {
	t.Helper()
	canvas, err := memory.New(4, 3)
	if err != nil {
		t.Fatal(err)
	}
	handler := protocol.NewHandler(canvas, protocol.DefaultHandlerConfig(), nil, nil)
	registry := protocol.NewRegistry()

	cfg := streamserver.DefaultConfig()
	cfg.Address = "127.0.0.1:0"
	tcp := streamserver.New(cfg, handler, registry, nil, nil)
	if err := tcp.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	socket := filepath.Join(t.TempDir(), "px.sock")
	unix := localserver.New(socket, nil, handler, registry, nil, nil)
	if err := unix.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	t.Cleanup(func() {
		registry.CloseAll()
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		_ = tcp.Shutdown(ctx)
		_ = unix.Shutdown(ctx)
	})
	return &backend{canvas: canvas, addr: tcp.Addr().String(), socket: socket}
}

// waitPixel polls until the pixel at (x, y) has the given color.
func (b *backend) waitPixel(t *testing.T, x, y uint64, want domain.Color) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got, _ := b.canvas.Get(x, y); got == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	got, _ := b.canvas.Get(x, y)
	t.Fatalf("pixel (%d,%d) = %v, want %v", x, y, got, want)
}

func runApp(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	app := App()
	var out, errOut bytes.Buffer
	app.Writer = &out
	app.ErrWriter = &errOut
	app.ExitErrHandler = func(*cli.Context, error) {}
	err = app.Run(append([]string{"pixelflut-cli"}, args...))
	return out.String(), errOut.String(), err
}

func TestApp(t *testing.T) {
	app := App()
	if app.Name != "pixelflut-cli" {
		t.Errorf("Name = %q", app.Name)
	}

	names := make(map[string]bool)
	for _, cmd := range app.Commands {
		names[cmd.Name] = true
	}
	for _, name := range []string{"size", "get", "set", "rect", "state", "server-help", "shell", "profile", "snapshot", "health", "metrics"} {
		if !names[name] {
			t.Errorf("missing command %q", name)
		}
	}

	flags := make(map[string]bool)
	for _, f := range app.Flags {
		flags[f.Names()[0]] = true
	}
	for _, name := range []string{"server", "transport", "output", "no-headers", "timeout", "profile", "cli-config", "ca-file", "metrics-addr"} {
		if !flags[name] {
			t.Errorf("missing flag %q", name)
		}
	}
}

func TestSize(t *testing.T) {
	b := startBackend(t)

	out, _, err := runApp(t, "-s", b.addr, "-o", "json", "size")
	if err != nil {
		t.Fatalf("size: %v", err)
	}
	if want := "{\n  \"width\": 4,\n  \"height\": 3\n}\n"; out != want {
		t.Errorf("size output = %q, want %q", out, want)
	}
}

func TestSize_UnixTransport(t *testing.T) {
	b := startBackend(t)

	out, _, err := runApp(t, "--transport", "unix", "--server", b.socket, "--no-headers", "size")
	if err != nil {
		t.Fatalf("size: %v", err)
	}
	if want := "width   4\nheight  3\n"; out != want {
		t.Errorf("size output = %q, want %q", out, want)
	}
}

func TestSetAndGet(t *testing.T) {
	b := startBackend(t)

	out, _, err := runApp(t, "-s", b.addr, "-o", "json", "set", "1", "2", "abcdef")
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	if !strings.Contains(out, `"color": "ABCDEF"`) {
		t.Errorf("set output = %q", out)
	}
	b.waitPixel(t, 1, 2, domain.RGB(0xAB, 0xCD, 0xEF))

	out, _, err = runApp(t, "-s", b.addr, "-o", "yaml", "get", "1", "2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if want := "x: 1\n\"y\": 2\ncolor: ABCDEF\n"; out != want {
		t.Errorf("get output = %q, want %q", out, want)
	}
}

func TestGet_OutOfBounds(t *testing.T) {
	b := startBackend(t)

	_, _, err := runApp(t, "-s", b.addr, "--timeout", "50ms", "get", "10", "10")
	if err == nil || !strings.Contains(err.Error(), "no reply") {
		t.Errorf("get out of bounds error = %v", err)
	}
}

func TestRect(t *testing.T) {
	b := startBackend(t)

	out, progress, err := runApp(t, "-s", b.addr, "-o", "json", "rect", "1", "1", "3", "2", "00FF0080")
	if err != nil {
		t.Fatalf("rect: %v", err)
	}
	if !strings.Contains(out, `"pixels": 6`) || !strings.Contains(out, `"color": "00FF0080"`) {
		t.Errorf("rect output = %q", out)
	}
	if !strings.Contains(progress, "100%") {
		t.Errorf("progress output = %q", progress)
	}
	b.waitPixel(t, 3, 2, domain.RGBA(0, 0xFF, 0, 0x80))
	if got, _ := b.canvas.Get(0, 0); got != domain.Black {
		t.Errorf("pixel outside rect = %v", got)
	}
}

func TestRect_NoProgress(t *testing.T) {
	b := startBackend(t)

	_, progress, err := runApp(t, "-s", b.addr, "rect", "--no-progress", "0", "0", "1", "1", "FF0000")
	if err != nil {
		t.Fatalf("rect: %v", err)
	}
	if progress != "" {
		t.Errorf("progress written with --no-progress: %q", progress)
	}
	b.waitPixel(t, 0, 0, domain.RGB(0xFF, 0, 0))
}

func TestState(t *testing.T) {
	b := startBackend(t)
	_ = b.canvas.Set(0, 0, domain.RGB(0xFF, 0, 0))
	_ = b.canvas.Set(1, 0, domain.RGB(0xFF, 0, 0))
	_ = b.canvas.Set(2, 0, domain.RGBA(0, 0, 0xFF, 0x10))

	out, _, err := runApp(t, "-s", b.addr, "-o", "json", "state", "--top", "2")
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	var res stateResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if res.Encoding != "rgba64" || res.Width != 4 || res.Height != 3 || res.Pixels != 12 {
		t.Errorf("state = %+v", res)
	}
	if res.DistinctColors != 3 || res.Translucent != 1 {
		t.Errorf("distinct = %d, translucent = %d", res.DistinctColors, res.Translucent)
	}
	if len(res.TopColors) != 2 || res.TopColors[0].Color != "000000" || res.TopColors[0].Pixels != 9 ||
		res.TopColors[1].Color != "FF0000" {
		t.Errorf("top colors = %+v", res.TopColors)
	}
}

func TestState_TextListsTopColors(t *testing.T) {
	b := startBackend(t)

	out, _, err := runApp(t, "-s", b.addr, "state", "--encoding", "rgb64")
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if !strings.Contains(out, "encoding         rgb64\n") {
		t.Errorf("state summary = %q", out)
	}
	if !strings.Contains(out, "COLOR   PIXELS  SHARE\n000000  12      1.00\n") {
		t.Errorf("top color table missing: %q", out)
	}
}

func TestState_BadEncoding(t *testing.T) {
	_, _, err := runApp(t, "state", "--encoding", "png")
	if err == nil || !strings.Contains(err.Error(), "unknown encoding") {
		t.Errorf("err = %v", err)
	}
}

func TestServerHelp(t *testing.T) {
	b := startBackend(t)

	out, _, err := runApp(t, "-s", b.addr, "server-help")
	if err != nil {
		t.Fatalf("server-help: %v", err)
	}
	if out != protocol.HelpText {
		t.Errorf("help = %q", out)
	}
}

func TestShell(t *testing.T) {
	b := startBackend(t)

	app := App()
	var out bytes.Buffer
	app.Reader = strings.NewReader("PX 2 2 112233\nPX 2 2\nNOPE\nSIZE\nexit\n")
	app.Writer = &out
	app.ExitErrHandler = func(*cli.Context, error) {}
	if err := app.Run([]string{"pixelflut-cli", "-s", b.addr, "shell", "--history-file", ""}); err != nil {
		t.Fatalf("shell: %v", err)
	}

	got := out.String()
	for _, want := range []string{"PX 2 2 112233\n", "error: connection: malformed command", "SIZE 4 3\n"} {
		if !strings.Contains(got, want) {
			t.Errorf("shell output missing %q:\n%s", want, got)
		}
	}
}

func TestArgumentErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"get missing y", []string{"get", "1"}, "expected 2 arguments"},
		{"non-numeric x", []string{"get", "x", "2"}, "invalid x"},
		{"bad color", []string{"set", "1", "2", "red"}, "invalid color"},
		{"empty rect", []string{"rect", "0", "0", "0", "5", "FFFFFF"}, "must be positive"},
		{"bad output", []string{"--output", "xml", "size"}, "unknown output format"},
		{"bad transport", []string{"--transport", "smoke", "size"}, "unknown transport"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runApp(t, tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestSummarize(t *testing.T) {
	red := domain.RGB(0xFF, 0, 0)
	blue := domain.RGB(0, 0, 0xFF)
	pixels := []domain.Color{blue, red, red, blue, domain.Black}

	res := summarize(pixels, 10)
	if res.DistinctColors != 3 || len(res.TopColors) != 3 {
		t.Fatalf("summarize = %+v", res)
	}
	// Equal counts sort by color value.
	if res.TopColors[0].Color != "0000FF" || res.TopColors[1].Color != "FF0000" {
		t.Errorf("order = %+v", res.TopColors)
	}
	if res.TopColors[2].Share != 0.2 {
		t.Errorf("share = %v", res.TopColors[2].Share)
	}

	if got := summarize(pixels, -1); len(got.TopColors) != 0 {
		t.Errorf("negative top kept %d colors", len(got.TopColors))
	}
}

func writeSnapshot(t *testing.T) string {
	t.Helper()
	canvas, err := memory.New(3, 2)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "pixmap.snapshot")
	store, err := snapshot.NewStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Save(canvas); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSnapshotInspect(t *testing.T) {
	path := writeSnapshot(t)

	out, _, err := runApp(t, "-o", "json", "snapshot", "inspect", "--verify", path)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	var res snapshotResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatal(err)
	}
	want := int64(snapshot.HeaderSize + 6*snapshot.RecordSize)
	if res.Width != 3 || res.Height != 2 || res.Version != snapshot.CurrentVersion {
		t.Errorf("header = %+v", res)
	}
	if res.FileSize != want || res.ExpectedSize != want || !res.Complete {
		t.Errorf("sizes = %d/%d complete=%v", res.FileSize, res.ExpectedSize, res.Complete)
	}
	if res.Verified == nil || !*res.Verified {
		t.Errorf("verified = %v", res.Verified)
	}
}

func TestSnapshotInspect_Truncated(t *testing.T) {
	path := writeSnapshot(t)
	if err := os.Truncate(path, snapshot.HeaderSize+2); err != nil {
		t.Fatal(err)
	}

	out, _, err := runApp(t, "-o", "json", "snapshot", "inspect", path)
	if err != nil {
		t.Fatalf("inspect without --verify: %v", err)
	}
	if !strings.Contains(out, `"complete": false`) {
		t.Errorf("output = %q", out)
	}

	_, _, err = runApp(t, "snapshot", "inspect", "--verify", path)
	if err == nil || !strings.Contains(err.Error(), "truncated") {
		t.Errorf("verify err = %v", err)
	}
}

func TestSnapshotInspect_Missing(t *testing.T) {
	_, _, err := runApp(t, "snapshot", "inspect", filepath.Join(t.TempDir(), "none"))
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("err = %v", err)
	}
}

func TestProfile_AppliesToFlags(t *testing.T) {
	b := startBackend(t)
	path := filepath.Join(t.TempDir(), "cli.yaml")
	data := "current: local\noutput: json\nprofiles:\n  local:\n    server: \"" + b.socket + "\"\n    transport: unix\n  broken:\n    server: \"127.0.0.1:1\"\n"
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	out, _, err := runApp(t, "--cli-config", path, "size")
	if err != nil {
		t.Fatalf("size with profile: %v", err)
	}
	if !strings.Contains(out, `"width": 4`) {
		t.Errorf("profile output format not applied: %q", out)
	}

	// Flags win over the profile.
	out, _, err = runApp(t, "--cli-config", path, "-p", "broken", "-s", b.addr, "-o", "text", "--no-headers", "size")
	if err != nil {
		t.Fatalf("size with overrides: %v", err)
	}
	if !strings.HasPrefix(out, "width") {
		t.Errorf("output = %q", out)
	}

	if _, _, err := runApp(t, "--cli-config", path, "-p", "missing", "size"); err == nil || !strings.Contains(err.Error(), "unknown profile") {
		t.Errorf("missing profile err = %v", err)
	}
}

func TestProfile_SaveUseList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cli.yaml")

	if _, _, err := runApp(t, "--cli-config", path, "-t", "udp", "-s", "wall:1234", "profile", "save", "wall"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, _, err := runApp(t, "--cli-config", path, "profile", "use", "wall"); err != nil {
		t.Fatalf("use: %v", err)
	}
	if _, _, err := runApp(t, "--cli-config", path, "profile", "use", "nope"); err == nil {
		t.Error("use of an unknown profile should fail")
	}

	out, _, err := runApp(t, "--cli-config", path, "-o", "json", "profile", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var rows []profileRow
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(rows) != 2 || rows[0].Name != "default" || rows[1].Name != "wall" {
		t.Fatalf("rows = %+v", rows)
	}
	if rows[0].Current || !rows[1].Current || rows[1].Transport != "udp" || rows[1].Server != "wall:1234" {
		t.Errorf("rows = %+v", rows)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	metrics := metric.NewRegistry()
	metrics.IncConnection(protocol.TransportTCP)
	ready := true
	srv := httptest.NewServer(httpserver.NewRouter(&httpserver.RouterConfig{
		Metrics: metrics,
		Ready:   func() bool { return ready },
	}))
	defer srv.Close()

	out, _, err := runApp(t, "-m", srv.URL, "--no-headers", "health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if !strings.Contains(out, "status  ok\n") {
		t.Errorf("health output = %q", out)
	}

	out, _, err = runApp(t, "-m", srv.URL, "-o", "json", "metrics", "--prefix", "pixelflut_connections")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	var samples []metricSample
	if err := json.Unmarshal([]byte(out), &samples); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(samples) != 2 {
		t.Fatalf("samples = %+v", samples)
	}
	for _, s := range samples {
		if !strings.Contains(s.Name, `transport="tcp"`) || s.Value != 1 {
			t.Errorf("sample = %+v", s)
		}
	}

	ready = false
	if _, _, err := runApp(t, "-m", srv.URL, "health"); err == nil {
		t.Error("health should fail while shutting down")
	}
}

func TestParseSamples(t *testing.T) {
	body := `# HELP pixelflut_commands_total Commands applied.
# TYPE pixelflut_commands_total counter
pixelflut_commands_total{command="px_set",transport="udp"} 42
pixelflut_commands_total{command="help",transport="tcp"} 1
go_goroutines 12
pixelflut_snapshot_size_bytes 1.92e+06
pixelflut_broken NaN-ish
`
	got := parseSamples(body, "pixelflut_")
	want := []metricSample{
		{Name: `pixelflut_commands_total{command="help",transport="tcp"}`, Value: 1},
		{Name: `pixelflut_commands_total{command="px_set",transport="udp"}`, Value: 42},
		{Name: "pixelflut_snapshot_size_bytes", Value: 1.92e6},
	}
	if len(got) != len(want) {
		t.Fatalf("parseSamples() = %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}
