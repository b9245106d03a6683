package connection

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/yndnr/pixelflut-go/internal/core/domain"
	"github.com/yndnr/pixelflut-go/internal/server/localserver"
	"github.com/yndnr/pixelflut-go/internal/server/protocol"
	"github.com/yndnr/pixelflut-go/internal/server/streamserver"
	"github.com/yndnr/pixelflut-go/internal/server/udpserver"
	"github.com/yndnr/pixelflut-go/internal/server/wsserver"
	"github.com/yndnr/pixelflut-go/internal/storage/memory"
)

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

func stopOnCleanup(t *testing.T, s shutdowner) {
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		_ = s.Shutdown(ctx)
	})
}

// startBackend runs a server for transport on a 4x3 canvas and returns
// the address to dial.
func startBackend(t *testing.T, transport string) (*memory.Canvas, string) {
	t.Helper()
	canvas, err := memory.New(4, 3)
	if err != nil {
		t.Fatal(err)
	}
	handler := protocol.NewHandler(canvas, protocol.DefaultHandlerConfig(), nil, nil)
	registry := protocol.NewRegistry()
	t.Cleanup(func() { registry.CloseAll() })
	ctx := context.Background()

	switch transport {
	case TransportTCP:
		cfg := streamserver.DefaultConfig()
		cfg.Address = "127.0.0.1:0"
		srv := streamserver.New(cfg, handler, registry, nil, nil)
		if err := srv.Start(ctx); err != nil {
			t.Fatal(err)
		}
		stopOnCleanup(t, srv)
		return canvas, srv.Addr().String()

	case TransportUnix:
		path := filepath.Join(t.TempDir(), "px.sock")
		srv := localserver.New(path, nil, handler, registry, nil, nil)
		if err := srv.Start(ctx); err != nil {
			t.Fatal(err)
		}
		stopOnCleanup(t, srv)
		return canvas, path

	case TransportUDP:
		cfg := udpserver.DefaultConfig()
		cfg.Address = "127.0.0.1:0"
		srv := udpserver.New(cfg, handler, nil, nil)
		if err := srv.Start(ctx); err != nil {
			t.Fatal(err)
		}
		stopOnCleanup(t, srv)
		return canvas, srv.Addr().String()

	case TransportWebSocket:
		cfg := wsserver.DefaultConfig()
		cfg.Address = "127.0.0.1:0"
		cfg.Path = "/canvas"
		srv := wsserver.New(cfg, handler, registry, nil, nil)
		if err := srv.Start(ctx); err != nil {
			t.Fatal(err)
		}
		stopOnCleanup(t, srv)
		return canvas, srv.Addr().String() + "/canvas"
	}
	t.Fatalf("unknown transport %q", transport)
	return nil, ""
}

func TestClient_Transports(t *testing.T) {
	for _, transport := range []string{TransportTCP, TransportUnix, TransportUDP, TransportWebSocket} {
		t.Run(transport, func(t *testing.T) {
			canvas, addr := startBackend(t, transport)

			c, err := Dial(context.Background(), Options{Transport: transport, Address: addr, Timeout: 2 * time.Second})
			if err != nil {
				t.Fatalf("Dial() error = %v", err)
			}
			defer c.Close()

			w, h, err := c.Size()
			if err != nil || w != 4 || h != 3 {
				t.Fatalf("Size() = %d, %d, %v; want 4, 3", w, h, err)
			}

			if err := c.SetPixel(1, 2, domain.RGB(0xAB, 0xCD, 0xEF), false); err != nil {
				t.Fatalf("SetPixel() error = %v", err)
			}
			px, err := c.GetPixel(1, 2)
			if err != nil {
				t.Fatalf("GetPixel() error = %v", err)
			}
			if px.Hex != "ABCDEF" || px.X != 1 || px.Y != 2 {
				t.Errorf("GetPixel() = %+v", px)
			}

			var calls int
			if err := c.Fill(0, 0, 2, 2, domain.RGBA(1, 2, 3, 4), true, func(done, total int64) {
				calls++
				if total != 4 {
					t.Errorf("progress total = %d, want 4", total)
				}
			}); err != nil {
				t.Fatalf("Fill() error = %v", err)
			}
			if calls != 2 {
				t.Errorf("progress called %d times, want once per row", calls)
			}

			enc, pixels, err := c.State(protocol.EncodingRGBA64)
			if err != nil {
				t.Fatalf("State() error = %v", err)
			}
			if enc != protocol.EncodingRGBA64 || len(pixels) != 12 {
				t.Fatalf("State() = %s with %d pixels", enc, len(pixels))
			}
			if pixels[0] != domain.RGBA(1, 2, 3, 4) || pixels[5] != domain.RGBA(1, 2, 3, 4) {
				t.Errorf("filled pixels = %v, %v", pixels[0], pixels[5])
			}
			if pixels[2*4+1] != domain.RGB(0xAB, 0xCD, 0xEF) {
				t.Errorf("pixel (1,2) = %v", pixels[2*4+1])
			}
			if got, _ := canvas.Get(3, 2); got != domain.Black {
				t.Errorf("untouched pixel = %v", got)
			}

			help, err := c.Help()
			if err != nil || help != protocol.HelpText {
				t.Errorf("Help() = %q, %v", help, err)
			}
		})
	}
}

func TestDial_Errors(t *testing.T) {
	if _, err := Dial(context.Background(), Options{Transport: "carrier-pigeon", Address: "x"}); err == nil {
		t.Error("unknown transport should fail")
	}
	if _, err := Dial(context.Background(), Options{Transport: TransportUnix, Address: filepath.Join(t.TempDir(), "none.sock")}); err == nil {
		t.Error("dial to a missing socket should fail")
	}
}

func TestClient_ReadTimeout(t *testing.T) {
	_, addr := startBackend(t, TransportUDP)
	c, err := Dial(context.Background(), Options{Transport: TransportUDP, Address: addr, Timeout: 50 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	// Out-of-bounds reads get no reply.
	if _, err := c.GetPixel(100, 100); err == nil || !strings.Contains(err.Error(), "px_get") {
		t.Errorf("GetPixel() error = %v, want a timeout", err)
	}
}

func TestClient_Exec(t *testing.T) {
	_, addr := startBackend(t, TransportTCP)
	c, err := Dial(context.Background(), Options{Address: addr, Timeout: time.Second})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	tests := []struct {
		line    string
		want    []string
		wantErr error
	}{
		{line: "PX 0 1 0A0B0C"},
		{line: "PX 0 1", want: []string{"PX 0 1 0A0B0C"}},
		{line: "SIZE", want: []string{"SIZE 4 3"}},
		{line: ""},
		{line: "PX 1", wantErr: ErrMalformed},
		{line: "DRAW 1 1", wantErr: ErrMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := c.Exec(tt.line)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Exec(%q) error = %v, want %v", tt.line, err, tt.wantErr)
			}
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("Exec(%q) = %q, want %q", tt.line, got, tt.want)
			}
		})
	}

	help, err := c.Exec("HELP")
	if err != nil || len(help) == 0 || !strings.HasPrefix(help[0], "HELP") {
		t.Errorf("Exec(HELP) = %q, %v", help, err)
	}
}

func TestSplitLines(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		max     int
		want    []string
	}{
		{"fits", "A\nB\n", 10, []string{"A\nB\n"}},
		{"split at newline", "AAA\nBBB\nCCC\n", 8, []string{"AAA\nBBB\n", "CCC\n"}},
		{"long line alone", "AAAAAAAAAA\nB\n", 4, []string{"AAAAAAAAAA\n", "B\n"}},
		{"empty", "", 4, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, c := range splitLines([]byte(tt.payload), tt.max) {
				got = append(got, string(c))
			}
			if strings.Join(got, "|") != strings.Join(tt.want, "|") || len(got) != len(tt.want) {
				t.Errorf("splitLines() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLineBuffer(t *testing.T) {
	b := lineBuffer{max: 8}
	if err := b.add([]byte("PX 1 ")); err != nil {
		t.Fatal(err)
	}
	if _, ok := b.next(); ok {
		t.Fatal("partial line returned")
	}
	if err := b.add([]byte("1\nSIZE")); err != nil {
		t.Fatal(err)
	}
	line, ok := b.next()
	if !ok || string(line) != "PX 1 1" {
		t.Errorf("next() = %q, %v", line, ok)
	}
	if err := b.add([]byte(" 4 3 and more")); err == nil {
		t.Error("overlong pending line should fail")
	}
}

func TestWSURL(t *testing.T) {
	tests := map[string]string{
		"localhost:1235":         "ws://localhost:1235/",
		"localhost:1235/canvas":  "ws://localhost:1235/canvas",
		"wss://example.org/draw": "wss://example.org/draw",
	}
	for in, want := range tests {
		got, err := wsURL(in)
		if err != nil || got != want {
			t.Errorf("wsURL(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
}
