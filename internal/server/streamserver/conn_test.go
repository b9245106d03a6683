package streamserver

import (
	"errors"
	"io"
	"net"
	"os"
	"testing"
	"time"
)

func TestConn_WritePayloadReachesPeer(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	c := newConn(server, 64, 0, time.Second)
	defer c.Close()

	got := make(chan []byte, 1)
	go func() {
		buf := make([]byte, len("SIZE 3 3\nPX 0 0 000000\n"))
		_, _ = io.ReadFull(client, buf)
		got <- buf
	}()

	if err := c.WritePayload([]byte("SIZE 3 3\nPX 0 0 000000\n")); err != nil {
		t.Fatalf("WritePayload() = %v", err)
	}
	select {
	case b := <-got:
		if string(b) != "SIZE 3 3\nPX 0 0 000000\n" {
			t.Errorf("peer read %q", b)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("payload did not reach the peer without an explicit flush")
	}
}

func TestConn_WriteTimeout(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	c := newConn(server, 64, 0, 20*time.Millisecond)
	defer c.Close()

	// Nobody reads from client, so the write blocks until the deadline.
	err := c.WritePayload([]byte("SIZE 3 3\n"))
	if !errors.Is(err, os.ErrDeadlineExceeded) {
		t.Errorf("WritePayload() = %v, want deadline exceeded", err)
	}
}

func TestConn_CloseIsIdempotent(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	c := newConn(server, 64, 0, 0)

	if err := c.Close(); err != nil {
		t.Fatalf("first Close() = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
}
