package connection

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yndnr/pixelflut-go/internal/infra/tlsroots"
)

// HTTPClient reads the server's metrics and health endpoints.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a client for the metrics listener at server.
func NewHTTPClient(server string, timeout time.Duration) *HTTPClient {
	c, _ := NewHTTPClientWithCA(server, timeout, "")
	return c
}

// NewHTTPClientWithCA is NewHTTPClient that also trusts the roots in
// caFile for https:// addresses.
func NewHTTPClientWithCA(server string, timeout time.Duration, caFile string) (*HTTPClient, error) {
	tlsConfig, err := tlsroots.ClientConfig(caFile)
	if err != nil {
		return nil, err
	}

	baseURL := server
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	client := &http.Client{Timeout: timeout}
	if tlsConfig != nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = tlsConfig
		client.Transport = transport
	}
	return &HTTPClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
	}, nil
}

// Health returns nil when /healthz answers 200.
func (c *HTTPClient) Health(ctx context.Context) error {
	body, status, err := c.get(ctx, "/healthz")
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("connection: server unhealthy: %d %s", status, strings.TrimSpace(body))
	}
	return nil
}

// Metrics returns the Prometheus text exposition.
func (c *HTTPClient) Metrics(ctx context.Context) (string, error) {
	body, status, err := c.get(ctx, "/metrics")
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("connection: metrics returned %d", status)
	}
	return body, nil
}

func (c *HTTPClient) get(ctx context.Context, path string) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return "", 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "pixelflut-cli")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("connection: GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, fmt.Errorf("read response: %w", err)
	}
	return string(body), resp.StatusCode, nil
}
