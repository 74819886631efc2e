// internal/relay/client.go
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pos-printer/internal/model"
)

// ErrRelayRejected is returned when the relay answers but reports failure
var ErrRelayRejected = errors.New("relay: request rejected")

// maxResponseBytes caps relay response bodies
const maxResponseBytes = 1 << 20

// Client talks to a network relay over HTTP/JSON
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a relay client. A zero timeout leaves requests bounded
// only by their context.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With(zap.String("component", "relay_client")),
	}
}

// Forward asks the relay to write payload to address:port
func (c *Client) Forward(ctx context.Context, address string, port int, payload []byte) error {
	if port <= 0 {
		port = model.DefaultPrinterPort
	}
	req := PrintRequest{
		Address: address,
		Port:    port,
		Payload: payload,
		JobID:   uuid.NewString(),
	}

	var resp PrintResponse
	status, err := c.post(ctx, PrintPath, req, &resp)
	if err != nil {
		return err
	}
	if status >= 300 || !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = http.StatusText(status)
		}
		return fmt.Errorf("%w: %s:%d: %s", ErrRelayRejected, address, port, msg)
	}

	c.logger.Debug("Relay print accepted",
		zap.String("job_id", resp.JobID),
		zap.Int("bytes_written", resp.BytesWritten),
	)
	return nil
}

// Scan asks the relay to probe the local network for printers
func (c *Client) Scan(ctx context.Context, req ScanRequest) ([]model.DiscoveredPrinter, error) {
	var resp ScanResponse
	status, err := c.post(ctx, ScanPath, req, &resp)
	if err != nil {
		return nil, err
	}
	if status >= 300 || !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = http.StatusText(status)
		}
		return nil, fmt.Errorf("%w: scan: %s", ErrRelayRejected, msg)
	}
	return resp.Printers, nil
}

// Ping checks that the relay is reachable
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+HealthPath, nil)
	if err != nil {
		return err
	}
	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("relay unreachable: %w", err)
	}
	defer res.Body.Close()
	io.Copy(io.Discard, io.LimitReader(res.Body, maxResponseBytes))

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("relay health check returned %d", res.StatusCode)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) (int, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("encode relay request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("build relay request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("relay unreachable: %w", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return res.StatusCode, fmt.Errorf("read relay response: %w", err)
	}
	if len(raw) > 0 {
		// Error bodies from middleware in front of the relay need not
		// follow the relay schema; the status code is enough.
		if err := json.Unmarshal(raw, out); err != nil && res.StatusCode < 300 {
			return res.StatusCode, fmt.Errorf("decode relay response (status %d): %w", res.StatusCode, err)
		}
	}
	return res.StatusCode, nil
}
