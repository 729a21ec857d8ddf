// Package pushrelay forwards opaque push bodies to device-registered
// endpoints. Delivery is best-effort: failures are logged, never
// surfaced to the publisher.
package pushrelay

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const forwardTimeout = 10 * time.Second

type Forwarder struct {
	client *http.Client
	logger *slog.Logger
}

func NewForwarder() *Forwarder {
	return &Forwarder{
		client: &http.Client{Timeout: forwardTimeout},
		logger: slog.With("component", "pushrelay"),
	}
}

// Forward POSTs the body to the endpoint. The content type is passed
// through when the device supplied one.
func (f *Forwarder) Forward(ctx context.Context, endpoint string, body []byte, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building push forward: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("forwarding push: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("push endpoint returned %d", resp.StatusCode)
	}
	return nil
}
