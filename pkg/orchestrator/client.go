// Package orchestrator submits materialized resources to the orchestration
// backend. The engine's responsibility ends at a successful submit; the
// backend owns everything after that.
package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pipehooks/trigger"
)

// Config holds backend endpoint settings.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client posts resource instances to the backend's run-creation endpoint.
// Safe for concurrent use.
type Client struct {
	baseURL string
	client  *http.Client
}

func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Submit creates the run resource. A non-2xx answer is a synchronous
// backend rejection and comes back as *trigger.DownstreamCreateError; the
// engine does not retry it.
func (c *Client) Submit(ctx context.Context, instance *trigger.ResourceInstance) error {
	payload, err := json.Marshal(instance)
	if err != nil {
		return err
	}
	endpoint := c.baseURL + "/api/v1/runs"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("submit %s: %w", instance.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return &trigger.DownstreamCreateError{
			Resource: instance.Name,
			Status:   resp.StatusCode,
			Reason:   strings.TrimSpace(string(raw)),
		}
	}
	return nil
}
