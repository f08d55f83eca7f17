// Package httpapi implements the registry read path against the platform's
// registry HTTP API.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pipehooks/pkg/registry"
)

// Config holds the registry API endpoint settings.
type Config struct {
	BaseURL string
	// Token is an optional bearer token for the registry API.
	Token string
}

// Client is an HTTP implementation of registry.Store. Per-call deadlines
// come from the caller's context; the embedded client timeout is only a
// final safety net. Safe for concurrent use.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

func New(cfg Config) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// LookupTarget fetches the registered target for a normalized repo key.
func (c *Client) LookupTarget(ctx context.Context, key string) (*registry.TargetRecord, error) {
	endpoint := fmt.Sprintf("%s/api/v1/targets/%s", c.baseURL, url.PathEscape(key))
	var record registry.TargetRecord
	if err := c.getJSON(ctx, endpoint, &record); err != nil {
		return nil, err
	}
	if record.Key == "" {
		record.Key = key
	}
	return &record, nil
}

// LookupBranch fetches the branch-scoped sub-record of a target.
func (c *Client) LookupBranch(ctx context.Context, target *registry.TargetRecord, branch string) (*registry.BranchRecord, error) {
	endpoint := fmt.Sprintf("%s/api/v1/targets/%s/branches/%s",
		c.baseURL, url.PathEscape(target.Key), url.PathEscape(branch))
	var record registry.BranchRecord
	if err := c.getJSON(ctx, endpoint, &record); err != nil {
		return nil, err
	}
	if record.TargetKey == "" {
		record.TargetKey = target.Key
	}
	return &record, nil
}

func (c *Client) Close() error { return nil }

func (c *Client) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return registry.ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("registry api error (%d): %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
