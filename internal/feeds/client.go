// Package feeds talks to the external RSS aggregator service.
package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultRequestTimeout = 45 * time.Second
	maxErrorBodyBytes     = 2048
)

type Client struct {
	endpoint string
	token    string
	client   *http.Client
}

// ListParams scopes one entry listing.
type ListParams struct {
	Limit          int
	PublishedAfter *time.Time
	Status         string
}

// ListResult carries the aggregator's answer. Entries stay loosely
// typed for the normalizer.
type ListResult struct {
	Total   int              `json:"total"`
	Entries []map[string]any `json:"entries"`
}

func NewClient(endpoint, token string) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if trimmed == "" {
		return nil, fmt.Errorf("feeds endpoint is required")
	}
	if _, err := url.ParseRequestURI(trimmed); err != nil {
		return nil, fmt.Errorf("invalid feeds endpoint %q: %w", endpoint, err)
	}
	return &Client{
		endpoint: trimmed,
		token:    strings.TrimSpace(token),
		client:   &http.Client{Timeout: defaultRequestTimeout},
	}, nil
}

// ListEntries fetches up to Limit entries, newest first.
func (c *Client) ListEntries(ctx context.Context, params ListParams) (*ListResult, error) {
	query := url.Values{}
	if params.Limit > 0 {
		query.Set("limit", strconv.Itoa(params.Limit))
	}
	if params.PublishedAfter != nil {
		query.Set("publishedAfter", params.PublishedAfter.UTC().Format(time.RFC3339))
	}
	if status := strings.TrimSpace(params.Status); status != "" {
		query.Set("status", status)
	}

	endpoint := c.endpoint + "/entries"
	if encoded := query.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build list entries request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list feed entries: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		snippet := strings.TrimSpace(string(body))
		if snippet == "" {
			return nil, fmt.Errorf("list feed entries: unexpected status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("list feed entries: unexpected status %d: %s", resp.StatusCode, snippet)
	}

	decoder := json.NewDecoder(resp.Body)
	decoder.UseNumber()
	var result ListResult
	if err := decoder.Decode(&result); err != nil {
		return nil, fmt.Errorf("decode list entries response: %w", err)
	}
	return &result, nil
}
