// Package crawler talks to the external tweet-scraping actor. The
// actor is opaque: one call starts a run, a second fetches the dataset
// it produced.
package crawler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultRequestTimeout = 60 * time.Second
	maxErrorBodyBytes     = 2048
)

type Client struct {
	endpoint string
	token    string
	actorID  string
	client   *http.Client
}

// RunParams describes one scrape run.
type RunParams struct {
	Keywords []string
	MaxItems int
}

// RunHandle is the actor's answer to a start request.
type RunHandle struct {
	RunID          string `json:"runId"`
	Status         string `json:"status"`
	ResultLocation string `json:"resultLocation"`
}

func NewClient(endpoint, token, actorID string) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if trimmed == "" {
		return nil, fmt.Errorf("crawler endpoint is required")
	}
	if _, err := url.ParseRequestURI(trimmed); err != nil {
		return nil, fmt.Errorf("invalid crawler endpoint %q: %w", endpoint, err)
	}
	actor := strings.TrimSpace(actorID)
	if actor == "" {
		return nil, fmt.Errorf("crawler actor id is required")
	}
	return &Client{
		endpoint: trimmed,
		token:    strings.TrimSpace(token),
		actorID:  actor,
		client:   &http.Client{Timeout: defaultRequestTimeout},
	}, nil
}

type startRunRequest struct {
	ActorID  string   `json:"actorId"`
	Keywords []string `json:"keywords"`
	MaxItems int      `json:"maxItems,omitempty"`
}

// StartRun launches one actor run and returns its handle. The actor
// runs synchronously from our point of view: when the call returns the
// dataset at ResultLocation is complete.
func (c *Client) StartRun(ctx context.Context, params RunParams) (*RunHandle, error) {
	if len(params.Keywords) == 0 {
		return nil, fmt.Errorf("at least one keyword is required")
	}

	body, err := json.Marshal(startRunRequest{
		ActorID:  c.actorID,
		Keywords: params.Keywords,
		MaxItems: params.MaxItems,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal start run request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/runs", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build start run request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("start crawler run: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, httpStatusError("start crawler run", resp)
	}

	var handle RunHandle
	if err := json.NewDecoder(resp.Body).Decode(&handle); err != nil {
		return nil, fmt.Errorf("decode start run response: %w", err)
	}
	if strings.TrimSpace(handle.ResultLocation) == "" {
		return nil, fmt.Errorf("crawler returned no result location (run %q status %q)", handle.RunID, handle.Status)
	}
	return &handle, nil
}

// FetchResults downloads the raw items a finished run produced. Items
// stay loosely typed; the normalizer owns their interpretation.
func (c *Client) FetchResults(ctx context.Context, resultLocation string) ([]map[string]any, error) {
	location := strings.TrimSpace(resultLocation)
	if location == "" {
		return nil, fmt.Errorf("result location is required")
	}
	if !strings.HasPrefix(location, "http://") && !strings.HasPrefix(location, "https://") {
		location = c.endpoint + "/" + strings.TrimPrefix(location, "/")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("build fetch results request: %w", err)
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch crawler results: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, httpStatusError("fetch crawler results", resp)
	}

	decoder := json.NewDecoder(resp.Body)
	decoder.UseNumber()
	var items []map[string]any
	if err := decoder.Decode(&items); err != nil {
		return nil, fmt.Errorf("decode crawler results: %w", err)
	}
	return items, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func httpStatusError(operation string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	snippet := strings.TrimSpace(string(body))
	if snippet == "" {
		return fmt.Errorf("%s: unexpected status %d", operation, resp.StatusCode)
	}
	return fmt.Errorf("%s: unexpected status %d: %s", operation, resp.StatusCode, snippet)
}
