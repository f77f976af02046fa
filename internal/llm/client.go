// Package llm calls the sentiment/summarization model service over an
// OpenAI-compatible chat completions endpoint and classifies its
// failures into retryable and terminal.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultEndpoint = "http://127.0.0.1:8845/v1"
	DefaultModel    = "gemini-2.5-flash"
	DefaultTimeout  = 25 * time.Second

	maxErrorBodyBytes = 2048
)

// FailureKind partitions service failures for the retry policy.
type FailureKind string

const (
	// FailureRetryable covers timeouts, connection failures, 429 and
	// 5xx responses.
	FailureRetryable FailureKind = "retryable"
	// FailureTerminal covers 4xx responses and structurally invalid
	// requests; retrying within the pass cannot help.
	FailureTerminal FailureKind = "terminal"
)

// ServiceError is a classified model-service failure.
type ServiceError struct {
	Kind       FailureKind
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("model service error (%s, status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("model service error (%s): %s", e.Kind, e.Message)
}

// IsRetryable reports whether err is worth retrying with backoff.
// Unclassified transport errors default to retryable; only an explicit
// terminal classification stops the retry loop early.
func IsRetryable(err error) bool {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr.Kind == FailureRetryable
	}
	return !errors.Is(err, context.Canceled)
}

type Client struct {
	endpointURL string
	model       string
	version     string
	client      *http.Client
}

// Generation is one successful model response.
type Generation struct {
	Text             string
	LatencyMS        int
	PromptTokens     *int
	CompletionTokens *int
}

func NewClient(endpoint, model, version string, timeout time.Duration) *Client {
	normalized := normalizeEndpoint(endpoint)
	trimmedModel := strings.TrimSpace(model)
	if trimmedModel == "" {
		trimmedModel = DefaultModel
	}
	trimmedVersion := strings.TrimSpace(version)
	if trimmedVersion == "" {
		trimmedVersion = "v1"
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		endpointURL: chatCompletionsURL(normalized),
		model:       trimmedModel,
		version:     trimmedVersion,
		client:      &http.Client{Timeout: timeout},
	}
}

func (c *Client) ModelName() string {
	if c == nil {
		return ""
	}
	return c.model
}

func (c *Client) ModelVersion() string {
	if c == nil {
		return ""
	}
	return c.version
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Generate sends one prompt and returns the raw response text. The
// caller owns structured extraction; this layer only classifies
// transport and status failures.
func (c *Client) Generate(ctx context.Context, prompt string) (*Generation, error) {
	if c == nil {
		return nil, &ServiceError{Kind: FailureTerminal, Message: "client is nil"}
	}
	trimmed := strings.TrimSpace(prompt)
	if trimmed == "" {
		return nil, &ServiceError{Kind: FailureTerminal, Message: "prompt is empty"}
	}

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: trimmed}},
		Temperature: 0.2,
	})
	if err != nil {
		return nil, &ServiceError{Kind: FailureTerminal, Message: fmt.Sprintf("marshal request: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpointURL, bytes.NewReader(body))
	if err != nil {
		return nil, &ServiceError{Kind: FailureTerminal, Message: fmt.Sprintf("build request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	latency := int(time.Since(started).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, classifyStatusError(resp)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &ServiceError{Kind: FailureTerminal, Message: fmt.Sprintf("decode response: %v", err)}
	}
	if len(parsed.Choices) == 0 {
		return nil, &ServiceError{Kind: FailureTerminal, Message: "response contains no choices"}
	}
	text := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if text == "" {
		return nil, &ServiceError{Kind: FailureTerminal, Message: "response text is empty"}
	}

	generation := &Generation{
		Text:      text,
		LatencyMS: latency,
	}
	if parsed.Usage != nil {
		prompt := parsed.Usage.PromptTokens
		completion := parsed.Usage.CompletionTokens
		generation.PromptTokens = &prompt
		generation.CompletionTokens = &completion
	}
	return generation, nil
}

func classifyTransportError(err error) *ServiceError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &ServiceError{Kind: FailureRetryable, Message: "request timed out"}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &ServiceError{Kind: FailureRetryable, Message: "request timed out"}
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		// Connection refused and friends are transient for a
		// periodically-restarted local model server.
		return &ServiceError{Kind: FailureRetryable, Message: urlErr.Error()}
	}
	return &ServiceError{Kind: FailureRetryable, Message: err.Error()}
}

func classifyStatusError(resp *http.Response) *ServiceError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	snippet := strings.TrimSpace(string(body))

	kind := FailureTerminal
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		kind = FailureRetryable
	}
	return &ServiceError{
		Kind:       kind,
		StatusCode: resp.StatusCode,
		Message:    snippet,
	}
}

func normalizeEndpoint(endpoint string) string {
	trimmed := strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if trimmed == "" {
		return DefaultEndpoint
	}
	return trimmed
}

func chatCompletionsURL(endpoint string) string {
	if strings.HasSuffix(endpoint, "/chat/completions") {
		return endpoint
	}
	return endpoint + "/chat/completions"
}
