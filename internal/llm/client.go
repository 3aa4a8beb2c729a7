package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Client sends transcripts to a chat-completion API for refinement
type Client struct {
	config     Config
	httpClient *http.Client

	// Statistics
	totalRequests   uint64
	successRequests uint64
	failedRequests  uint64
	totalRetries    uint64
	avgResponseTime time.Duration

	mu sync.RWMutex
}

// Config contains refinement client configuration
type Config struct {
	Endpoint   string
	APIKey     string
	Model      string
	Prompt     string
	Timeout    time.Duration
	MaxRetries int
}

// DefaultPrompt is used when the configuration does not override it
const DefaultPrompt = "Clean up this dictated text. Fix grammar and punctuation " +
	"without changing the meaning. Preserve any markdown formatting. " +
	"Return only the cleaned text."

// chatRequest is the chat-completion request payload
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is the chat-completion response payload
type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// ClientStats represents client statistics
type ClientStats struct {
	TotalRequests   uint64        `json:"total_requests"`
	SuccessRequests uint64        `json:"success_requests"`
	FailedRequests  uint64        `json:"failed_requests"`
	SuccessRate     float64       `json:"success_rate"`
	TotalRetries    uint64        `json:"total_retries"`
	AvgResponseTime time.Duration `json:"avg_response_time"`
}

// NewClient creates a new refinement client
func NewClient(config Config) (*Client, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}

	if config.Model == "" {
		return nil, fmt.Errorf("model cannot be empty")
	}

	if config.Prompt == "" {
		config.Prompt = DefaultPrompt
	}

	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	if config.MaxRetries < 0 {
		config.MaxRetries = 3
	}

	httpClient := &http.Client{
		Timeout: config.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
	}, nil
}

// Refine sends a transcript through the completion API and returns the
// cleaned text. The caller should fall back to the input on error.
func (c *Client) Refine(ctx context.Context, transcript string) (string, error) {
	if strings.TrimSpace(transcript) == "" {
		return transcript, nil
	}

	startTime := time.Now()
	c.incrementTotalRequests()

	var lastErr error

	// Retry loop with exponential backoff
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			c.incrementTotalRetries()

			backoffTime := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			if backoffTime > 30*time.Second {
				backoffTime = 30 * time.Second
			}

			select {
			case <-time.After(backoffTime):
			case <-ctx.Done():
				c.incrementFailedRequests()
				return "", ctx.Err()
			}
		}

		refined, err := c.doRequest(ctx, transcript)
		if err == nil {
			c.incrementSuccessRequests()
			c.updateAvgResponseTime(time.Since(startTime))
			return refined, nil
		}

		lastErr = err

		if !isRetryableError(err) {
			break
		}
	}

	c.incrementFailedRequests()
	return "", fmt.Errorf("refinement failed after %d attempts: %w", c.config.MaxRetries+1, lastErr)
}

// doRequest performs a single completion API request
func (c *Client) doRequest(ctx context.Context, transcript string) (string, error) {
	payload := chatRequest{
		Model: c.config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: c.config.Prompt},
			{Role: "user", Content: transcript},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", uuid.NewString())
	if c.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &requestError{statusCode: 0, err: fmt.Errorf("HTTP request failed: %w", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &requestError{
			statusCode: resp.StatusCode,
			err:        fmt.Errorf("HTTP error %d: %s", resp.StatusCode, string(respBody)),
		}
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("failed to parse response JSON: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("response contained no choices")
	}

	refined := strings.TrimSpace(chatResp.Choices[0].Message.Content)
	if refined == "" {
		return "", fmt.Errorf("response contained empty text")
	}

	return refined, nil
}

// requestError carries the HTTP status so retry decisions can inspect it
type requestError struct {
	statusCode int
	err        error
}

func (e *requestError) Error() string {
	return e.err.Error()
}

func (e *requestError) Unwrap() error {
	return e.err
}

// isRetryableError reports whether a failed request is worth retrying.
// Network failures and server-side errors are; client errors such as bad
// credentials or a rejected payload are not.
func isRetryableError(err error) bool {
	var reqErr *requestError
	if !errors.As(err, &reqErr) {
		return false
	}

	if reqErr.statusCode == 0 {
		return true // Transport-level failure
	}
	if reqErr.statusCode == http.StatusTooManyRequests {
		return true
	}
	return reqErr.statusCode >= 500
}

// GetStats returns current client statistics
func (c *Client) GetStats() ClientStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var successRate float64
	if c.totalRequests > 0 {
		successRate = float64(c.successRequests) / float64(c.totalRequests) * 100
	}

	return ClientStats{
		TotalRequests:   c.totalRequests,
		SuccessRequests: c.successRequests,
		FailedRequests:  c.failedRequests,
		SuccessRate:     successRate,
		TotalRetries:    c.totalRetries,
		AvgResponseTime: c.avgResponseTime,
	}
}

func (c *Client) incrementTotalRequests() {
	c.mu.Lock()
	c.totalRequests++
	c.mu.Unlock()
}

func (c *Client) incrementSuccessRequests() {
	c.mu.Lock()
	c.successRequests++
	c.mu.Unlock()
}

func (c *Client) incrementFailedRequests() {
	c.mu.Lock()
	c.failedRequests++
	c.mu.Unlock()
}

func (c *Client) incrementTotalRetries() {
	c.mu.Lock()
	c.totalRetries++
	c.mu.Unlock()
}

func (c *Client) updateAvgResponseTime(duration time.Duration) {
	c.mu.Lock()
	if c.avgResponseTime == 0 {
		c.avgResponseTime = duration
	} else {
		c.avgResponseTime = (c.avgResponseTime + duration) / 2
	}
	c.mu.Unlock()
}
