// Package openai implements the model client against any OpenAI-compatible
// chat/completions endpoint.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	llmhttp "github.com/bmartin/prguard/internal/adapter/llm/http"
)

const (
	defaultBaseURL = "https://api.openai.com"
	defaultTimeout = 90 * time.Second
	providerName   = "openai"

	systemPrompt = "You are a security and code-quality review assistant. " +
		"Analyze the supplied diff and respond with findings in the exact JSON format requested."
)

// Client calls an OpenAI-compatible completion endpoint. Each call is
// independent; concurrent calls for different chunks are safe.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	retryConf  llmhttp.RetryConfig
	logger     llmhttp.Logger
	maxTokens  int
}

// Options configures optional client behavior.
type Options struct {
	BaseURL   string
	Timeout   time.Duration
	Retry     *llmhttp.RetryConfig
	Logger    llmhttp.Logger
	MaxTokens int
}

// NewClient creates a model client for the given credential and model ID.
func NewClient(apiKey, model string, opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	retryConf := llmhttp.DefaultRetryConfig()
	if opts.Retry != nil {
		retryConf = *opts.Retry
	}
	return &Client{
		apiKey:     apiKey,
		model:      model,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		retryConf:  retryConf,
		logger:     opts.Logger,
		maxTokens:  opts.MaxTokens,
	}
}

// Review sends a review prompt and returns the raw model response text.
// Rate-limit and transient server/network failures are retried with
// exponential backoff; authentication errors fail immediately.
func (c *Client) Review(ctx context.Context, prompt string) (string, error) {
	reqBody := ChatCompletionRequest{
		Model: c.model,
		Messages: []Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.0,
		MaxTokens:   c.maxTokens,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := c.baseURL + "/v1/chat/completions"
	started := time.Now()

	var text string
	operation := func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return c.classifyTransportError(ctx, err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return llmhttp.NewNetworkError(providerName, fmt.Sprintf("read response: %v", err))
		}

		if resp.StatusCode != http.StatusOK {
			return c.handleErrorResponse(resp.StatusCode, body)
		}

		var chatResp ChatCompletionResponse
		if err := json.Unmarshal(body, &chatResp); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
		if len(chatResp.Choices) == 0 {
			return llmhttp.NewServiceUnavailableError(providerName, "no choices in response")
		}

		text = chatResp.Choices[0].Message.Content

		if c.logger != nil {
			c.logger.LogInfo(ctx, "model response received", map[string]interface{}{
				"provider":   providerName,
				"model":      c.model,
				"durationMs": time.Since(started).Milliseconds(),
				"tokensIn":   chatResp.Usage.PromptTokens,
				"tokensOut":  chatResp.Usage.CompletionTokens,
				"preview":    llmhttp.TruncateForLogging(text),
			})
		}
		return nil
	}

	if err := llmhttp.RetryWithBackoff(ctx, operation, c.retryConf); err != nil {
		if c.logger != nil {
			c.logger.LogError(ctx, "model call failed", map[string]interface{}{
				"provider": providerName,
				"model":    c.model,
				"error":    llmhttp.RedactURLSecrets(err.Error()),
			})
		}
		return "", err
	}
	return text, nil
}

// classifyTransportError maps a transport failure onto the error taxonomy:
// deadline expiry is a timeout, everything else a network error.
func (c *Client) classifyTransportError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return llmhttp.NewTimeoutError(providerName, "request deadline exceeded")
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return llmhttp.NewTimeoutError(providerName, err.Error())
	}
	return llmhttp.NewNetworkError(providerName, err.Error())
}

// handleErrorResponse converts HTTP error responses to typed errors.
func (c *Client) handleErrorResponse(statusCode int, body []byte) error {
	message := fmt.Sprintf("HTTP %d", statusCode)

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
	} else if len(body) > 0 && len(body) < 200 {
		message = string(body)
	}

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return llmhttp.NewAuthenticationError(providerName, message)
	case http.StatusTooManyRequests:
		return llmhttp.NewRateLimitError(providerName, message)
	case http.StatusBadRequest:
		return llmhttp.NewInvalidRequestError(providerName, message)
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return llmhttp.NewServiceUnavailableError(providerName, message)
	default:
		return &llmhttp.Error{
			Type:       llmhttp.ErrTypeUnknown,
			Message:    message,
			StatusCode: statusCode,
			Retryable:  false,
			Provider:   providerName,
		}
	}
}
