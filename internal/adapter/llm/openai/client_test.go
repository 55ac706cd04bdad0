package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	llmhttp "github.com/bmartin/prguard/internal/adapter/llm/http"
)

func fastRetry() *llmhttp.RetryConfig {
	return &llmhttp.RetryConfig{
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func completionBody(content string) string {
	resp := ChatCompletionResponse{Model: "gpt-4o"}
	resp.Choices = []struct {
		Index        int     `json:"index"`
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	}{
		{Message: Message{Role: "assistant", Content: content}, FinishReason: "stop"},
	}
	data, _ := json.Marshal(resp)
	return string(data)
}

func TestReview_Success(t *testing.T) {
	var gotReq ChatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Write([]byte(completionBody(`{"findings":[]}`)))
	}))
	defer server.Close()

	client := NewClient("test-key", "gpt-4o", Options{BaseURL: server.URL, Retry: fastRetry()})
	text, err := client.Review(context.Background(), "review this diff")
	require.NoError(t, err)
	assert.Equal(t, `{"findings":[]}`, text)

	assert.Equal(t, "gpt-4o", gotReq.Model)
	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, "system", gotReq.Messages[0].Role)
	assert.Equal(t, "review this diff", gotReq.Messages[1].Content)
	assert.Zero(t, gotReq.Temperature)
}

// captureLogger records log fields for assertions.
type captureLogger struct {
	infoFields []map[string]interface{}
}

func (l *captureLogger) LogInfo(_ context.Context, _ string, fields map[string]interface{}) {
	l.infoFields = append(l.infoFields, fields)
}
func (l *captureLogger) LogWarning(context.Context, string, map[string]interface{}) {}
func (l *captureLogger) LogError(context.Context, string, map[string]interface{})   {}

func TestReview_LogsTruncatedResponsePreview(t *testing.T) {
	long := make([]byte, 4*llmhttp.MaxLoggedResponseLength)
	for i := range long {
		long[i] = 'x'
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(completionBody(string(long))))
	}))
	defer server.Close()

	logger := &captureLogger{}
	client := NewClient("test-key", "gpt-4o", Options{BaseURL: server.URL, Retry: fastRetry(), Logger: logger})
	text, err := client.Review(context.Background(), "review this diff")
	require.NoError(t, err)
	assert.Len(t, text, 4*llmhttp.MaxLoggedResponseLength, "full response is returned untruncated")

	require.NotEmpty(t, logger.infoFields)
	preview, ok := logger.infoFields[len(logger.infoFields)-1]["preview"].(string)
	require.True(t, ok, "preview field missing from response log")
	assert.Less(t, len(preview), len(text))
	assert.Contains(t, preview, "[truncated")
}

func TestReview_AuthErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"Incorrect API key provided"}}`))
	}))
	defer server.Close()

	client := NewClient("bad-key", "gpt-4o", Options{BaseURL: server.URL, Retry: fastRetry()})
	_, err := client.Review(context.Background(), "prompt")

	require.Error(t, err)
	assert.True(t, llmhttp.IsAuthError(err))
	assert.Contains(t, err.Error(), "Incorrect API key")
	assert.Equal(t, int32(1), calls.Load(), "auth failures must not be retried")
}

func TestReview_RateLimitRetriedThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":{"message":"rate limited"}}`))
			return
		}
		w.Write([]byte(completionBody("ok")))
	}))
	defer server.Close()

	client := NewClient("key", "gpt-4o", Options{BaseURL: server.URL, Retry: fastRetry()})
	text, err := client.Review(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, int32(3), calls.Load())
}

func TestReview_ServerErrorExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient("key", "gpt-4o", Options{BaseURL: server.URL, Retry: fastRetry()})
	_, err := client.Review(context.Background(), "prompt")

	var httpErr *llmhttp.Error
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, llmhttp.ErrTypeServiceUnavailable, httpErr.Type)
	assert.Equal(t, int32(3), calls.Load(), "initial attempt + 2 retries")
}

func TestReview_EmptyChoicesIsServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"model":"gpt-4o","choices":[]}`))
	}))
	defer server.Close()

	client := NewClient("key", "gpt-4o", Options{
		BaseURL: server.URL,
		Retry:   &llmhttp.RetryConfig{MaxRetries: 0, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, Multiplier: 1},
	})
	_, err := client.Review(context.Background(), "prompt")

	var httpErr *llmhttp.Error
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, llmhttp.ErrTypeServiceUnavailable, httpErr.Type)
}

func TestReview_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(completionBody("late")))
	}))
	defer server.Close()

	client := NewClient("key", "gpt-4o", Options{BaseURL: server.URL, Retry: fastRetry()})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.Review(ctx, "prompt")
	require.Error(t, err)
}
