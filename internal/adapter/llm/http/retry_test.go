package http

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestExponentialBackoff_Bounds(t *testing.T) {
	config := RetryConfig{
		InitialBackoff: time.Second,
		MaxBackoff:     8 * time.Second,
		Multiplier:     2.0,
	}

	for attempt := 0; attempt < 10; attempt++ {
		got := ExponentialBackoff(attempt, config)
		if got < 0 {
			t.Fatalf("attempt %d: negative backoff %v", attempt, got)
		}
		if got > config.MaxBackoff {
			t.Fatalf("attempt %d: backoff %v exceeds max %v", attempt, got, config.MaxBackoff)
		}
	}
}

func TestExponentialBackoff_GrowsWithAttempts(t *testing.T) {
	config := RetryConfig{
		InitialBackoff: time.Second,
		MaxBackoff:     100 * time.Second,
		Multiplier:     2.0,
	}

	// With ±25% jitter, attempt 3 (8s base) always exceeds attempt 0 (1s base).
	early := ExponentialBackoff(0, config)
	late := ExponentialBackoff(3, config)
	if late <= early {
		t.Errorf("expected backoff growth, got attempt0=%v attempt3=%v", early, late)
	}
}

func TestShouldRetry(t *testing.T) {
	if ShouldRetry(nil) {
		t.Error("nil error must not retry")
	}
	if ShouldRetry(errors.New("plain")) {
		t.Error("untyped error must not retry")
	}
	if ShouldRetry(NewAuthenticationError("openai", "bad key")) {
		t.Error("auth error must never retry")
	}
	if !ShouldRetry(NewRateLimitError("openai", "slow down")) {
		t.Error("rate limit error must retry")
	}
	if !ShouldRetry(NewServiceUnavailableError("openai", "upstream")) {
		t.Error("5xx error must retry")
	}
	if !ShouldRetry(NewNetworkError("openai", "conn reset")) {
		t.Error("network error must retry")
	}
}

func TestRetryWithBackoff_SucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := RetryWithBackoff(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return NewRateLimitError("openai", "429")
		}
		return nil
	}, fastRetryConfig())

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetryWithBackoff_AuthFailsImmediately(t *testing.T) {
	attempts := 0
	err := RetryWithBackoff(context.Background(), func(ctx context.Context) error {
		attempts++
		return NewAuthenticationError("openai", "invalid key")
	}, fastRetryConfig())

	if !IsAuthError(err) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("auth errors must not be retried, got %d attempts", attempts)
	}
}

func TestRetryWithBackoff_ExhaustsRetries(t *testing.T) {
	attempts := 0
	err := RetryWithBackoff(context.Background(), func(ctx context.Context) error {
		attempts++
		return NewServiceUnavailableError("openai", "503")
	}, fastRetryConfig())

	var httpErr *Error
	if !errors.As(err, &httpErr) || httpErr.Type != ErrTypeServiceUnavailable {
		t.Fatalf("expected final service error, got %v", err)
	}
	if attempts != 4 {
		t.Errorf("expected initial attempt + 3 retries, got %d", attempts)
	}
}

func TestRetryWithBackoff_HonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := RetryWithBackoff(ctx, func(ctx context.Context) error {
		attempts++
		cancel()
		return NewRateLimitError("openai", "429")
	}, fastRetryConfig())

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected one attempt before cancellation, got %d", attempts)
	}
}

func TestErrorIs_MatchesOnType(t *testing.T) {
	err := NewRateLimitError("openai", "a")
	if !errors.Is(err, &Error{Type: ErrTypeRateLimit}) {
		t.Error("expected type-based matching")
	}
	if errors.Is(err, &Error{Type: ErrTypeTimeout}) {
		t.Error("different types must not match")
	}
}

func TestRedactAPIKey(t *testing.T) {
	if got := RedactAPIKey("sk-abcdef123456"); got != "[REDACTED-3456]" {
		t.Errorf("unexpected redaction: %s", got)
	}
	if got := RedactAPIKey("abc"); got != "[REDACTED]" {
		t.Errorf("short keys must be fully redacted, got %s", got)
	}
}

func TestRedactURLSecrets(t *testing.T) {
	in := `request to https://api.example.com/v1?api_key=secret123&page=2 failed`
	got := RedactURLSecrets(in)
	if strings.Contains(got, "secret123") {
		t.Errorf("secret leaked: %s", got)
	}
	if !strings.Contains(got, "api_key=[REDACTED]") {
		t.Errorf("expected redaction marker: %s", got)
	}
	if !strings.Contains(got, "page=2") {
		t.Errorf("non-secret params must survive: %s", got)
	}
}

func TestTruncateForLogging(t *testing.T) {
	short := "short response"
	if TruncateForLogging(short) != short {
		t.Error("short responses must pass through")
	}

	long := make([]byte, MaxLoggedResponseLength+100)
	for i := range long {
		long[i] = 'x'
	}
	got := TruncateForLogging(string(long))
	if len(got) >= len(long) {
		t.Error("long responses must be truncated")
	}
}
