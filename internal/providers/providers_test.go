package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func userRequest(content string) *ChatRequest {
	return &ChatRequest{Model: "test-model", Messages: SystemUser("", content)}
}

func TestMockClient(t *testing.T) {
	t.Run("chat", func(t *testing.T) {
		c := NewMockClient()
		c.ResponseText = "hello world"

		result, err := c.Chat(context.Background(), userRequest("test"))
		if err != nil {
			t.Fatalf("Chat() error = %v", err)
		}
		if !result.Success {
			t.Errorf("Success = false, want true")
		}
		if result.Content != "hello world" {
			t.Errorf("Content = %q, want %q", result.Content, "hello world")
		}
		if c.RequestCount() != 1 {
			t.Errorf("RequestCount = %d, want 1", c.RequestCount())
		}
		if c.LastRequest() == nil || c.LastRequest().Messages[0].Content != "test" {
			t.Errorf("LastRequest() = %+v", c.LastRequest())
		}
	})

	t.Run("response queue", func(t *testing.T) {
		c := NewMockClient()
		c.Responses = []string{"first", "second"}

		for _, want := range []string{"first", "second", "second"} {
			result, err := c.Chat(context.Background(), userRequest("x"))
			if err != nil {
				t.Fatalf("Chat() error = %v", err)
			}
			if result.Content != want {
				t.Errorf("Content = %q, want %q", result.Content, want)
			}
		}
	})

	t.Run("handler", func(t *testing.T) {
		c := NewMockClient()
		c.Handler = func(req *ChatRequest) (string, error) {
			return "echo: " + req.Messages[len(req.Messages)-1].Content, nil
		}

		result, err := c.Chat(context.Background(), userRequest("ping"))
		if err != nil {
			t.Fatalf("Chat() error = %v", err)
		}
		if result.Content != "echo: ping" {
			t.Errorf("Content = %q", result.Content)
		}

		c.Handler = func(*ChatRequest) (string, error) { return "", fmt.Errorf("boom") }
		if _, err := c.Chat(context.Background(), userRequest("ping")); err == nil {
			t.Error("expected handler error")
		}
	})

	t.Run("structured output", func(t *testing.T) {
		c := NewMockClient()
		c.ResponseJSON = json.RawMessage(`{"key": "value"}`)

		req := userRequest("test")
		req.ResponseFormat = &ResponseFormat{Type: "json_schema"}
		result, err := c.Chat(context.Background(), req)
		if err != nil {
			t.Fatalf("Chat() error = %v", err)
		}
		if result.ParsedJSON == nil {
			t.Error("expected ParsedJSON")
		}
	})

	t.Run("failure", func(t *testing.T) {
		c := NewMockClient()
		c.ShouldFail = true

		result, err := c.Chat(context.Background(), userRequest("x"))
		if err == nil {
			t.Error("expected error, got nil")
		}
		if result.Success {
			t.Error("expected Success = false")
		}
		if err := c.HealthCheck(context.Background()); err == nil {
			t.Error("HealthCheck() expected error for failing mock")
		}
	})

	t.Run("fail after N", func(t *testing.T) {
		c := NewMockClient()
		c.FailAfter = 2

		for i := 0; i < 2; i++ {
			if _, err := c.Chat(context.Background(), userRequest("x")); err != nil {
				t.Fatalf("request %d should succeed: %v", i+1, err)
			}
		}
		if _, err := c.Chat(context.Background(), userRequest("x")); err == nil {
			t.Error("third request should fail")
		}
	})

	t.Run("respects cancellation", func(t *testing.T) {
		c := NewMockClient()
		c.Latency = 5 * time.Second

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := c.Chat(ctx, userRequest("x"))
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestSystemUser(t *testing.T) {
	msgs := SystemUser("be terse", "hello")
	if len(msgs) != 2 || msgs[0].Role != RoleSystem || msgs[1].Role != RoleUser {
		t.Errorf("SystemUser() = %+v", msgs)
	}
	if msgs := SystemUser("", "hello"); len(msgs) != 1 {
		t.Errorf("SystemUser() without system = %+v", msgs)
	}
}

func TestRateLimiter(t *testing.T) {
	t.Run("allows initial burst", func(t *testing.T) {
		limiter := NewRateLimiter(600)

		start := time.Now()
		for i := 0; i < 5; i++ {
			if err := limiter.Wait(context.Background()); err != nil {
				t.Fatalf("request %d failed: %v", i, err)
			}
		}
		if elapsed := time.Since(start); elapsed > time.Second {
			t.Errorf("took too long: %v", elapsed)
		}
	})

	t.Run("try consume drains bucket", func(t *testing.T) {
		limiter := NewRateLimiter(2)
		now := time.Now()
		limiter.now = func() time.Time { return now }

		if !limiter.TryConsume() || !limiter.TryConsume() {
			t.Fatal("first two TryConsume calls should succeed")
		}
		if limiter.TryConsume() {
			t.Error("TryConsume should fail on an empty bucket")
		}

		now = now.Add(30 * time.Second)
		if !limiter.TryConsume() {
			t.Error("TryConsume should succeed after refill")
		}
	})

	t.Run("status", func(t *testing.T) {
		limiter := NewRateLimiter(60)

		status := limiter.Status()
		if status.TokensLimit != 60 {
			t.Errorf("TokensLimit = %d, want 60", status.TokensLimit)
		}
		if status.TokensAvailable <= 0 {
			t.Error("expected positive tokens available")
		}
	})

	t.Run("default rate", func(t *testing.T) {
		if got := NewRateLimiter(0).Status().TokensLimit; got != DefaultRequestsPerMinute {
			t.Errorf("TokensLimit = %d, want %d", got, DefaultRequestsPerMinute)
		}
	})

	t.Run("throttle pauses bucket", func(t *testing.T) {
		limiter := NewRateLimiter(600)
		now := time.Now()
		limiter.now = func() time.Time { return now }

		limiter.RecordThrottle(10 * time.Second)

		status := limiter.Status()
		if status.LastThrottle.IsZero() {
			t.Error("LastThrottle should be set")
		}
		if status.TimeUntilToken != 10*time.Second {
			t.Errorf("TimeUntilToken = %v, want 10s", status.TimeUntilToken)
		}
		if limiter.TryConsume() {
			t.Error("TryConsume should fail while paused")
		}

		now = now.Add(11 * time.Second)
		if !limiter.TryConsume() {
			t.Error("TryConsume should succeed after the pause")
		}
	})

	t.Run("respects cancellation", func(t *testing.T) {
		limiter := NewRateLimiter(1)
		if err := limiter.Wait(context.Background()); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if err := limiter.Wait(ctx); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("concurrent requests", func(t *testing.T) {
		limiter := NewRateLimiter(6000)

		var wg sync.WaitGroup
		var failures atomic.Int32
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := limiter.Wait(context.Background()); err != nil {
					failures.Add(1)
				}
			}()
		}
		wg.Wait()

		if failures.Load() > 0 {
			t.Errorf("had %d errors", failures.Load())
		}
		if status := limiter.Status(); status.TotalConsumed != 10 {
			t.Errorf("TotalConsumed = %d, want 10", status.TotalConsumed)
		}
	})
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", 0},
		{"2", 2 * time.Second},
		{"0.5", 500 * time.Millisecond},
		{"-1", 0},
		{"soon", 0},
	}
	for _, tt := range tests {
		if got := parseRetryAfter(tt.in); got != tt.want {
			t.Errorf("parseRetryAfter(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	future := time.Now().Add(time.Hour).UTC().Format(http.TimeFormat)
	if got := parseRetryAfter(future); got <= 0 {
		t.Errorf("parseRetryAfter(http date) = %v, want positive", got)
	}
}

func TestRateLimitError(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &RateLimitError{Message: "slow down", RetryAfter: time.Second, StatusCode: 429})
	if !IsRateLimitError(err) {
		t.Error("IsRateLimitError() = false for wrapped RateLimitError")
	}
	if IsRateLimitError(fmt.Errorf("other")) {
		t.Error("IsRateLimitError() = true for plain error")
	}
}

func TestTestConfig(t *testing.T) {
	t.Run("local server", func(t *testing.T) {
		t.Setenv("QUOTIENT_TEST_LLM_BASE_URL", "http://127.0.0.1:8080/v1")
		t.Setenv("QUOTIENT_TEST_LLM_MODEL", "llama")
		t.Setenv("OPENAI_API_KEY", "")

		cfg := LoadTestConfig()
		if !cfg.HasLLM() {
			t.Fatal("HasLLM() = false with base URL set")
		}
		reg := cfg.ToRegistryConfig()
		local, ok := reg.LLMProviders["local"]
		if !ok || local.Type != TypeOpenAICompatible {
			t.Errorf("LLMProviders = %+v", reg.LLMProviders)
		}
		if c := cfg.NewClient(); c == nil || c.Model() != "llama" {
			t.Errorf("NewClient() = %+v", c)
		}
	})

	t.Run("unconfigured", func(t *testing.T) {
		t.Setenv("QUOTIENT_TEST_LLM_BASE_URL", "")
		t.Setenv("OPENAI_API_KEY", "")

		cfg := LoadTestConfig()
		if cfg.HasLLM() {
			t.Error("HasLLM() = true without config")
		}
		if cfg.NewClient() != nil {
			t.Error("NewClient() should be nil without config")
		}
		if reg := cfg.ToRegistryConfig(); reg.LLMProviders == nil || len(reg.LLMProviders) != 0 {
			t.Errorf("LLMProviders = %+v, want empty map", reg.LLMProviders)
		}
	})
}
