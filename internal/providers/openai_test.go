package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const chatCompletionJSON = `{
	"id": "chatcmpl-1",
	"object": "chat.completion",
	"created": 1700000000,
	"model": "served-model",
	"choices": [{
		"index": 0,
		"message": {"role": "assistant", "content": %q},
		"finish_reason": "stop"
	}],
	"usage": {"prompt_tokens": 12, "completion_tokens": 5, "total_tokens": 17}
}`

func newChatServer(t *testing.T, content string, captured *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/chat/completions"):
			if captured != nil {
				body := map[string]any{}
				if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
					t.Errorf("decode request: %v", err)
				}
				*captured = body
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(strings.Replace(chatCompletionJSON, "%q", jsonString(content), 1)))
		case strings.HasSuffix(r.URL.Path, "/models"):
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"object":"list","data":[{"id":"served-model","object":"model","created":1,"owned_by":"local"}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
}

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestOpenAIClient_Chat(t *testing.T) {
	t.Run("sends request and maps response", func(t *testing.T) {
		var captured map[string]any
		srv := newChatServer(t, "hello there", &captured)
		defer srv.Close()

		c := NewOpenAIClient(OpenAIConfig{Name: "local", BaseURL: srv.URL, DefaultModel: "llama", MaxRetries: -1})
		greedy := 0.0
		result, err := c.Chat(context.Background(), &ChatRequest{
			Messages:    SystemUser("system prompt", "user prompt"),
			Temperature: &greedy,
			MaxTokens:   2000,
		})
		if err != nil {
			t.Fatalf("Chat() error = %v", err)
		}
		if !result.Success || result.Content != "hello there" {
			t.Errorf("result = %+v", result)
		}
		if result.Provider != "local" {
			t.Errorf("Provider = %q, want local", result.Provider)
		}
		if result.ModelUsed != "served-model" {
			t.Errorf("ModelUsed = %q, want served-model", result.ModelUsed)
		}
		if result.PromptTokens != 12 || result.CompletionTokens != 5 || result.TotalTokens != 17 {
			t.Errorf("tokens = %d/%d/%d", result.PromptTokens, result.CompletionTokens, result.TotalTokens)
		}
		if result.RequestID == "" {
			t.Error("RequestID should be generated")
		}

		if captured["model"] != "llama" {
			t.Errorf("request model = %v, want llama", captured["model"])
		}
		if captured["max_tokens"] != float64(2000) {
			t.Errorf("request max_tokens = %v, want 2000", captured["max_tokens"])
		}
		if temp, ok := captured["temperature"]; !ok || temp != float64(0) {
			t.Errorf("request temperature = %v (sent %v), want an explicit 0", temp, ok)
		}
		msgs, _ := captured["messages"].([]any)
		if len(msgs) != 2 {
			t.Fatalf("request messages = %v", captured["messages"])
		}
		if first, _ := msgs[0].(map[string]any); first["role"] != "system" {
			t.Errorf("first message role = %v, want system", first["role"])
		}
	})

	t.Run("validates structured output", func(t *testing.T) {
		srv := newChatServer(t, "```json\n[{\"quantity\":2}]\n```", nil)
		defer srv.Close()

		c := NewOpenAIClient(OpenAIConfig{BaseURL: srv.URL, MaxRetries: -1})
		schema := json.RawMessage(`{"type":"array","items":{"type":"object","required":["quantity"]}}`)
		result, err := c.Chat(context.Background(), &ChatRequest{
			Messages:       SystemUser("", "x"),
			ResponseFormat: &ResponseFormat{Type: "json_schema", JSONSchema: schema},
		})
		if err != nil {
			t.Fatalf("Chat() error = %v", err)
		}
		if string(result.ParsedJSON) != `[{"quantity":2}]` {
			t.Errorf("ParsedJSON = %s", result.ParsedJSON)
		}

		bad := json.RawMessage(`{"type":"object"}`)
		if _, err := c.Chat(context.Background(), &ChatRequest{
			Messages:       SystemUser("", "x"),
			ResponseFormat: &ResponseFormat{Type: "json_schema", JSONSchema: bad},
		}); err == nil {
			t.Error("Chat() expected schema mismatch error")
		}
	})

	t.Run("maps rate limit", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "3")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit"}}`))
		}))
		defer srv.Close()

		c := NewOpenAIClient(OpenAIConfig{BaseURL: srv.URL, MaxRetries: -1})
		result, err := c.Chat(context.Background(), &ChatRequest{Messages: SystemUser("", "x")})
		if !IsRateLimitError(err) {
			t.Fatalf("Chat() error = %v, want RateLimitError", err)
		}
		if result.ErrorType != "rate_limited" {
			t.Errorf("ErrorType = %q, want rate_limited", result.ErrorType)
		}
		if status := c.RateLimiterStatus(); status.LastThrottle.IsZero() {
			t.Error("limiter should record the throttle")
		}
	})

	t.Run("rejects empty request", func(t *testing.T) {
		c := NewOpenAIClient(OpenAIConfig{})
		if _, err := c.Chat(context.Background(), &ChatRequest{}); err == nil {
			t.Error("Chat() expected error for empty messages")
		}
	})

	t.Run("request timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}))
		defer srv.Close()

		c := NewOpenAIClient(OpenAIConfig{BaseURL: srv.URL, MaxRetries: -1})
		start := time.Now()
		_, err := c.Chat(context.Background(), &ChatRequest{
			Messages: SystemUser("", "x"),
			Timeout:  50 * time.Millisecond,
		})
		if err == nil {
			t.Fatal("Chat() expected timeout error")
		}
		if time.Since(start) > time.Second {
			t.Errorf("timeout not honored, took %v", time.Since(start))
		}
	})
}

func TestOpenAIClient_HealthCheck(t *testing.T) {
	srv := newChatServer(t, "", nil)
	defer srv.Close()

	c := NewOpenAIClient(OpenAIConfig{BaseURL: srv.URL, MaxRetries: -1})
	if err := c.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck() error = %v", err)
	}

	down := NewOpenAIClient(OpenAIConfig{BaseURL: "http://127.0.0.1:1", MaxRetries: -1, Timeout: time.Second})
	if err := down.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() expected error for unreachable backend")
	}
}

func TestOpenAIClient_Defaults(t *testing.T) {
	c := NewOpenAIClient(OpenAIConfig{})
	if c.Name() != OpenAIName {
		t.Errorf("Name() = %q, want %q", c.Name(), OpenAIName)
	}
	if c.baseURL != OpenAIBaseURL {
		t.Errorf("baseURL = %q", c.baseURL)
	}
	if c.rpm != DefaultRequestsPerMinute {
		t.Errorf("rpm = %d", c.rpm)
	}
	if c.maxRetries != 2 {
		t.Errorf("maxRetries = %d, want 2", c.maxRetries)
	}
}

func TestOpenAIIntegration(t *testing.T) {
	cfg := LoadTestConfig()
	if !cfg.HasLLM() {
		t.Skip("QUOTIENT_TEST_LLM_BASE_URL or OPENAI_API_KEY not set")
	}

	c := cfg.NewClient()
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	result, err := c.Chat(ctx, &ChatRequest{
		Messages:  SystemUser("Answer with one word.", "Say hello."),
		MaxTokens: 16,
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if strings.TrimSpace(result.Content) == "" {
		t.Error("expected non-empty content")
	}
}
