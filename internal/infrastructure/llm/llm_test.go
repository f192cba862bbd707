package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"

	"NewsPoster/internal/config"
	"NewsPoster/internal/ports"
)

func TestChatGPTClientComplete(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected auth header %q", got)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Content != "write a post" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"draft text"}}]}`))
	}))
	defer server.Close()

	c := NewChatGPTClient(config.GenerationConfig{Endpoint: server.URL, Model: "gpt-test", APIKey: "sk-test"})
	out, err := c.Complete(context.Background(), ports.CompletionRequest{Prompt: "write a post"})
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if out != "draft text" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestChatGPTClientErrorStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	c := NewChatGPTClient(config.GenerationConfig{Endpoint: server.URL, Model: "gpt-test", APIKey: "sk-test"})
	_, err := c.Complete(context.Background(), ports.CompletionRequest{Prompt: "x"})
	if err == nil || !strings.Contains(err.Error(), "rate limited") {
		t.Fatalf("expected status error with body, got %v", err)
	}
}

func TestChatGPTClientMisconfigured(t *testing.T) {
	t.Parallel()

	c := NewChatGPTClient(config.GenerationConfig{})
	if _, err := c.Complete(context.Background(), ports.CompletionRequest{Prompt: "x"}); err == nil {
		t.Fatalf("expected misconfiguration error")
	}
}

func TestAnthropicClientComplete(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-test",
			"content": [{"type": "text", "text": "judge reply"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 3, "output_tokens": 2}
		}`))
	}))
	defer server.Close()

	c := NewAnthropicClient(
		config.GenerationConfig{APIKey: "sk-ant", Model: "claude-test"},
		option.WithBaseURL(server.URL),
		option.WithMaxRetries(0),
	)
	out, err := c.Complete(context.Background(), ports.CompletionRequest{System: "s", Prompt: "p"})
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if out != "judge reply" {
		t.Fatalf("unexpected output %q", out)
	}
}

type countingCompleter struct {
	calls int
}

func (c *countingCompleter) Complete(context.Context, ports.CompletionRequest) (string, error) {
	c.calls++
	return "ok", nil
}

func TestLimitedHonoursContext(t *testing.T) {
	t.Parallel()

	next := &countingCompleter{}
	l := NewLimited(next, 1)

	if _, err := l.Complete(context.Background(), ports.CompletionRequest{}); err != nil {
		t.Fatalf("first call should pass: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := l.Complete(ctx, ports.CompletionRequest{})
	if err == nil {
		t.Fatalf("second call within the minute should be throttled")
	}
	if next.calls != 1 {
		t.Fatalf("throttled call must not reach the service, got %d calls", next.calls)
	}
}

func TestNewSelectsProvider(t *testing.T) {
	t.Parallel()

	if _, err := New(config.GenerationConfig{Provider: "openai"}); err == nil {
		t.Fatalf("missing key must fail")
	}
	if _, err := New(config.GenerationConfig{Provider: "cohere", APIKey: "k"}); err == nil {
		t.Fatalf("unknown provider must fail")
	}
	c, err := New(config.GenerationConfig{Provider: "anthropic", APIKey: "k", Model: "m"})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if _, ok := c.(*Limited); !ok {
		t.Fatalf("expected a rate limited completer, got %T", c)
	}
}
