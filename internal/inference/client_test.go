package inference

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/IgnacyBartnik/LLM-PDF-extractor/internal/prompt"
)

func completionJSON(content string) []byte {
	resp := openai.ChatCompletionResponse{
		ID:     "chatcmpl-test",
		Object: "chat.completion",
		Model:  "gpt-4o-mini",
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: "assistant", Content: content}},
		},
		Usage: openai.Usage{TotalTokens: 42},
	}
	b, _ := json.Marshal(resp)
	return b
}

func newTestClient(t *testing.T, serverURL string, maxAttempts int) *Client {
	t.Helper()
	c := NewClient(Config{
		APIKey:         "test-key",
		BaseURL:        serverURL,
		MaxAttempts:    maxAttempts,
		AttemptTimeout: 2 * time.Second,
		BackoffBase:    time.Millisecond,
		BackoffCap:     2 * time.Millisecond,
		MaxInFlight:    2,
	}, nil)
	c.jitter = func(time.Duration) time.Duration { return 0 }
	return c
}

func testPrompt() prompt.Prompt {
	return prompt.Prompt{System: "sys", User: "user"}
}

func TestCallSuccess(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(completionJSON(`{"extracted_data":{}}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, 3)
	resp, err := c.Call(context.Background(), testPrompt(), "gpt-4o-mini", 0.1)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if resp.Content != `{"extracted_data":{}}` {
		t.Errorf("content = %q", resp.Content)
	}
	if resp.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", resp.Attempts)
	}
	if got := atomic.LoadInt32(&requests); got != 1 {
		t.Errorf("requests = %d, want 1", got)
	}
}

func TestCallRetriesExhausted(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": {"message": "boom", "type": "server_error"}}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, 3)
	_, err := c.Call(context.Background(), testPrompt(), "gpt-4o-mini", 0.1)

	var ierr *Error
	if !errors.As(err, &ierr) {
		t.Fatalf("expected *inference.Error, got %T: %v", err, err)
	}
	if ierr.Kind != KindServiceError {
		t.Errorf("kind = %s, want %s", ierr.Kind, KindServiceError)
	}
	if ierr.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", ierr.Attempts)
	}
	if got := atomic.LoadInt32(&requests); got != 3 {
		t.Errorf("requests = %d, want exactly 3", got)
	}
}

func TestCallAuthFailureNoRetry(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "bad key", "type": "invalid_request_error"}}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, 3)
	_, err := c.Call(context.Background(), testPrompt(), "gpt-4o-mini", 0.1)

	var ierr *Error
	if !errors.As(err, &ierr) {
		t.Fatalf("expected *inference.Error, got %T: %v", err, err)
	}
	if ierr.Kind != KindAuthFailure {
		t.Errorf("kind = %s, want %s", ierr.Kind, KindAuthFailure)
	}
	if got := atomic.LoadInt32(&requests); got != 1 {
		t.Errorf("requests = %d, want 1 (no retry on auth failure)", got)
	}
}

func TestCallRateLimitedThenRecovers(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&requests, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error": {"message": "slow down", "type": "rate_limit_error"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(completionJSON("ok"))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, 3)
	resp, err := c.Call(context.Background(), testPrompt(), "gpt-4o-mini", 0.1)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if resp.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", resp.Attempts)
	}
}

func TestCallTimeoutKind(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		_, _ = w.Write(completionJSON("too late"))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, 2)
	c.cfg.AttemptTimeout = 30 * time.Millisecond

	_, err := c.Call(context.Background(), testPrompt(), "gpt-4o-mini", 0.1)
	var ierr *Error
	if !errors.As(err, &ierr) {
		t.Fatalf("expected *inference.Error, got %T: %v", err, err)
	}
	if ierr.Kind != KindTimeout {
		t.Errorf("kind = %s, want %s", ierr.Kind, KindTimeout)
	}
	if ierr.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", ierr.Attempts)
	}
}

func TestCallCancelledDuringBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": {"message": "boom", "type": "server_error"}}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, 5)
	// large backoff so cancellation has to cut the sleep short
	c.cfg.BackoffBase = 10 * time.Second
	c.cfg.BackoffCap = 10 * time.Second
	c.jitter = func(d time.Duration) time.Duration { return d }

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := c.Call(ctx, testPrompt(), "gpt-4o-mini", 0.1)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("cancellation took %v, should abort the backoff sleep promptly", elapsed)
	}
}
