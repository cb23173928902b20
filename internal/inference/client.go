// Package inference wraps the chat-completions call with the retry, backoff
// and classification policy the pipeline relies on. Retries re-send the same
// prompt verbatim: prompts are deterministic, so a retry is always safe.
package inference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/IgnacyBartnik/LLM-PDF-extractor/internal/common"
	"github.com/IgnacyBartnik/LLM-PDF-extractor/internal/prompt"
)

// RawResponse is the unparsed model output of a successful call.
type RawResponse struct {
	Content    string
	Model      string
	Attempts   int
	TokensUsed int
}

// Caller is the capability the orchestrator depends on; tests stub it.
type Caller interface {
	Call(ctx context.Context, p prompt.Prompt, model string, temperature float32) (RawResponse, error)
}

// Config carries credentials plus the whole retry/backoff policy.
type Config struct {
	APIKey  string
	BaseURL string // empty means the public endpoint

	MaxAttempts       int           // total attempts, not extra retries
	AttemptTimeout    time.Duration // per attempt, independent of the caller's deadline
	BackoffBase       time.Duration
	BackoffCap        time.Duration
	MaxInFlight       int64   // bound on concurrent calls across all pipeline runs
	RequestsPerSecond float64 // 0 disables rate smoothing
}

// Client is safe for concurrent use; the semaphore and limiter are the only
// state shared between pipeline runs.
type Client struct {
	api     *openai.Client
	cfg     Config
	sem     *semaphore.Weighted
	limiter *rate.Limiter
	log     *slog.Logger

	// jitter spreads retry wakeups; swapped out in tests.
	jitter func(d time.Duration) time.Duration
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 3
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = 45 * time.Second
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}
	if cfg.BackoffCap < cfg.BackoffBase {
		cfg.BackoffCap = 30 * time.Second
	}
	if cfg.MaxInFlight < 1 {
		cfg.MaxInFlight = 4
	}

	cc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		cc.BaseURL = cfg.BaseURL
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Client{
		api:     openai.NewClientWithConfig(cc),
		cfg:     cfg,
		sem:     semaphore.NewWeighted(cfg.MaxInFlight),
		limiter: limiter,
		log:     logger,
		jitter: func(d time.Duration) time.Duration {
			if d <= 1 {
				return d
			}
			return d/2 + time.Duration(rand.Int63n(int64(d/2)))
		},
	}
}

// callState models the retry loop explicitly.
type callState int

const (
	stateAttempting callState = iota
	stateSucceeded
	stateFailed
	stateCancelled
)

// Call dispatches the prompt, retrying transient failures with exponential
// backoff and jitter. Attempts are strictly sequential; the caller's context
// aborts backoff sleeps promptly.
func (c *Client) Call(ctx context.Context, p prompt.Prompt, model string, temperature float32) (RawResponse, error) {
	rid := common.RequestIDFromContext(ctx)
	if rid == "" {
		rid = uuid.New().String()
	}
	start := time.Now()

	if err := c.sem.Acquire(ctx, 1); err != nil {
		return RawResponse{}, fmt.Errorf("inference call cancelled while queued: %w", err)
	}
	defer c.sem.Release(1)

	c.log.Info("inference.call.start",
		"req_id", rid,
		"model", model,
		"temperature", temperature,
		"prompt_len", len(p.User),
		"truncated", p.Truncated,
	)

	state := stateAttempting
	attempts := 0
	var lastKind ErrorKind
	var lastErr error

	for state == stateAttempting {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				state = stateCancelled
				lastErr = err
				break
			}
		}

		attempts++
		resp, err := c.attempt(ctx, p, model, temperature)
		if err == nil {
			state = stateSucceeded
			resp.Attempts = attempts
			c.log.Info("inference.call.ok",
				"req_id", rid,
				"attempts", attempts,
				"tokens", resp.TokensUsed,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return resp, nil
		}

		if ctx.Err() != nil {
			state = stateCancelled
			lastErr = ctx.Err()
			break
		}

		kind, transient := classify(err)
		lastKind, lastErr = kind, err

		if !transient || attempts >= c.cfg.MaxAttempts {
			state = stateFailed
			break
		}

		delay := c.jitter(BackoffDelay(attempts, c.cfg.BackoffBase, c.cfg.BackoffCap))
		c.log.Warn("inference.call.retry",
			"req_id", rid,
			"attempt", attempts,
			"kind", string(kind),
			"backoff_ms", delay.Milliseconds(),
			"error", err,
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			state = stateCancelled
			lastErr = ctx.Err()
		case <-timer.C:
		}
	}

	switch state {
	case stateCancelled:
		c.log.Warn("inference.call.cancelled",
			"req_id", rid,
			"attempts", attempts,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return RawResponse{Attempts: attempts}, fmt.Errorf("inference call cancelled after %d attempt(s): %w", attempts, lastErr)
	default:
		ierr := &Error{Kind: lastKind, Attempts: attempts, LastMessage: lastErr.Error()}
		c.log.Error("inference.call.failed",
			"req_id", rid,
			"kind", string(lastKind),
			"attempts", attempts,
			"error", lastErr,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return RawResponse{Attempts: attempts}, ierr
	}
}

func (c *Client) attempt(ctx context.Context, p prompt.Prompt, model string, temperature float32) (RawResponse, error) {
	actx, cancel := context.WithTimeout(ctx, c.cfg.AttemptTimeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(actx, openai.ChatCompletionRequest{
		Model:       model,
		Temperature: temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: p.System},
			{Role: openai.ChatMessageRoleUser, Content: p.User},
		},
	})
	if err != nil {
		return RawResponse{}, err
	}
	if len(resp.Choices) == 0 {
		return RawResponse{}, fmt.Errorf("no choices in completion response")
	}
	return RawResponse{
		Content:    strings.TrimSpace(resp.Choices[0].Message.Content),
		Model:      resp.Model,
		TokensUsed: resp.Usage.TotalTokens,
	}, nil
}

// classify maps a transport/API error onto the taxonomy and decides whether
// a retry could plausibly succeed.
func classify(err error) (kind ErrorKind, transient bool) {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return classifyStatus(reqErr.HTTPStatusCode)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout, true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout, true
	}
	return KindUnknown, true
}

func classifyStatus(status int) (ErrorKind, bool) {
	switch {
	case status == 429:
		return KindRateLimited, true
	case status >= 500:
		return KindServiceError, true
	case status == 401 || status == 403:
		return KindAuthFailure, false
	default:
		// Malformed requests (400, 404, 422, ...) will not get better on retry.
		return KindUnknown, false
	}
}
