package sweep

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Response is one answer from the verification service.
type Response struct {
	// RateLimited means the service refused the request for now; nothing
	// else in the response is meaningful.
	RateLimited bool

	// Verified is the service's positive verification flag.
	Verified bool

	// Messages is whatever message list the service returned.
	Messages []string
}

// Oracle performs a single verification round trip. An error means the
// request failed or the answer could not be parsed.
type Oracle interface {
	Verify(ctx context.Context, candidate string) (Response, error)
}

// OracleFunc adapts a function to the Oracle interface.
type OracleFunc func(ctx context.Context, candidate string) (Response, error)

func (f OracleFunc) Verify(ctx context.Context, candidate string) (Response, error) {
	return f(ctx, candidate)
}

// HTTPOption configures an HTTPOracle via functional options.
type HTTPOption func(*HTTPOracle)

// HTTPOracle posts {"input": candidate} as JSON to an endpoint and reads
// {"correct": bool, "messages": [...]} back (see parseReply). HTTP 429 is a
// rate limit.
type HTTPOracle struct {
	endpoint   string
	headers    http.Header
	httpClient *http.Client
}

// NewHTTPOracle creates an oracle client for the given endpoint.
func NewHTTPOracle(endpoint string, opts ...HTTPOption) *HTTPOracle {
	o := &HTTPOracle{
		endpoint: endpoint,
		headers:  http.Header{"Content-Type": []string{"application/json"}},
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithHeader adds a request header (e.g. an access badge).
func WithHeader(key, value string) HTTPOption {
	return func(o *HTTPOracle) { o.headers.Set(key, value) }
}

// WithRequestTimeout overrides the default 30s per-request timeout.
func WithRequestTimeout(d time.Duration) HTTPOption {
	return func(o *HTTPOracle) { o.httpClient.Timeout = d }
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(o *HTTPOracle) { o.httpClient = c }
}

// Endpoint returns the configured URL.
func (o *HTTPOracle) Endpoint() string {
	return o.endpoint
}

type oracleRequest struct {
	Input string `json:"input"`
}

// parseReply reads a reply body. Anything but a JSON object is an error.
// Only the literal true in "correct" verifies; other values of any type
// mean incorrect. Non-string entries of "messages" are dropped.
func parseReply(data []byte) (Response, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Response{}, err
	}
	if fields == nil {
		return Response{}, fmt.Errorf("reply is null, not an object")
	}

	resp := Response{
		Verified: bytes.Equal(bytes.TrimSpace(fields["correct"]), []byte("true")),
	}

	var items []json.RawMessage
	if err := json.Unmarshal(fields["messages"], &items); err == nil {
		for _, item := range items {
			var m string
			if json.Unmarshal(item, &m) == nil {
				resp.Messages = append(resp.Messages, m)
			}
		}
	}
	return resp, nil
}

func (o *HTTPOracle) Verify(ctx context.Context, candidate string) (Response, error) {
	body, err := json.Marshal(oracleRequest{Input: candidate})
	if err != nil {
		return Response{}, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("create request: %w", err)
	}
	for k, vs := range o.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		_, _ = io.Copy(io.Discard, resp.Body)
		return Response{RateLimited: true}, nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}

	reply, err := parseReply(data)
	if err != nil {
		return Response{}, fmt.Errorf("parse response (HTTP %d): %w", resp.StatusCode, err)
	}
	return reply, nil
}

// Client turns oracle round trips into outcomes. Rate limits are absorbed
// by waiting and retrying the same candidate; every other failure becomes
// an ERROR outcome. Call never returns an error.
type Client struct {
	oracle        Oracle
	rateLimitWait time.Duration
	countdown     func(candidate string, remaining time.Duration)
	observer      Observer
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithRateLimitWait sets how long to wait after a rate limit.
func WithRateLimitWait(d time.Duration) ClientOption {
	return func(c *Client) { c.rateLimitWait = d }
}

// WithCountdown registers a callback invoked once per second during a
// rate-limit wait with the remaining time. The callback owns the display.
func WithCountdown(fn func(candidate string, remaining time.Duration)) ClientOption {
	return func(c *Client) { c.countdown = fn }
}

// WithClientObserver sets the observer notified about rate limits.
func WithClientObserver(o Observer) ClientOption {
	return func(c *Client) { c.observer = o }
}

// NewClient wraps an oracle. The default rate-limit wait is the single-mode
// value, DefaultSingleRateLimitWait.
func NewClient(oracle Oracle, opts ...ClientOption) *Client {
	c := &Client{
		oracle:        oracle,
		rateLimitWait: DefaultSingleRateLimitWait,
		observer:      NoOpObserver{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.observer = observerOrNoop(c.observer)
	return c
}

// Call verifies one candidate. If ctx is cancelled during a rate-limit wait
// the result is an ERROR carrying the context error; callers that observe
// cancellation should discard it.
func (c *Client) Call(ctx context.Context, candidate string) ResultRecord {
	for attempt := 1; ; attempt++ {
		resp, err := c.oracle.Verify(ctx, candidate)
		if err != nil {
			return NewErrorRecord(candidate, err)
		}
		if !resp.RateLimited {
			return toRecord(candidate, resp)
		}

		c.observer.OnRateLimited(ctx, &RateLimitEvent{
			WorkerID:  WorkerID(ctx),
			Candidate: candidate,
			Attempt:   attempt,
			Wait:      c.rateLimitWait,
		})

		var onTick func(time.Duration)
		if c.countdown != nil {
			onTick = func(remaining time.Duration) { c.countdown(candidate, remaining) }
		}
		if err := wait(ctx, c.rateLimitWait, time.Second, onTick); err != nil {
			return NewErrorRecord(candidate, err)
		}
	}
}

func toRecord(candidate string, resp Response) ResultRecord {
	msgs := make([]string, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		msgs = append(msgs, NormalizeMessage(m))
	}
	outcome := OutcomeIncorrect
	if resp.Verified {
		outcome = OutcomeCorrect
	}
	return ResultRecord{Candidate: candidate, Outcome: outcome, Messages: msgs}
}
