// Package gateway wraps HTTP calls to rate-limited or paid upstream services
// with status-aware retry. Transient gateway statuses are retried with
// linearly increasing backoff; authentication and quota failures are
// returned immediately because retrying cannot fix them.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 1 * time.Second
	maxBodyBytes       = 8 << 20
)

// Sentinel error kinds. Errors returned by Caller.Do wrap exactly one of them.
var (
	ErrAuthFailure    = errors.New("gateway authentication failed")
	ErrQuotaExhausted = errors.New("gateway quota exhausted")
	ErrTransient      = errors.New("gateway temporarily unavailable")
	ErrRequestFailed  = errors.New("gateway request failed")
)

// Outcome is the classification of a single response status.
type Outcome int

// Possible outcomes.
const (
	OutcomeSuccess Outcome = iota
	OutcomeRetry
	OutcomeAuthFailure
	OutcomeQuotaFailure
	OutcomeFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetry:
		return "retry"
	case OutcomeAuthFailure:
		return "auth_failure"
	case OutcomeQuotaFailure:
		return "quota_failure"
	default:
		return "failure"
	}
}

// Classifier maps an HTTP status code to an Outcome.
type Classifier func(status int) Outcome

// DefaultClassifier treats 2xx as success, 502/503/504 as transient,
// 401/403 as auth failures, 402/429 as quota exhaustion and everything else
// as a terminal failure.
func DefaultClassifier(status int) Outcome {
	switch {
	case status >= 200 && status < 300:
		return OutcomeSuccess
	case status == http.StatusBadGateway, status == http.StatusServiceUnavailable, status == http.StatusGatewayTimeout:
		return OutcomeRetry
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return OutcomeAuthFailure
	case status == http.StatusPaymentRequired, status == http.StatusTooManyRequests:
		return OutcomeQuotaFailure
	default:
		return OutcomeFailure
	}
}

// ThrottleClassifier is DefaultClassifier except that 429 is retried. Public
// catalogs answer anonymous bursts with 429 or 503 and recover within seconds.
func ThrottleClassifier(status int) Outcome {
	if status == http.StatusTooManyRequests {
		return OutcomeRetry
	}
	return DefaultClassifier(status)
}

// StatusError describes a terminal gateway failure. StatusCode is zero when
// the last attempt failed at the transport level.
type StatusError struct {
	StatusCode int
	Attempts   int
	Body       string
	Cause      error
	Kind       error
}

func (e *StatusError) Error() string {
	msg := e.Kind.Error()
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": HTTP %d", e.StatusCode)
	}
	if e.Attempts > 1 {
		msg += fmt.Sprintf(" after %d attempts", e.Attempts)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	if body := strings.TrimSpace(e.Body); body != "" {
		if len(body) > 200 {
			body = body[:200]
		}
		msg += ": " + body
	}
	return msg
}

// Unwrap exposes both the error kind and the underlying cause.
func (e *StatusError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}

// Response is a fully read upstream response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// RequestFunc builds a fresh request for each attempt.
type RequestFunc func(ctx context.Context) (*http.Request, error)

// Caller executes requests with retry.
type Caller struct {
	client      *http.Client
	maxAttempts int
	baseDelay   time.Duration
	classify    Classifier
	sleep       func(ctx context.Context, d time.Duration) error
	logger      *slog.Logger
}

// Option customizes a Caller.
type Option func(*Caller)

// WithMaxAttempts sets the total number of attempts (minimum 1).
func WithMaxAttempts(n int) Option {
	return func(c *Caller) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithBaseDelay sets the backoff unit; attempt n waits n*d before retrying.
func WithBaseDelay(d time.Duration) Option {
	return func(c *Caller) {
		if d >= 0 {
			c.baseDelay = d
		}
	}
}

// WithClassifier overrides DefaultClassifier.
func WithClassifier(fn Classifier) Option {
	return func(c *Caller) {
		if fn != nil {
			c.classify = fn
		}
	}
}

// WithSleeper overrides how backoff waits are performed (useful for tests).
func WithSleeper(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Caller) {
		if fn != nil {
			c.sleep = fn
		}
	}
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Caller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCaller creates a Caller that sends requests through client.
func NewCaller(client *http.Client, opts ...Option) *Caller {
	if client == nil {
		client = http.DefaultClient
	}
	c := &Caller{
		client:      client,
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
		classify:    DefaultClassifier,
		sleep:       sleepContext,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do sends the request built by build, retrying transient failures. The
// returned error is nil only for a success outcome. Context cancellation is
// returned as-is so callers can tell a deadline from an upstream failure.
func (c *Caller) Do(ctx context.Context, build RequestFunc) (*Response, error) {
	var last *StatusError

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		resp, err := c.once(ctx, build)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			var buildErr *buildError
			if errors.As(err, &buildErr) {
				return nil, buildErr.err
			}
			last = &StatusError{Attempts: attempt, Cause: err, Kind: ErrTransient}
		} else {
			switch outcome := c.classify(resp.StatusCode); outcome {
			case OutcomeSuccess:
				return resp, nil
			case OutcomeAuthFailure:
				return nil, &StatusError{StatusCode: resp.StatusCode, Attempts: attempt, Body: string(resp.Body), Kind: ErrAuthFailure}
			case OutcomeQuotaFailure:
				return nil, &StatusError{StatusCode: resp.StatusCode, Attempts: attempt, Body: string(resp.Body), Kind: ErrQuotaExhausted}
			case OutcomeRetry:
				last = &StatusError{StatusCode: resp.StatusCode, Attempts: attempt, Body: string(resp.Body), Kind: ErrTransient}
			default:
				return nil, &StatusError{StatusCode: resp.StatusCode, Attempts: attempt, Body: string(resp.Body), Kind: ErrRequestFailed}
			}
		}

		if attempt == c.maxAttempts {
			break
		}
		delay := time.Duration(attempt) * c.baseDelay
		c.logger.Debug("retrying gateway call",
			slog.Int("attempt", attempt),
			slog.Int("status", last.StatusCode),
			slog.Duration("delay", delay))
		if err := c.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}

	return nil, last
}

type buildError struct{ err error }

func (e *buildError) Error() string { return e.err.Error() }

func (c *Caller) once(ctx context.Context, build RequestFunc) (*Response, error) {
	req, err := build(ctx)
	if err != nil {
		return nil, &buildError{err: fmt.Errorf("creating request: %w", err)}
	}
	resp, err := c.client.Do(req) //nolint:gosec // URL built by trusted adapters
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
