package client

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/integrail/gsearch/pkg/logger"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Client interface {
	Send(ctx context.Context, endpoint string, payload any, policy RetryPolicy) (*Response, error)
}

type Response struct {
	StatusCode int
	Body       []byte
	Attempts   int
}

type Option func(c *httpClient)

func WithHTTPClient(doer *http.Client) Option {
	return func(c *httpClient) {
		c.http = doer
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(c *httpClient) {
		c.log = log
	}
}

func WithMetrics(m *Metrics) Option {
	return func(c *httpClient) {
		c.metrics = m
	}
}

func withSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *httpClient) {
		c.sleep = sleep
	}
}

func withJitter(rnd func(time.Duration) time.Duration) Option {
	return func(c *httpClient) {
		c.jitter = rnd
	}
}

func NewClient(timeout time.Duration, opts ...Option) Client {
	c := &httpClient{
		http:   &http.Client{Timeout: timeout},
		log:    logger.Discard(),
		sleep:  sleepContext,
		jitter: jitter,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type httpClient struct {
	http    *http.Client
	log     *slog.Logger
	metrics *Metrics
	sleep   func(ctx context.Context, d time.Duration) error
	jitter  func(time.Duration) time.Duration
}

func (c *httpClient) Send(ctx context.Context, endpoint string, payload any, policy RetryPolicy) (*Response, error) {
	reqBodyBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to marshal request payload")
	}

	maxAttempts := policy.attempts()
	for attempt := 0; ; attempt++ {
		res := c.attempt(ctx, endpoint, reqBodyBytes, attempt, maxAttempts)
		c.metrics.observeAttempt(res)

		switch res.outcome {
		case outcomeSuccess:
			return res.response, nil
		case outcomeTerminal:
			c.log.Warn("request failed", "attempt", attempt+1, "maxAttempts", maxAttempts, "error", res.err)
			return nil, res.err
		}

		delay := policy.backoff(attempt, c.jitter)
		c.log.Debug("retrying request", "attempt", attempt+1, "maxAttempts", maxAttempts, "delay", delay, "error", res.err)
		if policy.OnRetry != nil {
			policy.OnRetry(attempt+1, delay, res.err)
		}
		c.metrics.observeRetry()
		if err := c.sleep(ctx, delay); err != nil {
			return nil, newTransportError(errors.Wrapf(err, "retry wait interrupted"), attempt+1)
		}
	}
}

// attempt performs one round trip and classifies it. attempt is 0-based.
func (c *httpClient) attempt(ctx context.Context, endpoint string, body []byte, attempt, maxAttempts int) attemptResult {
	last := attempt == maxAttempts-1
	started := time.Now()
	defer c.metrics.observeDuration(started)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return attemptResult{outcome: outcomeTerminal, err: errors.Wrapf(err, "failed to init request")}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		reqErr := newTransportError(err, attempt+1)
		return attemptResult{outcome: lo.Ternary(last || ctx.Err() != nil, outcomeTerminal, outcomeRetry), err: reqErr}
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		reqErr := newTransportError(errors.Wrapf(err, "failed to read response body"), attempt+1)
		return attemptResult{outcome: lo.Ternary(last, outcomeTerminal, outcomeRetry), err: reqErr}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return attemptResult{
			outcome: outcomeSuccess,
			response: &Response{
				StatusCode: resp.StatusCode,
				Body:       respBytes,
				Attempts:   attempt + 1,
			},
		}
	}

	statusErr := newStatusError(resp.StatusCode, respBytes, attempt+1)
	if IsRetryableStatus(resp.StatusCode) && !last {
		return attemptResult{outcome: outcomeRetry, err: statusErr}
	}
	return attemptResult{outcome: outcomeTerminal, err: statusErr}
}
