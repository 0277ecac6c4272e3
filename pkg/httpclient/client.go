package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/IgorGrieder/minimizurl/internal/infrastructure/logger"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

type Options struct {
	Timeout     time.Duration
	MaxRetries  int
	BaseDelay   time.Duration
	MaxFailures int
	OpenTimeout time.Duration
}

// Client retries 5xx and network failures with jittered exponential backoff
// behind a circuit breaker. Outgoing requests carry the trace context.
type Client struct {
	client     *http.Client
	cb         *CircuitBreaker
	maxRetries int
	baseDelay  time.Duration
}

func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 100 * time.Millisecond
	}

	return &Client{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		cb:         NewCircuitBreaker(opts.MaxFailures, opts.OpenTimeout),
		maxRetries: opts.MaxRetries,
		baseDelay:  opts.BaseDelay,
	}
}

func (c *Client) Breaker() *CircuitBreaker { return c.cb }

// PostJSON sends body as JSON. A non-nil response has a status below 500
// and the caller owns its body.
func (c *Client) PostJSON(ctx context.Context, url string, body any, headers map[string]string) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}

	return c.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		return req, nil
	})
}

func (c *Client) do(ctx context.Context, newRequest func() (*http.Request, error)) (*http.Response, error) {
	if err := c.cb.CheckBeforeRequest(); err != nil {
		return nil, err
	}

	var (
		lastErr    error
		lastStatus string
	)
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := newRequest()
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}

		resp, err := c.client.Do(req)
		if err == nil && resp.StatusCode < http.StatusInternalServerError {
			c.cb.OnSuccess()
			return resp, nil
		}

		lastErr = err
		if resp != nil {
			lastStatus = resp.Status
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
		}
		if attempt == c.maxRetries {
			break
		}

		delay := c.baseDelay<<attempt + time.Duration(rand.Int64N(int64(c.baseDelay)))
		logger.Debug("request failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.String("status", lastStatus),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			c.cb.OnFailure()
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	c.cb.OnFailure()
	if lastErr != nil {
		return nil, fmt.Errorf("all retries failed: %w", lastErr)
	}
	return nil, fmt.Errorf("all retries failed, last status: %s", lastStatus)
}
