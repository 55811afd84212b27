// Package client is a typed HTTP client for the CAMP prediction API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/flashcamp/camp-ensemble/camp"
	"github.com/flashcamp/camp-ensemble/camp/report"
	"github.com/flashcamp/camp-ensemble/camp/server"
)

// Options holds options for creating a new Client.
type Options struct {
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	InitialInterval   time.Duration
	MaxRetryTimeout   time.Duration
}

// Client sends requests to a CAMP server with rate limiting and retries.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	opts       Options
}

// New creates a client for the server at baseURL. Zero options select defaults.
func New(baseURL string, opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RequestsPerSecond == 0 {
		opts.RequestsPerSecond = 10
	}
	if opts.Burst == 0 {
		opts.Burst = 10
	}
	if opts.InitialInterval == 0 {
		opts.InitialInterval = 200 * time.Millisecond
	}
	if opts.MaxRetryTimeout == 0 {
		opts.MaxRetryTimeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: opts.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst),
		opts:       opts,
	}
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
	Fields     []camp.FieldError
	RequestID  string
}

// Error implements the error interface
func (e *APIError) Error() string {
	if len(e.Fields) > 0 {
		names := make([]string, len(e.Fields))
		for i, f := range e.Fields {
			names[i] = f.Field
		}
		return fmt.Sprintf("%d %s: %s (%s)", e.StatusCode, http.StatusText(e.StatusCode), e.Message, strings.Join(names, ", "))
	}
	return fmt.Sprintf("%d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Message)
}

// Retryable reports whether the status is worth retrying.
func (e *APIError) Retryable() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// Predict submits one raw input and returns the assembled response.
func (c *Client) Predict(ctx context.Context, raw map[string]any) (*report.Response, error) {
	body, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("marshal input: %w", err)
	}
	var resp report.Response
	if err := c.do(ctx, http.MethodPost, "/v1/predict", body, &resp, http.StatusOK); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health returns the server's health report. A 503 with a health body is not an error:
// it is reported through HealthResponse.Status.
func (c *Client) Health(ctx context.Context) (*server.HealthResponse, error) {
	var resp server.HealthResponse
	if err := c.do(ctx, http.MethodGet, "/v1/health", nil, &resp, http.StatusOK, http.StatusServiceUnavailable); err != nil {
		return nil, err
	}
	return &resp, nil
}

// do performs one API call. Connection errors and retryable statuses are retried with
// exponential backoff; every other non-accepted status is returned as a permanent *APIError.
func (c *Client) do(ctx context.Context, method, path string, body []byte, out any, accept ...int) error {
	operation := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build request: %w", err))
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			logrus.WithField("path", path).Debugf("Request failed, retrying: %v", err)
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		for _, code := range accept {
			if resp.StatusCode == code {
				if err := json.Unmarshal(data, out); err != nil {
					return backoff.Permanent(fmt.Errorf("decode response: %w", err))
				}
				return nil
			}
		}

		apiErr := &APIError{StatusCode: resp.StatusCode, RequestID: resp.Header.Get(server.RequestIDHeader)}
		var er server.ErrorResponse
		if json.Unmarshal(data, &er) == nil && er.Error != "" {
			apiErr.Message = er.Error
			apiErr.Fields = er.Fields
		} else {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		if apiErr.Retryable() {
			logrus.WithFields(logrus.Fields{"path": path, "status": resp.StatusCode}).Debug("Retryable status")
			return apiErr
		}
		return backoff.Permanent(apiErr)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.InitialInterval
	b.MaxElapsedTime = c.opts.MaxRetryTimeout
	err := backoff.Retry(operation, backoff.WithContext(b, ctx))
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	return err
}
