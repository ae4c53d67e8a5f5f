// internal/common/http/client.go
package http

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"recruit-portal/internal/common/errors"
	"recruit-portal/internal/common/logger"
	"recruit-portal/internal/common/metrics"
)

// RequestIDHeader carries the per-call id to the backend.
const RequestIDHeader = "X-Request-ID"

// Config holds the backend address and the per-request deadlines.
type Config struct {
	BaseURL        string
	DefaultTimeout time.Duration
	UploadTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		BaseURL:        "http://127.0.0.1:8000",
		DefaultTimeout: 5 * time.Second,
		UploadTimeout:  10 * time.Second,
	}
}

func (c Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("base URL must be absolute, got %q", c.BaseURL)
	}
	if c.DefaultTimeout <= 0 {
		return fmt.Errorf("default timeout must be positive")
	}
	if c.UploadTimeout <= 0 {
		return fmt.Errorf("upload timeout must be positive")
	}
	return nil
}

// Request describes one backend call. Path is relative to the base URL and
// must already be escaped.
type Request struct {
	Operation   string
	Method      string
	Path        string
	Query       url.Values
	Body        io.Reader
	ContentType string
	// Upload selects the longer upload deadline.
	Upload bool
}

// Response is a fully read 2xx response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	RequestID  string
}

type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	config     Config
	logger     logger.Logger
	tracer     trace.Tracer
	observe    CallObserver
}

// CallObserver is told the duration and outcome of every backend call.
type CallObserver func(ctx context.Context, operation string, d time.Duration, outcome string)

type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client. Its Timeout is ignored in
// favour of the per-request deadlines.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithTracer(t trace.Tracer) Option {
	return func(c *Client) { c.tracer = t }
}

func WithCallObserver(fn CallObserver) Option {
	return func(c *Client) { c.observe = fn }
}

func NewClient(cfg Config, log logger.Logger, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid transport config: %w", err)
	}
	base, _ := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))

	c := &Client{
		httpClient: &http.Client{},
		baseURL:    base,
		config:     cfg,
		logger:     log,
		tracer:     noop.NewTracerProvider().Tracer("transport"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Do issues req under a fixed deadline. When the deadline elapses the in-flight
// request is aborted and a RequestTimeout error is returned. A non-2xx status
// yields RequestFailed carrying the body's detail field when present.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	timeout := c.config.DefaultTimeout
	if req.Upload {
		timeout = c.config.UploadTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ctx, span := c.tracer.Start(ctx, "backend "+req.Method+" "+req.Operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", req.Method),
			attribute.String("http.route", req.Path),
		))
	defer span.End()

	requestID := uuid.NewString()
	log := c.logger.WithFields(map[string]interface{}{
		"operation":  req.Operation,
		"method":     req.Method,
		"path":       req.Path,
		"request_id": requestID,
	})

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.resolve(req), req.Body)
	if err != nil {
		return nil, errors.NewInternalError(fmt.Errorf("build request %s: %w", req.Operation, err))
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(RequestIDHeader, requestID)
	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, c.fail(ctx, span, log, req.Operation, start, c.transportError(ctx, req.Operation, timeout, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.fail(ctx, span, log, req.Operation, start, c.transportError(ctx, req.Operation, timeout, err))
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.fail(ctx, span, log, req.Operation, start,
			errors.NewRequestFailedError(req.Operation, resp.StatusCode, extractDetail(body)))
	}

	elapsed := time.Since(start)
	metrics.BackendRequests.WithLabelValues(req.Operation, metrics.OutcomeSuccess).Inc()
	metrics.BackendRequestDuration.WithLabelValues(req.Operation).Observe(elapsed.Seconds())
	if c.observe != nil {
		c.observe(ctx, req.Operation, elapsed, metrics.OutcomeSuccess)
	}
	log.Debug("Backend call succeeded", map[string]interface{}{
		"status":      resp.StatusCode,
		"duration_ms": elapsed.Milliseconds(),
	})

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		RequestID:  requestID,
	}, nil
}

func (c *Client) resolve(req *Request) string {
	target := c.baseURL.String() + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}
	return target
}

// transportError classifies a failure that happened before a status was read.
func (c *Client) transportError(ctx context.Context, operation string, timeout time.Duration, err error) *errors.StandardError {
	if stderrors.Is(ctx.Err(), context.DeadlineExceeded) || stderrors.Is(err, context.DeadlineExceeded) {
		return errors.NewRequestTimeoutError(operation, timeout)
	}
	return errors.NewNetworkError(operation, err)
}

func (c *Client) fail(ctx context.Context, span trace.Span, log logger.Logger, operation string, start time.Time, err *errors.StandardError) error {
	outcome := metrics.OutcomeFailed
	switch err.Code {
	case errors.ErrCodeRequestTimeout:
		outcome = metrics.OutcomeTimeout
	case errors.ErrCodeNetwork:
		outcome = metrics.OutcomeNetwork
	}
	elapsed := time.Since(start)
	metrics.BackendRequests.WithLabelValues(operation, outcome).Inc()
	metrics.BackendRequestDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
	if c.observe != nil {
		c.observe(ctx, operation, elapsed, outcome)
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, string(err.Code))

	log.Warn("Backend call failed", map[string]interface{}{
		"code":        err.Code,
		"status":      err.StatusCode,
		"details":     err.Details,
		"duration_ms": elapsed.Milliseconds(),
	})
	return err
}

// extractDetail returns the "detail" field of a JSON error body. A structured
// detail is returned as its JSON text.
func extractDetail(body []byte) string {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	raw, ok := payload["detail"]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
