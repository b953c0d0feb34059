package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"product-service/internal/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
)

var HttpClientTracer = otel.Tracer("HttpClient")

// HTTPClient is a JSON client bound to one base URL. Every call runs in its own span and
// carries the trace context to the server.
type HTTPClient struct {
	client  *http.Client
	baseURL string
	headers map[string]string
}

// RequestOptions for request configuration
type RequestOptions struct {
	Method string
	URL    string
	Body   any
}

// StatusError is returned for any non-2xx answer. Code is the "error" field of the JSON
// body when the server sent one.
type StatusError struct {
	StatusCode int
	Code       string
	Detail     string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("status %d %s: %s", e.StatusCode, e.Code, e.Detail)
	}
	return fmt.Sprintf("status %d %s", e.StatusCode, e.Code)
}

// NewHTTPClient creates a new HTTP client instance
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		headers: make(map[string]string),
	}
}

// SetDefaultHeader adds a default header
func (c *HTTPClient) SetDefaultHeader(key, value string) {
	c.headers[key] = value
}

// Do sends the request and decodes a 2xx JSON body into result when result is not nil.
func (c *HTTPClient) Do(ctx context.Context, opts RequestOptions, result any) error {
	fullURL := c.buildURL(opts.URL)

	var bodyReader io.Reader
	if opts.Body != nil {
		bodyBytes, err := json.Marshal(opts.Body)
		if err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	ctx, span := HttpClientTracer.Start(ctx, opts.Method+" "+opts.URL)
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, opts.Method, fullURL, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	// Inject standard otel headers
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
	c.setHeaders(req)
	req.Header.Set("X-Trace-ID", span.SpanContext().TraceID().String())

	logger.Debug(ctx, "HttpClient request",
		slog.String("method", req.Method),
		slog.String("url", req.URL.String()),
	)

	resp, err := c.client.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error(ctx, "Failed to execute request", slog.String("error", err.Error()))
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{StatusCode: resp.StatusCode}
		var body struct {
			Error  string `json:"error"`
			Detail string `json:"detail"`
		}
		if json.Unmarshal(rawBody, &body) == nil {
			statusErr.Code, statusErr.Detail = body.Error, body.Detail
		}
		if resp.StatusCode >= 500 {
			span.SetStatus(codes.Error, statusErr.Error())
		}
		return statusErr
	}

	if result != nil && len(rawBody) > 0 {
		if err := json.Unmarshal(rawBody, result); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
	}
	return nil
}

// Get request
func (c *HTTPClient) Get(ctx context.Context, url string, result any) error {
	return c.Do(ctx, RequestOptions{Method: http.MethodGet, URL: url}, result)
}

// Post request
func (c *HTTPClient) Post(ctx context.Context, url string, body any, result any) error {
	return c.Do(ctx, RequestOptions{Method: http.MethodPost, URL: url, Body: body}, result)
}

// buildURL joins a relative endpoint onto the base URL; absolute URLs pass through.
func (c *HTTPClient) buildURL(endpoint string) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	return fmt.Sprintf("%s/%s", c.baseURL, strings.TrimLeft(endpoint, "/"))
}

// setHeaders sets request headers
func (c *HTTPClient) setHeaders(req *http.Request) {
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	if req.Body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
}
