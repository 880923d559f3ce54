package medusa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"medusa-storefront/internal/domain"
	"medusa-storefront/internal/tracing"
)

// PublishableKeyHeader authorises store API calls against a sales channel.
const PublishableKeyHeader = "x-publishable-api-key"

const maxResponseBytes = 10 << 20

// SalesChannelRemediation is shown when the publishable key is not linked to a sales channel.
const SalesChannelRemediation = "Go to Medusa Admin, open Settings → API Keys, edit the publishable API key and assign it to a Sales Channel. " +
	"Alternatively run: cd my-store && npm run link-storefront-api-key"

type Options struct {
	BaseURL        string
	PublishableKey string
	// Timeout bounds a single backend call. Zero leaves only the caller's context in charge.
	Timeout    time.Duration
	Breaker    BreakerSettings
	HTTPClient *http.Client
}

// Client talks to the Medusa store API. It never retries: every call is issued once
// and failures are mapped onto the domain error taxonomy.
type Client struct {
	baseURL        *url.URL
	publishableKey string
	http           *http.Client
	breaker        *gobreaker.CircuitBreaker[*http.Response]
	logger         *zap.Logger
	tracer         trace.Tracer
}

func New(opts Options, logger *zap.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("backend url %q must be absolute", opts.BaseURL)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := &http.Client{Timeout: opts.Timeout}
	if opts.HTTPClient != nil {
		copied := *opts.HTTPClient
		httpClient = &copied
	}
	// Redirects are handed back to the caller untouched.
	httpClient.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	return &Client{
		baseURL:        base,
		publishableKey: strings.TrimSpace(opts.PublishableKey),
		http:           httpClient,
		breaker:        newBreaker(opts.Breaker, logger),
		logger:         logger,
		tracer:         tracing.Tracer("medusa-storefront/medusa"),
	}, nil
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

func (c *Client) PublishableKey() string {
	return c.publishableKey
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
	Error   string `json:"error"`
}

// do issues one JSON request against the store API and decodes the response into out.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out interface{}) error {
	ctx, span := c.tracer.Start(ctx, "medusa."+op, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.request.method", method),
		attribute.String("url.path", path),
	)

	u := c.BaseURL()
	u.Path = strings.TrimRight(u.Path, "/") + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader = http.NoBody
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode body: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.publishableKey != "" {
		req.Header.Set(PublishableKeyHeader, c.publishableKey)
	}

	resp, err := c.send(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		return c.transportError(op, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return domain.NewTransportError(fmt.Sprintf("%s: read response", op), err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		mapped := statusError(op, resp.StatusCode, data)
		span.SetStatus(codes.Error, mapped.Error())
		c.logger.Debug("backend call failed",
			zap.String("op", op),
			zap.Int("status", resp.StatusCode),
			zap.String("message", mapped.Message),
		)
		return mapped
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return domain.NewTransportError(fmt.Sprintf("%s: decode response", op), err)
	}
	return nil
}

func (c *Client) transportError(op string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return domain.NewTransportError("Commerce backend is temporarily unavailable", err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	c.logger.Warn("backend unreachable", zap.String("op", op), zap.Error(err))
	return domain.NewTransportError("Commerce backend is unreachable", err)
}

func statusError(op string, status int, body []byte) *domain.Error {
	var parsed apiError
	_ = json.Unmarshal(body, &parsed)
	msg := strings.TrimSpace(parsed.Message)
	if msg == "" {
		msg = strings.TrimSpace(parsed.Error)
	}
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	if msg == "" {
		msg = http.StatusText(status)
	}

	if strings.Contains(strings.ToLower(msg), "sales channel") {
		return domain.NewConfigurationError("API key configuration error: "+msg, SalesChannelRemediation)
	}

	switch {
	case status == http.StatusNotFound:
		return domain.NewNotFoundError(msg)
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return domain.NewValidationError(msg)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return domain.NewConfigurationError(msg, "Check that MEDUSA_PUBLISHABLE_KEY holds a valid publishable API key. "+SalesChannelRemediation)
	default:
		return domain.NewTransportError(fmt.Sprintf("%s failed with status %d: %s", op, status, msg), nil)
	}
}
