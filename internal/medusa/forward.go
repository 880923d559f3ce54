package medusa

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// ErrForeignHost is returned when a relay path points outside the backend.
var ErrForeignHost = errors.New("path must stay on the commerce backend")

// ResolvePath resolves a relay path against the backend base URL.
func (c *Client) ResolvePath(path string) (*url.URL, error) {
	ref, err := url.Parse(strings.TrimSpace(path))
	if err != nil {
		return nil, fmt.Errorf("parse path: %w", err)
	}
	target := c.baseURL.ResolveReference(ref)
	if !strings.EqualFold(target.Scheme, c.baseURL.Scheme) || !strings.EqualFold(target.Host, c.baseURL.Host) {
		return nil, ErrForeignHost
	}
	return target, nil
}

// Forward relays a raw request to target, which must come from ResolvePath.
// The publishable key is added when the caller did not supply one. The caller
// owns the returned body. Upstream error statuses come back as responses.
func (c *Client) Forward(ctx context.Context, method string, target *url.URL, header http.Header, body []byte) (*http.Response, error) {
	ctx, span := c.tracer.Start(ctx, "medusa.forward")
	defer span.End()

	var reader io.Reader = http.NoBody
	if body != nil && method != http.MethodGet && method != http.MethodHead {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("build relay request: %w", err)
	}
	for k, vals := range header {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	if req.Header.Get(PublishableKeyHeader) == "" && c.publishableKey != "" {
		req.Header.Set(PublishableKeyHeader, c.publishableKey)
	}

	resp, err := c.send(req)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return resp, nil
}
