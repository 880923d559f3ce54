package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"medusa-storefront/internal/medusa"
	"medusa-storefront/internal/metrics"
)

const Path = "/api/medusa-proxy"

var skippedResponseHeaders = map[string]struct{}{
	"Content-Encoding":  {},
	"Content-Length":    {},
	"Transfer-Encoding": {},
}

var allowedMethods = map[string]struct{}{
	http.MethodGet:    {},
	http.MethodHead:   {},
	http.MethodPost:   {},
	http.MethodPut:    {},
	http.MethodPatch:  {},
	http.MethodDelete: {},
}

type forwarder interface {
	ResolvePath(path string) (*url.URL, error)
	Forward(ctx context.Context, method string, target *url.URL, header http.Header, body []byte) (*http.Response, error)
}

// Handler relays browser requests to the commerce backend from the same origin.
type Handler struct {
	backend forwarder
	logger  *zap.Logger
}

func NewHandler(backend forwarder, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{backend: backend, logger: logger}
}

// Register mounts the relay on r behind mw.
func (h *Handler) Register(r gin.IRoutes, mw ...gin.HandlerFunc) {
	r.OPTIONS(Path, h.preflight)
	r.POST(Path, chain(mw, h.relayPayload)...)
	r.GET(Path, chain(mw, h.relayQuery)...)
}

func chain(mw []gin.HandlerFunc, h gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(mw)+1)
	return append(append(out, mw...), h)
}

type relayRequest struct {
	Path    string            `json:"path"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers"`
	Body    json.RawMessage   `json:"body"`
}

func (h *Handler) relayPayload(c *gin.Context) {
	var req relayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid medusa-proxy payload", "error": err.Error()})
		return
	}
	if strings.TrimSpace(req.Path) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Missing `path` in medusa-proxy payload"})
		return
	}
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}
	if _, ok := allowedMethods[method]; !ok {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Unsupported method " + method})
		return
	}

	body, err := encodeBody(req.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid medusa-proxy body", "error": err.Error()})
		return
	}

	header := make(http.Header, len(req.Headers)+1)
	for k, v := range req.Headers {
		header.Set(k, v)
	}
	if body != nil && header.Get("Content-Type") == "" {
		header.Set("Content-Type", "application/json")
	}
	h.relay(c, method, req.Path, header, body)
}

func (h *Handler) relayQuery(c *gin.Context) {
	path := c.Query("path")
	if strings.TrimSpace(path) == "" {
		c.JSON(http.StatusOK, gin.H{
			"message": "Medusa proxy",
			"usage": gin.H{
				"POST": gin.H{"body": gin.H{"path": "/store/...", "method": "GET|POST|PUT|DELETE", "headers": "object", "body": "any"}},
				"GET":  gin.H{"query": "?path=/store/..."},
			},
		})
		return
	}
	h.relay(c, http.MethodGet, path, http.Header{}, nil)
}

func (h *Handler) relay(c *gin.Context, method, path string, header http.Header, body []byte) {
	target, err := h.backend.ResolvePath(path)
	if err != nil {
		msg := "Invalid `path` in medusa-proxy payload"
		if errors.Is(err, medusa.ErrForeignHost) {
			msg = err.Error()
		}
		c.JSON(http.StatusBadRequest, gin.H{"message": msg})
		return
	}

	resp, err := h.backend.Forward(c.Request.Context(), method, target, header, body)
	if err != nil {
		metrics.ProxyRequests.WithLabelValues(method, "error").Inc()
		h.logger.Error("proxy request failed", zap.String("method", method), zap.String("path", target.Path), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Proxy request failed", "error": err.Error()})
		return
	}
	defer resp.Body.Close()

	out := c.Writer.Header()
	for k, vals := range resp.Header {
		if _, skip := skippedResponseHeaders[http.CanonicalHeaderKey(k)]; skip {
			continue
		}
		for _, v := range vals {
			out.Add(k, v)
		}
	}
	if out.Get("Content-Type") == "" {
		out.Set("Content-Type", "application/json")
	}
	if origin := c.GetHeader("Origin"); origin != "" {
		out.Set("Access-Control-Allow-Origin", origin)
		out.Set("Access-Control-Allow-Credentials", "true")
	}

	metrics.ProxyRequests.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Inc()
	c.Status(resp.StatusCode)
	if _, err := io.Copy(c.Writer, resp.Body); err != nil {
		h.logger.Warn("proxy response copy interrupted", zap.String("path", target.Path), zap.Error(err))
	}
}

func (h *Handler) preflight(c *gin.Context) {
	origin := c.GetHeader("Origin")
	if origin == "" {
		origin = "*"
	}
	out := c.Writer.Header()
	out.Set("Access-Control-Allow-Origin", origin)
	out.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	out.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, x-publishable-api-key")
	out.Set("Access-Control-Max-Age", "86400")
	c.Status(http.StatusNoContent)
}

// encodeBody sends a JSON string as-is and re-encodes any other JSON value.
func encodeBody(raw json.RawMessage) ([]byte, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil, err
		}
		return []byte(s), nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
