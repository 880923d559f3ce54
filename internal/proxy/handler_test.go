package proxy

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"medusa-storefront/internal/medusa"
)

type seen struct {
	method string
	path   string
	key    string
	ctype  string
	body   string
}

func newRouter(t *testing.T, backend http.HandlerFunc, mw ...gin.HandlerFunc) (*gin.Engine, *int32) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		backend(w, r)
	}))
	t.Cleanup(srv.Close)

	client, err := medusa.New(medusa.Options{
		BaseURL:        srv.URL,
		PublishableKey: "pk_server",
		Timeout:        2 * time.Second,
	}, zap.NewNop())
	require.NoError(t, err)

	router := gin.New()
	NewHandler(client, zap.NewNop()).Register(router, mw...)
	return router, &hits
}

func capture(dst *seen, status int, respBody string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		*dst = seen{
			method: r.Method,
			path:   r.URL.RequestURI(),
			key:    r.Header.Get(medusa.PublishableKeyHeader),
			ctype:  r.Header.Get("Content-Type"),
			body:   string(b),
		}
		w.Header().Set("X-Upstream", "1")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, respBody)
	}
}

func TestPostRelaysAndPreservesStatus(t *testing.T) {
	var got seen
	router, _ := newRouter(t, capture(&got, http.StatusConflict, `{"message":"cart locked"}`))

	payload := `{"path":"/store/carts/c1/line-items","method":"post","body":{"variant_id":"v1", "quantity":1}}`
	req := httptest.NewRequest(http.MethodPost, Path, strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "https://shop.example")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"message":"cart locked"}`, rec.Body.String())
	assert.Equal(t, "https://shop.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "1", rec.Header().Get("X-Upstream"))

	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "/store/carts/c1/line-items", got.path)
	assert.Equal(t, "pk_server", got.key)
	assert.Equal(t, "application/json", got.ctype)
	assert.Equal(t, `{"variant_id":"v1","quantity":1}`, got.body)
}

func TestPostStringBodyIsVerbatim(t *testing.T) {
	var got seen
	router, _ := newRouter(t, capture(&got, http.StatusOK, `{}`))

	payload := `{"path":"/store/carts","method":"POST","headers":{"x-publishable-api-key":"pk_client","Content-Type":"text/plain"},"body":"raw text"}`
	req := httptest.NewRequest(http.MethodPost, Path, strings.NewReader(payload))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "raw text", got.body)
	assert.Equal(t, "pk_client", got.key)
	assert.Equal(t, "text/plain", got.ctype)
}

func TestPostMissingPath(t *testing.T) {
	router, hits := newRouter(t, capture(&seen{}, http.StatusOK, `{}`))

	req := httptest.NewRequest(http.MethodPost, Path, strings.NewReader(`{"method":"GET"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Missing `path` in medusa-proxy payload", body["message"])
	assert.EqualValues(t, 0, atomic.LoadInt32(hits))
}

func TestPostForeignHostRejected(t *testing.T) {
	router, hits := newRouter(t, capture(&seen{}, http.StatusOK, `{}`))

	req := httptest.NewRequest(http.MethodPost, Path, strings.NewReader(`{"path":"http://169.254.169.254/latest"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.EqualValues(t, 0, atomic.LoadInt32(hits))
}

func TestGetUsageAndQueryRelay(t *testing.T) {
	var got seen
	router, _ := newRouter(t, func(w http.ResponseWriter, r *http.Request) {
		got.path = r.URL.RequestURI()
		got.method = r.Method
		w.Header()["Content-Type"] = nil
		_, _ = io.WriteString(w, `{"products":[]}`)
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, Path, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "usage")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, Path+"?path=%2Fstore%2Fproducts%3Flimit%3D2", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/store/products?limit=2", got.path)
	assert.Equal(t, http.MethodGet, got.method)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestOptionsAnswersWithoutBackend(t *testing.T) {
	router, hits := newRouter(t, capture(&seen{}, http.StatusOK, `{}`))

	req := httptest.NewRequest(http.MethodOptions, Path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, POST, PUT, DELETE, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "86400", rec.Header().Get("Access-Control-Max-Age"))
	assert.EqualValues(t, 0, atomic.LoadInt32(hits))
}

func TestBackendDownIs500(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	client, err := medusa.New(medusa.Options{BaseURL: srv.URL, Timeout: time.Second}, zap.NewNop())
	require.NoError(t, err)
	router := gin.New()
	NewHandler(client, nil).Register(router)

	req := httptest.NewRequest(http.MethodPost, Path, strings.NewReader(`{"path":"/store/regions"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Proxy request failed", body["message"])
	assert.NotEmpty(t, body["error"])
}

func TestRateLimit(t *testing.T) {
	router, hits := newRouter(t, capture(&seen{}, http.StatusOK, `{}`), RateLimit(1, 2, zap.NewNop()))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, Path+"?path=/store/regions", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	assert.EqualValues(t, 2, atomic.LoadInt32(hits))
}

func TestRelayDropsFramingHeaders(t *testing.T) {
	const body = `{"cart":{"id":"c1"}}`
	router, _ := newRouter(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Encoding", "br")
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.Header().Set("X-Upstream", "1")
		w.WriteHeader(http.StatusAccepted)
		_, _ = io.WriteString(w, body)
	})

	req := httptest.NewRequest(http.MethodPost, Path, strings.NewReader(`{"path":"/store/carts/c1"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, body, rec.Body.String())
	assert.Equal(t, "1", rec.Header().Get("X-Upstream"))
	assert.Empty(t, rec.Header().Values("Content-Encoding"))
	assert.Empty(t, rec.Header().Values("Content-Length"))
}

type stubForwarder struct {
	resp *http.Response
}

func (s stubForwarder) ResolvePath(path string) (*url.URL, error) {
	return &url.URL{Scheme: "http", Host: "medusa.test", Path: path}, nil
}

func (s stubForwarder) Forward(_ context.Context, _ string, _ *url.URL, _ http.Header, _ []byte) (*http.Response, error) {
	return s.resp, nil
}

func TestRelayDropsTransferEncoding(t *testing.T) {
	gin.SetMode(gin.TestMode)
	upstream := &http.Response{
		StatusCode: http.StatusOK,
		Header: http.Header{
			"Transfer-Encoding": {"chunked"},
			"Content-Encoding":  {"gzip"},
			"Content-Length":    {"999"},
			"Content-Type":      {"application/json"},
		},
		Body: io.NopCloser(strings.NewReader(`{"ok":true}`)),
	}
	router := gin.New()
	NewHandler(stubForwarder{resp: upstream}, zap.NewNop()).Register(router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, Path+"?path=/store/regions", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{"ok":true}`, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	for _, h := range []string{"Transfer-Encoding", "Content-Encoding", "Content-Length"} {
		assert.Empty(t, rec.Header().Values(h), h)
	}
}
