package medusa

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePath(t *testing.T) {
	c, srv := newTestClient(t, func(http.ResponseWriter, *http.Request) {})

	u, err := c.ResolvePath("/store/carts/c1?fields=*items")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/store/carts/c1?fields=*items", u.String())

	_, err = c.ResolvePath("https://evil.test/steal")
	assert.ErrorIs(t, err, ErrForeignHost)
}

func TestForwardKeepsCallerKeyAndStatus(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "pk_override", r.Header.Get(PublishableKeyHeader))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, `{"quantity":2}`, string(body))
		w.WriteHeader(http.StatusConflict)
	})

	target, err := c.ResolvePath("/store/carts/c1/line-items")
	require.NoError(t, err)
	hdr := http.Header{}
	hdr.Set(PublishableKeyHeader, "pk_override")
	resp, err := c.Forward(context.Background(), http.MethodPost, target, hdr, []byte(`{"quantity":2}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestForwardInjectsKeyAndDropsGetBody(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "pk_test", r.Header.Get(PublishableKeyHeader))
		body, _ := io.ReadAll(r.Body)
		assert.Empty(t, body)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	target, err := c.ResolvePath("/store/regions")
	require.NoError(t, err)
	resp, err := c.Forward(context.Background(), http.MethodGet, target, nil, []byte(`ignored`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
