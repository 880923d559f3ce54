package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"medusa-storefront/internal/domain"
	staterepo "medusa-storefront/internal/repository/state"
	cartsvc "medusa-storefront/internal/service/cart"
	"medusa-storefront/internal/service/checkout"
	"medusa-storefront/internal/session"
)

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(_ context.Context) error { return s.err }

type stubCarts struct {
	cart       *domain.Cart
	err        error
	lastCartID string
	created    int
}

func (s *stubCarts) Get(_ context.Context, cartID string) (*domain.Cart, error) {
	s.lastCartID = cartID
	return s.cart, s.err
}

func (s *stubCarts) Create(_ context.Context) (*domain.Cart, error) {
	s.created++
	return s.cart, s.err
}

func (s *stubCarts) Update(_ context.Context, cartID string, _ cartsvc.UpdateInput) (*domain.Cart, error) {
	s.lastCartID = cartID
	return s.cart, s.err
}

func (s *stubCarts) AddItem(_ context.Context, cartID, _ string, _ int) (*domain.Cart, error) {
	s.lastCartID = cartID
	return s.cart, s.err
}

func (s *stubCarts) UpdateItem(_ context.Context, cartID, _ string, _ int) (*domain.Cart, error) {
	s.lastCartID = cartID
	return s.cart, s.err
}

func (s *stubCarts) RemoveItem(_ context.Context, cartID, _ string) (*domain.Cart, error) {
	s.lastCartID = cartID
	return s.cart, s.err
}

type stubCheckout struct {
	result *checkout.Result
	err    error
}

func (s *stubCheckout) Load(_ context.Context, _ *session.Session, _ string) (*checkout.View, error) {
	return nil, s.err
}

func (s *stubCheckout) Submit(_ context.Context, _ *session.Session, _ checkout.SubmitInput) (*checkout.Result, error) {
	return s.result, s.err
}

func (s *stubCheckout) Confirm(_ context.Context, _ *session.Session, _ checkout.ConfirmInput) (*checkout.Result, error) {
	return s.result, s.err
}

func (s *stubCheckout) Order(_ context.Context, _ *session.Session, _ string) (*domain.Order, error) {
	return nil, s.err
}

type stubProducts struct{}

func (stubProducts) List(_ context.Context) ([]domain.Product, error) {
	return []domain.Product{{ID: "p1", Handle: "tee"}}, nil
}

func (stubProducts) GetByHandle(_ context.Context, _ string) (*domain.Product, error) {
	return nil, domain.NewNotFoundError(`Failed to fetch product with handle "x"`)
}

func newTestRouter(carts *stubCarts, co *stubCheckout, state pinger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return buildRouter(zap.NewNop(), Deps{
		Sessions:   session.NewManager(staterepo.NewMemory(time.Hour)),
		SessionTTL: time.Hour,
		State:      state,
		Carts:      carts,
		Checkout:   co,
		Products:   stubProducts{},
	})
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var body errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body
}

func TestHealthAndReady(t *testing.T) {
	router := newTestRouter(&stubCarts{}, &stubCheckout{}, stubPinger{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	router = newTestRouter(&stubCarts{}, &stubCheckout{}, stubPinger{err: errors.New("down")})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rec.Code)
	}
}

func TestGetCartWithoutSessionCart(t *testing.T) {
	router := newTestRouter(&stubCarts{}, &stubCheckout{}, stubPinger{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/cart", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
	if body := decodeError(t, rec); body.Kind != "not_found" {
		t.Fatalf("expected not_found kind, got %q", body.Kind)
	}
	if !strings.Contains(rec.Header().Get("Set-Cookie"), session.CookieName+"=") {
		t.Fatalf("expected session cookie, got %q", rec.Header().Get("Set-Cookie"))
	}
}

func TestCreateCartIsRememberedBySession(t *testing.T) {
	carts := &stubCarts{cart: &domain.Cart{ID: "c1"}}
	router := newTestRouter(carts, &stubCheckout{}, stubPinger{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/cart", nil))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rec.Code)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatalf("expected session cookie")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if carts.lastCartID != "c1" {
		t.Fatalf("expected session cart c1, got %q", carts.lastCartID)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/cart?cart_id=c9", nil))
	if rec.Code != http.StatusOK || carts.lastCartID != "c9" {
		t.Fatalf("expected explicit cart id to win, got %d %q", rec.Code, carts.lastCartID)
	}
}

func TestAddItemCreatesCartWhenMissing(t *testing.T) {
	carts := &stubCarts{cart: &domain.Cart{ID: "c1"}}
	router := newTestRouter(carts, &stubCheckout{}, stubPinger{})

	req := httptest.NewRequest(http.MethodPost, "/api/cart/line-items", strings.NewReader(`{"variantId":"v1","quantity":2}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if carts.created != 1 || carts.lastCartID != "c1" {
		t.Fatalf("expected cart creation then add, created=%d cart=%q", carts.created, carts.lastCartID)
	}
}

func TestCheckoutErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		kind   string
	}{
		{domain.NewValidationError("Please select a payment method", "providerId"), http.StatusBadRequest, "validation"},
		{domain.NewConfigurationError("no providers", "add one"), http.StatusFailedDependency, "configuration"},
		{domain.NewProviderError("Your card was declined."), http.StatusPaymentRequired, "provider"},
		{domain.ErrAlreadyCompleted, http.StatusConflict, "already_completed"},
		{domain.ErrCheckoutInFlight, http.StatusConflict, "in_flight"},
		{domain.NewTransportError("Commerce backend is temporarily unavailable", nil), http.StatusBadGateway, "transport"},
		{errors.New("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		router := newTestRouter(&stubCarts{}, &stubCheckout{err: tc.err}, stubPinger{})
		req := httptest.NewRequest(http.MethodPost, "/api/checkout", strings.NewReader(`{"cartId":"c1"}`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != tc.status {
			t.Fatalf("%v: expected status %d, got %d", tc.err, tc.status, rec.Code)
		}
		body := decodeError(t, rec)
		if body.Kind != tc.kind {
			t.Fatalf("%v: expected kind %q, got %q", tc.err, tc.kind, body.Kind)
		}
		if tc.kind == "configuration" && body.Remediation != "add one" {
			t.Fatalf("expected remediation, got %q", body.Remediation)
		}
		if tc.kind == "internal" && body.Message != "internal error" {
			t.Fatalf("expected internal message to be hidden, got %q", body.Message)
		}
	}
}

func TestCheckoutSubmitReturnsResult(t *testing.T) {
	co := &stubCheckout{result: &checkout.Result{Status: checkout.StatusRequiresConfirmation, CartID: "c1", ClientSecret: "sec"}}
	router := newTestRouter(&stubCarts{}, co, stubPinger{})

	req := httptest.NewRequest(http.MethodPost, "/api/checkout", strings.NewReader(`{"providerId":"stripe"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var res checkout.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Status != checkout.StatusRequiresConfirmation || res.ClientSecret != "sec" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestProductRoutes(t *testing.T) {
	router := newTestRouter(&stubCarts{}, &stubCheckout{}, stubPinger{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/products", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"handle":"tee"`) {
		t.Fatalf("unexpected list response %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/products/x", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
}
