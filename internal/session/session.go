package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"medusa-storefront/internal/domain"
	staterepo "medusa-storefront/internal/repository/state"
)

const (
	// CookieName carries the session id between the browser and the storefront.
	CookieName = "sf_session"

	KeyCartID = "cart_id"
)

type CompletionState string

const (
	CompletionNone     CompletionState = ""
	CompletionInFlight CompletionState = "in_flight"
	CompletionDone     CompletionState = "completed"
)

// OrderKey is the key a completed order is cached under.
func OrderKey(orderID string) string {
	return "order_" + orderID
}

func checkoutKey(cartID string) string {
	return "checkout_" + cartID
}

type Manager struct {
	repo staterepo.Repository
}

func NewManager(repo staterepo.Repository) *Manager {
	return &Manager{repo: repo}
}

// New starts a fresh session with a random id.
func (m *Manager) New() *Session {
	return &Session{id: uuid.NewString(), repo: m.repo}
}

// Open resumes the session named by id. Ids that are not UUIDs are refused.
func (m *Manager) Open(id string) (*Session, bool) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, false
	}
	return &Session{id: parsed.String(), repo: m.repo}, true
}

// Session is the explicit per-visitor state the checkout works against: the
// current cart pointer, cached orders and per-cart completion guards.
type Session struct {
	id   string
	repo staterepo.Repository
}

func (s *Session) ID() string {
	return s.id
}

// CartID returns the current cart id, or "" when none is set.
func (s *Session) CartID(ctx context.Context) (string, error) {
	v, err := s.repo.Get(ctx, s.id, KeyCartID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("read cart id: %w", err)
	}
	return string(v), nil
}

func (s *Session) SetCartID(ctx context.Context, cartID string) error {
	return s.repo.Set(ctx, s.id, KeyCartID, []byte(cartID))
}

func (s *Session) ClearCartID(ctx context.Context) error {
	return s.repo.Delete(ctx, s.id, KeyCartID)
}

func (s *Session) SaveOrder(ctx context.Context, orderID string, raw []byte) error {
	return s.repo.Set(ctx, s.id, OrderKey(orderID), raw)
}

// Order returns the cached order body, or domain.ErrNotFound.
func (s *Session) Order(ctx context.Context, orderID string) ([]byte, error) {
	return s.repo.Get(ctx, s.id, OrderKey(orderID))
}

func (s *Session) Completion(ctx context.Context, cartID string) (CompletionState, error) {
	v, err := s.repo.Get(ctx, s.id, checkoutKey(cartID))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return CompletionNone, nil
		}
		return CompletionNone, fmt.Errorf("read completion state: %w", err)
	}
	return CompletionState(v), nil
}

// BeginCompletion takes the completion guard for cartID. It fails with
// domain.ErrAlreadyCompleted or domain.ErrCheckoutInFlight when the guard is held.
func (s *Session) BeginCompletion(ctx context.Context, cartID string) error {
	ok, err := s.repo.SetIfAbsent(ctx, s.id, checkoutKey(cartID), []byte(CompletionInFlight))
	if err != nil {
		return fmt.Errorf("take completion guard: %w", err)
	}
	if ok {
		return nil
	}
	st, err := s.Completion(ctx, cartID)
	if err != nil {
		return err
	}
	if st == CompletionDone {
		return domain.ErrAlreadyCompleted
	}
	return domain.ErrCheckoutInFlight
}

func (s *Session) FinishCompletion(ctx context.Context, cartID string) error {
	return s.repo.Set(ctx, s.id, checkoutKey(cartID), []byte(CompletionDone))
}

// AbortCompletion releases the guard so the cart can be submitted again.
func (s *Session) AbortCompletion(ctx context.Context, cartID string) error {
	return s.repo.Delete(ctx, s.id, checkoutKey(cartID))
}
