package payment

import (
	"context"

	"go.uber.org/zap"

	"medusa-storefront/internal/domain"
	"medusa-storefront/internal/metrics"
)

// shape builds one variant of the select-session request body. ok is false
// when the shape cannot be expressed with what is known.
type shape struct {
	name  string
	build func(providerID string, sessions []domain.PaymentSession) (body interface{}, ok bool)
}

var shapes = []shape{
	{"provider_object", func(providerID string, _ []domain.PaymentSession) (interface{}, bool) {
		return map[string]interface{}{"payment_session": map[string]string{"provider_id": providerID}}, true
	}},
	{"session_id", func(providerID string, sessions []domain.PaymentSession) (interface{}, bool) {
		ps := findSession(sessions, providerID)
		if ps == nil || ps.ID == "" {
			return nil, false
		}
		return map[string]string{"payment_session_id": ps.ID}, true
	}},
	{"provider_string", func(providerID string, _ []domain.PaymentSession) (interface{}, bool) {
		return map[string]string{"payment_session": providerID}, true
	}},
}

type Continuation struct {
	Provider     Provider               `json:"provider"`
	Session      *domain.PaymentSession `json:"session,omitempty"`
	ClientSecret string                 `json:"clientSecret,omitempty"`
	BankDetails  map[string]interface{} `json:"bankDetails,omitempty"`
	Cart         *domain.Cart           `json:"-"`
}

// Select makes providerID the cart's active payment session, creating
// sessions first when the provider has none.
func (s *Service) Select(ctx context.Context, cart *domain.Cart, providerID string) (*domain.Cart, error) {
	updated, _, err := s.selectSession(ctx, cart, providerID)
	return updated, err
}

func (s *Service) selectSession(ctx context.Context, cart *domain.Cart, providerID string) (*domain.Cart, []domain.PaymentSession, error) {
	log := s.logger.With(zap.String("cart_id", cart.ID), zap.String("provider_id", providerID))

	sessions := cart.Sessions()
	if findSession(sessions, providerID) == nil {
		if err := s.backend.CreatePaymentSessions(ctx, cart.ID, providerID); err != nil {
			return nil, nil, err
		}
		listed, err := s.backend.ListPaymentSessions(ctx, cart.ID)
		if err != nil {
			log.Warn("list payment sessions after create failed", zap.Error(err))
		} else {
			sessions = listed
		}
	}

	for _, sh := range shapes {
		body, ok := sh.build(providerID, sessions)
		if !ok {
			continue
		}
		updated, err := s.backend.UpdateCart(ctx, cart.ID, body)
		if err != nil {
			log.Debug("select session shape rejected", zap.String("shape", sh.name), zap.Error(err))
			continue
		}
		metrics.SelectionShape.WithLabelValues(sh.name).Inc()
		log.Info("payment session selected", zap.String("shape", sh.name))
		return updated, sessions, nil
	}

	metrics.SelectionShape.WithLabelValues("none").Inc()
	log.Warn("no select session shape accepted, assuming backend auto-selected")
	updated, err := s.backend.GetCart(ctx, cart.ID)
	if err != nil {
		return nil, nil, err
	}
	return updated, sessions, nil
}

// Negotiate selects providerID and returns what the client needs to continue.
func (s *Service) Negotiate(ctx context.Context, cart *domain.Cart, providerID string) (*Continuation, error) {
	if providerID == "" {
		return nil, domain.NewValidationError("Please select a payment method", "provider_id")
	}
	updated, sessions, err := s.selectSession(ctx, cart, providerID)
	if err != nil {
		return nil, err
	}

	ps := findSession(updated.Sessions(), providerID)
	if ps == nil {
		ps = findSession(sessions, providerID)
	}

	cont := &Continuation{Provider: NewProvider(providerID), Session: ps, Cart: updated}
	switch {
	case cont.Provider.Kind == KindCard:
		if ps != nil {
			cont.ClientSecret = ps.ClientSecret()
		}
		if cont.ClientSecret == "" {
			return nil, domain.NewProviderError("Payment provider did not return a client secret")
		}
	case providerID == BankTransferID && ps != nil && len(ps.Data) > 0:
		cont.BankDetails = ps.Data
	}
	return cont, nil
}

func findSession(sessions []domain.PaymentSession, providerID string) *domain.PaymentSession {
	for i := range sessions {
		if sessions[i].ProviderID == providerID {
			return &sessions[i]
		}
	}
	return nil
}
