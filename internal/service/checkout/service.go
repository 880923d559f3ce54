package checkout

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"medusa-storefront/internal/domain"
	cartsvc "medusa-storefront/internal/service/cart"
	"medusa-storefront/internal/service/payment"
	"medusa-storefront/internal/session"
	"medusa-storefront/internal/tracing"
)

const (
	StatusCompleted            = "completed"
	StatusRequiresConfirmation = "requires_confirmation"

	defaultBillingCountry = "us"
)

type Service struct {
	carts          cartAccessor
	payments       negotiator
	finalizer      *Finalizer
	verifier       intentVerifier
	publishableKey string
	logger         *zap.Logger
	tracer         trace.Tracer
}

type cartAccessor interface {
	Get(ctx context.Context, cartID string) (*domain.Cart, error)
	Apply(ctx context.Context, cart *domain.Cart, in cartsvc.UpdateInput) (*domain.Cart, error)
}

type negotiator interface {
	Discover(ctx context.Context, cart *domain.Cart) (payment.Discovery, error)
	Negotiate(ctx context.Context, cart *domain.Cart, providerID string) (*payment.Continuation, error)
}

type intentVerifier interface {
	Verify(ctx context.Context, cart *domain.Cart, intentID string) error
}

type Deps struct {
	Carts                cartAccessor
	Payments             negotiator
	Finalizer            *Finalizer
	Verifier             intentVerifier
	StripePublishableKey string
	Logger               *zap.Logger
}

func New(d Deps) *Service {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		carts:          d.Carts,
		payments:       d.Payments,
		finalizer:      d.Finalizer,
		verifier:       d.Verifier,
		publishableKey: d.StripePublishableKey,
		logger:         logger,
		tracer:         tracing.Tracer("medusa-storefront/checkout"),
	}
}

type View struct {
	Cart                 *domain.Cart       `json:"cart"`
	DigitalOnly          bool               `json:"digitalOnly"`
	Free                 bool               `json:"free"`
	Providers            []payment.Provider `json:"providers"`
	Strategy             string             `json:"strategy,omitempty"`
	Warning              string             `json:"warning,omitempty"`
	Remediation          string             `json:"remediation,omitempty"`
	StripePublishableKey string             `json:"stripePublishableKey,omitempty"`
}

type SubmitInput struct {
	CartID          string          `json:"cartId,omitempty"`
	Email           string          `json:"email,omitempty"`
	FirstName       string          `json:"firstName,omitempty"`
	LastName        string          `json:"lastName,omitempty"`
	ShippingAddress *domain.Address `json:"shippingAddress,omitempty"`
	BillingCountry  string          `json:"billingCountry,omitempty"`
	ProviderID      string          `json:"providerId,omitempty"`
}

type ConfirmInput struct {
	CartID          string `json:"cartId,omitempty"`
	PaymentIntentID string `json:"paymentIntentId,omitempty"`
	Error           string `json:"error,omitempty"`
}

type Result struct {
	Status               string                 `json:"status"`
	CartID               string                 `json:"cartId"`
	Provider             *payment.Provider      `json:"provider,omitempty"`
	ClientSecret         string                 `json:"clientSecret,omitempty"`
	StripePublishableKey string                 `json:"stripePublishableKey,omitempty"`
	BankDetails          map[string]interface{} `json:"bankDetails,omitempty"`
	Order                *domain.Order          `json:"order,omitempty"`
	Redirect             string                 `json:"redirect,omitempty"`
}

func (s *Service) resolveCartID(ctx context.Context, sess *session.Session, explicit string) (string, error) {
	if id := strings.TrimSpace(explicit); id != "" {
		return id, nil
	}
	id, err := sess.CartID(ctx)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", domain.NewNotFoundError("No cart found")
	}
	return id, nil
}

func (s *Service) guard(ctx context.Context, sess *session.Session, cartID string) error {
	st, err := sess.Completion(ctx, cartID)
	if err != nil {
		return err
	}
	switch st {
	case session.CompletionDone:
		return domain.ErrAlreadyCompleted
	case session.CompletionInFlight:
		return domain.ErrCheckoutInFlight
	}
	return nil
}

// Load gathers what the checkout page needs to render.
func (s *Service) Load(ctx context.Context, sess *session.Session, cartID string) (*View, error) {
	cartID, err := s.resolveCartID(ctx, sess, cartID)
	if err != nil {
		return nil, err
	}
	if st, err := sess.Completion(ctx, cartID); err != nil {
		return nil, err
	} else if st == session.CompletionDone {
		return nil, domain.ErrAlreadyCompleted
	}

	cart, err := s.carts.Get(ctx, cartID)
	if err != nil {
		return nil, err
	}
	view := &View{
		Cart:                 cart,
		DigitalOnly:          cart.IsDigitalOnly(),
		Free:                 cart.IsFree(),
		Providers:            []payment.Provider{},
		StripePublishableKey: s.publishableKey,
	}
	if view.Free {
		return view, nil
	}

	d, err := s.payments.Discover(ctx, cart)
	switch {
	case err == nil:
		view.Providers = d.Providers
		view.Strategy = d.Strategy
	case errors.Is(err, domain.ErrConfiguration):
		view.Warning = domain.Message(err)
		var de *domain.Error
		if errors.As(err, &de) {
			view.Remediation = de.Remediation
		}
	default:
		return nil, err
	}
	return view, nil
}

// Submit records the buyer details and either completes the order or hands
// back what the browser needs to confirm a card payment.
func (s *Service) Submit(ctx context.Context, sess *session.Session, in SubmitInput) (res *Result, err error) {
	ctx, span := s.tracer.Start(ctx, "checkout.submit")
	defer func() { endSpan(span, res, err) }()

	cartID, err := s.resolveCartID(ctx, sess, in.CartID)
	if err != nil {
		return nil, err
	}
	if err := s.guard(ctx, sess, cartID); err != nil {
		return nil, err
	}
	log := s.logger.With(zap.String("cart_id", cartID), zap.String("session_id", sess.ID()))

	cart, err := s.carts.Get(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if cart.IsCompleted() {
		return nil, domain.ErrAlreadyCompleted
	}

	cart, err = s.carts.Apply(ctx, cart, buildUpdate(cart, in))
	if err != nil {
		return nil, err
	}

	if cart.IsFree() {
		log.Info("zero total cart, completing without payment")
		return s.complete(ctx, sess, cartID, nil)
	}

	d, err := s.payments.Discover(ctx, cart)
	if err != nil {
		if !errors.Is(err, domain.ErrConfiguration) {
			return nil, err
		}
		log.Warn("no payment providers configured, attempting completion anyway", zap.Error(err))
		return s.complete(ctx, sess, cartID, nil)
	}

	providerID := strings.TrimSpace(in.ProviderID)
	if providerID == "" {
		return nil, domain.NewValidationError("Please select a payment method", "providerId")
	}
	if !d.Has(providerID) {
		return nil, domain.NewValidationError("Unknown payment method "+providerID, "providerId")
	}

	cont, err := s.payments.Negotiate(ctx, cart, providerID)
	if err != nil {
		return nil, err
	}
	if cont.Provider.Kind == payment.KindCard {
		return &Result{
			Status:               StatusRequiresConfirmation,
			CartID:               cartID,
			Provider:             &cont.Provider,
			ClientSecret:         cont.ClientSecret,
			StripePublishableKey: s.publishableKey,
		}, nil
	}

	res, err = s.complete(ctx, sess, cartID, &cont.Provider)
	if err != nil {
		return nil, err
	}
	res.BankDetails = cont.BankDetails
	return res, nil
}

// Confirm completes a card checkout after the browser confirmed the payment.
func (s *Service) Confirm(ctx context.Context, sess *session.Session, in ConfirmInput) (res *Result, err error) {
	ctx, span := s.tracer.Start(ctx, "checkout.confirm")
	defer func() { endSpan(span, res, err) }()

	cartID, err := s.resolveCartID(ctx, sess, in.CartID)
	if err != nil {
		return nil, err
	}
	if msg := strings.TrimSpace(in.Error); msg != "" {
		return nil, domain.NewProviderError(msg)
	}
	if err := s.guard(ctx, sess, cartID); err != nil {
		return nil, err
	}
	if s.verifier != nil {
		cart, err := s.carts.Get(ctx, cartID)
		if err != nil {
			return nil, err
		}
		if err := s.verifier.Verify(ctx, cart, in.PaymentIntentID); err != nil {
			return nil, err
		}
	}
	return s.complete(ctx, sess, cartID, nil)
}

func (s *Service) Order(ctx context.Context, sess *session.Session, orderID string) (*domain.Order, error) {
	return s.finalizer.Order(ctx, sess, orderID)
}

func (s *Service) complete(ctx context.Context, sess *session.Session, cartID string, provider *payment.Provider) (*Result, error) {
	c, err := s.finalizer.Complete(ctx, sess, cartID)
	if err != nil {
		return nil, err
	}
	return &Result{
		Status:   StatusCompleted,
		CartID:   cartID,
		Provider: provider,
		Order:    c.Order,
		Redirect: c.Redirect,
	}, nil
}

func endSpan(span trace.Span, res *Result, err error) {
	if err != nil {
		span.SetAttributes(attribute.String("checkout.error_kind", domain.KindName(err)))
		span.SetStatus(codes.Error, domain.Message(err))
	} else if res != nil {
		span.SetAttributes(attribute.String("checkout.status", res.Status))
	}
	span.End()
}

func buildUpdate(cart *domain.Cart, in SubmitInput) cartsvc.UpdateInput {
	email := strings.TrimSpace(in.Email)
	if email == "" {
		email = "guest+" + cart.ID + "@example.com"
	}
	if !cart.IsDigitalOnly() {
		return cartsvc.UpdateInput{Email: email, ShippingAddress: in.ShippingAddress}
	}
	country := strings.ToLower(strings.TrimSpace(in.BillingCountry))
	if country == "" {
		country = defaultBillingCountry
	}
	return cartsvc.UpdateInput{
		Email: email,
		BillingAddress: &domain.Address{
			FirstName:   strings.TrimSpace(in.FirstName),
			LastName:    strings.TrimSpace(in.LastName),
			CountryCode: country,
		},
	}
}
