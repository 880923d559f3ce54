package payments

import (
	"context"
	"errors"
	"strings"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"

	"medusa-storefront/internal/domain"
)

type paymentIntentAPI interface {
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

// StripeVerifier checks that a browser-confirmed PaymentIntent actually went through.
type StripeVerifier struct {
	api paymentIntentAPI
}

// NewStripeVerifier returns nil when secretKey is empty; a nil verifier accepts everything.
func NewStripeVerifier(secretKey string) *StripeVerifier {
	secretKey = strings.TrimSpace(secretKey)
	if secretKey == "" {
		return nil
	}
	sc := client.New(secretKey, nil)
	return &StripeVerifier{api: sc.PaymentIntents}
}

func (v *StripeVerifier) Enabled() bool {
	return v != nil && v.api != nil
}

// Verify fetches the intent and fails with a provider error unless it belongs
// to one of the cart's card sessions and has succeeded or is on its way to it.
func (v *StripeVerifier) Verify(ctx context.Context, cart *domain.Cart, intentID string) error {
	if !v.Enabled() {
		return nil
	}
	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return domain.NewValidationError("payment intent id required", "payment_intent_id")
	}

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := v.api.Get(intentID, params)
	if err != nil {
		var se *stripe.Error
		if errors.As(err, &se) && se.Msg != "" {
			return domain.NewProviderError(se.Msg)
		}
		return domain.NewTransportError("Failed to verify payment", err)
	}

	if !belongsTo(cart, pi) {
		return domain.NewProviderError(mismatchMessage)
	}
	if cart.Currency != "" && pi.Currency != "" && !strings.EqualFold(cart.Currency, string(pi.Currency)) {
		return domain.NewProviderError(mismatchMessage)
	}

	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded,
		stripe.PaymentIntentStatusRequiresCapture,
		stripe.PaymentIntentStatusProcessing:
		return nil
	}
	if pi.LastPaymentError != nil && pi.LastPaymentError.Msg != "" {
		return domain.NewProviderError(pi.LastPaymentError.Msg)
	}
	return domain.NewProviderError("Payment not completed: " + string(pi.Status))
}

const mismatchMessage = "Payment does not match this cart"

// belongsTo matches pi against the card sessions of cart, by the intent id the
// session stores, the id embedded in its client secret, or the session id the
// backend writes into the intent metadata.
func belongsTo(cart *domain.Cart, pi *stripe.PaymentIntent) bool {
	if cart == nil || pi == nil {
		return false
	}
	for _, sess := range cart.Sessions() {
		if !strings.Contains(sess.ProviderID, "stripe") {
			continue
		}
		if id, _ := sess.Data["id"].(string); id != "" && id == pi.ID {
			return true
		}
		if secret := sess.ClientSecret(); secret != "" {
			if id, _, ok := strings.Cut(secret, "_secret_"); ok && id == pi.ID {
				return true
			}
		}
		if sess.ID != "" && pi.Metadata["session_id"] == sess.ID {
			return true
		}
	}
	return false
}
