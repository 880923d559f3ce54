package medusa

import (
	"context"
	"net/http"
	"net/url"

	"medusa-storefront/internal/domain"
)

// RegionPaymentProviders reads the providers configured for a region.
func (c *Client) RegionPaymentProviders(ctx context.Context, regionID string) ([]domain.PaymentProvider, error) {
	var env struct {
		Region *wireRegion `json:"region"`
		// Newer backends answer with a flat list.
		PaymentProviders []wireProvider `json:"payment_providers"`
	}
	path := "/store/regions/" + url.PathEscape(regionID) + "/payment-providers"
	if err := c.do(ctx, "region_payment_providers", http.MethodGet, path, nil, nil, &env); err != nil {
		return nil, err
	}
	if env.Region != nil && len(env.Region.PaymentProviders) > 0 {
		return providersToDomain(env.Region.PaymentProviders), nil
	}
	return providersToDomain(env.PaymentProviders), nil
}

// CreatePaymentSessions asks the backend to initialise payment sessions for the
// cart. providerID is a hint; some backends create one session per region provider regardless.
func (c *Client) CreatePaymentSessions(ctx context.Context, cartID, providerID string) error {
	var body interface{}
	if providerID != "" {
		body = map[string]string{"provider_id": providerID}
	}
	return c.do(ctx, "create_payment_sessions", http.MethodPost, cartPath(cartID, "payment-sessions"), nil, body, nil)
}

func (c *Client) ListPaymentSessions(ctx context.Context, cartID string) ([]domain.PaymentSession, error) {
	var env struct {
		PaymentSessions   []wireSession          `json:"payment_sessions"`
		PaymentCollection *wirePaymentCollection `json:"payment_collection"`
	}
	if err := c.do(ctx, "list_payment_sessions", http.MethodGet, cartPath(cartID, "payment-sessions"), nil, nil, &env); err != nil {
		return nil, err
	}
	if len(env.PaymentSessions) == 0 && env.PaymentCollection != nil {
		return sessionsToDomain(env.PaymentCollection.PaymentSessions), nil
	}
	return sessionsToDomain(env.PaymentSessions), nil
}
