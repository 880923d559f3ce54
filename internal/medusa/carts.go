package medusa

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"medusa-storefront/internal/domain"
	"medusa-storefront/internal/metrics"
)

type cartEnvelope struct {
	Cart *wireCart `json:"cart"`
	// Parent is where line-item deletes put the updated cart.
	Parent *wireCart `json:"parent"`
}

func (c *Client) decodeCart(env cartEnvelope) (*domain.Cart, error) {
	w := env.Cart
	if w == nil {
		w = env.Parent
	}
	if w == nil {
		return nil, domain.NewTransportError("backend response did not include a cart", nil)
	}
	cart, warnings := w.toDomain()
	for _, warn := range warnings {
		metrics.MetadataWarnings.Inc()
		c.logger.Warn("product metadata not recognised, treating item as physical",
			zap.String("cart_id", cart.ID),
			zap.String("detail", warn),
		)
	}
	return cart, nil
}

func cartPath(cartID string, parts ...string) string {
	p := "/store/carts/" + url.PathEscape(cartID)
	for _, part := range parts {
		p += "/" + url.PathEscape(part)
	}
	return p
}

func (c *Client) GetCart(ctx context.Context, cartID string) (*domain.Cart, error) {
	var env cartEnvelope
	if err := c.do(ctx, "get_cart", http.MethodGet, cartPath(cartID), nil, nil, &env); err != nil {
		return nil, err
	}
	return c.decodeCart(env)
}

// CreateCart creates a cart, bound to regionID when it is not empty.
func (c *Client) CreateCart(ctx context.Context, regionID string) (*domain.Cart, error) {
	var body interface{}
	if regionID != "" {
		body = map[string]string{"region_id": regionID}
	}
	var env cartEnvelope
	if err := c.do(ctx, "create_cart", http.MethodPost, "/store/carts", nil, body, &env); err != nil {
		return nil, err
	}
	return c.decodeCart(env)
}

// UpdateCart posts body as a partial cart update.
func (c *Client) UpdateCart(ctx context.Context, cartID string, body interface{}) (*domain.Cart, error) {
	var env cartEnvelope
	if err := c.do(ctx, "update_cart", http.MethodPost, cartPath(cartID), nil, body, &env); err != nil {
		return nil, err
	}
	return c.decodeCart(env)
}

func (c *Client) AddLineItem(ctx context.Context, cartID, variantID string, quantity int) (*domain.Cart, error) {
	body := map[string]interface{}{"variant_id": variantID, "quantity": quantity}
	var env cartEnvelope
	if err := c.do(ctx, "add_line_item", http.MethodPost, cartPath(cartID, "line-items"), nil, body, &env); err != nil {
		return nil, err
	}
	return c.decodeCart(env)
}

func (c *Client) UpdateLineItem(ctx context.Context, cartID, lineItemID string, quantity int) (*domain.Cart, error) {
	body := map[string]interface{}{"quantity": quantity}
	var env cartEnvelope
	if err := c.do(ctx, "update_line_item", http.MethodPost, cartPath(cartID, "line-items", lineItemID), nil, body, &env); err != nil {
		return nil, err
	}
	return c.decodeCart(env)
}

func (c *Client) RemoveLineItem(ctx context.Context, cartID, lineItemID string) (*domain.Cart, error) {
	var env cartEnvelope
	if err := c.do(ctx, "remove_line_item", http.MethodDelete, cartPath(cartID, "line-items", lineItemID), nil, nil, &env); err != nil {
		return nil, err
	}
	if env.Cart == nil && env.Parent == nil {
		return c.GetCart(ctx, cartID)
	}
	return c.decodeCart(env)
}

// CompleteCart asks the backend to turn the cart into an order and returns the
// response body untouched; its shape varies between backend versions.
func (c *Client) CompleteCart(ctx context.Context, cartID string) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "complete_cart", http.MethodPost, cartPath(cartID, "complete"), nil, nil, &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, domain.NewTransportError("complete cart returned an empty body", nil)
	}
	return raw, nil
}

func (c *Client) ListRegions(ctx context.Context) ([]domain.Region, error) {
	var env struct {
		Regions []wireRegion `json:"regions"`
	}
	if err := c.do(ctx, "list_regions", http.MethodGet, "/store/regions", nil, nil, &env); err != nil {
		return nil, err
	}
	out := make([]domain.Region, 0, len(env.Regions))
	for i := range env.Regions {
		out = append(out, *env.Regions[i].toDomain())
	}
	return out, nil
}
