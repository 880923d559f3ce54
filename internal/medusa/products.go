package medusa

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"medusa-storefront/internal/domain"
	"medusa-storefront/internal/metrics"
)

type wireImage struct {
	URL string `json:"url"`
}

type wirePrice struct {
	CalculatedAmount *amount `json:"calculated_amount"`
	CurrencyCode     string  `json:"currency_code"`
}

type wireVariant struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	SKU             string     `json:"sku"`
	CalculatedPrice *wirePrice `json:"calculated_price"`
}

type wireProduct struct {
	ID          string        `json:"id"`
	Handle      string        `json:"handle"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Thumbnail   string        `json:"thumbnail"`
	Images      []wireImage   `json:"images"`
	Metadata    interface{}   `json:"metadata"`
	Variants    []wireVariant `json:"variants"`
}

func (c *Client) productToDomain(p wireProduct) domain.Product {
	traits, warnings := domain.TraitsFromMetadata(p.Description, domain.MetadataFromAny(p.Metadata))
	for _, w := range warnings {
		metrics.MetadataWarnings.Inc()
		c.logger.Warn("product metadata not recognised, treating product as physical",
			zap.String("product_id", p.ID),
			zap.String("detail", w),
		)
	}
	out := domain.Product{
		ID:          p.ID,
		Handle:      p.Handle,
		Title:       p.Title,
		Description: domain.StripMarkers(p.Description),
		Thumbnail:   p.Thumbnail,
		Traits:      traits,
	}
	for _, img := range p.Images {
		if img.URL != "" {
			out.Images = append(out.Images, img.URL)
		}
	}
	for _, v := range p.Variants {
		dv := domain.Variant{ID: v.ID, Title: v.Title, SKU: v.SKU}
		if v.CalculatedPrice != nil && v.CalculatedPrice.CalculatedAmount != nil {
			cents := int64(*v.CalculatedPrice.CalculatedAmount)
			dv.PriceCents = &cents
			dv.Currency = v.CalculatedPrice.CurrencyCode
		}
		out.Variants = append(out.Variants, dv)
	}
	return out
}

func (c *Client) listProducts(ctx context.Context, query url.Values) ([]wireProduct, error) {
	var env struct {
		Products []wireProduct `json:"products"`
	}
	if err := c.do(ctx, "list_products", http.MethodGet, "/store/products", query, nil, &env); err != nil {
		return nil, err
	}
	return env.Products, nil
}

func (c *Client) ListProducts(ctx context.Context, regionID string) ([]domain.Product, error) {
	q := url.Values{"fields": {"*images,*variants.calculated_price"}}
	if regionID != "" {
		q.Set("region_id", regionID)
	}
	products, err := c.listProducts(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Product, 0, len(products))
	for _, p := range products {
		out = append(out, c.productToDomain(p))
	}
	return out, nil
}

// ProductByHandle fetches the priced listing and the handle endpoint
// concurrently and merges them: prices come from the listing, metadata and
// images from the handle endpoint. Either source alone is enough.
func (c *Client) ProductByHandle(ctx context.Context, handle, regionID string) (*domain.Product, error) {
	var (
		priced     *wireProduct
		detailed   *wireProduct
		pricedErr  error
		detailsErr error
	)

	var g errgroup.Group
	g.Go(func() error {
		q := url.Values{
			"handle": {handle},
			"fields": {"*variants.calculated_price,images"},
		}
		if regionID != "" {
			q.Set("region_id", regionID)
		}
		products, err := c.listProducts(ctx, q)
		if err != nil {
			pricedErr = err
			return nil
		}
		priced = pickByHandle(products, handle)
		return nil
	})
	g.Go(func() error {
		var env struct {
			Product *wireProduct `json:"product"`
		}
		path := "/store/products/handle/" + url.PathEscape(handle)
		if err := c.do(ctx, "product_by_handle", http.MethodGet, path, nil, nil, &env); err != nil {
			detailsErr = err
			return nil
		}
		detailed = env.Product
		return nil
	})
	_ = g.Wait()

	switch {
	case priced != nil && detailed != nil:
		merged := mergeProducts(*priced, *detailed)
		p := c.productToDomain(merged)
		return &p, nil
	case priced != nil:
		p := c.productToDomain(*priced)
		return &p, nil
	case detailed != nil:
		p := c.productToDomain(*detailed)
		return &p, nil
	}

	c.logger.Debug("product lookup failed on both endpoints",
		zap.String("handle", handle),
		zap.NamedError("listing_error", pricedErr),
		zap.NamedError("handle_error", detailsErr),
	)
	return nil, domain.NewNotFoundError(`Failed to fetch product with handle "` + handle + `"`)
}

func pickByHandle(products []wireProduct, handle string) *wireProduct {
	for i := range products {
		if products[i].Handle == handle {
			return &products[i]
		}
	}
	for i := range products {
		if strings.EqualFold(products[i].Handle, handle) {
			return &products[i]
		}
	}
	if len(products) > 0 {
		return &products[0]
	}
	return nil
}

func mergeProducts(priced, detailed wireProduct) wireProduct {
	out := detailed
	if len(priced.Variants) > 0 {
		byID := make(map[string]wireVariant, len(detailed.Variants))
		for _, v := range detailed.Variants {
			byID[v.ID] = v
		}
		out.Variants = make([]wireVariant, 0, len(priced.Variants))
		for _, pv := range priced.Variants {
			v, ok := byID[pv.ID]
			if !ok {
				v = pv
			}
			v.CalculatedPrice = pv.CalculatedPrice
			out.Variants = append(out.Variants, v)
		}
	}
	if len(out.Images) == 0 {
		out.Images = priced.Images
	}
	if out.Metadata == nil {
		out.Metadata = priced.Metadata
	}
	if out.Thumbnail == "" {
		out.Thumbnail = priced.Thumbnail
	}
	return out
}
