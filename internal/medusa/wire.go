package medusa

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"medusa-storefront/internal/domain"
)

// amount accepts numbers, numeric strings and null.
type amount int64

func (a *amount) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(b)), `"`)
	if s == "" || s == "null" {
		*a = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("amount %q: %w", s, err)
	}
	*a = amount(math.Round(f))
	return nil
}

// flexString accepts both strings and numbers, e.g. an order display id.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(b)
	return nil
}

type wireMetadataHolder struct {
	Description string      `json:"description"`
	Metadata    interface{} `json:"metadata"`
}

type wireVariantRef struct {
	Product *wireMetadataHolder `json:"product"`
}

type wireLineItem struct {
	ID        string              `json:"id"`
	VariantID string              `json:"variant_id"`
	ProductID string              `json:"product_id"`
	Title     string              `json:"title"`
	Quantity  int                 `json:"quantity"`
	UnitPrice amount              `json:"unit_price"`
	Total     amount              `json:"total"`
	Metadata  interface{}         `json:"metadata"`
	Product   *wireMetadataHolder `json:"product"`
	Variant   *wireVariantRef     `json:"variant"`
}

type wireProvider struct {
	ID         string `json:"id"`
	ProviderID string `json:"provider_id"`
}

type wireCountry struct {
	ISO2 string `json:"iso_2"`
}

type wireRegion struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	CurrencyCode     string         `json:"currency_code"`
	Countries        []wireCountry  `json:"countries"`
	PaymentProviders []wireProvider `json:"payment_providers"`
}

type wireSession struct {
	ID         string                 `json:"id"`
	ProviderID string                 `json:"provider_id"`
	Status     string                 `json:"status"`
	Amount     amount                 `json:"amount"`
	Data       map[string]interface{} `json:"data"`
}

type wirePaymentCollection struct {
	ID              string        `json:"id"`
	PaymentSessions []wireSession `json:"payment_sessions"`
}

type wireCart struct {
	ID                string                 `json:"id"`
	Email             string                 `json:"email"`
	RegionID          string                 `json:"region_id"`
	Region            *wireRegion            `json:"region"`
	CurrencyCode      string                 `json:"currency_code"`
	Total             *amount                `json:"total"`
	Subtotal          amount                 `json:"subtotal"`
	Items             []wireLineItem         `json:"items"`
	ShippingAddress   *domain.Address        `json:"shipping_address"`
	BillingAddress    *domain.Address        `json:"billing_address"`
	PaymentCollection *wirePaymentCollection `json:"payment_collection"`
	PaymentSessions   []wireSession          `json:"payment_sessions"`
	CompletedAt       *time.Time             `json:"completed_at"`
}

type wireOrder struct {
	ID           string         `json:"id"`
	DisplayID    flexString     `json:"display_id"`
	CartID       string         `json:"cart_id"`
	Email        string         `json:"email"`
	Status       string         `json:"status"`
	CurrencyCode string         `json:"currency_code"`
	Total        amount         `json:"total"`
	Items        []wireLineItem `json:"items"`
}

func (r *wireRegion) toDomain() *domain.Region {
	if r == nil {
		return nil
	}
	out := &domain.Region{
		ID:               r.ID,
		Name:             r.Name,
		Currency:         r.CurrencyCode,
		PaymentProviders: providersToDomain(r.PaymentProviders),
	}
	for _, c := range r.Countries {
		if c.ISO2 != "" {
			out.Countries = append(out.Countries, c.ISO2)
		}
	}
	return out
}

// providersToDomain keeps the provider id, falling back to provider_id.
func providersToDomain(in []wireProvider) []domain.PaymentProvider {
	if len(in) == 0 {
		return nil
	}
	out := make([]domain.PaymentProvider, 0, len(in))
	for _, p := range in {
		id := p.ID
		if id == "" {
			id = p.ProviderID
		}
		if id == "" {
			continue
		}
		out = append(out, domain.PaymentProvider{ID: id})
	}
	return out
}

func sessionsToDomain(in []wireSession) []domain.PaymentSession {
	if len(in) == 0 {
		return nil
	}
	out := make([]domain.PaymentSession, 0, len(in))
	for _, s := range in {
		out = append(out, domain.PaymentSession{
			ID:          s.ID,
			ProviderID:  s.ProviderID,
			Status:      s.Status,
			AmountCents: int64(s.Amount),
			Data:        s.Data,
		})
	}
	return out
}

func linesToDomain(items []wireLineItem, currency string) ([]domain.CartLine, []string) {
	var (
		lines    []domain.CartLine
		warnings []string
	)
	for _, it := range items {
		var sources []domain.Metadata
		description := ""
		if it.Variant != nil && it.Variant.Product != nil {
			sources = append(sources, domain.MetadataFromAny(it.Variant.Product.Metadata))
			description = it.Variant.Product.Description
		}
		if it.Product != nil {
			sources = append(sources, domain.MetadataFromAny(it.Product.Metadata))
			if description == "" {
				description = it.Product.Description
			}
		}
		sources = append(sources, domain.MetadataFromAny(it.Metadata))
		traits, warn := domain.TraitsFromMetadata(description, sources...)
		for _, w := range warn {
			warnings = append(warnings, fmt.Sprintf("line %s: %s", it.ID, w))
		}

		total := int64(it.Total)
		if total == 0 {
			total = int64(it.UnitPrice) * int64(it.Quantity)
		}
		lines = append(lines, domain.CartLine{
			ID:             it.ID,
			VariantID:      it.VariantID,
			ProductID:      it.ProductID,
			Title:          it.Title,
			Quantity:       it.Quantity,
			UnitPriceCents: int64(it.UnitPrice),
			TotalCents:     total,
			Currency:       currency,
			Traits:         traits,
		})
	}
	return lines, warnings
}

func (w *wireCart) toDomain() (*domain.Cart, []string) {
	lines, warnings := linesToDomain(w.Items, w.CurrencyCode)
	cart := &domain.Cart{
		ID:              w.ID,
		Email:           w.Email,
		RegionID:        w.RegionID,
		Region:          w.Region.toDomain(),
		Currency:        w.CurrencyCode,
		SubtotalCents:   int64(w.Subtotal),
		Lines:           lines,
		ShippingAddress: w.ShippingAddress,
		BillingAddress:  w.BillingAddress,
		PaymentSessions: sessionsToDomain(w.PaymentSessions),
		CompletedAt:     w.CompletedAt,
	}
	// A cart without a total is priced from its lines; when that gives nothing
	// the total stays unknown so the cart is never taken for a free one.
	if w.Total != nil {
		cart.TotalCents = int64(*w.Total)
	} else {
		for _, l := range lines {
			cart.TotalCents += l.TotalCents
		}
		cart.TotalUnknown = cart.TotalCents == 0
	}
	if cart.RegionID == "" && cart.Region != nil {
		cart.RegionID = cart.Region.ID
	}
	if w.PaymentCollection != nil {
		cart.PaymentCollection = &domain.PaymentCollection{
			ID:       w.PaymentCollection.ID,
			Sessions: sessionsToDomain(w.PaymentCollection.PaymentSessions),
		}
	}
	return cart, warnings
}

// DecodeOrder maps a backend order body onto domain.Order, keeping the raw JSON.
func DecodeOrder(raw json.RawMessage) (*domain.Order, error) {
	var w wireOrder
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("decode order: %w", err)
	}
	lines, _ := linesToDomain(w.Items, w.CurrencyCode)
	return &domain.Order{
		ID:         w.ID,
		DisplayID:  string(w.DisplayID),
		CartID:     w.CartID,
		Email:      w.Email,
		Status:     w.Status,
		Currency:   w.CurrencyCode,
		TotalCents: int64(w.Total),
		Lines:      lines,
		Raw:        append(json.RawMessage(nil), raw...),
	}, nil
}
