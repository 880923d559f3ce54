package domain

import "time"

type Cart struct {
	ID                string             `json:"id"`
	Email             string             `json:"email,omitempty"`
	RegionID          string             `json:"regionId,omitempty"`
	Region            *Region            `json:"region,omitempty"`
	Currency          string             `json:"currency"`
	TotalCents        int64              `json:"totalCents"`
	TotalUnknown      bool               `json:"totalUnknown,omitempty"`
	SubtotalCents     int64              `json:"subtotalCents"`
	Lines             []CartLine         `json:"lineItems,omitempty"`
	ShippingAddress   *Address           `json:"shippingAddress,omitempty"`
	BillingAddress    *Address           `json:"billingAddress,omitempty"`
	PaymentCollection *PaymentCollection `json:"paymentCollection,omitempty"`
	// PaymentSessions holds sessions embedded at the top level by older backends.
	PaymentSessions []PaymentSession `json:"paymentSessions,omitempty"`
	CompletedAt     *time.Time       `json:"completedAt,omitempty"`
}

type CartLine struct {
	ID             string `json:"id"`
	VariantID      string `json:"variantId,omitempty"`
	ProductID      string `json:"productId,omitempty"`
	Title          string `json:"title,omitempty"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unitPriceCents"`
	TotalCents     int64  `json:"totalCents"`
	Currency       string `json:"currency,omitempty"`
	Traits         Traits `json:"traits"`
}

type Address struct {
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	Address1    string `json:"address_1,omitempty"`
	City        string `json:"city,omitempty"`
	PostalCode  string `json:"postal_code,omitempty"`
	CountryCode string `json:"country_code,omitempty"`
	Phone       string `json:"phone,omitempty"`
}

type Region struct {
	ID               string            `json:"id"`
	Name             string            `json:"name,omitempty"`
	Currency         string            `json:"currency,omitempty"`
	Countries        []string          `json:"countries,omitempty"`
	PaymentProviders []PaymentProvider `json:"paymentProviders,omitempty"`
}

type PaymentProvider struct {
	ID string `json:"id"`
}

type PaymentCollection struct {
	ID       string           `json:"id"`
	Sessions []PaymentSession `json:"paymentSessions,omitempty"`
}

type PaymentSession struct {
	ID          string                 `json:"id"`
	ProviderID  string                 `json:"providerId"`
	Status      string                 `json:"status,omitempty"`
	AmountCents int64                  `json:"amountCents"`
	Data        map[string]interface{} `json:"data,omitempty"`
}

// ClientSecret returns the card processor secret carried in the session data, if any.
func (s PaymentSession) ClientSecret() string {
	if s.Data == nil {
		return ""
	}
	v, _ := s.Data["client_secret"].(string)
	return v
}

// Sessions returns the payment sessions known for the cart, preferring the
// top-level list and falling back to the payment collection.
func (c *Cart) Sessions() []PaymentSession {
	if len(c.PaymentSessions) > 0 {
		return c.PaymentSessions
	}
	if c.PaymentCollection != nil {
		return c.PaymentCollection.Sessions
	}
	return nil
}

// IsFree reports a cart whose total is known to be zero.
func (c *Cart) IsFree() bool {
	return !c.TotalUnknown && c.TotalCents == 0
}

// IsDigitalOnly reports whether every line is a digital product. Carts without
// lines count as physical.
func (c *Cart) IsDigitalOnly() bool {
	if len(c.Lines) == 0 {
		return false
	}
	for _, l := range c.Lines {
		if !l.Traits.IsDigital {
			return false
		}
	}
	return true
}

func (c *Cart) IsCompleted() bool {
	return c.CompletedAt != nil
}
