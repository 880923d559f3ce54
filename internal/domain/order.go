package domain

import "encoding/json"

type Order struct {
	ID         string     `json:"id"`
	DisplayID  string     `json:"displayId,omitempty"`
	CartID     string     `json:"cartId,omitempty"`
	Email      string     `json:"email,omitempty"`
	Status     string     `json:"status,omitempty"`
	Currency   string     `json:"currency,omitempty"`
	TotalCents int64      `json:"totalCents"`
	Lines      []CartLine `json:"lineItems,omitempty"`
	// Raw is the order body exactly as the backend returned it.
	Raw json.RawMessage `json:"-"`
}
