package domain

type Product struct {
	ID          string    `json:"id"`
	Handle      string    `json:"handle"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Thumbnail   string    `json:"thumbnail,omitempty"`
	Images      []string  `json:"images,omitempty"`
	Variants    []Variant `json:"variants,omitempty"`
	Traits      Traits    `json:"traits"`
}

type Variant struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
	SKU   string `json:"sku,omitempty"`
	// PriceCents is the region-calculated amount; nil when the backend did not price the variant.
	PriceCents *int64 `json:"priceCents,omitempty"`
	Currency   string `json:"currency,omitempty"`
}
