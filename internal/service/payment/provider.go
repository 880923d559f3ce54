package payment

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type Kind string

const (
	// KindCard providers need the browser to confirm a payment intent before completion.
	KindCard Kind = "card"
	KindSync Kind = "sync"
)

const BankTransferID = "bank_transfer"

type Provider struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Kind  Kind   `json:"kind"`
}

func NewProvider(id string) Provider {
	return Provider{ID: id, Label: Label(id), Kind: KindOf(id)}
}

func KindOf(id string) Kind {
	if strings.Contains(strings.ToLower(id), "stripe") {
		return KindCard
	}
	return KindSync
}

// Label is the display name for a provider id.
func Label(id string) string {
	switch {
	case strings.Contains(strings.ToLower(id), "stripe"):
		return "Credit Card (Stripe)"
	case id == BankTransferID:
		return "Bank Transfer"
	case id == "paypal":
		return "PayPal"
	case id == "pp_system_default":
		return "Manual Payment (Test)"
	}
	words := strings.Fields(strings.ReplaceAll(strings.TrimPrefix(id, "pp_"), "_", " "))
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}
