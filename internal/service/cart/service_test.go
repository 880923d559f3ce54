package cart

import (
	"context"
	"errors"
	"strings"
	"testing"

	"medusa-storefront/internal/domain"
)

type stubBackend struct {
	cart        *domain.Cart
	getErr      error
	regions     []domain.Region
	updateCalls int
	lastBody    interface{}
	lastRegion  string
	lastVariant string
	lastQty     int
}

func (s *stubBackend) GetCart(_ context.Context, _ string) (*domain.Cart, error) {
	return s.cart, s.getErr
}

func (s *stubBackend) CreateCart(_ context.Context, regionID string) (*domain.Cart, error) {
	s.lastRegion = regionID
	return &domain.Cart{ID: "new", RegionID: regionID}, nil
}

func (s *stubBackend) UpdateCart(_ context.Context, _ string, body interface{}) (*domain.Cart, error) {
	s.updateCalls++
	s.lastBody = body
	return s.cart, nil
}

func (s *stubBackend) AddLineItem(_ context.Context, _, variantID string, quantity int) (*domain.Cart, error) {
	s.lastVariant = variantID
	s.lastQty = quantity
	return s.cart, nil
}

func (s *stubBackend) UpdateLineItem(_ context.Context, _, _ string, quantity int) (*domain.Cart, error) {
	s.lastQty = quantity
	return s.cart, nil
}

func (s *stubBackend) RemoveLineItem(_ context.Context, _, _ string) (*domain.Cart, error) {
	return s.cart, nil
}

func (s *stubBackend) ListRegions(_ context.Context) ([]domain.Region, error) {
	return s.regions, nil
}

func physicalCart() *domain.Cart {
	return &domain.Cart{ID: "c1", TotalCents: 2000, Lines: []domain.CartLine{{ID: "l1", Quantity: 1}}}
}

func digitalCart() *domain.Cart {
	return &domain.Cart{ID: "c2", Lines: []domain.CartLine{{ID: "l1", Quantity: 1, Traits: domain.Traits{IsDigital: true}}}}
}

func TestUpdatePhysicalRequiresShippingAddress(t *testing.T) {
	backend := &stubBackend{cart: physicalCart()}
	svc := New(backend, nil)

	_, err := svc.Update(context.Background(), "c1", UpdateInput{
		Email:           "a@b.co",
		ShippingAddress: &domain.Address{FirstName: "Ada", LastName: "Lovelace", CountryCode: "gb"},
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if backend.updateCalls != 0 {
		t.Fatalf("expected no mutation, got %d", backend.updateCalls)
	}
	var de *domain.Error
	if !errors.As(err, &de) {
		t.Fatalf("expected domain error, got %T", err)
	}
	want := []string{"shipping_address.address_1", "shipping_address.city", "shipping_address.postal_code"}
	if strings.Join(de.Fields, ",") != strings.Join(want, ",") {
		t.Fatalf("expected fields %v, got %v", want, de.Fields)
	}
}

func TestUpdatePhysicalMissingAddress(t *testing.T) {
	backend := &stubBackend{cart: physicalCart()}
	svc := New(backend, nil)

	_, err := svc.Update(context.Background(), "c1", UpdateInput{Email: "a@b.co"})
	var de *domain.Error
	if !errors.As(err, &de) || len(de.Fields) != 6 {
		t.Fatalf("expected six missing address fields, got %v", err)
	}
}

func TestUpdatePhysicalComplete(t *testing.T) {
	backend := &stubBackend{cart: physicalCart()}
	svc := New(backend, nil)

	in := UpdateInput{
		Email: " a@b.co ",
		ShippingAddress: &domain.Address{
			FirstName: "Ada", LastName: "Lovelace", Address1: "1 Main St",
			City: "London", PostalCode: "N1", CountryCode: "gb",
		},
	}
	if _, err := svc.Update(context.Background(), "c1", in); err != nil {
		t.Fatalf("Update: %v", err)
	}
	body, ok := backend.lastBody.(UpdateInput)
	if !ok || body.Email != "a@b.co" {
		t.Fatalf("expected trimmed email in body, got %#v", backend.lastBody)
	}
}

func TestUpdateDigitalAllowsEmailOnly(t *testing.T) {
	backend := &stubBackend{cart: digitalCart()}
	svc := New(backend, nil)

	_, err := svc.Update(context.Background(), "c2", UpdateInput{
		Email:          "a@b.co",
		BillingAddress: &domain.Address{CountryCode: "us"},
	})
	if err != nil {
		t.Fatalf("expected digital update to pass, got %v", err)
	}
	if backend.updateCalls != 1 {
		t.Fatalf("expected one mutation, got %d", backend.updateCalls)
	}
}

func TestUpdateRejectsBadEmail(t *testing.T) {
	backend := &stubBackend{cart: digitalCart()}
	svc := New(backend, nil)

	_, err := svc.Update(context.Background(), "c2", UpdateInput{Email: "nope"})
	var de *domain.Error
	if !errors.As(err, &de) || len(de.Fields) != 1 || de.Fields[0] != "email" {
		t.Fatalf("expected email field error, got %v", err)
	}
}

func TestGetPropagatesNotFound(t *testing.T) {
	svc := New(&stubBackend{getErr: domain.NewNotFoundError("cart not found")}, nil)
	if _, err := svc.Get(context.Background(), "gone"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := svc.Get(context.Background(), " "); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for blank id, got %v", err)
	}
}

func TestCreateUsesFirstRegion(t *testing.T) {
	backend := &stubBackend{regions: []domain.Region{{ID: "reg_eu"}, {ID: "reg_us"}}}
	svc := New(backend, nil)

	cart, err := svc.Create(context.Background())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if backend.lastRegion != "reg_eu" || cart.RegionID != "reg_eu" {
		t.Fatalf("expected first region, got %q", backend.lastRegion)
	}
}

func TestAddItemValidatesQuantity(t *testing.T) {
	backend := &stubBackend{cart: physicalCart()}
	svc := New(backend, nil)

	if _, err := svc.AddItem(context.Background(), "c1", "var_1", 0); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := svc.AddItem(context.Background(), "c1", "var_1", 2); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if backend.lastVariant != "var_1" || backend.lastQty != 2 {
		t.Fatalf("unexpected add call %q x%d", backend.lastVariant, backend.lastQty)
	}
}
