package cart

import (
	"context"
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"medusa-storefront/internal/domain"
)

type Service struct {
	backend  backend
	validate *validator.Validate
	logger   *zap.Logger
}

type backend interface {
	GetCart(ctx context.Context, cartID string) (*domain.Cart, error)
	CreateCart(ctx context.Context, regionID string) (*domain.Cart, error)
	UpdateCart(ctx context.Context, cartID string, body interface{}) (*domain.Cart, error)
	AddLineItem(ctx context.Context, cartID, variantID string, quantity int) (*domain.Cart, error)
	UpdateLineItem(ctx context.Context, cartID, lineItemID string, quantity int) (*domain.Cart, error)
	RemoveLineItem(ctx context.Context, cartID, lineItemID string) (*domain.Cart, error)
	ListRegions(ctx context.Context) ([]domain.Region, error)
}

func New(backend backend, logger *zap.Logger) *Service {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{backend: backend, validate: v, logger: logger}
}

type UpdateInput struct {
	Email           string          `json:"email,omitempty"`
	ShippingAddress *domain.Address `json:"shipping_address,omitempty"`
	BillingAddress  *domain.Address `json:"billing_address,omitempty"`
}

// physicalUpdate is what a cart holding shippable goods must carry.
type physicalUpdate struct {
	Email           string          `json:"email" validate:"omitempty,email"`
	ShippingAddress shippingAddress `json:"shipping_address"`
}

type shippingAddress struct {
	FirstName   string `json:"first_name" validate:"required"`
	LastName    string `json:"last_name" validate:"required"`
	Address1    string `json:"address_1" validate:"required"`
	City        string `json:"city" validate:"required"`
	PostalCode  string `json:"postal_code" validate:"required"`
	CountryCode string `json:"country_code" validate:"required"`
}

type digitalUpdate struct {
	Email string `json:"email" validate:"omitempty,email"`
}

func (s *Service) Get(ctx context.Context, cartID string) (*domain.Cart, error) {
	if strings.TrimSpace(cartID) == "" {
		return nil, domain.NewNotFoundError("cart not found")
	}
	return s.backend.GetCart(ctx, cartID)
}

// Create opens a cart in the first region the backend lists.
func (s *Service) Create(ctx context.Context) (*domain.Cart, error) {
	regions, err := s.backend.ListRegions(ctx)
	if err != nil {
		return nil, err
	}
	regionID := ""
	if len(regions) > 0 {
		regionID = regions[0].ID
	} else {
		s.logger.Warn("no regions configured, creating cart without region")
	}
	return s.backend.CreateCart(ctx, regionID)
}

// Update fetches the cart to classify its goods and then applies in.
func (s *Service) Update(ctx context.Context, cartID string, in UpdateInput) (*domain.Cart, error) {
	cart, err := s.Get(ctx, cartID)
	if err != nil {
		return nil, err
	}
	return s.Apply(ctx, cart, in)
}

// Apply validates in against the goods type of cart and posts it. Nothing is
// sent when validation fails.
func (s *Service) Apply(ctx context.Context, cart *domain.Cart, in UpdateInput) (*domain.Cart, error) {
	if err := s.Validate(cart, in); err != nil {
		return nil, err
	}
	in.Email = strings.TrimSpace(in.Email)
	return s.backend.UpdateCart(ctx, cart.ID, in)
}

// Validate checks in without touching the backend.
func (s *Service) Validate(cart *domain.Cart, in UpdateInput) error {
	if cart.IsDigitalOnly() {
		return s.check(digitalUpdate{Email: strings.TrimSpace(in.Email)})
	}
	req := physicalUpdate{Email: strings.TrimSpace(in.Email)}
	if a := in.ShippingAddress; a != nil {
		req.ShippingAddress = shippingAddress{
			FirstName:   strings.TrimSpace(a.FirstName),
			LastName:    strings.TrimSpace(a.LastName),
			Address1:    strings.TrimSpace(a.Address1),
			City:        strings.TrimSpace(a.City),
			PostalCode:  strings.TrimSpace(a.PostalCode),
			CountryCode: strings.TrimSpace(a.CountryCode),
		}
	}
	return s.check(req)
}

func (s *Service) check(v interface{}) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		ns := fe.Namespace()
		if i := strings.IndexByte(ns, '.'); i >= 0 {
			ns = ns[i+1:]
		}
		fields = append(fields, ns)
	}
	return domain.NewValidationError("missing or invalid fields: "+strings.Join(fields, ", "), fields...)
}

func (s *Service) AddItem(ctx context.Context, cartID, variantID string, quantity int) (*domain.Cart, error) {
	if strings.TrimSpace(variantID) == "" {
		return nil, domain.NewValidationError("variant_id required", "variant_id")
	}
	if quantity <= 0 {
		return nil, domain.NewValidationError("quantity must be positive", "quantity")
	}
	return s.backend.AddLineItem(ctx, cartID, variantID, quantity)
}

func (s *Service) UpdateItem(ctx context.Context, cartID, lineItemID string, quantity int) (*domain.Cart, error) {
	if strings.TrimSpace(lineItemID) == "" {
		return nil, domain.NewValidationError("line item id required", "line_item_id")
	}
	if quantity <= 0 {
		return nil, domain.NewValidationError("quantity must be positive", "quantity")
	}
	return s.backend.UpdateLineItem(ctx, cartID, lineItemID, quantity)
}

func (s *Service) RemoveItem(ctx context.Context, cartID, lineItemID string) (*domain.Cart, error) {
	if strings.TrimSpace(lineItemID) == "" {
		return nil, domain.NewValidationError("line item id required", "line_item_id")
	}
	return s.backend.RemoveLineItem(ctx, cartID, lineItemID)
}
