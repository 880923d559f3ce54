package payment

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"medusa-storefront/internal/domain"
	"medusa-storefront/internal/metrics"
)

const (
	StrategyCartSessions   = "cart_sessions"
	StrategyRegionEmbedded = "region_embedded"
	StrategyRegionFetch    = "region_fetch"
	StrategySessionCreate  = "session_create"
)

const NoProvidersRemediation = "No payment providers configured. Please add a payment provider in Admin: Settings → Regions → Edit Region → Payment Providers. For testing, you can add 'Manual Payment (Test)' provider."

type Service struct {
	backend backend
	logger  *zap.Logger
}

type backend interface {
	GetCart(ctx context.Context, cartID string) (*domain.Cart, error)
	UpdateCart(ctx context.Context, cartID string, body interface{}) (*domain.Cart, error)
	RegionPaymentProviders(ctx context.Context, regionID string) ([]domain.PaymentProvider, error)
	CreatePaymentSessions(ctx context.Context, cartID, providerID string) error
	ListPaymentSessions(ctx context.Context, cartID string) ([]domain.PaymentSession, error)
}

func New(backend backend, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{backend: backend, logger: logger}
}

type Discovery struct {
	Providers []Provider `json:"providers"`
	Strategy  string     `json:"strategy"`
}

// Has reports whether providerID is among the discovered providers.
func (d Discovery) Has(providerID string) bool {
	for _, p := range d.Providers {
		if p.ID == providerID {
			return true
		}
	}
	return false
}

type strategy struct {
	name string
	run  func(ctx context.Context, cart *domain.Cart) ([]string, error)
}

func (s *Service) strategies() []strategy {
	return []strategy{
		{StrategyCartSessions, s.fromCartSessions},
		{StrategyRegionEmbedded, s.fromRegionEmbedded},
		{StrategyRegionFetch, s.fromRegionFetch},
		{StrategySessionCreate, s.fromSessionCreate},
	}
}

// Discover walks the strategies in order and returns the first non-empty
// provider list. A failing strategy is logged and skipped.
func (s *Service) Discover(ctx context.Context, cart *domain.Cart) (Discovery, error) {
	for _, st := range s.strategies() {
		ids, err := st.run(ctx, cart)
		if err != nil {
			s.logger.Warn("payment provider discovery strategy failed",
				zap.String("cart_id", cart.ID), zap.String("strategy", st.name), zap.Error(err))
			continue
		}
		if len(ids) == 0 {
			continue
		}
		providers := make([]Provider, 0, len(ids))
		for _, id := range ids {
			providers = append(providers, NewProvider(id))
		}
		metrics.DiscoveryStrategy.WithLabelValues(st.name).Inc()
		s.logger.Info("payment providers discovered",
			zap.String("cart_id", cart.ID), zap.String("strategy", st.name), zap.Int("count", len(providers)))
		return Discovery{Providers: providers, Strategy: st.name}, nil
	}
	metrics.DiscoveryStrategy.WithLabelValues("none").Inc()
	return Discovery{}, domain.NewConfigurationError("No payment providers available for this cart", NoProvidersRemediation)
}

func (s *Service) fromCartSessions(_ context.Context, cart *domain.Cart) ([]string, error) {
	ids := make([]string, 0)
	for _, ps := range cart.Sessions() {
		ids = append(ids, ps.ProviderID)
	}
	return unique(ids), nil
}

func (s *Service) fromRegionEmbedded(_ context.Context, cart *domain.Cart) ([]string, error) {
	if cart.Region == nil {
		return nil, nil
	}
	return providerIDs(cart.Region.PaymentProviders), nil
}

func (s *Service) fromRegionFetch(ctx context.Context, cart *domain.Cart) ([]string, error) {
	regionID := cart.RegionID
	if regionID == "" && cart.Region != nil {
		regionID = cart.Region.ID
	}
	if regionID == "" {
		return nil, nil
	}
	providers, err := s.backend.RegionPaymentProviders(ctx, regionID)
	if err != nil {
		return nil, err
	}
	return providerIDs(providers), nil
}

func (s *Service) fromSessionCreate(ctx context.Context, cart *domain.Cart) ([]string, error) {
	if err := s.backend.CreatePaymentSessions(ctx, cart.ID, ""); err != nil {
		return nil, err
	}
	sessions, err := s.backend.ListPaymentSessions(ctx, cart.ID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(sessions))
	for _, ps := range sessions {
		ids = append(ids, ps.ProviderID)
	}
	return unique(ids), nil
}

func providerIDs(in []domain.PaymentProvider) []string {
	ids := make([]string, 0, len(in))
	for _, p := range in {
		ids = append(ids, p.ID)
	}
	return unique(ids)
}

func unique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
