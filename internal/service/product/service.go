package product

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"medusa-storefront/internal/domain"
)

type Service struct {
	backend backend
	logger  *zap.Logger
}

type backend interface {
	ListProducts(ctx context.Context, regionID string) ([]domain.Product, error)
	ProductByHandle(ctx context.Context, handle, regionID string) (*domain.Product, error)
	ListRegions(ctx context.Context) ([]domain.Region, error)
}

func New(backend backend, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{backend: backend, logger: logger}
}

func (s *Service) List(ctx context.Context) ([]domain.Product, error) {
	return s.backend.ListProducts(ctx, s.firstRegion(ctx))
}

// GetByHandle prices the product in the first region when one exists.
func (s *Service) GetByHandle(ctx context.Context, handle string) (*domain.Product, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return nil, domain.NewValidationError("handle required", "handle")
	}
	return s.backend.ProductByHandle(ctx, handle, s.firstRegion(ctx))
}

func (s *Service) firstRegion(ctx context.Context) string {
	regions, err := s.backend.ListRegions(ctx)
	if err != nil {
		s.logger.Warn("list regions failed, reading unpriced catalogue", zap.Error(err))
		return ""
	}
	if len(regions) == 0 {
		return ""
	}
	return regions[0].ID
}
