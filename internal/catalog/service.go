package catalog

import (
	"context"
	"errors"
	"fmt"
)

type menuStore interface {
	LoadMenu(ctx context.Context, tenantID string) (*Menu, error)
}

// Service orchestrates menu loading with a cache-aside Redis layer. Kiosk
// sessions pin the snapshot they receive; cache invalidation only affects
// sessions started afterwards.
type Service struct {
	store menuStore
	cache *Cache
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store menuStore
	Cache *Cache
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("catalog: store is required")
	}
	return &Service{store: cfg.Store, cache: cfg.Cache}, nil
}

// Menu returns the tenant's menu snapshot, from cache when possible.
func (s *Service) Menu(ctx context.Context, tenantID string) (*Menu, error) {
	if cached, ok, err := s.cache.GetMenu(ctx, tenantID); err == nil && ok {
		return cached, nil
	}
	return s.Refresh(ctx, tenantID)
}

// Refresh loads the menu from Postgres and repopulates the cache.
func (s *Service) Refresh(ctx context.Context, tenantID string) (*Menu, error) {
	menu, err := s.store.LoadMenu(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("refresh menu: %w", err)
	}
	_ = s.cache.SetMenu(ctx, tenantID, menu)
	return menu, nil
}

// Invalidate drops the cached snapshot after an admin write.
func (s *Service) Invalidate(ctx context.Context, tenantID string) {
	_ = s.cache.Invalidate(ctx, tenantID)
}
