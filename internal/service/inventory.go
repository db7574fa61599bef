package service

import (
	"context"

	"github.com/harlowglass/stockroom/internal/domain"
	"github.com/harlowglass/stockroom/internal/store"
)

// InventoryService serves the read views behind the dashboards and the
// inventory listing. Admins see every location; everyone else is scoped to
// their session's location (0 meaning no home location, which shows all).
type InventoryService struct {
	Store store.Store
}

func (s *InventoryService) scope(attrs domain.SessionAttrs) int64 {
	if domain.KindOf(attrs.Role) == domain.RoleAdmin {
		return 0
	}
	return attrs.LocationID
}

// Stock returns the stock lines visible to the session.
func (s *InventoryService) Stock(ctx context.Context, attrs domain.SessionAttrs) ([]domain.StockLine, error) {
	return s.Store.Inventory().ListStock(ctx, s.scope(attrs))
}

// Dashboard aggregates the summary visible to the session.
func (s *InventoryService) Dashboard(ctx context.Context, attrs domain.SessionAttrs) (domain.DashboardSummary, error) {
	return s.Store.Inventory().Summary(ctx, s.scope(attrs))
}

// Locations lists all locations (admin views).
func (s *InventoryService) Locations(ctx context.Context) ([]domain.Location, error) {
	return s.Store.Inventory().ListLocations(ctx)
}
