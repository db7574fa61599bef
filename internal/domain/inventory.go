package domain

import "time"

type Location struct {
	ID        int64
	Name      string
	Address   string
	CreatedAt time.Time
}

type Product struct {
	ID        int64
	SKU       string
	Name      string
	Category  string
	UnitPrice float64
	CreatedAt time.Time
}

// InventoryItem is the stock of one product at one location.
type InventoryItem struct {
	ID         int64
	ProductID  int64
	LocationID int64
	Quantity   int64
	ReorderAt  int64
	UpdatedAt  time.Time
}

// StockLine is the joined row rendered on inventory listings.
type StockLine struct {
	Product      Product
	LocationName string
	Quantity     int64
	ReorderAt    int64
}

// LowStock reports whether the line has fallen to its reorder point.
func (l StockLine) LowStock() bool {
	return l.Quantity <= l.ReorderAt
}

// DashboardSummary backs the manager and admin dashboards. Admin views span
// every location; manager views are scoped to the viewer's location.
type DashboardSummary struct {
	TotalProducts int64
	TotalUnits    int64
	LowStockLines int64
	Locations     int64
	ActiveUsers   int64 // admin dashboard only
}
