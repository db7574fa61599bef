package sqlite

import (
	"context"
	"database/sql"

	"github.com/harlowglass/stockroom/internal/domain"
)

type inventoryRepo struct {
	db dbtx
}

func (r *inventoryRepo) GetLocation(ctx context.Context, id int64) (domain.Location, error) {
	var loc domain.Location
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, address, created_at FROM locations WHERE id = ?`, id).
		Scan(&loc.ID, &loc.Name, &loc.Address, &loc.CreatedAt)
	if err != nil {
		return domain.Location{}, mapNotFound(err)
	}
	return loc, nil
}

func (r *inventoryRepo) ListLocations(ctx context.Context) ([]domain.Location, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, address, created_at FROM locations ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var locations []domain.Location
	for rows.Next() {
		var loc domain.Location
		if err := rows.Scan(&loc.ID, &loc.Name, &loc.Address, &loc.CreatedAt); err != nil {
			return nil, err
		}
		locations = append(locations, loc)
	}
	return locations, rows.Err()
}

func (r *inventoryRepo) ListStock(ctx context.Context, locationID int64) ([]domain.StockLine, error) {
	query := `
		SELECT p.id, p.sku, p.name, p.category, p.unit_price, p.created_at,
		       l.name, i.quantity, i.reorder_at
		FROM inventory_items i
		JOIN products p ON p.id = i.product_id
		JOIN locations l ON l.id = i.location_id`

	var (
		rows *sql.Rows
		err  error
	)
	if locationID > 0 {
		rows, err = r.db.QueryContext(ctx, query+` WHERE i.location_id = ? ORDER BY p.name, l.name`, locationID)
	} else {
		rows, err = r.db.QueryContext(ctx, query+` ORDER BY p.name, l.name`)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []domain.StockLine
	for rows.Next() {
		var line domain.StockLine
		err := rows.Scan(
			&line.Product.ID, &line.Product.SKU, &line.Product.Name,
			&line.Product.Category, &line.Product.UnitPrice, &line.Product.CreatedAt,
			&line.LocationName, &line.Quantity, &line.ReorderAt,
		)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (r *inventoryRepo) Summary(ctx context.Context, locationID int64) (domain.DashboardSummary, error) {
	var s domain.DashboardSummary

	stockQuery := `
		SELECT COUNT(DISTINCT product_id), COALESCE(SUM(quantity), 0),
		       COALESCE(SUM(CASE WHEN quantity <= reorder_at THEN 1 ELSE 0 END), 0)
		FROM inventory_items`

	var err error
	if locationID > 0 {
		err = r.db.QueryRowContext(ctx, stockQuery+` WHERE location_id = ?`, locationID).
			Scan(&s.TotalProducts, &s.TotalUnits, &s.LowStockLines)
	} else {
		err = r.db.QueryRowContext(ctx, stockQuery).
			Scan(&s.TotalProducts, &s.TotalUnits, &s.LowStockLines)
	}
	if err != nil {
		return domain.DashboardSummary{}, err
	}

	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM locations`).Scan(&s.Locations); err != nil {
		return domain.DashboardSummary{}, err
	}

	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE is_active = 1`).Scan(&s.ActiveUsers); err != nil {
		return domain.DashboardSummary{}, err
	}

	return s, nil
}
