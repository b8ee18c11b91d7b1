package bom

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository loads recipe lines from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Entries returns recipe lines for the finished good, joined with one active
// SKU per material so availability is read in the same round trip. The lateral
// join picks the lowest product id so a material with several active SKUs
// still yields exactly one row per recipe line.
func (r *Repository) Entries(ctx context.Context, masterProductID int64) ([]Entry, error) {
	if r == nil {
		return nil, errors.New("bom repository not initialised")
	}
	rows, err := r.pool.Query(ctx, `SELECT b.master_product_id, b.material_master_product_id, COALESCE(p.id, 0), mp.name, mp.type, mp.default_unit, b.percentage, b.is_additional, COALESCE(p.available_qty, 0)
FROM bom_entries b
JOIN master_products mp ON mp.id = b.material_master_product_id
LEFT JOIN LATERAL (
	SELECT id, available_qty
	FROM products
	WHERE master_product_id = mp.id AND is_active
	ORDER BY id ASC
	LIMIT 1
) p ON true
WHERE b.master_product_id = $1
ORDER BY b.is_additional ASC, b.id ASC`, masterProductID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.MasterProductID, &e.MaterialMasterProductID, &e.MaterialProductID, &e.MaterialName, &e.MaterialType, &e.Unit, &e.Percentage, &e.IsAdditional, &e.Available); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
