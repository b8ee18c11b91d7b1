package products

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	List(ctx context.Context, filters ListFilters) ([]Product, int, error)
	Get(ctx context.Context, id int64) (Product, error)
	FindMasterByFoldedName(ctx context.Context, folded string) (MasterProduct, error)
	InsertMaster(ctx context.Context, mp MasterProduct, folded string) (MasterProduct, error)
	UpdateMaster(ctx context.Context, mp MasterProduct) (MasterProduct, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const productColumns = `id, master_product_id, name, unit, selling_price, available_qty, reserved_qty, is_active, created_at, updated_at`

func (r *repository) List(ctx context.Context, filters ListFilters) ([]Product, int, error) {
	where := ` WHERE 1=1`
	args := []any{}

	if filters.Search != "" {
		args = append(args, "%"+filters.Search+"%")
		where += ` AND name ILIKE $` + strconv.Itoa(len(args))
	}
	if filters.Type != "" {
		args = append(args, filters.Type)
		where += ` AND master_product_id IN (SELECT id FROM master_products WHERE type = $` + strconv.Itoa(len(args)) + `)`
	}
	if filters.IsActive != nil {
		args = append(args, *filters.IsActive)
		where += ` AND is_active = $` + strconv.Itoa(len(args))
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM products`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + productColumns + ` FROM products` + where + ` ORDER BY name ASC`
	if filters.Limit > 0 {
		args = append(args, filters.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
		offset := (filters.Page - 1) * filters.Limit
		if offset < 0 {
			offset = 0
		}
		args = append(args, offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var list []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, p)
	}
	return list, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Product, error) {
	row := r.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrProductNotFound
	}
	return p, err
}

func (r *repository) FindMasterByFoldedName(ctx context.Context, folded string) (MasterProduct, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, name, type, default_unit, is_active, created_at, updated_at
		   FROM master_products WHERE name_folded = $1`, folded)
	mp, err := scanMaster(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return MasterProduct{}, ErrProductNotFound
	}
	return mp, err
}

func (r *repository) InsertMaster(ctx context.Context, mp MasterProduct, folded string) (MasterProduct, error) {
	now := time.Now().UTC()
	err := r.db.QueryRow(ctx,
		`INSERT INTO master_products (name, name_folded, type, default_unit, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $6)
		 RETURNING id`,
		mp.Name, folded, mp.Type, mp.DefaultUnit, mp.IsActive, now).Scan(&mp.ID)
	if err != nil {
		return MasterProduct{}, err
	}
	mp.CreatedAt = now
	mp.UpdatedAt = now
	return mp, nil
}

func (r *repository) UpdateMaster(ctx context.Context, mp MasterProduct) (MasterProduct, error) {
	now := time.Now().UTC()
	_, err := r.db.Exec(ctx,
		`UPDATE master_products SET type = $2, default_unit = $3, is_active = $4, updated_at = $5 WHERE id = $1`,
		mp.ID, mp.Type, mp.DefaultUnit, mp.IsActive, now)
	if err != nil {
		return MasterProduct{}, err
	}
	mp.UpdatedAt = now
	return mp, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.MasterProductID, &p.Name, &p.Unit, &p.SellingPrice,
		&p.AvailableQty, &p.ReservedQty, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func scanMaster(row rowScanner) (MasterProduct, error) {
	var mp MasterProduct
	err := row.Scan(&mp.ID, &mp.Name, &mp.Type, &mp.DefaultUnit, &mp.IsActive, &mp.CreatedAt, &mp.UpdatedAt)
	return mp, err
}
