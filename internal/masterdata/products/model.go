package products

import (
	"errors"
	"time"
)

// ProductType distinguishes finished goods from the materials that go
// into them.
type ProductType string

const (
	TypeFinishedGood ProductType = "FG"
	TypeRawMaterial  ProductType = "RM"
	TypePackaging    ProductType = "PM"
)

func (t ProductType) IsValid() bool {
	switch t {
	case TypeFinishedGood, TypeRawMaterial, TypePackaging:
		return true
	}
	return false
}

// MasterProduct is the catalogue-level product identity. Rows are created
// by the import pipeline and are never deleted, only deactivated. Names
// are unique case-insensitively.
type MasterProduct struct {
	ID          int64       `json:"id"`
	Name        string      `json:"name"`
	Type        ProductType `json:"type"`
	DefaultUnit string      `json:"default_unit"`
	IsActive    bool        `json:"is_active"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Product is a sellable SKU under a MasterProduct. Its stock counters are
// mutated only through the ledger; this package reads them.
type Product struct {
	ID              int64     `json:"id"`
	MasterProductID int64     `json:"master_product_id"`
	Name            string    `json:"name"`
	Unit            string    `json:"unit"`
	SellingPrice    float64   `json:"selling_price"`
	AvailableQty    float64   `json:"available_qty"`
	ReservedQty     float64   `json:"reserved_qty"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ListFilters narrows a product listing.
type ListFilters struct {
	Search   string
	Type     ProductType
	IsActive *bool
	Page     int
	Limit    int
}

var (
	ErrProductNotFound = errors.New("masterdata: product not found")
	ErrInvalidType     = errors.New("masterdata: invalid product type")
	ErrNameRequired    = errors.New("masterdata: product name is required")
)
