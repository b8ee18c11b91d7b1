package products

import "github.com/meridian-mfg/meridian-erp/internal/ledger"

// UpsertMasterRequest is the import-pipeline payload. Replays of the same
// payload are idempotent.
type UpsertMasterRequest struct {
	Name        string `json:"name" validate:"required"`
	Type        string `json:"type" validate:"required,oneof=FG RM PM"`
	DefaultUnit string `json:"default_unit" validate:"required"`
	IsActive    *bool  `json:"is_active"`
}

type ListResponse struct {
	Products []Product `json:"products"`
	Total    int       `json:"total"`
}

type MovementsResponse struct {
	ProductID int64             `json:"product_id"`
	Movements []ledger.Movement `json:"movements"`
}
