// Package bom computes recipe-driven material requirements for production.
package bom

import "errors"

// Entry is one recipe line for a finished good. Percentage is expressed
// against a base of 100; additional lines are dosed on top of that base and
// do not count toward the percentage footing.
type Entry struct {
	MasterProductID         int64   `json:"master_product_id"`
	MaterialMasterProductID int64   `json:"material_master_product_id"`
	MaterialProductID       int64   `json:"material_product_id"`
	MaterialName            string  `json:"material_name"`
	MaterialType            string  `json:"material_type"`
	Unit                    string  `json:"unit"`
	Percentage              float64 `json:"percentage"`
	IsAdditional            bool    `json:"is_additional"`
	Available               float64 `json:"available_qty"`
}

// Requirement is one computed material line.
type Requirement struct {
	MaterialMasterProductID int64   `json:"material_master_product_id"`
	MaterialProductID       int64   `json:"material_product_id"`
	MaterialName            string  `json:"material_name"`
	Unit                    string  `json:"unit"`
	Percentage              float64 `json:"percentage"`
	IsAdditional            bool    `json:"is_additional"`
	RequiredQty             float64 `json:"required_qty"`
	Available               float64 `json:"available_qty"`
	Shortage                float64 `json:"shortage"`
}

// Result is the outcome of a feasibility check. RecipeConfigured false means
// no recipe rows exist for the finished good; that state is informational,
// not a shortage, and callers must present it separately.
type Result struct {
	MasterProductID     int64         `json:"master_product_id"`
	PlannedQty          float64       `json:"planned_qty"`
	StandardDensity     float64       `json:"standard_density"`
	RecipeConfigured    bool          `json:"recipe_configured"`
	Feasible            bool          `json:"feasible"`
	RegularPercentTotal float64       `json:"regular_percent_total"`
	TotalRequiredQty    float64       `json:"total_required_qty"`
	Requirements        []Requirement `json:"requirements"`
}

var (
	// ErrInvalidQuantity indicates a non-positive planned quantity.
	ErrInvalidQuantity = errors.New("bom: planned quantity must be positive")
	// ErrInvalidDensity indicates a non-positive density.
	ErrInvalidDensity = errors.New("bom: density must be positive")
)
