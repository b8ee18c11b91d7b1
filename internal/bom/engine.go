package bom

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// precision is the fixed rounding precision for material quantities.
const precision = 3

// RecipeSource loads recipe lines joined with current material availability.
type RecipeSource interface {
	Entries(ctx context.Context, masterProductID int64) ([]Entry, error)
}

// Engine computes material requirements and diffs them against stock.
type Engine struct {
	recipes RecipeSource
}

// NewEngine constructs Engine.
func NewEngine(recipes RecipeSource) *Engine {
	return &Engine{recipes: recipes}
}

// CheckFeasibility scales the recipe for masterProductID to plannedQty at the
// given density and compares every line against available stock.
//
// requiredQty = plannedQty x density x percentage/100, rounded to three
// decimal places. The rounding residual of the regular lines is folded into
// the largest regular line so the rounded lines foot to the rounded total.
// Regular percentages that do not sum to 100 are reported as-is.
func (e *Engine) CheckFeasibility(ctx context.Context, masterProductID int64, plannedQty, density float64) (Result, error) {
	if plannedQty <= 0 {
		return Result{}, ErrInvalidQuantity
	}
	if density <= 0 {
		return Result{}, ErrInvalidDensity
	}

	entries, err := e.recipes.Entries(ctx, masterProductID)
	if err != nil {
		return Result{}, fmt.Errorf("bom: load recipe: %w", err)
	}
	entries = uniqueMaterials(entries)

	result := Result{
		MasterProductID: masterProductID,
		PlannedQty:      plannedQty,
		StandardDensity: density,
	}
	if len(entries) == 0 {
		return result, nil
	}
	result.RecipeConfigured = true

	base := decimal.NewFromFloat(plannedQty).Mul(decimal.NewFromFloat(density))
	hundred := decimal.NewFromInt(100)

	regularPct := decimal.Zero
	sumRegular := decimal.Zero
	largestRegular := -1
	largestQty := decimal.Zero

	requirements := make([]Requirement, len(entries))
	required := make([]decimal.Decimal, len(entries))

	for i, entry := range entries {
		pct := decimal.NewFromFloat(entry.Percentage)
		qty := base.Mul(pct).Div(hundred).Round(precision)
		required[i] = qty
		if !entry.IsAdditional {
			regularPct = regularPct.Add(pct)
			sumRegular = sumRegular.Add(qty)
			if largestRegular < 0 || qty.GreaterThan(largestQty) {
				largestRegular = i
				largestQty = qty
			}
		}
		requirements[i] = Requirement{
			MaterialMasterProductID: entry.MaterialMasterProductID,
			MaterialProductID:       entry.MaterialProductID,
			MaterialName:            entry.MaterialName,
			Unit:                    entry.Unit,
			Percentage:              entry.Percentage,
			IsAdditional:            entry.IsAdditional,
			Available:               entry.Available,
		}
	}

	// Footing: the regular lines must sum to the rounded regular total.
	if largestRegular >= 0 {
		regularTotal := base.Mul(regularPct).Div(hundred).Round(precision)
		residual := regularTotal.Sub(sumRegular)
		if !residual.IsZero() {
			required[largestRegular] = required[largestRegular].Add(residual)
		}
	}

	feasible := true
	total := decimal.Zero
	for i, entry := range entries {
		qty := required[i]
		total = total.Add(qty)
		requirements[i].RequiredQty = qty.InexactFloat64()
		shortage := qty.Sub(decimal.NewFromFloat(entry.Available))
		if shortage.IsPositive() {
			requirements[i].Shortage = shortage.Round(precision).InexactFloat64()
			if !entry.IsAdditional {
				feasible = false
			}
		}
	}

	result.Feasible = feasible
	result.RegularPercentTotal = regularPct.InexactFloat64()
	result.TotalRequiredQty = total.Round(precision).InexactFloat64()
	result.Requirements = requirements
	return result, nil
}

// uniqueMaterials keeps the first row per material. Recipe lines are unique
// per material, so a repeat means the source joined one line against several
// SKUs and the requirement would be counted twice.
func uniqueMaterials(entries []Entry) []Entry {
	seen := make(map[int64]bool, len(entries))
	out := entries[:0]
	for _, entry := range entries {
		if seen[entry.MaterialMasterProductID] {
			continue
		}
		seen[entry.MaterialMasterProductID] = true
		out = append(out, entry)
	}
	return out
}
