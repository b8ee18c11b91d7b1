package bom

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type memoryRecipes struct {
	entries map[int64][]Entry
}

func (m *memoryRecipes) Entries(ctx context.Context, masterProductID int64) ([]Entry, error) {
	return m.entries[masterProductID], nil
}

func TestCheckFeasibilityScalesByDensity(t *testing.T) {
	recipes := &memoryRecipes{entries: map[int64][]Entry{
		10: {
			{MasterProductID: 10, MaterialMasterProductID: 1, MaterialProductID: 101, MaterialName: "RM-A", Unit: "kg", Percentage: 60, Available: 200},
			{MasterProductID: 10, MaterialMasterProductID: 2, MaterialProductID: 102, MaterialName: "RM-B", Unit: "kg", Percentage: 40, Available: 200},
		},
	}}
	engine := NewEngine(recipes)

	result, err := engine.CheckFeasibility(context.Background(), 10, 100, 1.2)
	require.NoError(t, err)
	require.True(t, result.RecipeConfigured)
	require.True(t, result.Feasible)
	require.Len(t, result.Requirements, 2)
	require.InDelta(t, 72.0, result.Requirements[0].RequiredQty, 0.001)
	require.InDelta(t, 48.0, result.Requirements[1].RequiredQty, 0.001)
	require.InDelta(t, 120.0, result.TotalRequiredQty, 0.001)
	require.InDelta(t, 100.0, result.RegularPercentTotal, 0.0001)
}

func TestCheckFeasibilityReportsShortage(t *testing.T) {
	recipes := &memoryRecipes{entries: map[int64][]Entry{
		10: {
			{MasterProductID: 10, MaterialMasterProductID: 1, MaterialProductID: 101, MaterialName: "RM-A", Percentage: 60, Available: 50},
			{MasterProductID: 10, MaterialMasterProductID: 2, MaterialProductID: 102, MaterialName: "RM-B", Percentage: 40, Available: 200},
		},
	}}
	engine := NewEngine(recipes)

	result, err := engine.CheckFeasibility(context.Background(), 10, 100, 1.2)
	require.NoError(t, err)
	require.False(t, result.Feasible)
	require.InDelta(t, 22.0, result.Requirements[0].Shortage, 0.001)
	require.InDelta(t, 0.0, result.Requirements[1].Shortage, 0.001)
}

func TestRecipeNotConfiguredIsDistinct(t *testing.T) {
	engine := NewEngine(&memoryRecipes{entries: map[int64][]Entry{}})

	result, err := engine.CheckFeasibility(context.Background(), 99, 10, 1.0)
	require.NoError(t, err)
	require.False(t, result.RecipeConfigured)
	require.False(t, result.Feasible)
	require.Empty(t, result.Requirements)
}

func TestAdditionalLinesExcludedFromFooting(t *testing.T) {
	recipes := &memoryRecipes{entries: map[int64][]Entry{
		10: {
			{MasterProductID: 10, MaterialMasterProductID: 1, MaterialProductID: 101, Percentage: 70, Available: 1000},
			{MasterProductID: 10, MaterialMasterProductID: 2, MaterialProductID: 102, Percentage: 30, Available: 1000},
			{MasterProductID: 10, MaterialMasterProductID: 3, MaterialProductID: 103, Percentage: 5, IsAdditional: true, Available: 1000},
		},
	}}
	engine := NewEngine(recipes)

	result, err := engine.CheckFeasibility(context.Background(), 10, 100, 1.0)
	require.NoError(t, err)
	// Additional line is dosed on top of the 100% base.
	require.InDelta(t, 100.0, result.RegularPercentTotal, 0.0001)
	require.InDelta(t, 5.0, result.Requirements[2].RequiredQty, 0.001)
	require.InDelta(t, 105.0, result.TotalRequiredQty, 0.001)
}

func TestMismatchedPercentagesAcceptedAsIs(t *testing.T) {
	recipes := &memoryRecipes{entries: map[int64][]Entry{
		10: {
			{MasterProductID: 10, MaterialMasterProductID: 1, MaterialProductID: 101, Percentage: 55, Available: 1000},
			{MasterProductID: 10, MaterialMasterProductID: 2, MaterialProductID: 102, Percentage: 40, Available: 1000},
		},
	}}
	engine := NewEngine(recipes)

	result, err := engine.CheckFeasibility(context.Background(), 10, 100, 1.0)
	require.NoError(t, err)
	require.True(t, result.Feasible)
	require.InDelta(t, 95.0, result.RegularPercentTotal, 0.0001)
	require.InDelta(t, 95.0, result.TotalRequiredQty, 0.001)
}

func TestRegularLinesFootToRoundedTotal(t *testing.T) {
	// Three equal thirds produce a repeating decimal per line; the rounding
	// residual must fold back so the lines sum to the rounded total.
	recipes := &memoryRecipes{entries: map[int64][]Entry{
		10: {
			{MasterProductID: 10, MaterialMasterProductID: 1, MaterialProductID: 101, Percentage: 100.0 / 3, Available: 1000},
			{MasterProductID: 10, MaterialMasterProductID: 2, MaterialProductID: 102, Percentage: 100.0 / 3, Available: 1000},
			{MasterProductID: 10, MaterialMasterProductID: 3, MaterialProductID: 103, Percentage: 100.0 / 3, Available: 1000},
		},
	}}
	engine := NewEngine(recipes)

	result, err := engine.CheckFeasibility(context.Background(), 10, 1, 1.0)
	require.NoError(t, err)

	var sum float64
	for _, req := range result.Requirements {
		sum += req.RequiredQty
	}
	require.InDelta(t, result.TotalRequiredQty, sum, 0.001)
}

func TestInvalidInputs(t *testing.T) {
	engine := NewEngine(&memoryRecipes{})

	_, err := engine.CheckFeasibility(context.Background(), 10, 0, 1.0)
	require.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = engine.CheckFeasibility(context.Background(), 10, 10, 0)
	require.ErrorIs(t, err, ErrInvalidDensity)
}

func TestRepeatedMaterialRowsCountedOnce(t *testing.T) {
	// A material master with several active SKUs must still contribute one
	// requirement per recipe line, never one per SKU.
	recipes := &memoryRecipes{entries: map[int64][]Entry{
		10: {
			{MasterProductID: 10, MaterialMasterProductID: 1, MaterialProductID: 101, MaterialName: "RM-A", Unit: "kg", Percentage: 60, Available: 200},
			{MasterProductID: 10, MaterialMasterProductID: 1, MaterialProductID: 105, MaterialName: "RM-A", Unit: "kg", Percentage: 60, Available: 30},
			{MasterProductID: 10, MaterialMasterProductID: 2, MaterialProductID: 102, MaterialName: "RM-B", Unit: "kg", Percentage: 40, Available: 200},
		},
	}}
	engine := NewEngine(recipes)

	result, err := engine.CheckFeasibility(context.Background(), 10, 100, 1.0)
	require.NoError(t, err)
	require.Len(t, result.Requirements, 2)
	require.Equal(t, int64(101), result.Requirements[0].MaterialProductID)
	require.InDelta(t, 60.0, result.Requirements[0].RequiredQty, 0.001)
	require.InDelta(t, 40.0, result.Requirements[1].RequiredQty, 0.001)
	require.InDelta(t, 100.0, result.TotalRequiredQty, 0.001)
	require.InDelta(t, 100.0, result.RegularPercentTotal, 0.0001)
}
