package products

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters ListFilters) ([]Product, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, ErrProductNotFound
	}
	return s.repo.Get(ctx, id)
}

// UpsertResult reports whether the upsert matched an existing row.
type UpsertResult struct {
	MasterProduct MasterProduct `json:"master_product"`
	Created       bool          `json:"created"`
}

// UpsertMaster creates or updates a master product, matching names
// case-insensitively so the import pipeline can replay its input without
// generating duplicates. The first-seen spelling of the name wins.
func (s *Service) UpsertMaster(ctx context.Context, input MasterProduct) (UpsertResult, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return UpsertResult{}, ErrNameRequired
	}
	if !input.Type.IsValid() {
		return UpsertResult{}, fmt.Errorf("%w: %q", ErrInvalidType, input.Type)
	}

	folded := foldName(input.Name)
	existing, err := s.repo.FindMasterByFoldedName(ctx, folded)
	switch {
	case err == nil:
		existing.Type = input.Type
		existing.DefaultUnit = input.DefaultUnit
		existing.IsActive = input.IsActive
		updated, err := s.repo.UpdateMaster(ctx, existing)
		if err != nil {
			return UpsertResult{}, fmt.Errorf("update master product: %w", err)
		}
		return UpsertResult{MasterProduct: updated}, nil
	case errors.Is(err, ErrProductNotFound):
		created, err := s.repo.InsertMaster(ctx, input, folded)
		if err != nil {
			return UpsertResult{}, fmt.Errorf("insert master product: %w", err)
		}
		return UpsertResult{MasterProduct: created, Created: true}, nil
	default:
		return UpsertResult{}, err
	}
}

// foldName produces the canonical case-insensitive match key. Unicode case
// folding, not ToLower, so names like "Straße" and "STRASSE" collide.
func foldName(name string) string {
	return cases.Fold().String(strings.Join(strings.Fields(name), " "))
}
