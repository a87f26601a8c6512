package service

import (
	"context"

	"chore-planner/internal/model"
	"chore-planner/internal/repository"
)

// CategoryService provides helpers around categories.
type CategoryService struct {
	repo *repository.CategoryRepository
}

func NewCategoryService(repo *repository.CategoryRepository) *CategoryService {
	return &CategoryService{repo: repo}
}

func (s *CategoryService) List(ctx context.Context) ([]model.Category, error) {
	return s.repo.ListAll(ctx)
}

// Names maps category IDs to their display names.
func (s *CategoryService) Names(ctx context.Context) (map[uint]string, error) {
	categories, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[uint]string, len(categories))
	for _, cat := range categories {
		names[cat.ID] = cat.Name
	}
	return names, nil
}
