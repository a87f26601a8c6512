package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"chore-planner/internal/model"
)

// DefinitionRepository handles CRUD for chore definitions.
type DefinitionRepository struct {
	db *gorm.DB
}

func NewDefinitionRepository(db *gorm.DB) *DefinitionRepository {
	return &DefinitionRepository{db: db}
}

func (r *DefinitionRepository) Create(ctx context.Context, def *model.Definition) error {
	if err := r.db.WithContext(ctx).Create(def).Error; err != nil {
		return fmt.Errorf("create definition: %w", err)
	}
	return nil
}

// Save writes every column; concurrent edits resolve as last write wins.
func (r *DefinitionRepository) Save(ctx context.Context, def *model.Definition) error {
	if err := r.db.WithContext(ctx).Save(def).Error; err != nil {
		return fmt.Errorf("save definition: %w", err)
	}
	return nil
}

func (r *DefinitionRepository) FindByID(ctx context.Context, id uint) (*model.Definition, error) {
	var def model.Definition
	if err := r.db.WithContext(ctx).First(&def, id).Error; err != nil {
		return nil, err
	}
	return &def, nil
}

func (r *DefinitionRepository) ListActive(ctx context.Context) ([]model.Definition, error) {
	var defs []model.Definition
	if err := r.db.WithContext(ctx).Where("active = ?", true).Order("id ASC").Find(&defs).Error; err != nil {
		return nil, err
	}
	return defs, nil
}

func (r *DefinitionRepository) ListAll(ctx context.Context) ([]model.Definition, error) {
	var defs []model.Definition
	if err := r.db.WithContext(ctx).Order("active DESC, title ASC").Find(&defs).Error; err != nil {
		return nil, err
	}
	return defs, nil
}
