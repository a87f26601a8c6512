package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"chore-planner/internal/calendar"
	"chore-planner/internal/model"
)

// InstanceRepository stores materialized chore instances.
type InstanceRepository struct {
	db *gorm.DB
}

func NewInstanceRepository(db *gorm.DB) *InstanceRepository {
	return &InstanceRepository{db: db}
}

// FindExisting returns the due dates already stored for a definition between from and to inclusive, in any status.
func (r *InstanceRepository) FindExisting(ctx context.Context, definitionID uint, from, to calendar.Date) (map[calendar.Date]struct{}, error) {
	var rows []model.Instance
	if err := r.db.WithContext(ctx).Select("due_date").
		Where("definition_id = ? AND due_date >= ? AND due_date <= ?", definitionID, from, to).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find existing instances: %w", err)
	}
	existing := make(map[calendar.Date]struct{}, len(rows))
	for _, row := range rows {
		existing[row.DueDate] = struct{}{}
	}
	return existing, nil
}

// InsertMany creates pending instances and returns the due dates it actually wrote, in draft order.
// A (definition_id, due_date) collision means someone else already materialized that date and is skipped.
func (r *InstanceRepository) InsertMany(ctx context.Context, definitionID uint, drafts []model.InstanceDraft) ([]calendar.Date, error) {
	if len(drafts) == 0 {
		return nil, nil
	}

	var inserted []calendar.Date
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, draft := range drafts {
			row := model.Instance{
				DefinitionID: definitionID,
				DueDate:      draft.DueDate,
				AssigneeID:   draft.AssigneeID,
				Status:       model.StatusPending,
			}
			res := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "definition_id"}, {Name: "due_date"}},
				DoNothing: true,
			}).Create(&row)
			switch {
			case res.Error == nil:
				if res.RowsAffected > 0 {
					inserted = append(inserted, draft.DueDate)
				}
			case errors.Is(res.Error, gorm.ErrDuplicatedKey):
				// Drivers that report the conflict instead of skipping it.
			default:
				return fmt.Errorf("insert instance %s: %w", draft.DueDate, res.Error)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inserted, nil
}

// CountByDefinition counts every stored instance of a definition, in any status and on any date.
func (r *InstanceRepository) CountByDefinition(ctx context.Context, definitionID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Instance{}).
		Where("definition_id = ?", definitionID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count instances: %w", err)
	}
	return count, nil
}

// DeleteFuturePending removes not-yet-started instances due on or after from.
func (r *InstanceRepository) DeleteFuturePending(ctx context.Context, definitionID uint, from calendar.Date) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("definition_id = ? AND status = ? AND due_date >= ?", definitionID, model.StatusPending, from).
		Delete(&model.Instance{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete future pending instances: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// UpdateFuturePendingAssignee rewrites the assignee of not-yet-started instances due on or after from.
func (r *InstanceRepository) UpdateFuturePendingAssignee(ctx context.Context, definitionID uint, from calendar.Date, assigneeID *uint) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.Instance{}).
		Where("definition_id = ? AND status = ? AND due_date >= ?", definitionID, model.StatusPending, from).
		Update("assignee_id", assigneeID)
	if res.Error != nil {
		return 0, fmt.Errorf("update future pending assignee: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// UpdateStatus moves an instance from one status to another. It reports false
// when the row was not in the expected status anymore.
func (r *InstanceRepository) UpdateStatus(ctx context.Context, instanceID uint, from, to model.Status, change model.StatusChange) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Instance{}).
		Where("id = ? AND status = ?", instanceID, from).
		Updates(map[string]interface{}{
			"status":          to,
			"completed_by_id": change.CompletedByID,
			"completed_at":    change.CompletedAt,
			"points_awarded":  change.PointsAwarded,
		})
	if res.Error != nil {
		return false, fmt.Errorf("update instance status: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// UpdateAssignee reassigns a single instance, only while it is still pending.
func (r *InstanceRepository) UpdateAssignee(ctx context.Context, instanceID uint, assigneeID *uint) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Instance{}).
		Where("id = ? AND status = ?", instanceID, model.StatusPending).
		Update("assignee_id", assigneeID)
	if res.Error != nil {
		return false, fmt.Errorf("update instance assignee: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *InstanceRepository) FindByID(ctx context.Context, id uint) (*model.Instance, error) {
	var inst model.Instance
	if err := r.db.WithContext(ctx).First(&inst, id).Error; err != nil {
		return nil, err
	}
	return &inst, nil
}

func (r *InstanceRepository) ListByDefinition(ctx context.Context, definitionID uint) ([]model.Instance, error) {
	var instances []model.Instance
	if err := r.db.WithContext(ctx).Where("definition_id = ?", definitionID).
		Order("due_date ASC").Find(&instances).Error; err != nil {
		return nil, err
	}
	return instances, nil
}

// ListOpenForAssignee returns pending work due up to through, plus rejected work waiting for a redo.
func (r *InstanceRepository) ListOpenForAssignee(ctx context.Context, assigneeID uint, through calendar.Date) ([]model.Instance, error) {
	var instances []model.Instance
	if err := r.db.WithContext(ctx).
		Where("assignee_id = ? AND ((status = ? AND due_date <= ?) OR status = ?)",
			assigneeID, model.StatusPending, through, model.StatusRejected).
		Order("due_date ASC, id ASC").
		Find(&instances).Error; err != nil {
		return nil, err
	}
	return instances, nil
}

// ListUnassignedOpen returns pending instances nobody owns, due up to through.
func (r *InstanceRepository) ListUnassignedOpen(ctx context.Context, through calendar.Date) ([]model.Instance, error) {
	var instances []model.Instance
	if err := r.db.WithContext(ctx).
		Where("assignee_id IS NULL AND status = ? AND due_date <= ?", model.StatusPending, through).
		Order("due_date ASC, id ASC").
		Find(&instances).Error; err != nil {
		return nil, err
	}
	return instances, nil
}

func (r *InstanceRepository) ListAwaitingApproval(ctx context.Context) ([]model.Instance, error) {
	var instances []model.Instance
	if err := r.db.WithContext(ctx).Where("status = ?", model.StatusPendingApproval).
		Order("completed_at ASC, id ASC").Find(&instances).Error; err != nil {
		return nil, err
	}
	return instances, nil
}

// SumPoints totals the points awarded for work the user completed.
func (r *InstanceRepository) SumPoints(ctx context.Context, userID uint) (int, error) {
	var total int
	if err := r.db.WithContext(ctx).Model(&model.Instance{}).
		Select("COALESCE(SUM(points_awarded), 0)").
		Where("completed_by_id = ? AND status IN ?", userID, []model.Status{model.StatusCompleted, model.StatusApproved}).
		Scan(&total).Error; err != nil {
		return 0, fmt.Errorf("sum points: %w", err)
	}
	return total, nil
}
