package service

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"chore-planner/internal/calendar"
	"chore-planner/internal/model"
	"chore-planner/internal/recurrence"
)

// InstanceStore is the persistence the instance engine needs. The store must
// enforce uniqueness of (definition, due date).
type InstanceStore interface {
	FindExisting(ctx context.Context, definitionID uint, from, to calendar.Date) (map[calendar.Date]struct{}, error)
	InsertMany(ctx context.Context, definitionID uint, drafts []model.InstanceDraft) ([]calendar.Date, error)
	CountByDefinition(ctx context.Context, definitionID uint) (int64, error)
	DeleteFuturePending(ctx context.Context, definitionID uint, from calendar.Date) (int64, error)
	UpdateFuturePendingAssignee(ctx context.Context, definitionID uint, from calendar.Date, assigneeID *uint) (int64, error)
	UpdateStatus(ctx context.Context, instanceID uint, from, to model.Status, change model.StatusChange) (bool, error)
	UpdateAssignee(ctx context.Context, instanceID uint, assigneeID *uint) (bool, error)
	FindByID(ctx context.Context, id uint) (*model.Instance, error)
}

// DefinitionReader loads chore definitions.
type DefinitionReader interface {
	FindByID(ctx context.Context, id uint) (*model.Definition, error)
	ListActive(ctx context.Context) ([]model.Definition, error)
}

// Notifier tells a member about newly created work. Failures never fail the caller.
type Notifier interface {
	NotifyAssigned(ctx context.Context, assigneeID uint, title string, count int, firstDue calendar.Date) error
}

// InstanceService turns definitions into dated instances and moves instances through their lifecycle.
// It keeps no state between calls; every operation re-reads the store.
type InstanceService struct {
	instances   InstanceStore
	definitions DefinitionReader
	notifier    Notifier
	cal         *calendar.Calendar
	horizonDays int
}

func NewInstanceService(instances InstanceStore, definitions DefinitionReader, notifier Notifier, cal *calendar.Calendar, horizonDays int) *InstanceService {
	if horizonDays <= 0 {
		horizonDays = recurrence.DefaultHorizonDays
	}
	return &InstanceService{
		instances:   instances,
		definitions: definitions,
		notifier:    notifier,
		cal:         cal,
		horizonDays: horizonDays,
	}
}

func (s *InstanceService) HorizonDays() int { return s.horizonDays }

// Materialize creates the instances of def that do not exist yet and returns how many were inserted.
// Running it twice with an unchanged definition inserts nothing the second time, on the same day
// or any later one. A one-off chore is materialized at most once in its lifetime.
func (s *InstanceService) Materialize(ctx context.Context, def *model.Definition, horizonDays int, notify bool) (int, error) {
	if !def.Active {
		return 0, nil
	}
	rule := def.Rule()
	dates, err := recurrence.Expand(s.cal, rule, horizonDays)
	if err != nil {
		return 0, fmt.Errorf("expand definition %d: %w", def.ID, err)
	}
	if len(dates) == 0 {
		return 0, nil
	}

	if rule.Kind == recurrence.Once {
		count, err := s.instances.CountByDefinition(ctx, def.ID)
		if err != nil {
			return 0, err
		}
		if count > 0 {
			return 0, nil
		}
	}

	existing, err := s.instances.FindExisting(ctx, def.ID, dates[0], dates[len(dates)-1])
	if err != nil {
		return 0, err
	}

	drafts := make([]model.InstanceDraft, 0, len(dates))
	for _, d := range dates {
		if _, ok := existing[d]; ok {
			continue
		}
		drafts = append(drafts, model.InstanceDraft{DueDate: d, AssigneeID: rule.DefaultAssignee})
	}
	if len(drafts) == 0 {
		return 0, nil
	}

	inserted, err := s.instances.InsertMany(ctx, def.ID, drafts)
	if err != nil {
		return 0, err
	}
	log.Printf("[info] materialized definition=%d inserted=%d candidates=%d", def.ID, len(inserted), len(dates))

	if notify && len(inserted) > 0 && rule.DefaultAssignee != nil {
		s.notifyAssigned(ctx, *rule.DefaultAssignee, def.Title, len(inserted), inserted[0])
	}
	return len(inserted), nil
}

func (s *InstanceService) notifyAssigned(ctx context.Context, assigneeID uint, title string, count int, firstDue calendar.Date) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyAssigned(ctx, assigneeID, title, count, firstDue); err != nil {
		log.Printf("notify assignee %d: %v", assigneeID, err)
	}
}

// Regenerate discards the definition's future pending instances and materializes them again
// from the current rule. Completed, reviewed, skipped and past-dated instances are never touched.
// Assignees are not notified again.
func (s *InstanceService) Regenerate(ctx context.Context, definitionID uint) (int, error) {
	def, err := s.definitions.FindByID(ctx, definitionID)
	if err != nil {
		return 0, fmt.Errorf("load definition %d: %w", definitionID, err)
	}

	deleted, err := s.instances.DeleteFuturePending(ctx, def.ID, s.cal.Today())
	if err != nil {
		return 0, err
	}
	log.Printf("[info] regenerate definition=%d deleted=%d", def.ID, deleted)

	return s.Materialize(ctx, def, s.horizonDays, false)
}

// PropagateAssignment pushes a new default assignee onto pending instances due today or later.
func (s *InstanceService) PropagateAssignment(ctx context.Context, definitionID uint, assigneeID *uint) (int64, error) {
	affected, err := s.instances.UpdateFuturePendingAssignee(ctx, definitionID, s.cal.Today(), assigneeID)
	if err != nil {
		return 0, err
	}
	log.Printf("[info] propagated assignee definition=%d affected=%d", definitionID, affected)
	return affected, nil
}

// Rollover extends every active definition up to the horizon. A broken definition is
// logged and skipped so it cannot stall the rest of the household; the run still
// reports an error once all definitions were attempted.
func (s *InstanceService) Rollover(ctx context.Context) (int, error) {
	runID := uuid.NewString()[:8]
	defs, err := s.definitions.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active definitions: %w", err)
	}

	total, failed := 0, 0
	for i := range defs {
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		default:
		}
		inserted, err := s.Materialize(ctx, &defs[i], s.horizonDays, false)
		if err != nil {
			log.Printf("rollover run=%s definition=%d: %v", runID, defs[i].ID, err)
			failed++
			continue
		}
		total += inserted
	}
	log.Printf("[info] rollover run=%s definitions=%d inserted=%d failed=%d", runID, len(defs), total, failed)
	if failed > 0 {
		return total, fmt.Errorf("rollover run %s: %d of %d definitions failed", runID, failed, len(defs))
	}
	return total, nil
}
