package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"chore-planner/internal/calendar"
	"chore-planner/internal/model"
	"chore-planner/internal/recurrence"
)

// DefinitionInput represents data required to create or edit a chore.
type DefinitionInput struct {
	Title             string
	Description       string
	Category          string
	Points            int
	DueTime           string
	RequireApproval   bool
	RecurType         string
	RecurInterval     int
	StartDate         *calendar.Date
	EndDate           *calendar.Date
	DefaultAssigneeID *uint
}

// DefinitionStore persists chore definitions.
type DefinitionStore interface {
	DefinitionReader
	Create(ctx context.Context, def *model.Definition) error
	Save(ctx context.Context, def *model.Definition) error
	ListAll(ctx context.Context) ([]model.Definition, error)
}

// CategoryStore resolves category names.
type CategoryStore interface {
	GetOrCreate(ctx context.Context, name string) (*model.Category, error)
}

// DefinitionService wraps chore-definition business logic and keeps instances in step with edits.
type DefinitionService struct {
	definitions DefinitionStore
	categories  CategoryStore
	instances   *InstanceService
	cal         *calendar.Calendar
}

func NewDefinitionService(definitions DefinitionStore, categories CategoryStore, instances *InstanceService, cal *calendar.Calendar) *DefinitionService {
	return &DefinitionService{definitions: definitions, categories: categories, instances: instances, cal: cal}
}

// Create stores a new active definition and materializes its first instances,
// notifying the default assignee.
func (s *DefinitionService) Create(ctx context.Context, creator *model.User, input DefinitionInput) (*model.Definition, int, error) {
	def := model.Definition{Active: true}
	if creator != nil {
		def.CreatedByID = creator.ID
	}
	if err := s.apply(ctx, &def, input); err != nil {
		return nil, 0, err
	}
	if err := s.definitions.Create(ctx, &def); err != nil {
		return nil, 0, err
	}
	log.Printf("[info] definition created id=%d kind=%s", def.ID, def.RecurType)

	inserted, err := s.instances.Materialize(ctx, &def, s.instances.HorizonDays(), true)
	if err != nil {
		return &def, 0, err
	}
	return &def, inserted, nil
}

// Update overwrites a definition (last write wins). A schedule change regenerates future
// instances; an assignee-only change is propagated onto them.
func (s *DefinitionService) Update(ctx context.Context, id uint, input DefinitionInput) (*model.Definition, error) {
	def, err := s.definitions.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load definition %d: %w", id, err)
	}
	before := *def
	if err := s.apply(ctx, def, input); err != nil {
		return nil, err
	}
	if err := s.definitions.Save(ctx, def); err != nil {
		return nil, err
	}

	switch {
	case !before.SameSchedule(*def):
		if _, err := s.instances.Regenerate(ctx, def.ID); err != nil {
			return def, err
		}
	case !model.SameAssignee(before.DefaultAssigneeID, def.DefaultAssigneeID):
		if _, err := s.instances.PropagateAssignment(ctx, def.ID, def.DefaultAssigneeID); err != nil {
			return def, err
		}
	}
	return def, nil
}

// SetAssignee changes the default assignee and hands over not-yet-started future work.
func (s *DefinitionService) SetAssignee(ctx context.Context, id uint, assigneeID *uint) (int64, error) {
	def, err := s.definitions.FindByID(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("load definition %d: %w", id, err)
	}
	def.DefaultAssigneeID = assigneeID
	if err := s.definitions.Save(ctx, def); err != nil {
		return 0, err
	}
	return s.instances.PropagateAssignment(ctx, def.ID, assigneeID)
}

// Pause retires a definition: future pending instances go away, history stays.
func (s *DefinitionService) Pause(ctx context.Context, id uint) error {
	return s.setActive(ctx, id, false)
}

// Resume reactivates a paused definition and rebuilds its future instances.
func (s *DefinitionService) Resume(ctx context.Context, id uint) error {
	return s.setActive(ctx, id, true)
}

func (s *DefinitionService) setActive(ctx context.Context, id uint, active bool) error {
	def, err := s.definitions.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load definition %d: %w", id, err)
	}
	def.Active = active
	if err := s.definitions.Save(ctx, def); err != nil {
		return err
	}
	log.Printf("[info] definition id=%d active=%t", def.ID, active)
	_, err = s.instances.Regenerate(ctx, def.ID)
	return err
}

func (s *DefinitionService) Get(ctx context.Context, id uint) (*model.Definition, error) {
	return s.definitions.FindByID(ctx, id)
}

func (s *DefinitionService) List(ctx context.Context) ([]model.Definition, error) {
	return s.definitions.ListAll(ctx)
}

// apply validates input and copies it onto def.
func (s *DefinitionService) apply(ctx context.Context, def *model.Definition, input DefinitionInput) error {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return fmt.Errorf("title is required")
	}
	if input.Points < 0 {
		return fmt.Errorf("points must not be negative")
	}
	if due := strings.TrimSpace(input.DueTime); due != "" {
		if _, _, err := ParseClock(due); err != nil {
			return err
		}
	}

	kind, err := recurrence.ParseKind(input.RecurType)
	if err != nil {
		return err
	}
	interval := input.RecurInterval
	if interval == 0 {
		interval = 1
	}
	start := def.StartDate
	if input.StartDate != nil {
		start = *input.StartDate
	}
	if start.IsZero() {
		start = s.cal.Today()
	}

	def.Title = title
	def.Description = strings.TrimSpace(input.Description)
	def.Points = input.Points
	def.DueTime = strings.TrimSpace(input.DueTime)
	def.RequireApproval = input.RequireApproval
	def.RecurType = kind
	def.RecurInterval = interval
	def.StartDate = start
	def.EndDate = input.EndDate
	def.DefaultAssigneeID = input.DefaultAssigneeID
	if err := def.Rule().Validate(); err != nil {
		return err
	}

	def.CategoryID = nil
	if name := strings.TrimSpace(input.Category); name != "" && s.categories != nil {
		category, err := s.categories.GetOrCreate(ctx, name)
		if err != nil {
			return err
		}
		if category != nil {
			def.CategoryID = &category.ID
		}
	}
	return nil
}
