package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"chore-planner/internal/model"
)

var (
	// ErrNotAssignee is returned when someone other than the assignee tries to finish an instance.
	ErrNotAssignee = errors.New("only the assignee can complete this chore")
	// ErrApprovalRequired is returned when the completion target does not match the definition's approval setting.
	ErrApprovalRequired = errors.New("completion target does not match the chore's approval setting")
	// ErrStaleInstance is returned when the instance changed status between read and write.
	ErrStaleInstance = errors.New("chore instance was changed concurrently")
	// ErrNotPending is returned when reassigning an instance that already left pending.
	ErrNotPending = errors.New("chore instance is no longer pending")
)

// InvalidTransitionError is returned when the state machine has no edge from From to To.
type InvalidTransitionError struct {
	InstanceID uint
	From       model.Status
	To         model.Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("instance %d cannot move from %s to %s", e.InstanceID, e.From, e.To)
}

// Transition moves one instance to target on behalf of actorID.
// Role checks (who may approve, reject or skip) belong to the caller; the
// assignee guard for completion is enforced here because it depends on the row.
func (s *InstanceService) Transition(ctx context.Context, instanceID uint, target model.Status, actorID uint) (*model.Instance, error) {
	inst, err := s.instances.FindByID(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("load instance %d: %w", instanceID, err)
	}
	if !inst.Status.CanTransitionTo(target) {
		return nil, &InvalidTransitionError{InstanceID: inst.ID, From: inst.Status, To: target}
	}

	def, err := s.definitions.FindByID(ctx, inst.DefinitionID)
	if err != nil {
		return nil, fmt.Errorf("load definition %d: %w", inst.DefinitionID, err)
	}

	now := s.cal.Now()
	actor := actorID
	points := def.Points
	change := model.StatusChange{
		CompletedByID: inst.CompletedByID,
		CompletedAt:   inst.CompletedAt,
	}

	switch target {
	case model.StatusCompleted, model.StatusPendingApproval:
		if inst.AssigneeID != nil && *inst.AssigneeID != actorID {
			return nil, ErrNotAssignee
		}
		if def.RequireApproval != (target == model.StatusPendingApproval) {
			return nil, ErrApprovalRequired
		}
		change.CompletedByID = &actor
		change.CompletedAt = &now
		if target == model.StatusCompleted {
			change.PointsAwarded = &points
		}
	case model.StatusApproved:
		change.PointsAwarded = &points
	case model.StatusRejected:
	case model.StatusSkipped:
		change.CompletedByID = &actor
		change.CompletedAt = &now
	case model.StatusPending:
		// Rejected work goes back to the assignee with a clean slate.
		change = model.StatusChange{}
	}

	ok, err := s.instances.UpdateStatus(ctx, inst.ID, inst.Status, target, change)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrStaleInstance
	}
	log.Printf("[info] instance transition id=%d %s->%s actor=%d", inst.ID, inst.Status, target, actorID)

	inst.Status = target
	inst.CompletedByID = change.CompletedByID
	inst.CompletedAt = change.CompletedAt
	inst.PointsAwarded = change.PointsAwarded
	return inst, nil
}

// Complete finishes a pending instance, routing it through review when the definition requires approval.
func (s *InstanceService) Complete(ctx context.Context, instanceID uint, actorID uint) (*model.Instance, error) {
	inst, err := s.instances.FindByID(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("load instance %d: %w", instanceID, err)
	}
	def, err := s.definitions.FindByID(ctx, inst.DefinitionID)
	if err != nil {
		return nil, fmt.Errorf("load definition %d: %w", inst.DefinitionID, err)
	}
	target := model.StatusCompleted
	if def.RequireApproval {
		target = model.StatusPendingApproval
	}
	return s.Transition(ctx, instanceID, target, actorID)
}

// Reassign hands a single pending instance to someone else.
func (s *InstanceService) Reassign(ctx context.Context, instanceID uint, assigneeID *uint) (*model.Instance, error) {
	ok, err := s.instances.UpdateAssignee(ctx, instanceID, assigneeID)
	if err != nil {
		return nil, err
	}
	if !ok {
		if _, err := s.instances.FindByID(ctx, instanceID); err != nil {
			return nil, fmt.Errorf("load instance %d: %w", instanceID, err)
		}
		return nil, ErrNotPending
	}
	inst, err := s.instances.FindByID(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("load instance %d: %w", instanceID, err)
	}
	log.Printf("[info] instance reassigned id=%d", instanceID)
	return inst, nil
}
