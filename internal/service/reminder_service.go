package service

import (
	"context"
	"fmt"
	"html"
	"strings"

	"chore-planner/internal/calendar"
	"chore-planner/internal/model"
)

// OpenWorkReader lists instances for summaries.
type OpenWorkReader interface {
	ListOpenForAssignee(ctx context.Context, assigneeID uint, through calendar.Date) ([]model.Instance, error)
	ListUnassignedOpen(ctx context.Context, through calendar.Date) ([]model.Instance, error)
	ListAwaitingApproval(ctx context.Context) ([]model.Instance, error)
}

// ReminderService builds human-readable summaries for daily notifications.
type ReminderService struct {
	instances   OpenWorkReader
	definitions DefinitionStore
}

func NewReminderService(instances OpenWorkReader, definitions DefinitionStore) *ReminderService {
	return &ReminderService{instances: instances, definitions: definitions}
}

// OpenWork returns the member's work due through today plus unclaimed work anyone may pick up.
func (s *ReminderService) OpenWork(ctx context.Context, user model.User, today calendar.Date) ([]model.Instance, []model.Instance, error) {
	mine, err := s.instances.ListOpenForAssignee(ctx, user.ID, today)
	if err != nil {
		return nil, nil, err
	}
	unassigned, err := s.instances.ListUnassignedOpen(ctx, today)
	if err != nil {
		return nil, nil, err
	}
	return mine, unassigned, nil
}

// Titles maps definition IDs to definitions for rendering.
func (s *ReminderService) Titles(ctx context.Context) (map[uint]model.Definition, error) {
	defs, err := s.definitions.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]model.Definition, len(defs))
	for _, def := range defs {
		byID[def.ID] = def
	}
	return byID, nil
}

func (s *ReminderService) DailySummary(ctx context.Context, user model.User, today calendar.Date) (string, error) {
	mine, unassigned, err := s.OpenWork(ctx, user, today)
	if err != nil {
		return "", err
	}
	defs, err := s.Titles(ctx)
	if err != nil {
		return "", err
	}

	var builder strings.Builder
	builder.WriteString("📋 <b>Daily chores</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n\n", today))

	builder.WriteString("🧹 <b>Your chores</b>\n")
	if len(mine) == 0 {
		builder.WriteString("— nothing due, enjoy the day\n")
	} else {
		for _, inst := range mine {
			builder.WriteString(FormatInstance(inst, defs[inst.DefinitionID], today))
		}
	}

	if len(unassigned) > 0 {
		builder.WriteString("\n🙋 <b>Up for grabs</b>\n")
		for _, inst := range unassigned {
			builder.WriteString(FormatInstance(inst, defs[inst.DefinitionID], today))
		}
	}

	if user.IsAdmin() {
		awaiting, err := s.instances.ListAwaitingApproval(ctx)
		if err != nil {
			return "", err
		}
		if len(awaiting) > 0 {
			builder.WriteString(fmt.Sprintf("\n🔎 <b>Awaiting review:</b> %d (see /review)\n", len(awaiting)))
		}
	}

	return strings.TrimSpace(builder.String()), nil
}

// FormatInstance renders one instance line in Telegram HTML.
func FormatInstance(inst model.Instance, def model.Definition, today calendar.Date) string {
	var sb strings.Builder

	icon := "🟢"
	switch {
	case inst.Status == model.StatusRejected:
		icon = "🔁"
	case inst.Status == model.StatusPendingApproval:
		icon = "🔎"
	case inst.DueDate.Before(today):
		icon = "⚠️"
	}

	title := strings.TrimSpace(def.Title)
	if title == "" {
		title = fmt.Sprintf("chore #%d", inst.DefinitionID)
	}
	sb.WriteString(fmt.Sprintf("%s #%d %s", icon, inst.ID, html.EscapeString(title)))
	if def.Points > 0 {
		sb.WriteString(fmt.Sprintf(" <i>(+%d)</i>", def.Points))
	}

	due := inst.DueDate.String()
	if def.DueTime != "" {
		due += " " + def.DueTime
	}
	switch {
	case inst.Status == model.StatusRejected:
		sb.WriteString(fmt.Sprintf("\n   ⏰ %s — <b>returned for redo</b>", due))
	case inst.DueDate.Before(today):
		sb.WriteString(fmt.Sprintf("\n   ⏰ %s — <b>overdue</b>", due))
	default:
		sb.WriteString(fmt.Sprintf("\n   ⏰ %s", due))
	}

	sb.WriteByte('\n')
	return sb.String()
}
