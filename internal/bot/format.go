package bot

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"unicode"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"chore-planner/internal/model"
	"chore-planner/internal/recurrence"
)

const (
	noCategory    = "No category"
	noCategoryKey = "__no_category__"
	iconPaused    = "⏸"
	iconActive    = "🔁"
	iconOnce      = "📌"
)

// describeSchedule renders the recurrence rule of def in plain words.
func describeSchedule(def model.Definition) string {
	n := def.RecurInterval
	var text string
	switch def.RecurType {
	case recurrence.Once:
		return fmt.Sprintf("once on %s", def.StartDate)
	case recurrence.Daily:
		text = plural(n, "every day", "days")
	case recurrence.Weekly:
		text = plural(n, "every week", "weeks")
	case recurrence.Monthly:
		text = plural(n, "every month", "months") + fmt.Sprintf(" on day %d", def.StartDate.Day)
	case recurrence.IntervalDays:
		text = plural(n, "every day", "days")
	default:
		text = fmt.Sprintf("unknown schedule %q", string(def.RecurType))
	}
	text += fmt.Sprintf(" from %s", def.StartDate)
	if def.EndDate != nil {
		text += fmt.Sprintf(" until %s", def.EndDate)
	}
	return text
}

func plural(n int, one, many string) string {
	if n <= 1 {
		return one
	}
	return fmt.Sprintf("every %d %s", n, many)
}

func renderChoreList(defs []model.Definition, catNames map[uint]string, names map[uint]string) string {
	type categoryGroup struct {
		Name string
		Defs []model.Definition
	}

	groups := make(map[string]*categoryGroup)
	order := make([]string, 0, len(defs))
	for _, def := range defs {
		key, display := normalizedCategory(def.CategoryID, catNames)
		group, ok := groups[key]
		if !ok {
			group = &categoryGroup{Name: display}
			groups[key] = group
			order = append(order, key)
		}
		group.Defs = append(group.Defs, def)
	}

	sort.Slice(order, func(i, j int) bool {
		if order[i] == noCategoryKey {
			return false
		}
		if order[j] == noCategoryKey {
			return true
		}
		return strings.Compare(groups[order[i]].Name, groups[order[j]].Name) < 0
	})

	var builder strings.Builder
	builder.WriteString("🧹 <b>Household chores</b>\n\n")
	for _, key := range order {
		section := groups[key]
		sort.SliceStable(section.Defs, func(i, j int) bool {
			if section.Defs[i].Active != section.Defs[j].Active {
				return section.Defs[i].Active
			}
			return section.Defs[i].ID < section.Defs[j].ID
		})

		builder.WriteString(fmt.Sprintf("<b>%s</b>\n", section.Name))
		for _, def := range section.Defs {
			icon := iconActive
			switch {
			case !def.Active:
				icon = iconPaused
			case def.RecurType == recurrence.Once:
				icon = iconOnce
			}
			builder.WriteString(fmt.Sprintf("%s <b>#%d</b> %s", icon, def.ID, escape(normalizeTitle(def.Title))))
			if def.Points > 0 {
				builder.WriteString(fmt.Sprintf(" <i>(+%d)</i>", def.Points))
			}
			builder.WriteByte('\n')
			builder.WriteString(fmt.Sprintf("   🗓 %s\n", describeSchedule(def)))
			assignee := "anyone"
			if def.DefaultAssigneeID != nil {
				if name, ok := names[*def.DefaultAssigneeID]; ok {
					assignee = name
				}
			}
			builder.WriteString(fmt.Sprintf("   👤 %s", escape(assignee)))
			if def.RequireApproval {
				builder.WriteString(" · 🔎 needs approval")
			}
			if !def.Active {
				builder.WriteString(" · paused")
			}
			builder.WriteByte('\n')
		}
		builder.WriteByte('\n')
	}
	return strings.TrimSpace(builder.String())
}

// instanceButtons builds one row per open instance with the actions its status allows.
func instanceButtons(instances []model.Instance, defs map[uint]model.Definition) [][]tgbotapi.InlineKeyboardButton {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, inst := range instances {
		label := fmt.Sprintf("#%d · %s", inst.ID, shortTitle(defs[inst.DefinitionID].Title, 20))
		switch inst.Status {
		case model.StatusPending:
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("✅ "+label, fmt.Sprintf("%s%d", cbDonePrefix, inst.ID)),
				tgbotapi.NewInlineKeyboardButtonData("⏭ Skip", fmt.Sprintf("%s%d", cbSkipPrefix, inst.ID)),
			))
		case model.StatusRejected:
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("🔁 Redo "+label, fmt.Sprintf("%s%d", cbRedoPrefix, inst.ID)),
			))
		}
	}
	return rows
}

func transitionText(inst *model.Instance) string {
	if inst == nil {
		return "Done."
	}
	switch inst.Status {
	case model.StatusCompleted:
		if inst.PointsAwarded != nil && *inst.PointsAwarded > 0 {
			return fmt.Sprintf("✅ #%d done. +%d points!", inst.ID, *inst.PointsAwarded)
		}
		return fmt.Sprintf("✅ #%d done.", inst.ID)
	case model.StatusPendingApproval:
		return fmt.Sprintf("🔎 #%d sent for review.", inst.ID)
	case model.StatusApproved:
		return fmt.Sprintf("👍 #%d approved.", inst.ID)
	case model.StatusRejected:
		return fmt.Sprintf("👎 #%d returned for redo.", inst.ID)
	case model.StatusSkipped:
		return fmt.Sprintf("⏭ #%d skipped.", inst.ID)
	case model.StatusPending:
		return fmt.Sprintf("🔁 #%d is open again. Mark it done when finished.", inst.ID)
	default:
		return fmt.Sprintf("#%d is now %s.", inst.ID, inst.Status)
	}
}

func statusLabel(status model.Status) string {
	switch status {
	case model.StatusPendingApproval:
		return "waiting for review"
	case model.StatusPending:
		return "open"
	default:
		return string(status)
	}
}

type scoreLine struct {
	name   string
	points int
	self   bool
}

func renderScoreboard(lines []scoreLine) string {
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].points > lines[j].points })

	var builder strings.Builder
	builder.WriteString("🏆 <b>Points</b>\n")
	for i, line := range lines {
		entry := fmt.Sprintf("%d. %s — %d", i+1, escape(line.name), line.points)
		if line.self {
			entry = "<b>" + entry + "</b>"
		}
		builder.WriteString(entry + "\n")
	}
	return strings.TrimSpace(builder.String())
}

func userNames(users []model.User) map[uint]string {
	names := make(map[uint]string, len(users))
	for _, u := range users {
		names[u.ID] = u.DisplayName()
	}
	return names
}

func shortTitle(title string, maxLen int) string {
	clean := strings.TrimSpace(strings.ReplaceAll(title, "\n", " "))
	clean = normalizeTitle(clean)
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

func escape(s string) string {
	return html.EscapeString(s)
}

func normalizedCategory(categoryID *uint, catNames map[uint]string) (string, string) {
	if categoryID == nil {
		return noCategoryKey, categoryLabel(noCategory)
	}
	if name, ok := catNames[*categoryID]; ok {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			return noCategoryKey, categoryLabel(noCategory)
		}
		return strings.ToLower(trimmed), escape(categoryLabel(trimmed))
	}
	return noCategoryKey, categoryLabel(noCategory)
}

func normalizeTitle(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	runes := []rune(value)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

var categoryIcons = map[string]string{
	"kitchen":     "🍽",
	"laundry":     "🧺",
	"garden":      "🌱",
	"pets":        "🐾",
	"bathroom":    "🛁",
	"shopping":    "🛒",
	"no category": "📁",
}

func categoryLabel(name string) string {
	base := strings.TrimSpace(name)
	icon, ok := categoryIcons[strings.ToLower(base)]
	if !ok {
		icon = "🏷️"
	}
	return fmt.Sprintf("%s %s", icon, normalizeTitle(base))
}

// stripCategoryIcon undoes categoryLabel so keyboard picks map back to the stored name.
func stripCategoryIcon(text string) string {
	text = strings.TrimSpace(text)
	if head, rest, found := strings.Cut(text, " "); found {
		for _, icon := range categoryIcons {
			if head == icon {
				return strings.TrimSpace(rest)
			}
		}
		if head == "🏷️" {
			return strings.TrimSpace(rest)
		}
	}
	return text
}
