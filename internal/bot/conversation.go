package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"gorm.io/gorm"

	"chore-planner/internal/calendar"
	"chore-planner/internal/recurrence"
	"chore-planner/internal/service"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stageTitle
	stageCategory
	stageRecurrence
	stageInterval
	stageStart
	stageAssignee
	stagePoints
	stageApproval
)

const (
	btnSkip   = "⏭️ Skip"
	btnYes    = "Yes"
	btnNo     = "No"
	btnCancel = "⏪ Cancel"
)

type conversationState struct {
	stage conversationStage
	input service.DefinitionInput
}

func (b *Bot) startNewChoreConversation(ctx context.Context, msg *tgbotapi.Message) error {
	if _, ok, err := b.requireAdmin(ctx, msg); !ok {
		return err
	}
	log.Printf("[info] start new chore conversation user=%d", msg.From.ID)
	b.setConversation(msg.From.ID, &conversationState{stage: stageTitle})
	return b.sendWithReplyMarkup(msg.Chat.ID, "🆕 New chore.\n<b>Step 1:</b> what is it called?", cancelKeyboard())
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message) error {
	state := b.getConversation(msg.From.ID)
	if state == nil {
		return nil
	}

	text := strings.TrimSpace(msg.Text)
	switch state.stage {
	case stageTitle:
		if text == "" {
			return b.sendWithReplyMarkup(msg.Chat.ID, "The title cannot be empty.", cancelKeyboard())
		}
		state.input.Title = text
		state.stage = stageCategory
		return b.sendWithReplyMarkup(msg.Chat.ID, "🏷 Category? Pick one or type your own.", b.categoryKeyboard(ctx))
	case stageCategory:
		if !isSkipInput(text) {
			state.input.Category = stripCategoryIcon(text)
		}
		state.stage = stageRecurrence
		return b.sendWithReplyMarkup(msg.Chat.ID, "🔁 How often?", recurrenceKeyboard())
	case stageRecurrence:
		kind, err := recurrence.ParseKind(text)
		if err != nil {
			return b.sendWithReplyMarkup(msg.Chat.ID, "Pick one of the options below.", recurrenceKeyboard())
		}
		state.input.RecurType = string(kind)
		if kind == recurrence.Once {
			state.input.RecurInterval = 1
			state.stage = stageStart
			return b.sendWithReplyMarkup(msg.Chat.ID, "📆 On which date? <code>2025-11-30</code>, or «Skip» for today.", skipKeyboard())
		}
		state.stage = stageInterval
		return b.sendWithReplyMarkup(msg.Chat.ID, fmt.Sprintf("🔢 Every how many %s? «Skip» means 1.", intervalUnit(kind)), skipKeyboard())
	case stageInterval:
		interval := 1
		if !isSkipInput(text) {
			n, err := strconv.Atoi(text)
			if err != nil || n < 1 || n > 365 {
				return b.sendWithReplyMarkup(msg.Chat.ID, "Send a whole number from 1 to 365.", skipKeyboard())
			}
			interval = n
		}
		state.input.RecurInterval = interval
		state.stage = stageStart
		return b.sendWithReplyMarkup(msg.Chat.ID, "📆 First date? <code>2025-11-30</code>, or «Skip» for today.", skipKeyboard())
	case stageStart:
		if !isSkipInput(text) && !strings.EqualFold(text, "today") {
			start, err := calendar.ParseDate(text)
			if err != nil {
				return b.sendWithReplyMarkup(msg.Chat.ID, "Use the format <code>2025-11-30</code> or «Skip».", skipKeyboard())
			}
			state.input.StartDate = &start
		}
		state.stage = stageAssignee
		return b.sendWithReplyMarkup(msg.Chat.ID, "👤 Who does it? Send @username, «me», or «Skip» to leave it open.", skipKeyboard())
	case stageAssignee:
		if !isSkipInput(text) {
			assigneeID, err := b.resolveAssignee(ctx, msg, text)
			if err != nil {
				return b.sendWithReplyMarkup(msg.Chat.ID, escape(err.Error()), skipKeyboard())
			}
			state.input.DefaultAssigneeID = assigneeID
		}
		state.stage = stagePoints
		return b.sendWithReplyMarkup(msg.Chat.ID, "🏆 Points per completion? «Skip» means 0.", skipKeyboard())
	case stagePoints:
		if !isSkipInput(text) {
			points, err := strconv.Atoi(text)
			if err != nil || points < 0 {
				return b.sendWithReplyMarkup(msg.Chat.ID, "Points must be a whole number, 0 or more.", skipKeyboard())
			}
			state.input.Points = points
		}
		state.stage = stageApproval
		return b.sendWithReplyMarkup(msg.Chat.ID, "🔎 Should an admin approve each completion?", yesNoKeyboard())
	case stageApproval:
		answer, ok := parseYesNo(text)
		if !ok {
			return b.sendWithReplyMarkup(msg.Chat.ID, "Answer «Yes» or «No».", yesNoKeyboard())
		}
		state.input.RequireApproval = answer
		err := b.finishChoreCreation(ctx, msg, state.input)
		b.clearConversation(msg.From.ID)
		return err
	default:
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "Input reset. Start again with /newchore.")
	}
}

func (b *Bot) resolveAssignee(ctx context.Context, msg *tgbotapi.Message, text string) (*uint, error) {
	if strings.EqualFold(text, "me") {
		user, err := b.ensureUser(ctx, msg.From)
		if err != nil {
			return nil, err
		}
		return &user.ID, nil
	}
	if !strings.HasPrefix(text, "@") {
		return nil, fmt.Errorf("send @username, «me» or «Skip»")
	}
	user, err := b.deps.Users.FindByUsername(ctx, text)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("no member %s yet; they need to send /start first", text)
		}
		return nil, err
	}
	return &user.ID, nil
}

func (b *Bot) finishChoreCreation(ctx context.Context, msg *tgbotapi.Message, input service.DefinitionInput) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	def, inserted, err := b.deps.Definitions.Create(ctx, user, input)
	if err != nil {
		if def == nil {
			return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not save the chore: %s", escape(err.Error())))
		}
		log.Printf("materialize new definition %d: %v", def.ID, err)
	}

	log.Printf("[info] chore created id=%d user=%d kind=%s inserted=%d", def.ID, user.ID, def.RecurType, inserted)

	var summary strings.Builder
	summary.WriteString("✅ <b>Chore saved</b>\n")
	summary.WriteString(fmt.Sprintf("• <b>ID:</b> %d\n", def.ID))
	summary.WriteString(fmt.Sprintf("• <b>Title:</b> %s\n", escape(normalizeTitle(def.Title))))
	if input.Category != "" {
		summary.WriteString(fmt.Sprintf("• <b>Category:</b> %s\n", escape(input.Category)))
	}
	summary.WriteString(fmt.Sprintf("• <b>Schedule:</b> %s\n", describeSchedule(*def)))
	if def.Points > 0 {
		summary.WriteString(fmt.Sprintf("• <b>Points:</b> %d\n", def.Points))
	}
	if def.RequireApproval {
		summary.WriteString("• <b>Approval:</b> required\n")
	}
	summary.WriteString(fmt.Sprintf("• <b>Scheduled now:</b> %d occurrences\n", inserted))

	reply := tgbotapi.NewMessage(msg.Chat.ID, strings.TrimSpace(summary.String()))
	reply.ReplyMarkup = mainMenuKeyboard()
	reply.ParseMode = tgbotapi.ModeHTML
	_, err = b.api.Send(reply)
	return err
}

func (b *Bot) categoryKeyboard(ctx context.Context) tgbotapi.ReplyKeyboardMarkup {
	names := []string{"Kitchen", "Laundry", "Garden", "Pets"}
	if categories, err := b.deps.Categories.List(ctx); err == nil && len(categories) > 0 {
		names = names[:0]
		for _, cat := range categories {
			names = append(names, cat.Name)
		}
	}

	var rows [][]tgbotapi.KeyboardButton
	for i := 0; i < len(names); i += 2 {
		row := []tgbotapi.KeyboardButton{tgbotapi.NewKeyboardButton(categoryLabel(names[i]))}
		if i+1 < len(names) {
			row = append(row, tgbotapi.NewKeyboardButton(categoryLabel(names[i+1])))
		}
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButton(btnSkip),
		tgbotapi.NewKeyboardButton(btnCancel),
	))
	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func recurrenceKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(string(recurrence.Once)),
			tgbotapi.NewKeyboardButton(string(recurrence.Daily)),
			tgbotapi.NewKeyboardButton(string(recurrence.Weekly)),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(string(recurrence.Monthly)),
			tgbotapi.NewKeyboardButton(string(recurrence.IntervalDays)),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancel),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelToday),
			tgbotapi.NewKeyboardButton(menuLabelChores),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelNewChore),
			tgbotapi.NewKeyboardButton(menuLabelPoints),
			tgbotapi.NewKeyboardButton(menuLabelHelp),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = false
	return kb
}

func cancelKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancel),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func skipKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnSkip),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancel),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func yesNoKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnYes),
			tgbotapi.NewKeyboardButton(btnNo),
			tgbotapi.NewKeyboardButton(btnCancel),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func isSkipInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == "-" || value == strings.ToLower(btnSkip) || value == "skip"
}

func isCancelInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancel) || value == "cancel"
}

func parseYesNo(text string) (bool, bool) {
	switch strings.TrimSpace(strings.ToLower(text)) {
	case "yes", "y", "+":
		return true, true
	case "no", "n", "-":
		return false, true
	default:
		return false, false
	}
}

func intervalUnit(kind recurrence.Kind) string {
	switch kind {
	case recurrence.Weekly:
		return "weeks"
	case recurrence.Monthly:
		return "months"
	default:
		return "days"
	}
}
