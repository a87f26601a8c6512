package notify

import (
	"context"
	"fmt"
	"html"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"chore-planner/internal/calendar"
	"chore-planner/internal/model"
)

// Sender is the part of *tgbotapi.BotAPI the notifier uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// UserFinder resolves household members to their Telegram chat.
type UserFinder interface {
	FindByID(ctx context.Context, id uint) (*model.User, error)
}

// Telegram sends assignment notices as private messages.
type Telegram struct {
	api   Sender
	users UserFinder
}

func NewTelegram(api Sender, users UserFinder) *Telegram {
	return &Telegram{api: api, users: users}
}

func (t *Telegram) NotifyAssigned(ctx context.Context, assigneeID uint, title string, count int, firstDue calendar.Date) error {
	user, err := t.users.FindByID(ctx, assigneeID)
	if err != nil {
		return fmt.Errorf("find assignee %d: %w", assigneeID, err)
	}
	if user.TelegramID == 0 {
		return fmt.Errorf("assignee %d has no telegram chat", assigneeID)
	}

	msg := tgbotapi.NewMessage(user.TelegramID, AssignedText(title, count, firstDue))
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("send assignment notice: %w", err)
	}
	log.Printf("[info] notified user=%d chore=%q count=%d", assigneeID, title, count)
	return nil
}

// AssignedText renders the assignment notice.
func AssignedText(title string, count int, firstDue calendar.Date) string {
	noun := "occurrences"
	if count == 1 {
		noun = "occurrence"
	}
	return fmt.Sprintf("📌 You were assigned <b>%s</b>\n%d %s scheduled, first due %s.\nSee /today for what is due now.",
		html.EscapeString(title), count, noun, firstDue)
}

// Log only writes the notice to the process log. Used by CLI commands that run without a bot.
type Log struct{}

func (Log) NotifyAssigned(_ context.Context, assigneeID uint, title string, count int, firstDue calendar.Date) error {
	log.Printf("[info] assignment user=%d chore=%q count=%d first_due=%s", assigneeID, title, count, firstDue)
	return nil
}
