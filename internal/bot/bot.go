package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"gorm.io/gorm"

	"chore-planner/internal/calendar"
	"chore-planner/internal/config"
	"chore-planner/internal/model"
	"chore-planner/internal/repository"
	"chore-planner/internal/service"
)

const (
	cbDonePrefix    = "done:"
	cbSkipPrefix    = "skip:"
	cbApprovePrefix = "approve:"
	cbRejectPrefix  = "reject:"
	cbRedoPrefix    = "redo:"
)

const (
	menuLabelToday    = "📅 Today"
	menuLabelChores   = "🧹 Chores"
	menuLabelNewChore = "➕ New chore"
	menuLabelPoints   = "🏆 Points"
	menuLabelHelp     = "ℹ️ Help"
)

// Deps bundles the repositories and services the bot drives.
type Deps struct {
	Users       *repository.UserRepository
	Instances   *repository.InstanceRepository
	Definitions *service.DefinitionService
	Engine      *service.InstanceService
	Reminders   *service.ReminderService
	Categories  *service.CategoryService
	Calendar    *calendar.Calendar
	Config      *config.Config
}

// Bot aggregates Telegram API with services.
type Bot struct {
	api           *tgbotapi.BotAPI
	deps          Deps
	conversations map[int64]*conversationState
	mu            sync.Mutex
}

func New(api *tgbotapi.BotAPI, deps Deps) *Bot {
	log.Printf("[info] bot authorized on account %s", api.Self.UserName)
	return &Bot{
		api:           api,
		deps:          deps,
		conversations: make(map[int64]*conversationState),
	}
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	log.Println("[info] start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				log.Printf("handle callback: %v", err)
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				log.Printf("handle message: %v", err)
			}
		}
	}

	return nil
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if !msg.IsCommand() && isCancelInput(msg.Text) {
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Input cancelled.")
	}

	if msg.IsCommand() {
		log.Printf("[info] command from %d: /%s %s", msg.From.ID, msg.Command(), msg.CommandArguments())
		return b.handleCommand(ctx, msg)
	}

	if b.hasConversation(msg.From.ID) {
		log.Printf("[info] conversation step %d from %d", b.getConversation(msg.From.ID).stage, msg.From.ID)
		return b.handleConversation(ctx, msg)
	}

	if handled, err := b.handleMenuAlias(ctx, msg); handled {
		return err
	}

	return b.sendText(msg.Chat.ID, "I did not get that. Try /today, /newchore or /help.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.handleHelp(msg)
	case "today":
		return b.handleToday(ctx, msg)
	case "chores":
		return b.handleChores(ctx, msg)
	case "newchore":
		return b.startNewChoreConversation(ctx, msg)
	case "assign":
		return b.handleAssign(ctx, msg)
	case "pause":
		return b.handleSetActive(ctx, msg, false)
	case "resume":
		return b.handleSetActive(ctx, msg, true)
	case "regenerate":
		return b.handleRegenerate(ctx, msg)
	case "review":
		return b.handleReview(ctx, msg)
	case "points":
		return b.handlePoints(ctx, msg)
	case "cancel":
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Input cancelled.")
	default:
		return b.sendText(msg.Chat.ID, "Unknown command. See /help.")
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "there"
	}
	role := "member"
	if user.IsAdmin() {
		role = "admin"
	}

	text := fmt.Sprintf("👋 Hi, %s!\n<b>I keep track of the household chores.</b>\nYou are registered as <i>%s</i>.\n\n%s",
		escape(name), role, helpText)
	return b.sendText(msg.Chat.ID, text)
}

const helpText = "Commands:\n" +
	"• /today — what is due for you now\n" +
	"• /chores — all chores and their schedules\n" +
	"• /points — points earned\n" +
	"• /newchore — add a chore step by step (admin)\n" +
	"• /assign &lt;id&gt; &lt;@username|none&gt; — hand a chore over (admin)\n" +
	"• /pause &lt;id&gt;, /resume &lt;id&gt; — stop or restart a chore (admin)\n" +
	"• /regenerate &lt;id&gt; — rebuild upcoming occurrences (admin)\n" +
	"• /review — completed work waiting for approval (admin)\n" +
	"• /cancel — cancel the current input"

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	return b.sendText(msg.Chat.ID, "ℹ️ <b>Help</b>\n"+helpText)
}

func (b *Bot) handleToday(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	return b.sendToday(ctx, msg.Chat.ID, user)
}

func (b *Bot) sendToday(ctx context.Context, chatID int64, user *model.User) error {
	today := b.deps.Calendar.Today()
	text, err := b.deps.Reminders.DailySummary(ctx, *user, today)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Could not build the summary: %s", escape(err.Error())))
	}

	mine, unassigned, err := b.deps.Reminders.OpenWork(ctx, *user, today)
	if err != nil {
		return b.sendText(chatID, text)
	}
	defs, err := b.deps.Reminders.Titles(ctx)
	if err != nil {
		return b.sendText(chatID, text)
	}

	buttons := instanceButtons(append(mine, unassigned...), defs)
	if len(buttons) == 0 {
		return b.sendText(chatID, text)
	}
	return b.sendWithReplyMarkup(chatID, text, tgbotapi.NewInlineKeyboardMarkup(buttons...))
}

func (b *Bot) handleChores(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.ensureUser(ctx, msg.From); err != nil {
		return err
	}

	defs, err := b.deps.Definitions.List(ctx)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not load chores: %s", escape(err.Error())))
	}
	if len(defs) == 0 {
		return b.sendText(msg.Chat.ID, "No chores yet. An admin can add one with /newchore.")
	}

	catNames, _ := b.deps.Categories.Names(ctx)
	users, _ := b.deps.Users.ListAll(ctx)
	return b.sendText(msg.Chat.ID, renderChoreList(defs, catNames, userNames(users)))
}

func (b *Bot) handleAssign(ctx context.Context, msg *tgbotapi.Message) error {
	if _, ok, err := b.requireAdmin(ctx, msg); !ok {
		return err
	}

	defID, target, err := parseAssignArgs(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, "Usage: /assign 12 @username (or /assign 12 none)")
	}

	var assigneeID *uint
	label := "nobody"
	if target != "" {
		assignee, err := b.deps.Users.FindByUsername(ctx, target)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return b.sendText(msg.Chat.ID, fmt.Sprintf("No member %s. They need to send /start first.", escape(target)))
			}
			return err
		}
		assigneeID = &assignee.ID
		label = assignee.DisplayName()
	}

	affected, err := b.deps.Definitions.SetAssignee(ctx, defID, assigneeID)
	if err != nil {
		return b.sendText(msg.Chat.ID, errorText(err))
	}
	log.Printf("[info] definition assigned id=%d assignee=%v affected=%d", defID, assigneeID, affected)
	return b.sendText(msg.Chat.ID, fmt.Sprintf("👤 Chore #%d now goes to %s; %d upcoming occurrences updated.", defID, escape(label), affected))
}

func (b *Bot) handleSetActive(ctx context.Context, msg *tgbotapi.Message, active bool) error {
	if _, ok, err := b.requireAdmin(ctx, msg); !ok {
		return err
	}
	defID, err := parseID(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, "Give the chore ID, for example /pause 3")
	}

	if active {
		err = b.deps.Definitions.Resume(ctx, defID)
	} else {
		err = b.deps.Definitions.Pause(ctx, defID)
	}
	if err != nil {
		return b.sendText(msg.Chat.ID, errorText(err))
	}
	if active {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("▶️ Chore #%d resumed.", defID))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("⏸ Chore #%d paused. Finished work stays in the history.", defID))
}

func (b *Bot) handleRegenerate(ctx context.Context, msg *tgbotapi.Message) error {
	if _, ok, err := b.requireAdmin(ctx, msg); !ok {
		return err
	}
	defID, err := parseID(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, "Give the chore ID, for example /regenerate 3")
	}
	inserted, err := b.deps.Engine.Regenerate(ctx, defID)
	if err != nil {
		return b.sendText(msg.Chat.ID, errorText(err))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("🔄 Chore #%d rebuilt: %d upcoming occurrences.", defID, inserted))
}

func (b *Bot) handleReview(ctx context.Context, msg *tgbotapi.Message) error {
	if _, ok, err := b.requireAdmin(ctx, msg); !ok {
		return err
	}

	awaiting, err := b.deps.Instances.ListAwaitingApproval(ctx)
	if err != nil {
		return b.sendText(msg.Chat.ID, errorText(err))
	}
	if len(awaiting) == 0 {
		return b.sendText(msg.Chat.ID, "🔎 Nothing waits for review.")
	}

	defs, err := b.deps.Reminders.Titles(ctx)
	if err != nil {
		return err
	}
	users, _ := b.deps.Users.ListAll(ctx)
	names := userNames(users)
	today := b.deps.Calendar.Today()

	for _, inst := range awaiting {
		text := service.FormatInstance(inst, defs[inst.DefinitionID], today)
		if inst.CompletedByID != nil {
			text += fmt.Sprintf("   🙋 done by %s", escape(names[*inst.CompletedByID]))
		}
		markup := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("👍 Approve", fmt.Sprintf("%s%d", cbApprovePrefix, inst.ID)),
			tgbotapi.NewInlineKeyboardButtonData("👎 Reject", fmt.Sprintf("%s%d", cbRejectPrefix, inst.ID)),
		))
		if err := b.sendWithReplyMarkup(msg.Chat.ID, strings.TrimSpace(text), markup); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bot) handlePoints(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	users, err := b.deps.Users.ListAll(ctx)
	if err != nil {
		return err
	}

	board := make([]scoreLine, 0, len(users))
	for _, u := range users {
		points, err := b.deps.Instances.SumPoints(ctx, u.ID)
		if err != nil {
			return b.sendText(msg.Chat.ID, errorText(err))
		}
		board = append(board, scoreLine{name: u.DisplayName(), points: points, self: u.ID == user.ID})
	}
	return b.sendText(msg.Chat.ID, renderScoreboard(board))
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil {
		return nil
	}
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		log.Printf("callback ack: %v", err)
	}

	prefix, instanceID, err := parseCallback(cb.Data)
	if err != nil {
		return nil
	}
	log.Printf("[info] callback %s user=%d instance=%d", strings.TrimSuffix(prefix, ":"), cb.From.ID, instanceID)

	user, err := b.ensureUser(ctx, cb.From)
	if err != nil {
		return err
	}
	chatID := cb.Message.Chat.ID

	var inst *model.Instance
	switch prefix {
	case cbDonePrefix:
		inst, err = b.deps.Engine.Complete(ctx, instanceID, user.ID)
	case cbSkipPrefix:
		inst, err = b.transitionOwned(ctx, user, instanceID, model.StatusSkipped)
	case cbRedoPrefix:
		inst, err = b.transitionOwned(ctx, user, instanceID, model.StatusPending)
	case cbApprovePrefix, cbRejectPrefix:
		if !user.IsAdmin() {
			return b.sendText(chatID, "⛔ Only an admin can review chores.")
		}
		target := model.StatusApproved
		if prefix == cbRejectPrefix {
			target = model.StatusRejected
		}
		inst, err = b.deps.Engine.Transition(ctx, instanceID, target, user.ID)
	}
	if err != nil {
		return b.sendText(chatID, errorText(err))
	}

	if err := b.sendText(chatID, transitionText(inst)); err != nil {
		return err
	}
	if prefix == cbRejectPrefix {
		b.tellAssignee(ctx, inst, "🔁 A chore was returned for redo. See /today.")
	}
	return nil
}

// transitionOwned lets the assignee or an admin skip or reopen an instance.
func (b *Bot) transitionOwned(ctx context.Context, user *model.User, instanceID uint, target model.Status) (*model.Instance, error) {
	inst, err := b.deps.Instances.FindByID(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if !user.IsAdmin() && inst.AssigneeID != nil && *inst.AssigneeID != user.ID {
		return nil, service.ErrNotAssignee
	}
	return b.deps.Engine.Transition(ctx, instanceID, target, user.ID)
}

func (b *Bot) tellAssignee(ctx context.Context, inst *model.Instance, text string) {
	if inst == nil || inst.AssigneeID == nil {
		return
	}
	assignee, err := b.deps.Users.FindByID(ctx, *inst.AssigneeID)
	if err != nil || assignee.TelegramID == 0 {
		return
	}
	if err := b.sendText(assignee.TelegramID, text); err != nil {
		log.Printf("notify assignee %d: %v", assignee.ID, err)
	}
}

// SendDailyReports sends a summary to every known user.
func (b *Bot) SendDailyReports(ctx context.Context) error {
	users, err := b.deps.Users.ListAll(ctx)
	if err != nil {
		return err
	}
	for i := range users {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if users[i].TelegramID == 0 {
			continue
		}
		if err := b.sendToday(ctx, users[i].TelegramID, &users[i]); err != nil {
			log.Printf("send summary to %d: %v", users[i].TelegramID, err)
		}
	}
	return nil
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	text := strings.TrimSpace(strings.ToLower(msg.Text))
	switch text {
	case strings.ToLower(menuLabelToday):
		return true, b.handleToday(ctx, msg)
	case strings.ToLower(menuLabelChores):
		return true, b.handleChores(ctx, msg)
	case strings.ToLower(menuLabelNewChore):
		return true, b.startNewChoreConversation(ctx, msg)
	case strings.ToLower(menuLabelPoints):
		return true, b.handlePoints(ctx, msg)
	case strings.ToLower(menuLabelHelp):
		return true, b.handleHelp(msg)
	default:
		return false, nil
	}
}

func (b *Bot) ensureUser(ctx context.Context, from *tgbotapi.User) (*model.User, error) {
	return b.deps.Users.UpsertFromTelegram(ctx, from.ID, from.FirstName, from.LastName, from.UserName, b.deps.Config.IsAdmin(from.ID))
}

// requireAdmin replies with a refusal when the sender is not an admin. ok is false
// whenever the caller must stop.
func (b *Bot) requireAdmin(ctx context.Context, msg *tgbotapi.Message) (*model.User, bool, error) {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return nil, false, err
	}
	if !user.IsAdmin() {
		return user, false, b.sendText(msg.Chat.ID, "⛔ This command is for household admins.")
	}
	return user, true, nil
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) setConversation(userID int64, state *conversationState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversations[userID] = state
}

func (b *Bot) getConversation(userID int64) *conversationState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversations[userID]
}

func (b *Bot) hasConversation(userID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.conversations[userID]
	return ok
}

func (b *Bot) clearConversation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, userID)
}

// errorText maps engine errors to something a household member can act on.
func errorText(err error) string {
	var transition *service.InvalidTransitionError
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return "Not found. It may have been removed."
	case errors.Is(err, service.ErrNotAssignee):
		return "⛔ This chore is assigned to someone else."
	case errors.Is(err, service.ErrStaleInstance):
		return "Someone else just updated this chore. Check /today again."
	case errors.Is(err, service.ErrNotPending):
		return "Only chores that are not started yet can be handed over."
	case errors.Is(err, service.ErrApprovalRequired):
		return "This chore's approval setting changed. Try again from /today."
	case errors.As(err, &transition):
		return fmt.Sprintf("This chore is already %s.", statusLabel(transition.From))
	default:
		return fmt.Sprintf("Error: %s", escape(err.Error()))
	}
}

func parseID(raw string) (uint, error) {
	value, err := strconv.ParseUint(strings.TrimPrefix(strings.TrimSpace(raw), "#"), 10, 64)
	if err != nil {
		return 0, err
	}
	if value == 0 {
		return 0, fmt.Errorf("id must be positive")
	}
	return uint(value), nil
}

func parseTaskID(data, prefix string) (uint, error) {
	return parseID(strings.TrimPrefix(data, prefix))
}

func parseCallback(data string) (string, uint, error) {
	for _, prefix := range []string{cbDonePrefix, cbSkipPrefix, cbApprovePrefix, cbRejectPrefix, cbRedoPrefix} {
		if strings.HasPrefix(data, prefix) {
			id, err := parseTaskID(data, prefix)
			return prefix, id, err
		}
	}
	return "", 0, fmt.Errorf("unknown callback %q", data)
}

// parseAssignArgs reads "<choreID> <@username|none>". An empty target means unassign.
func parseAssignArgs(raw string) (uint, string, error) {
	fields := strings.Fields(raw)
	if len(fields) != 2 {
		return 0, "", fmt.Errorf("expected chore id and assignee")
	}
	id, err := parseID(fields[0])
	if err != nil {
		return 0, "", err
	}
	target := fields[1]
	switch strings.ToLower(target) {
	case "none", "-", "nobody":
		return id, "", nil
	}
	if !strings.HasPrefix(target, "@") || len(target) < 2 {
		return 0, "", fmt.Errorf("assignee must be @username or none")
	}
	return id, target, nil
}
