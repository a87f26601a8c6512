package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"

	"chore-planner/internal/bot"
	"chore-planner/internal/notify"
	"chore-planner/internal/repository"
	"chore-planner/internal/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Telegram bot with the daily rollover and report jobs",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("rollover-time", "00:05", "daily HH:MM when the scheduling horizon is topped up")
	serveCmd.Flags().String("report-time", "08:00", "daily HH:MM when members get their summary")
	bindFlag("rollover_time", serveCmd.Flags(), "rollover-time")
	bindFlag("report_time", serveCmd.Flags(), "report-time")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.RequireToken(); err != nil {
		return err
	}

	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return fmt.Errorf("create bot api: %w", err)
	}

	a, err := newApp(cfg, func(users *repository.UserRepository) service.Notifier {
		return notify.NewTelegram(api, users)
	})
	if err != nil {
		return err
	}
	defer a.Close()

	telegramBot := bot.New(api, bot.Deps{
		Users:       a.users,
		Instances:   a.instances,
		Definitions: a.definitions,
		Engine:      a.engine,
		Reminders:   a.reminders,
		Categories:  a.categories,
		Calendar:    a.cal,
		Config:      &a.cfg,
	})

	rollover := func(ctx context.Context) error {
		_, err := a.engine.Rollover(ctx)
		return err
	}

	scheduler := service.NewSchedulerService(a.cal.Location())
	if _, err := scheduler.ScheduleDailyJob("rollover", cfg.RolloverTime, cfg.JobTimeout, rollover); err != nil {
		return fmt.Errorf("schedule rollover: %w", err)
	}
	if _, err := scheduler.ScheduleDailyJob("daily report", cfg.ReportTime, cfg.JobTimeout, telegramBot.SendDailyReports); err != nil {
		return fmt.Errorf("schedule reports: %w", err)
	}

	// Catch up on days missed while the process was down.
	startCtx, cancel := context.WithTimeout(ctx, cfg.JobTimeout)
	if err := rollover(startCtx); err != nil {
		log.Printf("startup rollover: %v", err)
	}
	cancel()

	scheduler.Start()
	defer scheduler.Stop()

	log.Println("Chore planner bot started.")
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("bot stopped with error: %w", err)
	}
	log.Println("Shutdown complete.")
	return nil
}
