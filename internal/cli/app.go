package cli

import (
	"fmt"
	"log"

	"github.com/spf13/viper"
	"gorm.io/gorm"

	"chore-planner/internal/calendar"
	"chore-planner/internal/config"
	"chore-planner/internal/repository"
	"chore-planner/internal/service"
)

// app holds the wired repositories and services shared by every command.
type app struct {
	cfg         config.Config
	db          *gorm.DB
	cal         *calendar.Calendar
	users       *repository.UserRepository
	instances   *repository.InstanceRepository
	engine      *service.InstanceService
	definitions *service.DefinitionService
	reminders   *service.ReminderService
	categories  *service.CategoryService
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// newApp opens the database and wires the services. notifierFor receives the user
// repository so notifiers can resolve assignees.
func newApp(cfg config.Config, notifierFor func(users *repository.UserRepository) service.Notifier) (*app, error) {
	cal, err := calendar.Load(cfg.Timezone, calendar.SystemClock{})
	if err != nil {
		return nil, fmt.Errorf("timezone: %w", err)
	}

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}

	users := repository.NewUserRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	definitionRepo := repository.NewDefinitionRepository(db)
	instanceRepo := repository.NewInstanceRepository(db)

	engine := service.NewInstanceService(instanceRepo, definitionRepo, notifierFor(users), cal, cfg.HorizonDays)

	log.Printf("[info] household zone %s, horizon %d days", cal.Location(), engine.HorizonDays())

	return &app{
		cfg:         cfg,
		db:          db,
		cal:         cal,
		users:       users,
		instances:   instanceRepo,
		engine:      engine,
		definitions: service.NewDefinitionService(definitionRepo, categoryRepo, engine, cal),
		reminders:   service.NewReminderService(instanceRepo, definitionRepo),
		categories:  service.NewCategoryService(categoryRepo),
	}, nil
}

func (a *app) Close() {
	sqlDB, err := a.db.DB()
	if err == nil {
		_ = sqlDB.Close()
	}
}
