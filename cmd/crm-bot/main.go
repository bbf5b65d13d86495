// Command crm-bot runs the laboratory Telegram bot.
//
// It long-polls Telegram for /reg messages from laboratory managers and
// sends visit reminders on the CRM_NOTIFY_SCHEDULE cron, covering the
// CRM_NOTIFY_WINDOW ahead of each sweep.
package main

import (
	"context"
	"os"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/robfig/cron/v3"

	"github.com/kzcare/crm/pkg/bot"
	"github.com/kzcare/crm/pkg/config"
	"github.com/kzcare/crm/pkg/observability"
	"github.com/kzcare/crm/pkg/storage/postgres"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		observability.NewLogger(observability.ErrorLevel, os.Stderr).
			WithError(err).Error("failed to load configuration")
		os.Exit(1)
	}
	if err := cfg.ValidateBot(); err != nil {
		observability.NewLogger(observability.ErrorLevel, os.Stderr).
			WithError(err).Error("bot configuration incomplete")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conns, err := postgres.NewConnectionManager(cfg.Storage, logger)
	if err != nil {
		logger.WithError(err).Error("failed to connect to database")
		os.Exit(1)
	}
	defer conns.Close()
	db := conns.Primary()

	if err := postgres.RunMigrations(ctx, db); err != nil {
		logger.WithError(err).Error("failed to run migrations")
		os.Exit(1)
	}

	api, err := tgbotapi.NewBotAPI(cfg.Bot.Token)
	if err != nil {
		logger.WithError(err).Error("failed to connect to telegram")
		os.Exit(1)
	}
	logger.WithFields(map[string]interface{}{"bot": api.Self.UserName}).
		Info("telegram bot authorized")

	planned := postgres.NewPlannedStore(db)
	mothers := postgres.NewMotherStore(db)
	labs := postgres.NewLaboratoryStore(db)

	registrar := bot.NewRegistrar(api, labs, logger)
	notifier := bot.NewNotifier(api, planned, mothers, labs, logger)

	c := cron.New()
	if _, err := c.AddFunc(cfg.Bot.NotifySchedule, func() {
		defer observability.RecoverPanic(logger, "reminder sweep")
		now := time.Now()
		sent, err := notifier.NotifyUpcoming(ctx, now, now.Add(cfg.Bot.NotifyWindow))
		if err != nil {
			logger.WithError(err).Error("reminder sweep failed")
			return
		}
		logger.WithFields(map[string]interface{}{"sent": sent}).Info("reminder sweep complete")
	}); err != nil {
		logger.WithError(err).Error("invalid notify schedule")
		os.Exit(1)
	}
	c.Start()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := api.GetUpdatesChan(u)

	go func() {
		// A panic here must still stop the cron sweeps.
		defer observability.RecoverPanicWithCallback(logger, "telegram updates loop", cancel)
		if err := registrar.Run(ctx, updates); err != nil {
			logger.WithError(err).Error("registrar stopped")
		}
	}()

	sm := observability.NewShutdownManager(logger, nil, cfg.Server.ShutdownTimeout)
	sm.RegisterShutdownFunc(func(shutdownCtx context.Context) error {
		api.StopReceivingUpdates()
		cancel()
		stopped := c.Stop()
		select {
		case <-stopped.Done():
			return nil
		case <-shutdownCtx.Done():
			return shutdownCtx.Err()
		}
	})
	if err := sm.WaitForShutdown(); err != nil {
		logger.WithError(err).Error("shutdown finished with errors")
		os.Exit(1)
	}
}
