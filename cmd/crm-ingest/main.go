// Command crm-ingest pulls questionnaire mail from the clinic mailbox
// and creates mother records from it.
//
// By default it runs on the cron schedule from CRM_INGEST_SCHEDULE and
// stays resident. With -once it performs a single sync and exits, which
// is also how the Kubernetes CronJob deployment invokes it. -days N
// backfills the N days before the target day in the same run.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kzcare/crm/pkg/assignment"
	"github.com/kzcare/crm/pkg/audit"
	"github.com/kzcare/crm/pkg/config"
	"github.com/kzcare/crm/pkg/mailsync"
	"github.com/kzcare/crm/pkg/observability"
	"github.com/kzcare/crm/pkg/perms"
	"github.com/kzcare/crm/pkg/pipeline"
	"github.com/kzcare/crm/pkg/storage/postgres"
)

func main() {
	once := flag.Bool("once", false, "run a single sync and exit")
	day := flag.String("day", "", "target day as YYYY-MM-DD (default today)")
	days := flag.Int("days", 1, "number of days to sync, counting back from the target day")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		observability.NewLogger(observability.ErrorLevel, os.Stderr).
			WithError(err).Error("failed to load configuration")
		os.Exit(1)
	}
	if err := cfg.ValidateMail(); err != nil {
		observability.NewLogger(observability.ErrorLevel, os.Stderr).
			WithError(err).Error("mail configuration incomplete")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	ctx := context.Background()

	target := time.Now()
	if *day != "" {
		target, err = time.Parse("2006-01-02", *day)
		if err != nil {
			logger.WithError(err).Error("invalid -day value")
			os.Exit(1)
		}
	}

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

	auditLogger, err := audit.NewDBLogger(db)
	if err != nil {
		logger.WithError(err).Error("failed to initialize audit logger")
		os.Exit(1)
	}

	mothers := postgres.NewMotherStore(db)
	users := postgres.NewUserStore(db)
	svc := pipeline.NewService(db, perms.NewStore(db), users,
		assignment.NewRandomSelector(time.Now().UnixNano()),
		auditLogger, logger, nil, nil)
	ingestor := mailsync.NewIngestor(mothers, svc, auditLogger, logger)

	run := func(day time.Time) error {
		session, err := mailsync.Dial(mailsync.Config{
			Server:   cfg.Mail.Server,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
			Mailbox:  cfg.Mail.Mailbox,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to mailbox: %w", err)
		}
		defer session.Logout()

		res, err := ingestor.IngestDay(ctx, session, day)
		if err != nil {
			return err
		}
		logger.WithFields(map[string]interface{}{
			"day":      day.Format("2006-01-02"),
			"seen":     res.Seen,
			"created":  res.Created,
			"skipped":  res.Skipped,
			"failures": res.Failures,
		}).Info("mail sync complete")
		return nil
	}

	syncRange := func(until time.Time) {
		for i := *days - 1; i >= 0; i-- {
			if err := run(until.AddDate(0, 0, -i)); err != nil {
				logger.WithError(err).Error("mail sync failed")
			}
		}
	}

	if *once {
		syncRange(target)
		return
	}

	c := cron.New()
	if _, err := c.AddFunc(cfg.Mail.Schedule, func() {
		defer observability.RecoverPanic(logger, "scheduled mail sync")
		syncRange(time.Now())
	}); err != nil {
		logger.WithError(err).Error("invalid ingest schedule")
		os.Exit(1)
	}
	logger.WithFields(map[string]interface{}{"schedule": cfg.Mail.Schedule}).
		Info("mail ingestion scheduled")
	c.Start()

	sm := observability.NewShutdownManager(logger, nil, cfg.Server.ShutdownTimeout)
	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		stopped := c.Stop()
		select {
		case <-stopped.Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	if err := sm.WaitForShutdown(); err != nil {
		logger.WithError(err).Error("shutdown finished with errors")
		os.Exit(1)
	}
}
