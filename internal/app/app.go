package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"

	"pulse/internal/alerts"
	"pulse/internal/config"
	"pulse/internal/db"
	"pulse/internal/incident"
	"pulse/internal/maintenance"
	"pulse/internal/models"
	"pulse/internal/notifier"
	"pulse/internal/probe"
	"pulse/internal/retention"
	"pulse/internal/scheduler"
	"pulse/internal/seed"
	"pulse/internal/web"
)

type App struct {
	cfg config.Config
	log *slog.Logger

	sqldb *sql.DB
	repo  *db.Repository

	scheduler *scheduler.Scheduler
	retention *retention.Service
	cron      *cron.Cron

	httpSrv *http.Server
}

// Senders builds the delivery backend for every channel type.
func Senders(cfg config.Config) map[models.ChannelType]notifier.Sender {
	return map[models.ChannelType]notifier.Sender{
		models.ChannelWebhook:  notifier.NewWebhook(),
		models.ChannelEmail:    notifier.NewEmail(notifier.NewResendMailer(cfg.ResendAPIKey), cfg.EmailFrom),
		models.ChannelSlack:    notifier.NewSlack(),
		models.ChannelDiscord:  notifier.NewDiscord(),
		models.ChannelTelegram: notifier.NewTelegram(),
	}
}

func New(cfg config.Config, logger *slog.Logger) (*App, error) {
	sqldb, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(sqldb); err != nil {
		_ = sqldb.Close()
		return nil, err
	}
	repo := db.NewRepository(sqldb)
	if err := seed.LoadAndApply(context.Background(), repo, cfg.SeedFile, logger); err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("seed: %w", err)
	}

	registry := probe.NewRegistry(probe.Options{
		UserAgent:      cfg.UserAgent,
		DNSServer:      cfg.DNSServer,
		DockerHost:     cfg.DockerHost,
		PingPrivileged: cfg.PingPrivileged,
		Logger:         logger,
	})
	gate := maintenance.NewGate(repo, logger)
	dispatcher := alerts.NewDispatcher(repo, gate, Senders(cfg), logger)
	sched := scheduler.New(repo, registry, incident.NewTracker(repo, logger), dispatcher,
		scheduler.Options{BatchSize: cfg.BatchSize, Concurrency: cfg.CheckConcurrency}, logger)

	a := &App{
		cfg:       cfg,
		log:       logger,
		sqldb:     sqldb,
		repo:      repo,
		scheduler: sched,
		retention: retention.NewService(repo, cfg.RetentionDays, logger),
		cron:      cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}
	a.httpSrv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           web.NewServer(repo, sched, gate, logger).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a, nil
}

func (a *App) runChecks(ctx context.Context) {
	if _, err := a.scheduler.RunPass(ctx); err != nil {
		a.log.Error("check pass failed", "err", err)
	}
}

func (a *App) Run(ctx context.Context) error {
	if _, err := a.cron.AddFunc(a.cfg.CheckSchedule, func() { a.runChecks(ctx) }); err != nil {
		return fmt.Errorf("check schedule %q: %w", a.cfg.CheckSchedule, err)
	}
	if _, err := a.cron.AddFunc(a.cfg.RetentionSchedule, func() { a.retention.Run(ctx) }); err != nil {
		return fmt.Errorf("retention schedule %q: %w", a.cfg.RetentionSchedule, err)
	}

	go func() {
		a.log.Info("http server listening", "addr", a.cfg.Addr)
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("http server failed", "err", err)
		}
	}()

	// Immediate first run
	a.runChecks(ctx)
	a.retention.Run(ctx)
	a.cron.Start()

	<-ctx.Done()
	a.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	select {
	case <-a.cron.Stop().Done():
	case <-shutdownCtx.Done():
		a.log.Warn("scheduled jobs still running at shutdown")
	}
	if err := a.httpSrv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("http shutdown", "err", err)
	}
	return a.sqldb.Close()
}
