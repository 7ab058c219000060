package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/backoffice/backoffice/internal/app"
	"github.com/backoffice/backoffice/internal/audit"
	"github.com/backoffice/backoffice/internal/auth"
	jobmetrics "github.com/backoffice/backoffice/internal/jobs"
	"github.com/backoffice/backoffice/internal/platform/db"
	"github.com/backoffice/backoffice/jobs"
)

const auditPurgeSpec = "0 3 * * *"

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	metrics := jobmetrics.NewMetrics(nil)
	auditRepo := audit.NewRepository(pool)
	userRepo := auth.NewRepository(pool)

	accessLogJob := jobs.NewAccessLogJob(auditRepo, userRepo, logger, metrics)
	sendEmailJob := jobs.NewSendEmailJob(nil, logger, metrics)
	purgeJob := jobs.NewAuditPurgeJob(auditRepo, logger, metrics)

	var cron []jobs.CronRegistration
	if cfg.AuditRetentionDays > 0 {
		purgeTask, err := jobs.NewAuditPurgeTask(cfg.AuditRetentionDays)
		if err != nil {
			logger.Error("build audit purge task", slog.Any("error", err))
			os.Exit(1)
		}
		cron = append(cron, jobs.CronRegistration{
			Spec:    auditPurgeSpec,
			Task:    purgeTask,
			Options: []asynq.Option{asynq.MaxRetry(3), asynq.Queue(jobs.QueueAudit)},
		})
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Location:    cfg.Location(),
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeAccessLog, Handler: accessLogJob.Handle},
			{Type: jobs.TaskTypeSendEmail, Handler: sendEmailJob.Handle},
			{Type: jobs.TaskTypeAuditPurge, Handler: purgeJob.Handle},
		},
		Cron: cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker", slog.Int("concurrency", cfg.WorkerConcurrency), slog.Int("audit_retention_days", cfg.AuditRetentionDays))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
