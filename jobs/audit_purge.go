package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/backoffice/backoffice/internal/jobs"
)

// AccessLogPurger deletes access log entries created before a cutoff.
type AccessLogPurger interface {
	PurgeAccessLogs(ctx context.Context, before time.Time) (int64, error)
}

// AuditPurgeJob enforces the access log retention window.
type AuditPurgeJob struct {
	Store   AccessLogPurger
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewAuditPurgeJob wires the retention sweep.
func NewAuditPurgeJob(store AccessLogPurger, logger *slog.Logger, metrics *jobmetrics.Metrics) *AuditPurgeJob {
	return &AuditPurgeJob{
		Store:   store,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes TaskTypeAuditPurge tasks.
func (j *AuditPurgeJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Store == nil {
		return errors.New("audit purge: handler not configured")
	}
	var payload AuditPurgePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.RetentionDays <= 0 {
		return asynq.SkipRetry
	}
	tracker := j.Metrics.Track(TaskTypeAuditPurge)
	defer func() { err = tracker.End(err) }()

	cutoff := j.clock().AddDate(0, 0, -payload.RetentionDays)
	deleted, err := j.Store.PurgeAccessLogs(ctx, cutoff)
	if err != nil {
		return err
	}
	logger(j.Logger).Info("audit purge completed",
		slog.Int("retention_days", payload.RetentionDays),
		slog.Time("before", cutoff),
		slog.Int64("deleted", deleted),
	)
	return nil
}
