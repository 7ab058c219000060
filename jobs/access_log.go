package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/backoffice/backoffice/internal/audit"
	jobmetrics "github.com/backoffice/backoffice/internal/jobs"
)

// AccessLogJob persists access log entries queued by the API process.
type AccessLogJob struct {
	Sink       audit.Sink
	Principals audit.PrincipalLookup
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
}

// NewAccessLogJob wires dependencies for the access log handler. principals may be nil.
func NewAccessLogJob(sink audit.Sink, principals audit.PrincipalLookup, logger *slog.Logger, metrics *jobmetrics.Metrics) *AccessLogJob {
	return &AccessLogJob{Sink: sink, Principals: principals, Logger: logger, Metrics: metrics}
}

// Handle processes TaskTypeAccessLog tasks.
func (j *AccessLogJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Sink == nil {
		return errors.New("access log: handler not configured")
	}
	var payload AccessLogPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tracker := j.Metrics.Track(TaskTypeAccessLog)
	defer func() { err = tracker.End(err) }()

	entry := payload.Entry
	if entry.UserID == nil && payload.Email != "" && j.Principals != nil {
		id, lookupErr := j.Principals.LookupUserID(ctx, payload.Email)
		if lookupErr != nil {
			logger(j.Logger).Debug("audit principal lookup", slog.String("email", payload.Email), slog.Any("error", lookupErr))
		} else if id != "" {
			entry.UserID = &id
		}
	}
	if err := j.Sink.InsertAccessLog(ctx, entry); err != nil {
		logger(j.Logger).Error("access log insert", slog.Any("error", err))
		return err
	}
	return nil
}
