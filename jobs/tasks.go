package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/backoffice/backoffice/internal/audit"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueAudit carries access log writes so mail bursts cannot delay them.
	QueueAudit = "audit"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskTypeAccessLog persists one access log entry.
	TaskTypeAccessLog = "audit:access_log"
	// TaskTypeAuditPurge removes access log entries past the retention window.
	TaskTypeAuditPurge = "audit:purge"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To       string            `json:"to"`
	Subject  string            `json:"subject"`
	Template string            `json:"template"`
	Data     map[string]string `json:"data,omitempty"`
}

// AccessLogPayload wraps an access log entry. The principal email is carried
// explicitly because the entry does not serialize it.
type AccessLogPayload struct {
	Entry audit.AccessLogEntry `json:"entry"`
	Email string               `json:"email,omitempty"`
}

// AuditPurgePayload configures a retention sweep.
type AuditPurgePayload struct {
	RetentionDays int `json:"retention_days"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data, asynq.MaxRetry(5)), nil
}

// NewAccessLogTask constructs an access log insert task.
func NewAccessLogTask(entry audit.AccessLogEntry) (*asynq.Task, error) {
	data, err := json.Marshal(AccessLogPayload{Entry: entry, Email: entry.Email})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeAccessLog, data, asynq.MaxRetry(3), asynq.Timeout(30*time.Second)), nil
}

// NewAuditPurgeTask constructs a retention sweep task.
func NewAuditPurgeTask(retentionDays int) (*asynq.Task, error) {
	data, err := json.Marshal(AuditPurgePayload{RetentionDays: retentionDays})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeAuditPurge, data), nil
}
