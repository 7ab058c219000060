package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Sink persists a single access log entry.
type Sink interface {
	InsertAccessLog(ctx context.Context, entry AccessLogEntry) error
}

// PrincipalLookup resolves a user id from an email address.
type PrincipalLookup interface {
	LookupUserID(ctx context.Context, email string) (string, error)
}

// RecorderMetrics receives recorder outcomes.
type RecorderMetrics interface {
	AuditWritten()
	AuditFailed()
	AuditDropped()
}

// RecorderOptions tunes the Recorder.
type RecorderOptions struct {
	QueueSize    int
	WriteTimeout time.Duration
	Logger       *slog.Logger
	Metrics      RecorderMetrics
	Now          func() time.Time
}

// Recorder writes access log entries in the background. Record never blocks
// the caller: when the queue is full the entry is dropped and counted.
type Recorder struct {
	sink       Sink
	principals PrincipalLookup
	logger     *slog.Logger
	metrics    RecorderMetrics
	timeout    time.Duration
	now        func() time.Time

	mu     sync.RWMutex
	closed bool
	queue  chan AccessLogEntry
}

// NewRecorder constructs a Recorder. principals may be nil.
func NewRecorder(sink Sink, principals PrincipalLookup, opts RecorderOptions) *Recorder {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1024
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Recorder{
		sink:       sink,
		principals: principals,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
		timeout:    opts.WriteTimeout,
		now:        opts.Now,
		queue:      make(chan AccessLogEntry, opts.QueueSize),
	}
}

// Record enqueues entry for writing.
func (r *Recorder) Record(entry AccessLogEntry) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.now().UTC()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.drop("recorder closed")
		return
	}
	select {
	case r.queue <- entry:
	default:
		r.drop("queue full")
	}
}

// Run consumes the queue until ctx is cancelled or Close is called, then
// drains what is left.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case entry, ok := <-r.queue:
			if !ok {
				return nil
			}
			r.write(entry)
		case <-ctx.Done():
			r.Close()
			for entry := range r.queue {
				r.write(entry)
			}
			return nil
		}
	}
}

// Close stops accepting entries. Entries already queued are still written by Run.
func (r *Recorder) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	close(r.queue)
}

func (r *Recorder) write(entry AccessLogEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if entry.UserID == nil && entry.Email != "" && r.principals != nil {
		id, err := r.principals.LookupUserID(ctx, entry.Email)
		if err != nil {
			r.logger.Debug("audit principal lookup", slog.String("email", entry.Email), slog.Any("error", err))
		} else if id != "" {
			entry.UserID = &id
		}
	}

	if err := r.sink.InsertAccessLog(ctx, entry); err != nil {
		r.logger.Error("audit write failed", slog.String("ip", entry.IPAddress), slog.Any("error", err))
		if r.metrics != nil {
			r.metrics.AuditFailed()
		}
		return
	}
	if r.metrics != nil {
		r.metrics.AuditWritten()
	}
}

func (r *Recorder) drop(reason string) {
	r.logger.Warn("audit entry dropped", slog.String("reason", reason))
	if r.metrics != nil {
		r.metrics.AuditDropped()
	}
}
