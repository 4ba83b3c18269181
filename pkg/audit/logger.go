package audit

import (
	"context"
	"errors"
	"time"

	"github.com/platinummonkey/orgaccess/pkg/observability"
	"github.com/sirupsen/logrus"
)

// Logger is the interface for audit logging
type Logger interface {
	// Log records an audit event. A zero timestamp is set to the current time.
	Log(ctx context.Context, event *Event) error

	// Close flushes any buffered events
	Close() error
}

// NoopLogger discards every event
type NoopLogger struct{}

func (NoopLogger) Log(context.Context, *Event) error { return nil }
func (NoopLogger) Close() error { return nil }

// LogrusLogger writes audit events as structured log entries
type LogrusLogger struct {
	log logrus.FieldLogger
}

// NewLogrusLogger creates an audit logger on top of log. Entries carry the field
// audit=true so pipelines can route them separately.
func NewLogrusLogger(log logrus.FieldLogger) *LogrusLogger {
	return &LogrusLogger{log: log.WithField("audit", true)}
}

// Log writes event at info level
func (l *LogrusLogger) Log(ctx context.Context, event *Event) error {
	if event == nil {
		return errors.New("audit event is nil")
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	fields := logrus.Fields{
		"event_type":    string(event.Type),
		"resource_type": string(event.ResourceType),
		"resource_id":   event.ResourceID,
		"timestamp":     event.Timestamp.Format(time.RFC3339Nano),
	}
	if event.OrgID != nil {
		fields["org_id"] = *event.OrgID
	}
	if event.RequestID != "" {
		fields["request_id"] = event.RequestID
	}
	if event.RemoteAddr != "" {
		fields["remote_addr"] = event.RemoteAddr
	}
	if len(event.Details) > 0 {
		fields["details"] = event.Details
	}

	observability.WithTraceContext(ctx, l.log).WithFields(fields).Info("audit event")
	return nil
}

// Close is a no-op; logrus writes synchronously
func (l *LogrusLogger) Close() error {
	return nil
}

// MultiLogger fans events out to several loggers
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger creates a logger that writes to every given destination
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	return &MultiLogger{loggers: loggers}
}

// Log writes to every logger, continuing past failures, and returns the joined errors
func (m *MultiLogger) Log(ctx context.Context, event *Event) error {
	var errs []error
	for _, logger := range m.loggers {
		if err := logger.Log(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every logger
func (m *MultiLogger) Close() error {
	var errs []error
	for _, logger := range m.loggers {
		if err := logger.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
