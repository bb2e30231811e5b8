package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tenantkit/tenantkit/pkg/tenant"
)

// Logger records audit events. Implementations must never let audit
// failures break the audited operation: errors are reported to the
// application logger, not returned up the request path.
type Logger interface {
	// Log records a successful action.
	Log(ctx context.Context, action string, opts ...EventOption)

	// LogFailure records an action denied by policy, such as an
	// authorization check or a rate limit.
	LogFailure(ctx context.Context, action string, reason string, opts ...EventOption)

	// LogError records a failed action.
	LogError(ctx context.Context, action string, err error, opts ...EventOption)
}

type logger struct {
	storage   Storage
	slog      *slog.Logger
	extractor func(context.Context) (string, bool)
}

// Option configures the audit logger.
type Option func(*logger)

// WithTenantIDExtractor overrides how the tenant ID is pulled from the
// context. The default reads the binding set by the tenancy middleware.
func WithTenantIDExtractor(fn func(context.Context) (string, bool)) Option {
	return func(l *logger) {
		if fn != nil {
			l.extractor = fn
		}
	}
}

// WithLogger sets the application logger audit failures are reported to.
func WithLogger(log *slog.Logger) Option {
	return func(l *logger) {
		if log != nil {
			l.slog = log
		}
	}
}

// NewLogger creates an audit logger writing to the given storage.
func NewLogger(storage Storage, opts ...Option) (Logger, error) {
	if storage == nil {
		return nil, ErrStorageRequired
	}
	l := &logger{
		storage:   storage,
		slog:      slog.Default(),
		extractor: tenant.IDFromContext,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

func (l *logger) Log(ctx context.Context, action string, opts ...EventOption) {
	l.record(ctx, action, ResultSuccess, "", opts)
}

func (l *logger) LogFailure(ctx context.Context, action string, reason string, opts ...EventOption) {
	l.record(ctx, action, ResultFailure, reason, opts)
}

func (l *logger) LogError(ctx context.Context, action string, err error, opts ...EventOption) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	l.record(ctx, action, ResultError, msg, opts)
}

func (l *logger) record(ctx context.Context, action string, result Result, errMsg string, opts []EventOption) {
	event := Event{
		ID:        uuid.NewString(),
		Action:    action,
		Result:    result,
		Error:     errMsg,
		CreatedAt: time.Now(),
	}
	if id, ok := l.extractor(ctx); ok {
		event.TenantID = id
	}
	for _, opt := range opts {
		opt(&event)
	}

	if err := event.Validate(); err != nil {
		l.slog.ErrorContext(ctx, "dropping invalid audit event", "action", action, "error", err)
		return
	}
	if err := l.storage.Store(ctx, event); err != nil {
		l.slog.ErrorContext(ctx, "audit event not stored", "action", action, "error", err)
	}
}
