package audit

import (
	"context"
	"log/slog"
)

// SlogStorage writes audit events as structured log records. Useful when
// events are collected by a log pipeline instead of a database.
type SlogStorage struct {
	log *slog.Logger
}

// NewSlogStorage creates a storage writing to the given logger.
func NewSlogStorage(log *slog.Logger) *SlogStorage {
	if log == nil {
		log = slog.Default()
	}
	return &SlogStorage{log: log}
}

func (s *SlogStorage) Store(ctx context.Context, event Event) error {
	attrs := []any{
		"event_id", event.ID,
		"action", event.Action,
		"result", string(event.Result),
	}
	if event.TenantID != "" {
		attrs = append(attrs, "tenant_id", event.TenantID)
	}
	if event.Actor != "" {
		attrs = append(attrs, "actor", event.Actor)
	}
	if event.Resource != "" {
		attrs = append(attrs, "resource", event.Resource)
	}
	if event.ResourceID != "" {
		attrs = append(attrs, "resource_id", event.ResourceID)
	}
	if event.IP != "" {
		attrs = append(attrs, "ip", event.IP)
	}
	if event.Error != "" {
		attrs = append(attrs, "error", event.Error)
	}
	s.log.InfoContext(ctx, "audit", attrs...)
	return nil
}

var _ Storage = (*SlogStorage)(nil)
