package slogx

import (
	"context"
	"log/slog"
)

// AuditEvent describes one authentication decision for the audit trail.
type AuditEvent struct {
	IP         string
	Path       string
	AccountKey string
	Subject    string
	Reason     string
}

func (e AuditEvent) attrs() []any {
	attrs := []any{
		slog.String("ip", e.IP),
		slog.String("path", e.Path),
	}
	if e.AccountKey != "" {
		attrs = append(attrs, slog.String("account_key", e.AccountKey))
	}
	if e.Subject != "" {
		attrs = append(attrs, slog.String("subject", e.Subject))
	}
	if e.Reason != "" {
		attrs = append(attrs, slog.String("reason", e.Reason))
	}
	return attrs
}

// AuthSuccess records a successful authentication at info.
func AuthSuccess(ctx context.Context, e AuditEvent) {
	FromContext(ctx).Info("auth_success", e.attrs()...)
}

// AuthFailure records a rejected authentication at warn.
func AuthFailure(ctx context.Context, e AuditEvent) {
	FromContext(ctx).Warn("auth_failure", e.attrs()...)
}
