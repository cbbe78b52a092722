// Package audit provides security audit logging for SIEM consumption.
// Events are emitted as structured log entries under the "security_audit"
// logger name so they can be routed separately from application logs.
package audit

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sellercentry/account-health/pkg/auth"
	"github.com/sellercentry/account-health/pkg/logging"
)

// SecurityEventType categorizes security-relevant events for filtering and alerting.
type SecurityEventType string

const (
	EventSignIn        SecurityEventType = "sign_in"
	EventSignInFailure SecurityEventType = "sign_in_failure"
	EventAccessDenied  SecurityEventType = "tenant_access_denied"
	EventRecordUpdated SecurityEventType = "record_updated"
	EventRecordMoved   SecurityEventType = "record_moved"
	EventBatchUpdated  SecurityEventType = "batch_updated"
	EventPartialMove   SecurityEventType = "partial_move"
)

// SecurityEvent is one auditable event. User is a redacted email.
type SecurityEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType SecurityEventType `json:"event_type"`
	Tenant    string            `json:"tenant,omitempty"`
	User      string            `json:"user,omitempty"`
	ClientIP  string            `json:"client_ip,omitempty"`
	Details   map[string]any    `json:"details,omitempty"`
	Severity  string            `json:"severity"` // info, warning, critical
}

// SecurityAuditor logs security events.
type SecurityAuditor struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewSecurityAuditor creates a security auditor with a dedicated logger namespace.
func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	return &SecurityAuditor{logger: logger.Named("security_audit"), now: time.Now}
}

// ClientIP returns the caller address of r without the port.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// userFromContext returns the redacted email of the request user, if any.
func userFromContext(ctx context.Context) string {
	if u, ok := auth.GetUser(ctx); ok {
		return logging.RedactEmail(u.Email)
	}
	return ""
}

func (a *SecurityAuditor) emit(level zapcore.Level, msg string, event SecurityEvent) {
	event.Timestamp = a.now().UTC()
	// Marshaling known types cannot fail.
	eventJSON, _ := json.Marshal(event)

	if ce := a.logger.Check(level, msg); ce != nil {
		ce.Write(
			zap.String("event_json", string(eventJSON)),
			zap.String("event_type", string(event.EventType)),
			zap.String("tenant", event.Tenant),
			zap.String("user", event.User),
			zap.String("client_ip", event.ClientIP),
			zap.String("severity", event.Severity),
		)
	}
}

// LogSignIn records a successful sign-in.
func (a *SecurityAuditor) LogSignIn(r *http.Request, email string) {
	a.emit(zapcore.InfoLevel, "User signed in", SecurityEvent{
		EventType: EventSignIn,
		User:      logging.RedactEmail(email),
		ClientIP:  ClientIP(r),
		Severity:  "info",
	})
}

// LogSignInFailure records a rejected sign-in token. Repeated failures
// from one address are worth alerting on, hence warning severity.
func (a *SecurityAuditor) LogSignInFailure(r *http.Request, reason string) {
	a.emit(zapcore.WarnLevel, "Sign-in rejected", SecurityEvent{
		EventType: EventSignInFailure,
		ClientIP:  ClientIP(r),
		Details:   map[string]any{"reason": reason},
		Severity:  "warning",
	})
}

// LogAccessDenied records a signed-in user asking for a tenant they are
// not mapped to.
func (a *SecurityAuditor) LogAccessDenied(ctx context.Context, email, tenant, reason string) {
	a.emit(zapcore.WarnLevel, "Tenant access denied", SecurityEvent{
		EventType: EventAccessDenied,
		Tenant:    tenant,
		User:      logging.RedactEmail(email),
		Details:   map[string]any{"reason": reason},
		Severity:  "warning",
	})
}

// LogMutation records a successful write to a tenant's sheet.
func (a *SecurityAuditor) LogMutation(ctx context.Context, eventType SecurityEventType, tenant string, details map[string]any) {
	a.emit(zapcore.InfoLevel, "Tenant data changed", SecurityEvent{
		EventType: eventType,
		Tenant:    tenant,
		User:      userFromContext(ctx),
		Details:   details,
		Severity:  "info",
	})
}

// LogPartialMove records a move that left a record in both tables. It
// needs manual reconciliation if the caller does not retry.
func (a *SecurityAuditor) LogPartialMove(ctx context.Context, tenant, id, from, to string) {
	a.emit(zapcore.ErrorLevel, "Record duplicated by partial move", SecurityEvent{
		EventType: EventPartialMove,
		Tenant:    tenant,
		User:      userFromContext(ctx),
		Details:   map[string]any{"id": id, "from": from, "to": to},
		Severity:  "critical",
	})
}
