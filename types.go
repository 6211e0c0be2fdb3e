package nexauth

import (
	"context"
	"io"
	"time"

	internalaudit "github.com/nexhealth/nexauth/internal/audit"
	internalmetrics "github.com/nexhealth/nexauth/internal/metrics"
	"github.com/nexhealth/nexauth/session"
)

// UserProvider is the interface callers implement to connect the engine
// to their user database. Email lookup is exact: providers match the
// string the engine passes byte for byte, casing included.
type UserProvider interface {
	GetUserByEmail(ctx context.Context, email string) (UserRecord, error)
	CreateUser(ctx context.Context, input CreateUserInput) (UserRecord, error)
	UpdatePasswordHash(ctx context.Context, userID string, newHash string) error
}

// UserRecord is the account record returned by [UserProvider].
type UserRecord struct {
	UserID       string
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// CreateUserInput is the input for [UserProvider.CreateUser]. The
// password arrives already hashed.
type CreateUserInput struct {
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
}

// CreateAccountInput is the input for [Engine.CreateAccount], with the
// plaintext password as submitted by the registration form.
type CreateAccountInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// Notifier delivers verification codes out of band. Send blocks until
// the message is handed to the transport or the context is done.
type Notifier interface {
	Send(ctx context.Context, to string, subject string, body string) error
}

// AuthResult is returned by [Engine.Validate] for an authenticated
// session.
type AuthResult struct {
	SessionID string
	UserID    string
	Email     string
}

// FlowInfo is returned by [Engine.Inspect]. It exposes the session's
// flow states so page guards can re-check preconditions on every
// request without granting access.
type FlowInfo struct {
	SessionID  string
	Login      session.LoginState
	Reset      session.ResetState
	LoginEmail string
	ResetEmail string
	UserID     string
	Email      string
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit
// dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to
// an [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// MetricID identifies a counter in the in-process metrics system.
type MetricID = internalmetrics.MetricID

const (
	MetricAccountCreated       = internalmetrics.MetricAccountCreated
	MetricAccountDuplicate     = internalmetrics.MetricAccountDuplicate
	MetricLoginPasswordFailure = internalmetrics.MetricLoginPasswordFailure
	MetricLoginCodeIssued      = internalmetrics.MetricLoginCodeIssued
	MetricLoginCodeRejected    = internalmetrics.MetricLoginCodeRejected
	MetricLoginRateLimited     = internalmetrics.MetricLoginRateLimited
	MetricLoginSuccess         = internalmetrics.MetricLoginSuccess
	MetricResetRequested       = internalmetrics.MetricResetRequested
	MetricResetRateLimited     = internalmetrics.MetricResetRateLimited
	MetricResetCodeVerified    = internalmetrics.MetricResetCodeVerified
	MetricResetCodeRejected    = internalmetrics.MetricResetCodeRejected
	MetricResetCompleted       = internalmetrics.MetricResetCompleted
	MetricSessionCreated       = internalmetrics.MetricSessionCreated
	MetricSessionFlushed       = internalmetrics.MetricSessionFlushed
	MetricFlowStateViolation   = internalmetrics.MetricFlowStateViolation
	MetricNotificationFailure  = internalmetrics.MetricNotificationFailure
)

// Metrics holds the engine's atomic counters.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot = internalmetrics.Snapshot
