package nexauth

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventAccountCreated     = "account_created"
	auditEventAccountDuplicate   = "account_duplicate"
	auditEventLoginCodeIssued    = "login_code_issued"
	auditEventLoginFailure       = "login_failure"
	auditEventLoginRateLimited   = "login_rate_limited"
	auditEventLoginSuccess       = "login_success"
	auditEventResetRequested     = "reset_requested"
	auditEventResetRateLimited   = "reset_rate_limited"
	auditEventResetCodeVerified  = "reset_code_verified"
	auditEventResetCodeRejected  = "reset_code_rejected"
	auditEventResetCompleted     = "reset_completed"
	auditEventLogout             = "logout"
	auditEventFlowStateViolation = "flow_state_violation"
)

// AuditErrorCode is the normalized error label carried in audit events.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrEmailNotRegistered AuditErrorCode = "email_not_registered"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrBadCode            AuditErrorCode = "bad_code"
	auditErrAttemptsExceeded   AuditErrorCode = "attempts_exceeded"
	auditErrFlowState          AuditErrorCode = "flow_state"
	auditErrPasswordPolicy     AuditErrorCode = "password_policy"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrNotification       AuditErrorCode = "notification_failed"
	auditErrSessionNotFound    AuditErrorCode = "session_not_found"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	email string,
	sessionID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		UserID:    userID,
		Email:     email,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrBadPassword):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrEmailNotRegistered):
		return auditErrEmailNotRegistered
	case errors.Is(err, ErrLoginRateLimited),
		errors.Is(err, ErrResetRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrBadCode):
		return auditErrBadCode
	case errors.Is(err, ErrCodeAttemptsExceeded):
		return auditErrAttemptsExceeded
	case errors.Is(err, ErrFlowState):
		return auditErrFlowState
	case errors.Is(err, ErrPasswordPolicy):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrEmailTaken),
		errors.Is(err, ErrProviderDuplicateEmail):
		return auditErrDuplicate
	case errors.Is(err, ErrNotificationFailed):
		return auditErrNotification
	case errors.Is(err, ErrSessionNotFound):
		return auditErrSessionNotFound
	case errors.Is(err, ErrTokenInvalid):
		return auditErrInvalidToken
	case errors.Is(err, ErrStoreUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
