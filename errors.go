package nexauth

import "errors"

// Sentinel errors returned by Engine operations. Callers branch with
// errors.Is; the web layer maps each to a user-facing message.
var (
	ErrEngineNotReady = errors.New("engine not initialized")

	// Registration.
	ErrEmailTaken     = errors.New("email already registered")
	ErrInvalidInput   = errors.New("invalid registration input")
	ErrPasswordPolicy = errors.New("password policy violation")

	// Login flow.
	ErrEmailNotRegistered = errors.New("email not registered")
	ErrBadPassword        = errors.New("incorrect password")
	ErrLoginRateLimited   = errors.New("login rate limited")

	// Verification codes, shared by login and reset flows.
	ErrBadCode              = errors.New("verification code invalid or expired")
	ErrCodeAttemptsExceeded = errors.New("verification code attempts exceeded")

	// Password reset flow.
	ErrResetRateLimited = errors.New("password reset rate limited")
	ErrFlowState        = errors.New("operation not allowed in current flow state")

	// Infrastructure.
	ErrNotificationFailed = errors.New("verification code delivery failed")
	ErrStoreUnavailable   = errors.New("state backend unavailable")
	ErrSessionNotFound    = errors.New("session not found")
	ErrTokenInvalid       = errors.New("invalid session token")

	// User provider contract.
	ErrProviderNotFound       = errors.New("provider user not found")
	ErrProviderDuplicateEmail = errors.New("provider duplicate email")
)
