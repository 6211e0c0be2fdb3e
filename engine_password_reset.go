package nexauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/nexhealth/nexauth/internal"
	"github.com/nexhealth/nexauth/internal/rate"
	"github.com/nexhealth/nexauth/internal/stores"
	"github.com/nexhealth/nexauth/session"
)

const resetEmailSubject = "🔐 Recuperación de contraseña - NEX"

// BeginPasswordReset issues a one-time reset code to the given email
// and parks the session's reset slot in the awaiting-code state. The
// login slot of the same session is untouched, so a pending login is
// not disturbed by starting a reset.
func (e *Engine) BeginPasswordReset(ctx context.Context, token, email string) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}

	email = normalizeEmail(email)
	ip := clientIPFromContext(ctx)

	if err := e.resetLimiter.Check(ctx, email, ip); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			e.metricInc(MetricResetRateLimited)
			e.emitAudit(ctx, auditEventResetRateLimited, false, "", email, "", ErrResetRateLimited, nil)
			return "", ErrResetRateLimited
		}
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	// Every request costs an attempt, registered or not, so the email
	// form cannot be used as an unmetered probe or code cannon.
	if err := e.resetLimiter.Increment(ctx, email, ip); err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	user, err := e.userProvider.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrProviderNotFound) {
			e.emitAudit(ctx, auditEventResetRequested, false, "", email, "", ErrEmailNotRegistered, nil)
			return "", ErrEmailNotRegistered
		}
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	sess, err := e.loadOrCreateSession(ctx, token)
	if err != nil {
		return "", err
	}

	code, err := internal.NewCode(e.config.PasswordReset.CodeDigits)
	if err != nil {
		return "", err
	}

	record := &stores.ChallengeRecord{
		UserID:   user.UserID,
		Email:    email,
		CodeHash: internal.HashCode(code),
	}
	if err := e.resetCodes.Save(ctx, sess.SessionID, record, e.config.PasswordReset.CodeTTL); err != nil {
		return "", ErrStoreUnavailable
	}

	body := resetEmailBody(user.FirstName, code)
	if err := e.notifier.Send(ctx, email, resetEmailSubject, body); err != nil {
		_ = e.resetCodes.Delete(ctx, sess.SessionID)
		e.metricInc(MetricNotificationFailure)
		e.emitAudit(ctx, auditEventResetRequested, false, user.UserID, email, sess.SessionID, ErrNotificationFailed, nil)
		return "", fmt.Errorf("%w: %v", ErrNotificationFailed, err)
	}

	sess.Reset = session.ResetAwaitingCode
	sess.ResetEmail = email
	sess.ResetUserID = user.UserID

	newToken, err := e.saveSession(ctx, sess)
	if err != nil {
		return "", err
	}

	e.metricInc(MetricResetRequested)
	e.emitAudit(ctx, auditEventResetRequested, true, user.UserID, email, sess.SessionID, nil, nil)

	return newToken, nil
}

// ConfirmResetCode consumes the pending reset code. A correct code
// authorizes the session to set a new password; it does NOT log the
// user in.
func (e *Engine) ConfirmResetCode(ctx context.Context, token, code string) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}

	sess, err := e.loadSession(ctx, token)
	if err != nil {
		return "", err
	}

	if sess.Reset != session.ResetAwaitingCode {
		e.metricInc(MetricFlowStateViolation)
		e.emitAudit(ctx, auditEventFlowStateViolation, false, sess.ResetUserID, sess.ResetEmail, sess.SessionID, ErrFlowState, func() map[string]string {
			return map[string]string{"operation": "confirm_reset_code"}
		})
		return "", ErrFlowState
	}

	record, err := e.resetCodes.Consume(ctx, sess.SessionID, internal.HashCode(code), e.config.PasswordReset.MaxCodeAttempts)
	if err != nil {
		switch {
		case errors.Is(err, stores.ErrChallengeCodeMismatch):
			e.metricInc(MetricResetCodeRejected)
			e.emitAudit(ctx, auditEventResetCodeRejected, false, sess.ResetUserID, sess.ResetEmail, sess.SessionID, ErrBadCode, nil)
			return "", ErrBadCode
		case errors.Is(err, stores.ErrChallengeAttemptsExceeded):
			e.metricInc(MetricResetCodeRejected)
			e.resetResetFlow(ctx, sess)
			e.emitAudit(ctx, auditEventResetCodeRejected, false, sess.ResetUserID, sess.ResetEmail, sess.SessionID, ErrCodeAttemptsExceeded, nil)
			return "", ErrCodeAttemptsExceeded
		case errors.Is(err, stores.ErrChallengeNotFound):
			e.emitAudit(ctx, auditEventResetCodeRejected, false, sess.ResetUserID, sess.ResetEmail, sess.SessionID, ErrBadCode, nil)
			return "", ErrBadCode
		default:
			return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	if record.Email != sess.ResetEmail {
		e.resetResetFlow(ctx, sess)
		return "", ErrFlowState
	}

	sess.Reset = session.ResetAuthorized

	newToken, err := e.saveSession(ctx, sess)
	if err != nil {
		return "", err
	}

	e.metricInc(MetricResetCodeVerified)
	e.emitAudit(ctx, auditEventResetCodeVerified, true, record.UserID, record.Email, sess.SessionID, nil, nil)

	return newToken, nil
}

// CompletePasswordReset stores the new password for the authorized
// session, then destroys every session belonging to that user,
// including the one completing the reset. The caller must log in again
// with the new password.
func (e *Engine) CompletePasswordReset(ctx context.Context, token, newPassword string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	sess, err := e.loadSession(ctx, token)
	if err != nil {
		return err
	}

	if sess.Reset != session.ResetAuthorized || sess.ResetUserID == "" {
		e.metricInc(MetricFlowStateViolation)
		e.emitAudit(ctx, auditEventFlowStateViolation, false, sess.ResetUserID, sess.ResetEmail, sess.SessionID, ErrFlowState, func() map[string]string {
			return map[string]string{"operation": "complete_password_reset"}
		})
		return ErrFlowState
	}

	if len(newPassword) < e.config.Password.MinLength {
		return fmt.Errorf("%w: password must be at least %d characters",
			ErrPasswordPolicy, e.config.Password.MinLength)
	}

	hash, err := e.passwordHash.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPasswordPolicy, err)
	}

	if err := e.userProvider.UpdatePasswordHash(ctx, sess.ResetUserID, hash); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	// The old password may be compromised; nothing authenticated with
	// it survives the reset.
	if err := e.sessionStore.DeleteAllForUser(ctx, sess.ResetUserID); err != nil {
		return ErrStoreUnavailable
	}
	if err := e.sessionStore.Delete(ctx, sess.SessionID, sess.UserID); err != nil {
		return ErrStoreUnavailable
	}
	_ = e.loginCodes.Delete(ctx, sess.SessionID)
	_ = e.resetCodes.Delete(ctx, sess.SessionID)
	_ = e.resetLimiter.Reset(ctx, sess.ResetEmail, clientIPFromContext(ctx))

	e.metricInc(MetricResetCompleted)
	e.metricInc(MetricSessionFlushed)
	e.emitAudit(ctx, auditEventResetCompleted, true, sess.ResetUserID, sess.ResetEmail, sess.SessionID, nil, nil)

	return nil
}

func (e *Engine) resetResetFlow(ctx context.Context, sess *session.Session) {
	sess.Reset = session.ResetNone
	sess.ResetEmail = ""
	sess.ResetUserID = ""
	_, _ = e.saveSession(ctx, sess)
}

func resetEmailBody(firstName, code string) string {
	return fmt.Sprintf(`Hola %s,

Has solicitado restablecer tu contraseña en NEX.
Usa el siguiente código para continuar con el proceso:

🔑 %s

Si no solicitaste esto, ignora este mensaje.

Saludos,
El equipo de NEX
`, firstName, code)
}
