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

const loginEmailSubject = "🔐 Tu código de verificación - NEX"

// BeginLogin checks the email+password pair and, when both match,
// issues a one-time code to the account's email and parks the session
// in the awaiting-code state. The returned token replaces the caller's
// cookie. Authentication is NOT granted here; only ConfirmLogin does
// that.
func (e *Engine) BeginLogin(ctx context.Context, token, email, plainPassword string) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}

	email = normalizeEmail(email)
	ip := clientIPFromContext(ctx)

	if err := e.loginLimiter.Check(ctx, email, ip); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			e.metricInc(MetricLoginRateLimited)
			e.emitAudit(ctx, auditEventLoginRateLimited, false, "", email, "", ErrLoginRateLimited, nil)
			return "", ErrLoginRateLimited
		}
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	user, err := e.userProvider.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrProviderNotFound) {
			_ = e.loginLimiter.Increment(ctx, email, ip)
			e.emitAudit(ctx, auditEventLoginFailure, false, "", email, "", ErrEmailNotRegistered, nil)
			return "", ErrEmailNotRegistered
		}
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	ok, err := e.passwordHash.Verify(plainPassword, user.PasswordHash)
	if err != nil || !ok {
		_ = e.loginLimiter.Increment(ctx, email, ip)
		e.metricInc(MetricLoginPasswordFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.UserID, email, "", ErrBadPassword, nil)
		return "", ErrBadPassword
	}

	sess, err := e.loadOrCreateSession(ctx, token)
	if err != nil {
		return "", err
	}

	code, err := internal.NewCode(e.config.Login.CodeDigits)
	if err != nil {
		return "", err
	}

	codeHash := internal.HashCode(code)
	record := &stores.ChallengeRecord{
		UserID:   user.UserID,
		Email:    email,
		CodeHash: codeHash,
	}
	if err := e.loginCodes.Save(ctx, sess.SessionID, record, e.config.Login.CodeTTL); err != nil {
		return "", ErrStoreUnavailable
	}

	body := loginEmailBody(user.FirstName, code, int(e.config.Login.CodeTTL.Minutes()))
	if err := e.notifier.Send(ctx, email, loginEmailSubject, body); err != nil {
		_ = e.loginCodes.Delete(ctx, sess.SessionID)
		e.metricInc(MetricNotificationFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.UserID, email, sess.SessionID, ErrNotificationFailed, nil)
		return "", fmt.Errorf("%w: %v", ErrNotificationFailed, err)
	}

	sess.Login = session.LoginAwaitingCode
	sess.LoginEmail = email

	newToken, err := e.saveSession(ctx, sess)
	if err != nil {
		return "", err
	}

	e.metricInc(MetricLoginCodeIssued)
	e.emitAudit(ctx, auditEventLoginCodeIssued, true, user.UserID, email, sess.SessionID, nil, nil)

	return newToken, nil
}

// ConfirmLogin consumes the pending login code. A correct code
// authenticates the session under a fresh session ID; a wrong one
// burns an attempt, and exhausting the attempt budget resets the login
// flow entirely.
func (e *Engine) ConfirmLogin(ctx context.Context, token, code string) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}

	sess, err := e.loadSession(ctx, token)
	if err != nil {
		return "", err
	}

	if sess.Login != session.LoginAwaitingCode {
		e.metricInc(MetricFlowStateViolation)
		e.emitAudit(ctx, auditEventFlowStateViolation, false, sess.UserID, sess.LoginEmail, sess.SessionID, ErrFlowState, func() map[string]string {
			return map[string]string{"operation": "confirm_login"}
		})
		return "", ErrFlowState
	}

	record, err := e.loginCodes.Consume(ctx, sess.SessionID, internal.HashCode(code), e.config.Login.MaxCodeAttempts)
	if err != nil {
		switch {
		case errors.Is(err, stores.ErrChallengeCodeMismatch):
			e.metricInc(MetricLoginCodeRejected)
			e.emitAudit(ctx, auditEventLoginFailure, false, "", sess.LoginEmail, sess.SessionID, ErrBadCode, nil)
			return "", ErrBadCode
		case errors.Is(err, stores.ErrChallengeAttemptsExceeded):
			e.metricInc(MetricLoginCodeRejected)
			e.resetLoginFlow(ctx, sess)
			e.emitAudit(ctx, auditEventLoginFailure, false, "", sess.LoginEmail, sess.SessionID, ErrCodeAttemptsExceeded, nil)
			return "", ErrCodeAttemptsExceeded
		case errors.Is(err, stores.ErrChallengeNotFound):
			e.emitAudit(ctx, auditEventLoginFailure, false, "", sess.LoginEmail, sess.SessionID, ErrBadCode, nil)
			return "", ErrBadCode
		default:
			return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	if record.Email != sess.LoginEmail {
		// Challenge and session disagree; treat as a dead flow.
		e.resetLoginFlow(ctx, sess)
		return "", ErrFlowState
	}

	prevUserID := sess.UserID

	sess.Login = session.LoginAuthenticated
	sess.UserID = record.UserID
	sess.Email = record.Email
	sess.LoginEmail = ""

	oldSessionID := sess.SessionID
	if err := e.rotateSessionID(ctx, sess, prevUserID); err != nil {
		return "", err
	}
	// a reset code pending on this session follows it to the new ID
	if sess.Reset == session.ResetAwaitingCode {
		e.moveChallenge(ctx, e.resetCodes, oldSessionID, sess.SessionID)
	}

	newToken, err := e.saveSession(ctx, sess)
	if err != nil {
		return "", err
	}

	_ = e.loginLimiter.Reset(ctx, record.Email, clientIPFromContext(ctx))

	e.metricInc(MetricLoginSuccess)
	e.metricInc(MetricSessionCreated)
	e.emitAudit(ctx, auditEventLoginSuccess, true, record.UserID, record.Email, sess.SessionID, nil, nil)

	return newToken, nil
}

// resetLoginFlow drops the session back to the anonymous login state
// after a dead or exhausted challenge. Save errors are ignored; the
// session TTL bounds the damage.
func (e *Engine) resetLoginFlow(ctx context.Context, sess *session.Session) {
	sess.Login = session.LoginNone
	sess.LoginEmail = ""
	_, _ = e.saveSession(ctx, sess)
}

func loginEmailBody(firstName, code string, ttlMinutes int) string {
	return fmt.Sprintf(`Hola %s.

Hemos recibido una solicitud para acceder a tu cuenta en NEX.
Para completar el inicio de sesión, ingresa el siguiente código de verificación:

🔑 %s

Este código es válido por %d minutos. Si no solicitaste este acceso, puedes ignorar este mensaje.

Si necesitas ayuda, contáctanos en cancerproyecto0@gmail.com.

Saludos,
El equipo de NEX
`, firstName, code, ttlMinutes)
}
