package nexauth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/nexhealth/nexauth/internal"
	internalaudit "github.com/nexhealth/nexauth/internal/audit"
	internalmetrics "github.com/nexhealth/nexauth/internal/metrics"
	"github.com/nexhealth/nexauth/internal/rate"
	"github.com/nexhealth/nexauth/internal/stores"
	"github.com/nexhealth/nexauth/jwt"
	"github.com/nexhealth/nexauth/password"
	"github.com/nexhealth/nexauth/session"
)

// Engine runs the account, login, and password-reset flows against
// Redis-backed session and challenge state. Build one with [Builder]
// and share it; all methods are safe for concurrent use.
type Engine struct {
	config       Config
	sessionStore *session.Store
	loginCodes   *stores.ChallengeStore
	resetCodes   *stores.ChallengeStore
	loginLimiter *rate.Limiter
	resetLimiter *rate.Limiter
	audit        *internalaudit.Dispatcher
	metrics      *internalmetrics.Metrics
	passwordHash *password.Argon2
	tokens       *jwt.Manager
	userProvider UserProvider
	notifier     Notifier
}

// Close flushes the audit dispatcher. The Engine must not be used
// afterwards.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Validate resolves token to its session and returns the authenticated
// identity. Sessions that exist but have not completed code
// verification are rejected with [ErrFlowState].
func (e *Engine) Validate(ctx context.Context, token string) (*AuthResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	sess, err := e.loadSession(ctx, token)
	if err != nil {
		return nil, err
	}
	if sess.Login != session.LoginAuthenticated {
		return nil, ErrFlowState
	}

	return &AuthResult{
		SessionID: sess.SessionID,
		UserID:    sess.UserID,
		Email:     sess.Email,
	}, nil
}

// Inspect resolves token to its session and reports the flow states
// without granting anything. Page guards call it on every request so a
// flushed or regressed session is caught immediately.
func (e *Engine) Inspect(ctx context.Context, token string) (*FlowInfo, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	sess, err := e.loadSession(ctx, token)
	if err != nil {
		return nil, err
	}

	return &FlowInfo{
		SessionID:  sess.SessionID,
		Login:      sess.Login,
		Reset:      sess.Reset,
		LoginEmail: sess.LoginEmail,
		ResetEmail: sess.ResetEmail,
		UserID:     sess.UserID,
		Email:      sess.Email,
	}, nil
}

/*
====================================
SESSION PLUMBING
====================================
*/

func (e *Engine) loadSession(ctx context.Context, token string) (*session.Session, error) {
	sid, err := e.tokens.Parse(token)
	if err != nil {
		return nil, ErrTokenInvalid
	}

	sess, err := e.sessionStore.Get(ctx, sid)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, ErrStoreUnavailable
	}

	return sess, nil
}

// loadOrCreateSession reuses the caller's session when the token still
// resolves, so a login attempt does not wipe an unrelated pending reset
// flow on the same browser. Anything else gets a fresh session.
func (e *Engine) loadOrCreateSession(ctx context.Context, token string) (*session.Session, error) {
	if token != "" {
		sess, err := e.loadSession(ctx, token)
		if err == nil {
			return sess, nil
		}
		if errors.Is(err, ErrStoreUnavailable) {
			return nil, err
		}
	}

	return e.newSession()
}

func (e *Engine) newSession() (*session.Session, error) {
	sid, err := internal.NewSessionID()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	return &session.Session{
		SessionID: sid.String(),
		Login:     session.LoginNone,
		Reset:     session.ResetNone,
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(e.config.Session.PendingTTL).Unix(),
	}, nil
}

// saveSession persists the session with the TTL its login state earns
// and returns a signed token for the browser.
func (e *Engine) saveSession(ctx context.Context, sess *session.Session) (string, error) {
	ttl := e.config.Session.PendingTTL
	if sess.Login == session.LoginAuthenticated {
		ttl = e.config.Session.Lifetime
	}
	sess.ExpiresAt = time.Now().Add(ttl).Unix()

	if err := e.sessionStore.Save(ctx, sess, ttl); err != nil {
		return "", ErrStoreUnavailable
	}

	token, err := e.tokens.Issue(sess.SessionID, time.Unix(sess.ExpiresAt, 0))
	if err != nil {
		return "", err
	}

	return token, nil
}

// rotateSessionID gives sess a fresh identifier and removes the old
// record, so a pre-authentication session ID never survives into an
// authenticated session. prevUserID is the user the old record was
// indexed under, which may differ from sess.UserID when the caller has
// already re-bound the session to another account.
func (e *Engine) rotateSessionID(ctx context.Context, sess *session.Session, prevUserID string) error {
	oldID := sess.SessionID

	sid, err := internal.NewSessionID()
	if err != nil {
		return err
	}
	sess.SessionID = sid.String()

	if err := e.sessionStore.Delete(ctx, oldID, prevUserID); err != nil {
		return ErrStoreUnavailable
	}
	return nil
}

// moveChallenge re-keys a pending challenge after a session ID
// rotation, preserving its original expiry. Best effort; a lost
// challenge only forces the user to request a new code.
func (e *Engine) moveChallenge(ctx context.Context, store *stores.ChallengeStore, oldID, newID string) {
	record, err := store.Get(ctx, oldID)
	if err != nil {
		return
	}
	ttl := time.Until(time.Unix(record.ExpiresAt, 0))
	if ttl <= 0 {
		_ = store.Delete(ctx, oldID)
		return
	}
	if err := store.Save(ctx, newID, record, ttl); err != nil {
		return
	}
	_ = store.Delete(ctx, oldID)
}

// normalizeEmail strips surrounding whitespace only. Casing is
// preserved: emails are stored and matched exactly as submitted.
func normalizeEmail(email string) string {
	return strings.TrimSpace(email)
}
