package nexauth

import (
	"context"
	"errors"
)

// Logout destroys the caller's session and any pending code challenges
// tied to it. A bad or already-expired token is not an error; logout is
// idempotent from the browser's point of view.
func (e *Engine) Logout(ctx context.Context, token string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	sess, err := e.loadSession(ctx, token)
	if err != nil {
		if errors.Is(err, ErrStoreUnavailable) {
			return err
		}
		return nil
	}

	if err := e.sessionStore.Delete(ctx, sess.SessionID, sess.UserID); err != nil {
		return ErrStoreUnavailable
	}
	_ = e.loginCodes.Delete(ctx, sess.SessionID)
	_ = e.resetCodes.Delete(ctx, sess.SessionID)

	e.metricInc(MetricSessionFlushed)
	e.emitAudit(ctx, auditEventLogout, true, sess.UserID, sess.Email, sess.SessionID, nil, nil)

	return nil
}
