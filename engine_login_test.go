package nexauth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nexhealth/nexauth/session"
)

func TestLoginFullFlow(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	up := newMockUserProvider()
	notifier := &recorderNotifier{}
	engine := newTestEngine(t, rdb, up, notifier)

	seedAccount(t, engine, "Ana", "Lopez", "ana@example.com", "Secret1")

	pendingToken, err := engine.BeginLogin(ctx, "", "ana@example.com", "Secret1")
	if err != nil {
		t.Fatalf("BeginLogin failed: %v", err)
	}

	// the code alone must not grant access
	if _, err := engine.Validate(ctx, pendingToken); !errors.Is(err, ErrFlowState) {
		t.Fatalf("expected ErrFlowState before code confirmation, got %v", err)
	}

	info, err := engine.Inspect(ctx, pendingToken)
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}
	if info.Login != session.LoginAwaitingCode || info.LoginEmail != "ana@example.com" {
		t.Fatalf("unexpected flow info: %+v", info)
	}

	code := notifier.lastCode(t)
	if len(code) != 6 {
		t.Fatalf("expected 6-digit code, got %q", code)
	}
	if !strings.Contains(notifier.sent[0].Body, "Hola Ana") {
		t.Fatalf("expected greeting in body: %q", notifier.sent[0].Body)
	}

	authToken, err := engine.ConfirmLogin(ctx, pendingToken, code)
	if err != nil {
		t.Fatalf("ConfirmLogin failed: %v", err)
	}

	result, err := engine.Validate(ctx, authToken)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if result.Email != "ana@example.com" {
		t.Fatalf("unexpected identity: %+v", result)
	}

	// the pre-authentication session ID must not survive
	if _, err := engine.Validate(ctx, pendingToken); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected rotated session to be gone, got %v", err)
	}
}

func TestBeginLoginUnknownEmail(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	engine := newTestEngine(t, rdb, newMockUserProvider(), &recorderNotifier{})

	_, err := engine.BeginLogin(context.Background(), "", "nadie@example.com", "whatever")
	if !errors.Is(err, ErrEmailNotRegistered) {
		t.Fatalf("expected ErrEmailNotRegistered, got %v", err)
	}
}

func TestBeginLoginWrongPassword(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	up := newMockUserProvider()
	notifier := &recorderNotifier{}
	engine := newTestEngine(t, rdb, up, notifier)
	seedAccount(t, engine, "Ana", "Lopez", "ana@example.com", "Secret1")

	_, err := engine.BeginLogin(context.Background(), "", "ana@example.com", "wrong")
	if !errors.Is(err, ErrBadPassword) {
		t.Fatalf("expected ErrBadPassword, got %v", err)
	}
	if len(notifier.sent) != 0 {
		t.Fatal("no code may be sent on a failed password check")
	}
}

func TestBeginLoginEmailCaseSensitive(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	up := newMockUserProvider()
	notifier := &recorderNotifier{}
	engine := newTestEngine(t, rdb, up, notifier)

	record := seedAccount(t, engine, "Ana", "Lopez", "Ana@Example.com", "Secret1")
	if record.Email != "Ana@Example.com" {
		t.Fatalf("expected stored casing preserved, got %q", record.Email)
	}

	// A different casing is a different, unregistered address.
	if _, err := engine.BeginLogin(ctx, "", "ana@example.com", "Secret1"); !errors.Is(err, ErrEmailNotRegistered) {
		t.Fatalf("expected ErrEmailNotRegistered for lowercased email, got %v", err)
	}

	// Surrounding whitespace is trimmed; the casing must still match.
	token := login(t, engine, notifier, "  Ana@Example.com ", "Secret1")

	result, err := engine.Validate(ctx, token)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if result.Email != "Ana@Example.com" {
		t.Fatalf("expected exact email, got %q", result.Email)
	}
}

func TestReloginAsDifferentUserCleansOldIndex(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	up := newMockUserProvider()
	notifier := &recorderNotifier{}
	engine := newTestEngine(t, rdb, up, notifier)

	ana := seedAccount(t, engine, "Ana", "Lopez", "ana@example.com", "Secret1")
	seedAccount(t, engine, "Luis", "Vega", "luis@example.com", "Secret2")

	token := login(t, engine, notifier, "ana@example.com", "Secret1")

	// Re-authenticate the same browser session as another user.
	token, err := engine.BeginLogin(ctx, token, "luis@example.com", "Secret2")
	if err != nil {
		t.Fatalf("BeginLogin failed: %v", err)
	}
	if _, err := engine.ConfirmLogin(ctx, token, notifier.lastCode(t)); err != nil {
		t.Fatalf("ConfirmLogin failed: %v", err)
	}

	// The rotated-away session was indexed under the first user; its
	// member must not linger there.
	members, err := rdb.SMembers(ctx, "nxs:u:"+ana.UserID).Result()
	if err != nil {
		t.Fatalf("smembers: %v", err)
	}
	if len(members) != 0 {
		t.Fatalf("expected first user's session index empty, got %v", members)
	}
}

func TestConfirmLoginWrongCode(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	up := newMockUserProvider()
	notifier := &recorderNotifier{}
	engine := newTestEngine(t, rdb, up, notifier)
	seedAccount(t, engine, "Ana", "Lopez", "ana@example.com", "Secret1")

	token, err := engine.BeginLogin(ctx, "", "ana@example.com", "Secret1")
	if err != nil {
		t.Fatalf("BeginLogin failed: %v", err)
	}

	if _, err := engine.ConfirmLogin(ctx, token, "000000"); !errors.Is(err, ErrBadCode) {
		t.Fatalf("expected ErrBadCode, got %v", err)
	}

	// one wrong guess does not kill the challenge
	authToken, err := engine.ConfirmLogin(ctx, token, notifier.lastCode(t))
	if err != nil {
		t.Fatalf("ConfirmLogin with correct code failed: %v", err)
	}
	if _, err := engine.Validate(ctx, authToken); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestConfirmLoginAttemptsExhausted(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	up := newMockUserProvider()
	notifier := &recorderNotifier{}
	engine := newTestEngine(t, rdb, up, notifier)
	seedAccount(t, engine, "Ana", "Lopez", "ana@example.com", "Secret1")

	token, err := engine.BeginLogin(ctx, "", "ana@example.com", "Secret1")
	if err != nil {
		t.Fatalf("BeginLogin failed: %v", err)
	}

	max := engine.config.Login.MaxCodeAttempts
	for i := 0; i < max-1; i++ {
		if _, err := engine.ConfirmLogin(ctx, token, "000000"); !errors.Is(err, ErrBadCode) {
			t.Fatalf("attempt %d: expected ErrBadCode, got %v", i+1, err)
		}
	}

	if _, err := engine.ConfirmLogin(ctx, token, "000000"); !errors.Is(err, ErrCodeAttemptsExceeded) {
		t.Fatalf("expected ErrCodeAttemptsExceeded, got %v", err)
	}

	// the correct code is dead now and the flow has been reset
	if _, err := engine.ConfirmLogin(ctx, token, notifier.lastCode(t)); !errors.Is(err, ErrFlowState) {
		t.Fatalf("expected ErrFlowState after exhaustion, got %v", err)
	}
}

func TestConfirmLoginExpiredCode(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	up := newMockUserProvider()
	notifier := &recorderNotifier{}
	engine := newTestEngine(t, rdb, up, notifier)
	seedAccount(t, engine, "Ana", "Lopez", "ana@example.com", "Secret1")

	token, err := engine.BeginLogin(ctx, "", "ana@example.com", "Secret1")
	if err != nil {
		t.Fatalf("BeginLogin failed: %v", err)
	}

	mr.FastForward(engine.config.Login.CodeTTL + time.Second)

	if _, err := engine.ConfirmLogin(ctx, token, notifier.lastCode(t)); !errors.Is(err, ErrBadCode) {
		t.Fatalf("expected ErrBadCode for expired code, got %v", err)
	}
}

func TestBeginLoginRateLimited(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	up := newMockUserProvider()
	notifier := &recorderNotifier{}
	engine := newTestEngine(t, rdb, up, notifier)
	seedAccount(t, engine, "Ana", "Lopez", "ana@example.com", "Secret1")

	for i := 0; i < engine.config.Login.MaxAttempts; i++ {
		if _, err := engine.BeginLogin(ctx, "", "ana@example.com", "wrong"); !errors.Is(err, ErrBadPassword) {
			t.Fatalf("attempt %d: expected ErrBadPassword, got %v", i+1, err)
		}
	}

	// even the correct password is refused while throttled
	if _, err := engine.BeginLogin(ctx, "", "ana@example.com", "Secret1"); !errors.Is(err, ErrLoginRateLimited) {
		t.Fatalf("expected ErrLoginRateLimited, got %v", err)
	}

	mr.FastForward(engine.config.Login.Cooldown + time.Second)

	if _, err := engine.BeginLogin(ctx, "", "ana@example.com", "Secret1"); err != nil {
		t.Fatalf("expected login to recover after cooldown, got %v", err)
	}
}

func TestBeginLoginNotifierFailure(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	up := newMockUserProvider()
	notifier := &recorderNotifier{}
	engine := newTestEngine(t, rdb, up, notifier)
	seedAccount(t, engine, "Ana", "Lopez", "ana@example.com", "Secret1")

	notifier.failNext = true
	if _, err := engine.BeginLogin(ctx, "", "ana@example.com", "Secret1"); !errors.Is(err, ErrNotificationFailed) {
		t.Fatalf("expected ErrNotificationFailed, got %v", err)
	}
}

func TestLogout(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	up := newMockUserProvider()
	notifier := &recorderNotifier{}
	engine := newTestEngine(t, rdb, up, notifier)
	seedAccount(t, engine, "Ana", "Lopez", "ana@example.com", "Secret1")

	token := login(t, engine, notifier, "ana@example.com", "Secret1")

	if err := engine.Logout(ctx, token); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if _, err := engine.Validate(ctx, token); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after logout, got %v", err)
	}

	// idempotent for stale or garbage tokens
	if err := engine.Logout(ctx, token); err != nil {
		t.Fatalf("second Logout failed: %v", err)
	}
	if err := engine.Logout(ctx, "garbage"); err != nil {
		t.Fatalf("Logout with garbage token failed: %v", err)
	}
}

func TestValidateGarbageToken(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	engine := newTestEngine(t, rdb, newMockUserProvider(), &recorderNotifier{})

	if _, err := engine.Validate(context.Background(), "not-a-token"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}
