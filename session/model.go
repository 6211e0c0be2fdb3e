package session

// LoginState tracks a browser session's progress through the login
// flow. States are explicit rather than inferred from key presence, so
// out-of-order requests are detectable at a glance.
type LoginState uint8

const (
	// LoginNone means no login is in progress.
	LoginNone LoginState = iota
	// LoginAwaitingCode means the password check passed and a
	// verification code is pending.
	LoginAwaitingCode
	// LoginAuthenticated means code verification succeeded.
	LoginAuthenticated
)

// ResetState tracks a browser session's progress through the
// password-reset flow, independently of the login flow.
type ResetState uint8

const (
	// ResetNone means no reset is in progress.
	ResetNone ResetState = iota
	// ResetAwaitingCode means a reset code was issued and is pending.
	ResetAwaitingCode
	// ResetAuthorized means the reset code matched; the password-change
	// step is unlocked.
	ResetAuthorized
)

// Session is one browser session's flow record. It lives in Redis under
// an opaque session ID; the browser only ever holds a signed token
// wrapping that ID.
//
// Invariants: Login is only ever LoginAuthenticated after a successful
// code verification, and Reset is only ever ResetAuthorized while
// ResetEmail is non-empty.
type Session struct {
	SessionID string

	Login      LoginState
	LoginEmail string

	// Set only when Login == LoginAuthenticated.
	UserID string
	Email  string

	Reset       ResetState
	ResetEmail  string
	ResetUserID string

	CreatedAt int64
	ExpiresAt int64
}
