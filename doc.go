// Package nexauth is the authentication engine of the NEX clinical
// portal. It runs registration, two-step email-code login, code-based
// password reset, and session validation against Redis-backed state.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// nexauth is the public surface. It exposes [Engine], [Builder],
// [Config], and value types. All internal coordination — challenge
// storage, session encoding, rate limiting, audit dispatch — lives
// under internal/ and is never exported.
//
// # Flow model
//
// Each browser session carries two independent flow slots: the login
// slot (anonymous, awaiting code, authenticated) and the reset slot
// (anonymous, awaiting code, authorized). Slots advance only through
// their own operations, every operation re-validates the slot state it
// requires, and completing a password reset destroys every session of
// the affected user.
package nexauth
