package nexauth

import (
	"errors"
	"time"
)

// Config carries every tunable of the engine. Configure it before
// Build and treat it as immutable afterwards.
type Config struct {
	Session       SessionConfig
	Login         LoginConfig
	PasswordReset PasswordResetConfig
	Password      PasswordConfig
	Token         TokenConfig
	Audit         AuditConfig
	Metrics       MetricsConfig
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls the server-side session records in Redis.
// PendingTTL bounds sessions that have not authenticated yet; Lifetime
// bounds authenticated ones.
type SessionConfig struct {
	RedisPrefix string
	PendingTTL  time.Duration
	Lifetime    time.Duration
}

/*
====================================
FLOW CONFIG
====================================
*/

// LoginConfig controls the email-code step of login.
type LoginConfig struct {
	CodeTTL          time.Duration
	CodeDigits       int
	MaxCodeAttempts  int
	MaxAttempts      int
	Cooldown         time.Duration
	EnableIPThrottle bool
}

// PasswordResetConfig controls the email-code password reset flow.
type PasswordResetConfig struct {
	CodeTTL          time.Duration
	CodeDigits       int
	MaxCodeAttempts  int
	MaxAttempts      int
	Cooldown         time.Duration
	EnableIPThrottle bool
}

// PasswordConfig holds argon2id parameters plus the plaintext policy.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	MinLength   int
}

// TokenConfig holds the HS256 secret for the session cookie token.
type TokenConfig struct {
	Secret []byte
	Issuer string
	Leeway time.Duration
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig enables the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the initial configuration the [Builder] starts
// from. Callers adjust fields and pass the result to
// [Builder.WithConfig]. Token.Secret has no default and must be set.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Session: SessionConfig{
			RedisPrefix: "nxs",
			PendingTTL:  30 * time.Minute,
			Lifetime:    12 * time.Hour,
		},
		Login: LoginConfig{
			CodeTTL:          10 * time.Minute,
			CodeDigits:       6,
			MaxCodeAttempts:  5,
			MaxAttempts:      5,
			Cooldown:         15 * time.Minute,
			EnableIPThrottle: true,
		},
		PasswordReset: PasswordResetConfig{
			CodeTTL:          10 * time.Minute,
			CodeDigits:       6,
			MaxCodeAttempts:  5,
			MaxAttempts:      5,
			Cooldown:         15 * time.Minute,
			EnableIPThrottle: true,
		},
		Password: PasswordConfig{
			Memory:      65536,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
			MinLength:   6,
		},
		Token: TokenConfig{
			Issuer: "nexportal",
			Leeway: 30 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.Secret = cloneBytes(cfg.Token.Secret)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

func (c *Config) Validate() error {
	// Session
	if c.Session.RedisPrefix == "" {
		return errors.New("Session RedisPrefix is required")
	}
	if c.Session.PendingTTL <= 0 {
		return errors.New("Session PendingTTL must be > 0")
	}
	if c.Session.Lifetime <= 0 {
		return errors.New("Session Lifetime must be > 0")
	}

	// Login codes
	if c.Login.CodeTTL <= 0 || c.Login.CodeTTL > 15*time.Minute {
		return errors.New("Login CodeTTL must be in (0, 15m]")
	}
	if c.Login.CodeDigits < 6 || c.Login.CodeDigits > 10 {
		return errors.New("Login CodeDigits must be between 6 and 10")
	}
	if c.Login.MaxCodeAttempts <= 0 || c.Login.MaxCodeAttempts > 10 {
		return errors.New("Login MaxCodeAttempts must be in [1, 10]")
	}
	if c.Login.MaxAttempts <= 0 {
		return errors.New("Login MaxAttempts must be > 0")
	}
	if c.Login.Cooldown <= 0 {
		return errors.New("Login Cooldown must be > 0")
	}

	// Reset codes
	if c.PasswordReset.CodeTTL <= 0 || c.PasswordReset.CodeTTL > 15*time.Minute {
		return errors.New("PasswordReset CodeTTL must be in (0, 15m]")
	}
	if c.PasswordReset.CodeDigits < 6 || c.PasswordReset.CodeDigits > 10 {
		return errors.New("PasswordReset CodeDigits must be between 6 and 10")
	}
	if c.PasswordReset.MaxCodeAttempts <= 0 || c.PasswordReset.MaxCodeAttempts > 10 {
		return errors.New("PasswordReset MaxCodeAttempts must be in [1, 10]")
	}
	if c.PasswordReset.MaxAttempts <= 0 {
		return errors.New("PasswordReset MaxAttempts must be > 0")
	}
	if c.PasswordReset.Cooldown <= 0 {
		return errors.New("PasswordReset Cooldown must be > 0")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MinLength < 1 {
		return errors.New("Password MinLength must be >= 1")
	}

	// Token
	if len(c.Token.Secret) < 32 {
		return errors.New("Token Secret must be at least 32 bytes")
	}
	if c.Token.Issuer == "" {
		return errors.New("Token Issuer is required")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}
