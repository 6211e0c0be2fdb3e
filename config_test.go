package nexauth

import (
	"bytes"
	"testing"
	"time"
)

func validTestConfig() Config {
	cfg := defaultConfig()
	cfg.Token.Secret = bytes.Repeat([]byte("k"), 32)
	return cfg
}

func TestDefaultConfigValidatesWithSecret(t *testing.T) {
	cfg := validTestConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing secret", func(c *Config) { c.Token.Secret = nil }},
		{"short secret", func(c *Config) { c.Token.Secret = []byte("short") }},
		{"missing issuer", func(c *Config) { c.Token.Issuer = "" }},
		{"empty redis prefix", func(c *Config) { c.Session.RedisPrefix = "" }},
		{"zero pending ttl", func(c *Config) { c.Session.PendingTTL = 0 }},
		{"zero lifetime", func(c *Config) { c.Session.Lifetime = 0 }},
		{"code ttl too long", func(c *Config) { c.Login.CodeTTL = time.Hour }},
		{"code digits too few", func(c *Config) { c.Login.CodeDigits = 4 }},
		{"code digits too many", func(c *Config) { c.PasswordReset.CodeDigits = 12 }},
		{"zero code attempts", func(c *Config) { c.Login.MaxCodeAttempts = 0 }},
		{"zero login attempts", func(c *Config) { c.Login.MaxAttempts = 0 }},
		{"zero cooldown", func(c *Config) { c.PasswordReset.Cooldown = 0 }},
		{"weak argon2 memory", func(c *Config) { c.Password.Memory = 1024 }},
		{"zero min length", func(c *Config) { c.Password.MinLength = 0 }},
		{"audit without buffer", func(c *Config) {
			c.Audit.Enabled = true
			c.Audit.BufferSize = 0
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validTestConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestCloneConfigIsolatesSecret(t *testing.T) {
	cfg := validTestConfig()
	clone := cloneConfig(cfg)

	clone.Token.Secret[0] = 'x'
	if cfg.Token.Secret[0] == 'x' {
		t.Fatal("clone shares the secret buffer")
	}
}

func TestBuilderRequiresDependencies(t *testing.T) {
	if _, err := New().WithConfig(validTestConfig()).Build(); err == nil {
		t.Fatal("expected error without redis client")
	}
}
