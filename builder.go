package nexauth

import (
	"errors"

	internalaudit "github.com/nexhealth/nexauth/internal/audit"
	internalmetrics "github.com/nexhealth/nexauth/internal/metrics"
	"github.com/nexhealth/nexauth/internal/rate"
	"github.com/nexhealth/nexauth/internal/stores"
	"github.com/nexhealth/nexauth/jwt"
	"github.com/nexhealth/nexauth/password"
	"github.com/nexhealth/nexauth/session"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine]. Use New, chain the With methods, then
// call Build once.
type Builder struct {
	config Config
	redis  *redis.Client

	userProvider UserProvider
	notifier     Notifier
	auditSink    AuditSink

	built bool
}

func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithUserProvider(up UserProvider) *Builder {
	b.userProvider = up
	return b
}

func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration, wires the Redis-backed stores and
// limiters, and returns a ready [Engine].
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.userProvider == nil {
		return nil, errors.New("user provider required")
	}
	if b.notifier == nil {
		return nil, errors.New("notifier required")
	}

	engine := &Engine{
		config:       cfg,
		userProvider: b.userProvider,
		notifier:     b.notifier,
	}

	engine.sessionStore = session.NewStore(b.redis, cfg.Session.RedisPrefix)
	engine.loginCodes = stores.NewChallengeStore(b.redis, "alc")
	engine.resetCodes = stores.NewChallengeStore(b.redis, "arc")
	engine.loginLimiter = rate.New(b.redis, "lrl", rate.Config{
		EnableIPThrottle: cfg.Login.EnableIPThrottle,
		MaxAttempts:      cfg.Login.MaxAttempts,
		Cooldown:         cfg.Login.Cooldown,
	})
	engine.resetLimiter = rate.New(b.redis, "rrl", rate.Config{
		EnableIPThrottle: cfg.PasswordReset.EnableIPThrottle,
		MaxAttempts:      cfg.PasswordReset.MaxAttempts,
		Cooldown:         cfg.PasswordReset.Cooldown,
	})
	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)
	engine.metrics = internalmetrics.New(internalmetrics.Config{
		Enabled: cfg.Metrics.Enabled,
	})

	ph, err := password.NewArgon2(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}
	engine.passwordHash = ph

	jm, err := jwt.NewManager(jwt.Config{
		Secret: cloneBytes(cfg.Token.Secret),
		Issuer: cfg.Token.Issuer,
		Leeway: cfg.Token.Leeway,
	})
	if err != nil {
		return nil, err
	}
	engine.tokens = jm

	b.built = true

	return engine, nil
}
