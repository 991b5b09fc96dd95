package bootpractice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	internalaudit "github.com/Kascald/bootPractice-2/internal/audit"
	"github.com/Kascald/bootPractice-2/internal/rate"
	"github.com/Kascald/bootPractice-2/jwt"
	"github.com/Kascald/bootPractice-2/metrics"
	"github.com/Kascald/bootPractice-2/password"
	"github.com/Kascald/bootPractice-2/tokenstore"
)

// Builder collects engine dependencies. Configure it during startup and
// call Build once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	userProvider UserProvider
	tokenStore   tokenstore.Store
	auditSink    AuditSink
	logger       *zap.Logger
	metrics      *metrics.Metrics
	now          func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis backs the token store and login limiter with client. Without
// it the engine keeps refresh token records in process memory.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithUserProvider(up UserProvider) *Builder {
	b.userProvider = up
	return b
}

// WithTokenStore overrides the store chosen from WithRedis.
func (b *Builder) WithTokenStore(store tokenstore.Store) *Builder {
	b.tokenStore = store
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(l *zap.Logger) *Builder {
	b.logger = l
	return b
}

func (b *Builder) WithMetrics(m *metrics.Metrics) *Builder {
	b.metrics = m
	return b
}

// WithClock overrides the time source for token issuing, expiry checks and
// the in-memory token store.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.userProvider == nil {
		return nil, errors.New("user provider required")
	}
	if cfg.RateLimit.Enabled && b.redis == nil {
		return nil, errors.New("RateLimit requires redis client")
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	// -------- TOKEN CODEC --------
	codec, err := jwt.NewCodec(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cfg.JWT.PrivateKey,
		PublicKey:     cfg.JWT.PublicKey,
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		KeyID:         cfg.JWT.KeyID,
		Now:           now,
	})
	if err != nil {
		return nil, fmt.Errorf("jwt: %w", err)
	}

	// -------- PASSWORD HASHING --------
	hasher, err := newPasswordSet(cfg.Password)
	if err != nil {
		return nil, err
	}
	dummy, err := hasher.Hash("bootpractice-dummy-" + uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("password: %w", err)
	}

	engine := &Engine{
		config:       cfg,
		codec:        codec,
		userProvider: b.userProvider,
		hasher:       hasher,
		dummyHash:    dummy,
		metrics:      b.metrics,
		log:          logger,
		now:          now,
	}

	// -------- TOKEN STORE --------
	switch {
	case b.tokenStore != nil:
		engine.tokens = b.tokenStore
	case b.redis != nil:
		engine.tokens = tokenstore.NewRedisStore(b.redis, cfg.TokenStore.RedisPrefix, tokenstore.WithRedisClock(now))
	default:
		mem := tokenstore.NewMemoryStore(tokenstore.WithMemoryClock(now))
		if cfg.TokenStore.SweepInterval > 0 {
			ctx, cancel := context.WithCancel(context.Background())
			engine.stopSweeper = cancel
			go mem.RunSweeper(ctx, cfg.TokenStore.SweepInterval)
		}
		engine.tokens = mem
	}

	if cfg.RateLimit.Enabled {
		engine.limiter = rate.New(b.redis, rate.Config{
			Prefix:           cfg.RateLimit.RedisPrefix,
			MaxLoginAttempts: cfg.RateLimit.MaxLoginAttempts,
			Cooldown:         cfg.RateLimit.Cooldown,
			EnableIPThrottle: cfg.RateLimit.EnableIPThrottle,
		})
	}

	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)
	if engine.audit != nil {
		b.metrics.RegisterGauge("audit_dropped", "Audit events dropped because the buffer was full.", func() float64 {
			return float64(engine.audit.Dropped())
		})
		b.metrics.RegisterGauge("audit_pending", "Audit events waiting for the sink.", func() float64 {
			return float64(engine.audit.Pending())
		})
	}

	engine.initFlowDeps()

	b.built = true

	return engine, nil
}

func newPasswordSet(cfg PasswordConfig) (password.Set, error) {
	bc, err := password.NewBcrypt(cfg.BcryptCost)
	if err != nil {
		return password.Set{}, fmt.Errorf("password: %w", err)
	}
	// Argon2 verifies with the parameters stored in each hash, so its own
	// cost settings only matter when it is primary.
	a2cfg := password.DefaultArgon2Config()
	if cfg.Algorithm == "argon2id" {
		a2cfg = password.Argon2Config{
			Memory:      cfg.Memory,
			Time:        cfg.Time,
			Parallelism: cfg.Parallelism,
			SaltLength:  cfg.SaltLength,
			KeyLength:   cfg.KeyLength,
		}
	}
	a2cfg.MaxPasswordBytes = cfg.MaxPasswordBytes
	a2, err := password.NewArgon2(a2cfg)
	if err != nil {
		return password.Set{}, fmt.Errorf("password: %w", err)
	}

	set := password.Set{Bcrypt: bc, Argon2: a2, Primary: bc}
	if cfg.Algorithm == "argon2id" {
		set.Primary = a2
	}
	return set, nil
}
