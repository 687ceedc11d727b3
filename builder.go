package goSignIn

import (
	"context"
	"errors"
	"time"

	internalaudit "github.com/MrEthical07/goSignIn/internal/audit"
	"github.com/MrEthical07/goSignIn/internal/challenges"
	"github.com/MrEthical07/goSignIn/internal/cooldown"
	"github.com/MrEthical07/goSignIn/internal/keylock"
	"github.com/MrEthical07/goSignIn/internal/limiters"
	"github.com/MrEthical07/goSignIn/internal/stepup"
	"github.com/MrEthical07/goSignIn/jwt"
	"github.com/MrEthical07/goSignIn/password"
	"github.com/MrEthical07/goSignIn/truststore"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// postgresConnectTimeout bounds the dial and migration run by Build for the
// postgres trust backend.
const postgresConnectTimeout = 10 * time.Second

// Builder collects configuration and collaborators for an [Engine].
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	backend   CredentialBackend
	trust     TrustStore
	biometric Biometric
	passwords PasswordVerifier
	clock     Clock
	logger    *zap.Logger
	auditSink AuditSink

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration. The value is copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithBackend sets the credential backend that sends and checks codes. It is required.
func (b *Builder) WithBackend(backend CredentialBackend) *Builder {
	b.backend = backend
	return b
}

// WithTrustStore injects a device trust store, overriding Config.Trust.Backend.
func (b *Builder) WithTrustStore(store TrustStore) *Builder {
	b.trust = store
	return b
}

// WithBiometric sets the step-up capability. Without one, step-up always
// reports StepUpUnavailable.
func (b *Builder) WithBiometric(bio Biometric) *Builder {
	b.biometric = bio
	return b
}

// WithPasswordVerifier enables [Engine.BeginBusinessSignIn].
func (b *Builder) WithPasswordVerifier(v PasswordVerifier) *Builder {
	b.passwords = v
	return b
}

// WithClock replaces the wall clock. Challenge expiry, cooldowns, attempt
// windows and trust timestamps all follow it.
func (b *Builder) WithClock(clock Clock) *Builder {
	b.clock = clock
	return b
}

// WithLogger sets the structured logger. The default discards everything.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithRedis supplies the client used by Redis-backed attempt counters and
// trust records. The engine never closes an injected client.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAuditSink sets where audit events go when Config.Audit.Enabled is set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the backend verify latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and assembles the Engine. A Builder can
// be built once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.backend == nil {
		return nil, errors.New("credential backend required")
	}

	clock := b.clock
	if clock == nil {
		clock = SystemClock{}
	}
	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	engine := &Engine{
		config:   cfg,
		clock:    clock,
		logger:   logger,
		locks:    keylock.New(),
		sessions: make(map[string]session),
	}

	// -------- REDIS --------
	client := b.redis
	needsRedis := cfg.Attempts.Backend == "redis" || (b.trust == nil && cfg.Trust.Backend == "redis")
	if needsRedis && client == nil {
		if cfg.Redis.Addr == "" {
			return nil, errors.New("redis client required")
		}
		owned := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		engine.closers = append(engine.closers, owned.Close)
		client = owned
	}

	// -------- ATTEMPT POLICY --------
	var counter limiters.AttemptCounter
	if cfg.Attempts.Backend == "redis" {
		counter = limiters.NewRedisCounter(client, cfg.Attempts.RedisPrefix)
	} else {
		counter = limiters.NewMemoryCounter(clock.Now)
	}
	window := cfg.Attempts.Window
	if window == 0 {
		window = cfg.Challenge.TTL
	}
	engine.attempts = limiters.NewAttemptPolicy(counter, limiters.AttemptConfig{
		Threshold: cfg.Attempts.Threshold,
		Window:    window,
	})

	// -------- TRUST STORE --------
	trust, err := b.trustStore(engine, cfg, client)
	if err != nil {
		engine.Close()
		return nil, err
	}
	engine.trust = trust

	// -------- CHALLENGES --------
	engine.cooldown = cooldown.New(clock.Now)
	engine.challenges = challenges.NewManager(b.backend, engine.cooldown, challenges.Config{
		TTL:            cfg.Challenge.TTL,
		CooldownWindow: cfg.Cooldown.Window,
		ObserveVerify:  engine.observeVerify,
	}, clock.Now)
	if cfg.Challenge.IssueRatePerSecond > 0 {
		engine.issueLimit = rate.NewLimiter(rate.Limit(cfg.Challenge.IssueRatePerSecond), cfg.Challenge.IssueBurst)
	}

	engine.stepUp = stepup.New(b.biometric, logger)
	engine.passwords = b.passwords
	engine.policy = password.BusinessPolicy()

	// -------- RECEIPTS --------
	if cfg.Receipt.enabled() {
		jm, err := jwt.NewManager(jwt.Config{
			TTL:           cfg.Receipt.TTL,
			SigningMethod: jwt.SigningMethod(cfg.Receipt.SigningMethod),
			PrivateKey:    cloneBytes(cfg.Receipt.PrivateKey),
			PublicKey:     cloneBytes(cfg.Receipt.PublicKey),
			Issuer:        cfg.Receipt.Issuer,
			Audience:      cfg.Receipt.Audience,
			Leeway:        cfg.Receipt.Leeway,
			KeyID:         cfg.Receipt.KeyID,
		}, clock.Now)
		if err != nil {
			engine.Close()
			return nil, err
		}
		engine.receipts = jm
	}

	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink, logger)
	engine.metrics = NewMetrics(cfg.Metrics)

	b.built = true

	return engine, nil
}

func (b *Builder) trustStore(engine *Engine, cfg Config, client redis.UniversalClient) (TrustStore, error) {
	if b.trust != nil {
		return b.trust, nil
	}

	switch cfg.Trust.Backend {
	case "redis":
		return truststore.NewRedis(client, cfg.Trust.RedisPrefix, engine.clock.Now), nil
	case "postgres":
		ctx, cancel := context.WithTimeout(context.Background(), postgresConnectTimeout)
		defer cancel()

		db, err := truststore.OpenPostgres(ctx, cfg.Trust.PostgresDSN)
		if err != nil {
			return nil, err
		}
		engine.closers = append(engine.closers, db.Close)

		store := truststore.NewSQL(db, truststore.SQLConfig{Now: engine.clock.Now})
		if cfg.Trust.AutoMigrate {
			if err := store.Migrate(ctx); err != nil {
				return nil, err
			}
		}
		return store, nil
	default:
		return truststore.NewMemory(engine.clock.Now), nil
	}
}
