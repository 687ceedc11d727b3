package goSignIn

import (
	"errors"
	"time"

	"github.com/MrEthical07/goSignIn/internal/challenges"
	"github.com/MrEthical07/goSignIn/internal/cooldown"
	"github.com/MrEthical07/goSignIn/internal/limiters"
	"github.com/MrEthical07/goSignIn/truststore"
)

// Config defines every tunable of the sign-in engine.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Challenge ChallengeConfig
	Attempts  AttemptsConfig
	Cooldown  CooldownConfig
	Trust     TrustConfig
	StepUp    StepUpConfig
	Business  BusinessConfig
	Receipt   ReceiptConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
	Redis     RedisConfig
}

/*
====================================
CHALLENGE CONFIG
====================================
*/

// ChallengeConfig controls one-time code lifetime and global issuance
// throttling.
type ChallengeConfig struct {
	TTL time.Duration

	// IssueRatePerSecond caps SendCode calls across all identities.
	// 0 disables the limiter.
	IssueRatePerSecond float64
	IssueBurst         int
}

// AttemptsConfig controls the wrong-code lockout.
type AttemptsConfig struct {
	Threshold int

	// Window is how long a failure count survives without activity.
	// 0 uses Challenge.TTL.
	Window time.Duration

	// Backend is "memory" (default) or "redis".
	Backend     string
	RedisPrefix string
}

// CooldownConfig controls the resend window opened by every issuance.
type CooldownConfig struct {
	Window time.Duration
}

/*
====================================
TRUST CONFIG
====================================
*/

// TrustConfig selects the device trust store used when none is injected with
// [Builder.WithTrustStore].
type TrustConfig struct {
	// Backend is "memory" (default), "redis" or "postgres".
	Backend     string
	RedisPrefix string
	PostgresDSN string
	AutoMigrate bool

	// WhitelistFailureFatal ends the attempt in Failed(WhitelistWriteFailed)
	// instead of authenticating with a warning.
	WhitelistFailureFatal bool
}

// StepUpConfig controls how the biometric prompt is driven.
type StepUpConfig struct {
	// Interactive parks untrusted attempts in StateStepUp and waits for
	// Engine.StepUpRespond instead of calling the Biometric directly.
	Interactive bool
}

// BusinessConfig controls the password entry path.
type BusinessConfig struct {
	EnforcePasswordPolicy bool
	StepUpTrustedDevices  bool
}

/*
====================================
RECEIPT CONFIG
====================================
*/

// ReceiptConfig controls signed sign-in receipts. Receipts are disabled
// while no key is configured.
type ReceiptConfig struct {
	TTL           time.Duration
	SigningMethod string // "ed25519" (default), "hs256" optional
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string
}

func (c ReceiptConfig) enabled() bool {
	return len(c.PrivateKey) > 0 || len(c.PublicKey) > 0
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters and the verify latency histogram.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// RedisConfig is used to dial Redis when no client is injected with
// [Builder.WithRedis] and a Redis-backed component is selected.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// DefaultConfig returns the recommended configuration: 10 minute challenges,
// lockout on the third wrong code, a 60 second resend window, and in-memory
// attempt counters and trust records.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Challenge: ChallengeConfig{
			TTL: challenges.DefaultTTL,
		},
		Attempts: AttemptsConfig{
			Threshold:   limiters.DefaultAttemptThreshold,
			Backend:     "memory",
			RedisPrefix: "sia:",
		},
		Cooldown: CooldownConfig{
			Window: cooldown.DefaultWindow,
		},
		Trust: TrustConfig{
			Backend:     "memory",
			RedisPrefix: truststore.DefaultRedisPrefix,
			AutoMigrate: true,
		},
		Business: BusinessConfig{
			EnforcePasswordPolicy: true,
			StepUpTrustedDevices:  true,
		},
		Receipt: ReceiptConfig{
			TTL:           5 * time.Minute,
			SigningMethod: "ed25519",
			Issuer:        "gosignin",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Receipt.PrivateKey = cloneBytes(cfg.Receipt.PrivateKey)
	out.Receipt.PublicKey = cloneBytes(cfg.Receipt.PublicKey)
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

// Validate reports the first invalid setting in c.
func (c *Config) Validate() error {
	// Challenge
	if c.Challenge.TTL <= 0 {
		return errors.New("Challenge TTL must be > 0")
	}
	if c.Challenge.IssueRatePerSecond < 0 {
		return errors.New("Challenge IssueRatePerSecond must be >= 0")
	}
	if c.Challenge.IssueRatePerSecond > 0 && c.Challenge.IssueBurst <= 0 {
		return errors.New("Challenge IssueBurst must be > 0 when IssueRatePerSecond is set")
	}

	// Attempts
	if c.Attempts.Threshold <= 0 {
		return errors.New("Attempts Threshold must be > 0")
	}
	if c.Attempts.Window < 0 {
		return errors.New("Attempts Window must be >= 0")
	}
	switch c.Attempts.Backend {
	case "", "memory", "redis":
	default:
		return errors.New("Attempts Backend must be memory or redis")
	}

	// Cooldown
	if c.Cooldown.Window <= 0 {
		return errors.New("Cooldown Window must be > 0")
	}

	// Trust
	switch c.Trust.Backend {
	case "", "memory", "redis":
	case "postgres":
		if c.Trust.PostgresDSN == "" {
			return errors.New("Trust postgres backend requires PostgresDSN")
		}
	default:
		return errors.New("Trust Backend must be memory, redis or postgres")
	}

	// Receipt
	if c.Receipt.enabled() {
		if c.Receipt.TTL <= 0 {
			return errors.New("Receipt TTL must be > 0")
		}
		if c.Receipt.SigningMethod != "ed25519" && c.Receipt.SigningMethod != "hs256" {
			return errors.New("unsupported Receipt signing method")
		}
		if c.Receipt.Leeway < 0 || c.Receipt.Leeway > 2*time.Minute {
			return errors.New("Receipt Leeway must be between 0 and 2m")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}

	return nil
}
