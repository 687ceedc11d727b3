package goSignIn

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables read by [LoadConfig],
// e.g. SIGNIN_CHALLENGE_TTL or SIGNIN_TRUST_BACKEND.
const EnvPrefix = "SIGNIN"

// LoadConfig layers an optional config file and SIGNIN_* environment
// variables over [DefaultConfig], then validates the result. An empty path
// skips the file. Receipt keys are read as standard base64.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	setConfigDefaults(v, defaultConfig())

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := Config{
		Challenge: ChallengeConfig{
			TTL:                v.GetDuration("challenge.ttl"),
			IssueRatePerSecond: v.GetFloat64("challenge.issue_rate_per_second"),
			IssueBurst:         v.GetInt("challenge.issue_burst"),
		},
		Attempts: AttemptsConfig{
			Threshold:   v.GetInt("attempts.threshold"),
			Window:      v.GetDuration("attempts.window"),
			Backend:     v.GetString("attempts.backend"),
			RedisPrefix: v.GetString("attempts.redis_prefix"),
		},
		Cooldown: CooldownConfig{
			Window: v.GetDuration("cooldown.window"),
		},
		Trust: TrustConfig{
			Backend:               v.GetString("trust.backend"),
			RedisPrefix:           v.GetString("trust.redis_prefix"),
			PostgresDSN:           v.GetString("trust.postgres_dsn"),
			AutoMigrate:           v.GetBool("trust.auto_migrate"),
			WhitelistFailureFatal: v.GetBool("trust.whitelist_failure_fatal"),
		},
		StepUp: StepUpConfig{
			Interactive: v.GetBool("stepup.interactive"),
		},
		Business: BusinessConfig{
			EnforcePasswordPolicy: v.GetBool("business.enforce_password_policy"),
			StepUpTrustedDevices:  v.GetBool("business.stepup_trusted_devices"),
		},
		Receipt: ReceiptConfig{
			TTL:           v.GetDuration("receipt.ttl"),
			SigningMethod: v.GetString("receipt.signing_method"),
			Issuer:        v.GetString("receipt.issuer"),
			Audience:      v.GetString("receipt.audience"),
			Leeway:        v.GetDuration("receipt.leeway"),
			KeyID:         v.GetString("receipt.key_id"),
		},
		Audit: AuditConfig{
			Enabled:    v.GetBool("audit.enabled"),
			BufferSize: v.GetInt("audit.buffer_size"),
			DropIfFull: v.GetBool("audit.drop_if_full"),
		},
		Metrics: MetricsConfig{
			Enabled:                 v.GetBool("metrics.enabled"),
			EnableLatencyHistograms: v.GetBool("metrics.latency_histograms"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
	}

	var err error
	if cfg.Receipt.PrivateKey, err = decodeKey(v.GetString("receipt.private_key")); err != nil {
		return Config{}, fmt.Errorf("config: receipt.private_key: %w", err)
	}
	if cfg.Receipt.PublicKey, err = decodeKey(v.GetString("receipt.public_key")); err != nil {
		return Config{}, fmt.Errorf("config: receipt.public_key: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Every key needs a default for AutomaticEnv to see it.
func setConfigDefaults(v *viper.Viper, d Config) {
	v.SetDefault("challenge.ttl", d.Challenge.TTL)
	v.SetDefault("challenge.issue_rate_per_second", d.Challenge.IssueRatePerSecond)
	v.SetDefault("challenge.issue_burst", d.Challenge.IssueBurst)
	v.SetDefault("attempts.threshold", d.Attempts.Threshold)
	v.SetDefault("attempts.window", d.Attempts.Window)
	v.SetDefault("attempts.backend", d.Attempts.Backend)
	v.SetDefault("attempts.redis_prefix", d.Attempts.RedisPrefix)
	v.SetDefault("cooldown.window", d.Cooldown.Window)
	v.SetDefault("trust.backend", d.Trust.Backend)
	v.SetDefault("trust.redis_prefix", d.Trust.RedisPrefix)
	v.SetDefault("trust.postgres_dsn", d.Trust.PostgresDSN)
	v.SetDefault("trust.auto_migrate", d.Trust.AutoMigrate)
	v.SetDefault("trust.whitelist_failure_fatal", d.Trust.WhitelistFailureFatal)
	v.SetDefault("stepup.interactive", d.StepUp.Interactive)
	v.SetDefault("business.enforce_password_policy", d.Business.EnforcePasswordPolicy)
	v.SetDefault("business.stepup_trusted_devices", d.Business.StepUpTrustedDevices)
	v.SetDefault("receipt.ttl", d.Receipt.TTL)
	v.SetDefault("receipt.signing_method", d.Receipt.SigningMethod)
	v.SetDefault("receipt.issuer", d.Receipt.Issuer)
	v.SetDefault("receipt.audience", d.Receipt.Audience)
	v.SetDefault("receipt.leeway", d.Receipt.Leeway)
	v.SetDefault("receipt.key_id", d.Receipt.KeyID)
	v.SetDefault("receipt.private_key", "")
	v.SetDefault("receipt.public_key", "")
	v.SetDefault("audit.enabled", d.Audit.Enabled)
	v.SetDefault("audit.buffer_size", d.Audit.BufferSize)
	v.SetDefault("audit.drop_if_full", d.Audit.DropIfFull)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.latency_histograms", d.Metrics.EnableLatencyHistograms)
	v.SetDefault("redis.addr", d.Redis.Addr)
	v.SetDefault("redis.password", d.Redis.Password)
	v.SetDefault("redis.db", d.Redis.DB)
}

func decodeKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, errors.New("key must be standard base64")
	}
	return b, nil
}
