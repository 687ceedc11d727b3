package goSignIn

import (
	"time"

	internalmetrics "github.com/MrEthical07/goSignIn/internal/metrics"
)

// MetricID identifies a counter or histogram in a [MetricsSnapshot].
type MetricID = internalmetrics.MetricID

const (
	MetricSignInStarted          = MetricID(internalmetrics.MetricSignInStarted)
	MetricBusinessSignInStarted  = MetricID(internalmetrics.MetricBusinessSignInStarted)
	MetricChallengeIssued        = MetricID(internalmetrics.MetricChallengeIssued)
	MetricChallengeResent        = MetricID(internalmetrics.MetricChallengeResent)
	MetricIssueBackendFailure    = MetricID(internalmetrics.MetricIssueBackendFailure)
	MetricCooldownRejected       = MetricID(internalmetrics.MetricCooldownRejected)
	MetricIssueRateLimited       = MetricID(internalmetrics.MetricIssueRateLimited)
	MetricCodeMalformed          = MetricID(internalmetrics.MetricCodeMalformed)
	MetricCodeRejected           = MetricID(internalmetrics.MetricCodeRejected)
	MetricCodeExpired            = MetricID(internalmetrics.MetricCodeExpired)
	MetricCodeAccepted           = MetricID(internalmetrics.MetricCodeAccepted)
	MetricVerifyBackendFailure   = MetricID(internalmetrics.MetricVerifyBackendFailure)
	MetricLockout                = MetricID(internalmetrics.MetricLockout)
	MetricLockedOutSubmit        = MetricID(internalmetrics.MetricLockedOutSubmit)
	MetricCounterStoreFailure    = MetricID(internalmetrics.MetricCounterStoreFailure)
	MetricTrustedDevice          = MetricID(internalmetrics.MetricTrustedDevice)
	MetricTrustReadFailure       = MetricID(internalmetrics.MetricTrustReadFailure)
	MetricStepUpConfirmed        = MetricID(internalmetrics.MetricStepUpConfirmed)
	MetricStepUpDeclined         = MetricID(internalmetrics.MetricStepUpDeclined)
	MetricStepUpUnavailable      = MetricID(internalmetrics.MetricStepUpUnavailable)
	MetricDeviceWhitelisted      = MetricID(internalmetrics.MetricDeviceWhitelisted)
	MetricWhitelistFailed        = MetricID(internalmetrics.MetricWhitelistFailed)
	MetricAuthenticated          = MetricID(internalmetrics.MetricAuthenticated)
	MetricSignInFailed           = MetricID(internalmetrics.MetricSignInFailed)
	MetricAbandoned              = MetricID(internalmetrics.MetricAbandoned)
	MetricInvalidCredentials     = MetricID(internalmetrics.MetricInvalidCredentials)
	MetricPasswordPolicyRejected = MetricID(internalmetrics.MetricPasswordPolicyRejected)
	MetricReceiptIssued          = MetricID(internalmetrics.MetricReceiptIssued)

	// MetricVerifyLatency is the backend VerifyCode latency histogram.
	MetricVerifyLatency = MetricID(internalmetrics.MetricVerifyLatency)
)

// Metrics holds the engine's lock-free counters.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time copy of all counters and histograms.
type MetricsSnapshot = internalmetrics.Snapshot

// NewMetrics builds a Metrics from cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{
		Enabled:                 cfg.Enabled,
		EnableLatencyHistograms: cfg.EnableLatencyHistograms,
	})
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) observeVerify(d time.Duration) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Observe(MetricVerifyLatency, d)
}

// MetricsSnapshot returns the current counters. A disabled or nil engine
// returns empty maps.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}
