package internaldefs

import (
	goSignIn "github.com/MrEthical07/goSignIn"
)

// CounterDef maps an engine counter to its exported name.
type CounterDef struct {
	ID   goSignIn.MetricID
	Name string
	Help string
}

// HistogramDef maps an engine histogram to its exported name.
type HistogramDef struct {
	ID   goSignIn.MetricID
	Name string
	Help string
}

// Prefix is shared by every exported metric name.
const Prefix = "signin_"

// AuditDroppedName is the counter for audit events dropped under backpressure.
const AuditDroppedName = Prefix + "audit_dropped_total"

// CounterDefs lists every exported counter in render order.
var CounterDefs = []CounterDef{
	{ID: goSignIn.MetricSignInStarted, Name: Prefix + "started_total", Help: "Code-based sign-in attempts started."},
	{ID: goSignIn.MetricBusinessSignInStarted, Name: Prefix + "business_started_total", Help: "Business password sign-in attempts started."},
	{ID: goSignIn.MetricChallengeIssued, Name: Prefix + "challenge_issued_total", Help: "One-time codes delivered by the backend."},
	{ID: goSignIn.MetricChallengeResent, Name: Prefix + "challenge_resent_total", Help: "Codes delivered by an explicit resend."},
	{ID: goSignIn.MetricIssueBackendFailure, Name: Prefix + "issue_backend_failure_total", Help: "Code deliveries the backend failed."},
	{ID: goSignIn.MetricCooldownRejected, Name: Prefix + "cooldown_rejected_total", Help: "Issuance requests refused inside the resend window."},
	{ID: goSignIn.MetricIssueRateLimited, Name: Prefix + "issue_rate_limited_total", Help: "Issuance requests refused by the global send rate."},
	{ID: goSignIn.MetricCodeMalformed, Name: Prefix + "code_malformed_total", Help: "Submissions rejected locally as malformed."},
	{ID: goSignIn.MetricCodeRejected, Name: Prefix + "code_rejected_total", Help: "Wrong codes reported by the backend."},
	{ID: goSignIn.MetricCodeExpired, Name: Prefix + "code_expired_total", Help: "Submissions against an expired challenge."},
	{ID: goSignIn.MetricCodeAccepted, Name: Prefix + "code_accepted_total", Help: "Codes accepted by the backend."},
	{ID: goSignIn.MetricVerifyBackendFailure, Name: Prefix + "verify_backend_failure_total", Help: "Code checks the backend failed."},
	{ID: goSignIn.MetricLockout, Name: Prefix + "lockout_total", Help: "Attempts locked out after the failure threshold."},
	{ID: goSignIn.MetricLockedOutSubmit, Name: Prefix + "locked_out_submit_total", Help: "Submissions refused while locked out."},
	{ID: goSignIn.MetricCounterStoreFailure, Name: Prefix + "counter_store_failure_total", Help: "Attempt counter reads or writes that failed."},
	{ID: goSignIn.MetricTrustedDevice, Name: Prefix + "trusted_device_total", Help: "Sign-ins from a whitelisted device."},
	{ID: goSignIn.MetricTrustReadFailure, Name: Prefix + "trust_read_failure_total", Help: "Trust store reads that failed and forced step-up."},
	{ID: goSignIn.MetricStepUpConfirmed, Name: Prefix + "stepup_confirmed_total", Help: "Biometric step-ups confirmed."},
	{ID: goSignIn.MetricStepUpDeclined, Name: Prefix + "stepup_declined_total", Help: "Biometric step-ups declined or failed."},
	{ID: goSignIn.MetricStepUpUnavailable, Name: Prefix + "stepup_unavailable_total", Help: "Step-ups skipped for lack of a biometric capability."},
	{ID: goSignIn.MetricDeviceWhitelisted, Name: Prefix + "device_whitelisted_total", Help: "Devices added to the trust store."},
	{ID: goSignIn.MetricWhitelistFailed, Name: Prefix + "whitelist_failed_total", Help: "Trust store writes that failed."},
	{ID: goSignIn.MetricAuthenticated, Name: Prefix + "authenticated_total", Help: "Attempts that reached Authenticated."},
	{ID: goSignIn.MetricSignInFailed, Name: Prefix + "failed_total", Help: "Attempts that ended in Failed or LockedOut."},
	{ID: goSignIn.MetricAbandoned, Name: Prefix + "abandoned_total", Help: "Attempts abandoned before completion."},
	{ID: goSignIn.MetricInvalidCredentials, Name: Prefix + "invalid_credentials_total", Help: "Business passwords refused by the verifier."},
	{ID: goSignIn.MetricPasswordPolicyRejected, Name: Prefix + "password_policy_rejected_total", Help: "Business passwords refused by the composition policy."},
	{ID: goSignIn.MetricReceiptIssued, Name: Prefix + "receipt_issued_total", Help: "Signed sign-in receipts minted."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goSignIn.MetricVerifyLatency, Name: Prefix + "verify_latency_seconds", Help: "Credential backend VerifyCode latency."},
}

// HistogramBounds are the upper bounds, in seconds, of the engine's latency
// buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix names each bound for exporters that cannot carry an
// "le" label.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// BucketCount is the number of latency buckets, +Inf included.
const BucketCount = 8

// NormalizeBuckets copies raw into a fixed-size array. Missing buckets read
// as zero and extra ones are ignored.
func NormalizeBuckets(raw []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	copy(out[:], raw)
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [BucketCount]uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i, n := range raw {
		running += n
		out[i] = running
	}
	return out
}
