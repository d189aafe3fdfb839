package internaldefs

import (
	goToken "github.com/MrEthical07/goToken"
)

// CounterDef defines a public type used by goToken APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   goToken.MetricID
	Name string
	Help string
}

// HistogramDef defines a public type used by goToken APIs.
//
// HistogramDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type HistogramDef struct {
	ID   goToken.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the token engine.
var CounterDefs = []CounterDef{
	{ID: goToken.MetricIssueSuccess, Name: "gotoken_issue_success_total", Help: "Successful token pair issuances."},
	{ID: goToken.MetricIssueFailure, Name: "gotoken_issue_failure_total", Help: "Failed token pair issuances."},
	{ID: goToken.MetricRotateSuccess, Name: "gotoken_rotate_success_total", Help: "Successful refresh rotations."},
	{ID: goToken.MetricRotateFailure, Name: "gotoken_rotate_failure_total", Help: "Failed refresh rotations, any cause."},
	{ID: goToken.MetricRotateExpired, Name: "gotoken_rotate_expired_total", Help: "Rotations rejected for expiry."},
	{ID: goToken.MetricReuseDetected, Name: "gotoken_reuse_detected_total", Help: "Detected refresh token reuses."},
	{ID: goToken.MetricFamilyCompromised, Name: "gotoken_family_compromised_total", Help: "Token families invalidated as compromised."},
	{ID: goToken.MetricVerifySuccess, Name: "gotoken_verify_success_total", Help: "Successful access token verifications."},
	{ID: goToken.MetricVerifyFailure, Name: "gotoken_verify_failure_total", Help: "Failed access token verifications."},
	{ID: goToken.MetricRevokeSession, Name: "gotoken_revoke_session_total", Help: "Single-session revocations."},
	{ID: goToken.MetricRevokeAllUser, Name: "gotoken_revoke_all_user_total", Help: "Revoke-all operations per user."},
	{ID: goToken.MetricFamilyInvalidated, Name: "gotoken_family_invalidated_total", Help: "Explicit family invalidations."},
	{ID: goToken.MetricSweepPruned, Name: "gotoken_sweep_pruned_total", Help: "Entries removed by the expiry sweep."},
}

// HistogramDefs is an exported constant or variable used by the token engine.
var HistogramDefs = []HistogramDef{
	{ID: goToken.MetricVerifyLatency, Name: "gotoken_verify_latency_seconds", Help: "VerifyAccess latency histogram."},
}

// HistogramBounds is an exported constant or variable used by the token engine.
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

// HistogramBoundSuffix is an exported constant or variable used by the token engine.
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

// NormalizeBuckets describes the normalizebuckets operation and its observable behavior.
//
// NormalizeBuckets may return an error when input validation, dependency calls, or security checks fail.
// NormalizeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets describes the cumulativebuckets operation and its observable behavior.
//
// CumulativeBuckets may return an error when input validation, dependency calls, or security checks fail.
// CumulativeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
