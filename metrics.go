package sessioncore

import "sync/atomic"

// MetricID names one engine counter.
type MetricID uint8

const (
	// MetricSignInSuccess counts password checks that passed and issued a challenge.
	MetricSignInSuccess MetricID = iota
	// MetricSignInFailure counts rejected or failed sign-in submissions.
	MetricSignInFailure
	// MetricSignUpSuccess counts registrations that reached the challenge phase.
	MetricSignUpSuccess
	// MetricSignUpFailure counts rejected or failed sign-up submissions.
	MetricSignUpFailure
	// MetricSignUpDuplicate counts sign-ups short-circuited by a pre-existing profile.
	MetricSignUpDuplicate
	// MetricChallengeIssued counts challenges dispatched, including resends.
	MetricChallengeIssued
	// MetricChallengeVerified counts successful verifications.
	MetricChallengeVerified
	// MetricChallengeFailure counts wrong-code and unusable-challenge verifications.
	MetricChallengeFailure
	// MetricChallengeExpired counts verifications rejected locally for expiry.
	MetricChallengeExpired
	// MetricChallengeResend counts resends that superseded an earlier challenge.
	MetricChallengeResend
	// MetricResetRequested counts password-reset challenge requests.
	MetricResetRequested
	// MetricPasswordUpdated counts completed password updates.
	MetricPasswordUpdated
	// MetricSessionEstablished counts flows reaching the terminal phase.
	MetricSessionEstablished
	// MetricFlowCancelled counts user cancels from a non-terminal phase.
	MetricFlowCancelled
	// MetricGatewayError counts transport-class gateway failures.
	MetricGatewayError

	metricIDCount
)

var metricNames = [metricIDCount]string{
	MetricSignInSuccess:      "signin_success",
	MetricSignInFailure:      "signin_failure",
	MetricSignUpSuccess:      "signup_success",
	MetricSignUpFailure:      "signup_failure",
	MetricSignUpDuplicate:    "signup_duplicate",
	MetricChallengeIssued:    "challenge_issued",
	MetricChallengeVerified:  "challenge_verified",
	MetricChallengeFailure:   "challenge_failure",
	MetricChallengeExpired:   "challenge_expired",
	MetricChallengeResend:    "challenge_resend",
	MetricResetRequested:     "reset_requested",
	MetricPasswordUpdated:    "password_updated",
	MetricSessionEstablished: "session_established",
	MetricFlowCancelled:      "flow_cancelled",
	MetricGatewayError:       "gateway_error",
}

func (id MetricID) String() string {
	if id >= metricIDCount {
		return "unknown"
	}
	return metricNames[id]
}

// Metrics holds per-engine counters. All methods are safe for concurrent use
// and are no-ops when metrics are disabled.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// NewMetrics builds a counter set honoring cfg.Enabled.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Enabled reports whether counters are recording.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// Inc adds one to the counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	m.counters[id].Add(1)
}

// Snapshot copies every counter value.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{Counters: make(map[MetricID]uint64, metricIDCount)}
	if m == nil {
		return snap
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		snap.Counters[id] = m.counters[id].Load()
	}
	return snap
}
