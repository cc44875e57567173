package sessioncore

import (
	"errors"
	"time"
)

// Config carries every tunable of the engine. Zero it out and start from
// [New]; defaults are applied there and validated in [Builder.Build].
type Config struct {
	Challenge      ChallengeConfig
	PendingProfile PendingProfileConfig
	Reset          ResetConfig
	Gateway        GatewayConfig
	Notify         NotifyConfig
	Metrics        MetricsConfig
}

/*
====================================
CHALLENGE CONFIG
====================================
*/

// ChallengeConfig bounds the verification challenge lifecycle. Validity and
// resend cooldown are wall-clock windows on the same underlying challenge but
// are independently queryable, since a UI shows "expires in" and "resend in"
// separately.
type ChallengeConfig struct {
	ValidityTTL    time.Duration
	ResendCooldown time.Duration
	MaxAttempts    int
	RedisPrefix    string
}

/*
====================================
PENDING PROFILE CONFIG
====================================
*/

// PendingProfileConfig bounds the sign-up profile entries held between
// registration and email confirmation. The TTL is the eviction policy for
// callers who never confirm.
type PendingProfileConfig struct {
	TTL         time.Duration
	RedisPrefix string
}

/*
====================================
RESET CONFIG
====================================
*/

// ResetConfig controls the password-reset branch.
//
// UniformResponse makes RequestPasswordReset indistinguishable for known and
// unknown addresses, preventing account enumeration. Disable only when the
// deployment explicitly wants existence feedback.
type ResetConfig struct {
	UniformResponse bool
}

/*
====================================
GATEWAY CONFIG
====================================
*/

// GatewayConfig bounds calls to the identity gateway. CallTimeout caps every
// gateway round-trip so a lost network never leaves a flow loading forever.
type GatewayConfig struct {
	CallTimeout time.Duration
}

/*
====================================
NOTIFY CONFIG
====================================
*/

// NotifyConfig controls the asynchronous flow-event dispatcher.
type NotifyConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig controls counter metrics.
type MetricsConfig struct {
	Enabled bool
}

func defaultConfig() Config {
	return Config{
		Challenge: ChallengeConfig{
			ValidityTTL:    5 * time.Minute,
			ResendCooldown: 5 * time.Minute,
			MaxAttempts:    5,
			RedisPrefix:    "vc",
		},
		PendingProfile: PendingProfileConfig{
			TTL:         24 * time.Hour,
			RedisPrefix: "pp",
		},
		Reset: ResetConfig{
			UniformResponse: true,
		},
		Gateway: GatewayConfig{
			CallTimeout: 30 * time.Second,
		},
		Notify: NotifyConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
		},
	}
}

// Validate reports the first configuration error, or nil.
func (c Config) Validate() error {
	if c.Challenge.ValidityTTL <= 0 {
		return errors.New("Challenge.ValidityTTL must be positive")
	}
	if c.Challenge.ResendCooldown <= 0 {
		return errors.New("Challenge.ResendCooldown must be positive")
	}
	if c.Challenge.ResendCooldown > c.Challenge.ValidityTTL {
		return errors.New("Challenge.ResendCooldown must not exceed Challenge.ValidityTTL")
	}
	if c.Challenge.MaxAttempts <= 0 {
		return errors.New("Challenge.MaxAttempts must be positive")
	}
	if c.Challenge.RedisPrefix == "" {
		return errors.New("Challenge.RedisPrefix must not be empty")
	}
	if c.PendingProfile.TTL <= 0 {
		return errors.New("PendingProfile.TTL must be positive")
	}
	if c.PendingProfile.RedisPrefix == "" {
		return errors.New("PendingProfile.RedisPrefix must not be empty")
	}
	if c.PendingProfile.RedisPrefix == c.Challenge.RedisPrefix {
		return errors.New("PendingProfile.RedisPrefix must differ from Challenge.RedisPrefix")
	}
	if c.Gateway.CallTimeout <= 0 {
		return errors.New("Gateway.CallTimeout must be positive")
	}
	if c.Notify.Enabled && c.Notify.BufferSize <= 0 {
		return errors.New("Notify.BufferSize must be positive when Notify is enabled")
	}
	return nil
}
