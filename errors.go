package sessioncore

import (
	"errors"

	"github.com/demio-app/sessioncore/chat"
)

var (
	// ErrInvalidEmail rejects input that fails the local@domain.tld shape check.
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrPasswordPolicy rejects passwords below the minimum strength policy.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrTermsNotAccepted rejects a sign-up whose terms checkbox is unchecked.
	ErrTermsNotAccepted = errors.New("terms not accepted")
	// ErrMissingField rejects a submission with a required field left empty.
	ErrMissingField = errors.New("required field missing")
	// ErrInvalidCredentials is returned when the gateway rejects a password check.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountExists is returned when sign-up targets an already registered email.
	ErrAccountExists = errors.New("account already exists")
	// ErrUserNotFound is returned by gateway implementations for unknown accounts.
	ErrUserNotFound = errors.New("user not found")
	// ErrChallengeInvalid is returned for a wrong or unusable verification code.
	ErrChallengeInvalid = errors.New("verification challenge invalid")
	// ErrChallengeExpired is returned once the challenge validity window has passed.
	// Unlike ErrChallengeInvalid it is not retryable; the caller must resend.
	ErrChallengeExpired = errors.New("verification challenge expired")
	// ErrChallengeAttempts is returned when the attempt limit for one challenge is used up.
	ErrChallengeAttempts = errors.New("verification attempts exceeded")
	// ErrChallengeUnavailable is returned when the challenge store backend fails.
	ErrChallengeUnavailable = errors.New("challenge backend unavailable")
	// ErrNoChallenge is returned when a verify or resend arrives with no active challenge.
	ErrNoChallenge = errors.New("no active challenge")
	// ErrResendCooldown is returned when a resend is requested before the cooldown elapses.
	ErrResendCooldown = errors.New("resend cooldown active")
	// ErrGatewayUnavailable wraps transport-level gateway failures: network errors,
	// timeouts, and any gateway error outside the recognized sentinel set.
	ErrGatewayUnavailable = errors.New("identity gateway unavailable")
	// ErrProfileUnavailable wraps profile store failures.
	ErrProfileUnavailable = errors.New("profile store unavailable")
	// ErrAuthRequired signals an operation that needs an established session.
	// Shared with the chat package so one check covers both layers.
	ErrAuthRequired = chat.ErrAuthRequired
	// ErrFlowBusy rejects a re-entrant submission while a transition is in flight.
	ErrFlowBusy = errors.New("flow transition in flight")
	// ErrFlowCancelled reports that a transition result arrived after the user
	// cancelled the flow and was discarded.
	ErrFlowCancelled = errors.New("flow cancelled")
	// ErrInvalidPhase rejects a transition not valid from the current phase.
	ErrInvalidPhase = errors.New("transition invalid for current phase")
	// ErrEngineNotReady is returned when a dependency was not wired at build time.
	ErrEngineNotReady = errors.New("engine not initialized")
)
