package sessioncore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/demio-app/sessioncore/internal/stores"
	"github.com/google/uuid"
)

// Engine owns the long-lived dependencies of the verification core: the
// identity gateway, profile persistence, challenge and pending-profile
// stores, and the observability plumbing. Engine methods are safe to call
// from multiple goroutines after initialization through [Builder.Build];
// per-UI-session state lives in [AuthFlow], not here.
type Engine struct {
	config     Config
	gateway    IdentityGateway
	profiles   ProfileStore
	challenges *stores.ChallengeStore
	pending    *stores.PendingProfileStore
	notify     *notifyDispatcher
	metrics    *Metrics
	logger     *slog.Logger
	now        func() time.Time
}

// Close flushes and stops the event dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.notify != nil {
		e.notify.Close()
	}
}

// NotifyDropped reports how many flow events were dropped on a full buffer.
func (e *Engine) NotifyDropped() uint64 {
	if e == nil || e.notify == nil {
		return 0
	}
	return e.notify.Dropped()
}

// MetricsSnapshot copies the current counter values.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

// Session reports the gateway's current session, nil when signed out.
func (e *Engine) Session(ctx context.Context) (*GatewaySession, error) {
	if e == nil || e.gateway == nil {
		return nil, ErrEngineNotReady
	}
	cctx, cancel := e.callCtx(ctx)
	defer cancel()
	sess, err := e.gateway.Session(cctx)
	if err != nil {
		return nil, e.mapGatewayErr(err)
	}
	return sess, nil
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) warn(msg string, args ...any) {
	if e == nil || e.logger == nil {
		return
	}
	e.logger.Warn(msg, args...)
}

// callCtx caps a gateway round-trip so a lost network can never leave a flow
// loading indefinitely.
func (e *Engine) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	timeout := e.config.Gateway.CallTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

func (e *Engine) emitFlow(
	ctx context.Context,
	eventType string,
	email string,
	purpose Purpose,
	success bool,
	cause error,
	metadata func() map[string]string,
) {
	if e == nil || e.notify == nil {
		return
	}
	event := FlowEvent{
		Timestamp: e.now(),
		EventType: eventType,
		Email:     email,
		Success:   success,
	}
	if purpose != 0 {
		event.Purpose = purpose.String()
	}
	if cause != nil {
		event.Error = cause.Error()
	}
	if metadata != nil {
		event.Metadata = metadata()
	}
	e.notify.Emit(ctx, event)
}

// mapGatewayErr keeps the recognized sentinel set intact and folds everything
// else, including timeouts, into the transport class.
func (e *Engine) mapGatewayErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrAccountExists),
		errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrChallengeInvalid),
		errors.Is(err, ErrChallengeExpired):
		return err
	default:
		e.metricInc(MetricGatewayError)
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
}

func mapChallengeStoreError(err error) error {
	switch {
	case errors.Is(err, stores.ErrChallengeNotFound):
		return ErrChallengeInvalid
	case errors.Is(err, stores.ErrChallengeExpired):
		return ErrChallengeExpired
	case errors.Is(err, stores.ErrChallengeExceeded):
		return ErrChallengeAttempts
	default:
		return ErrChallengeUnavailable
	}
}

// checkPassword runs the gateway password probe for sign-in. The probe may
// establish a real session at the gateway; that session must not survive
// into the challenge phase, so a SignOut compensation always follows a
// successful probe.
func (e *Engine) checkPassword(ctx context.Context, email, password string) error {
	cctx, cancel := e.callCtx(ctx)
	defer cancel()

	if _, err := e.gateway.SignInWithPassword(cctx, email, password); err != nil {
		return e.mapGatewayErr(err)
	}
	if err := e.gateway.SignOut(cctx); err != nil {
		return e.mapGatewayErr(err)
	}
	return nil
}

// issueChallenge dispatches an OTP and persists the matching challenge
// record under a fresh id. With maskNotFound, an unknown address is treated
// as issued so the response stays uniform for the reset flow.
func (e *Engine) issueChallenge(
	ctx context.Context,
	email string,
	purpose Purpose,
	maskNotFound bool,
) (string, error) {
	cctx, cancel := e.callCtx(ctx)
	defer cancel()

	if err := e.gateway.SendOTP(cctx, email, purpose); err != nil {
		mapped := e.mapGatewayErr(err)
		if !(maskNotFound && errors.Is(mapped, ErrUserNotFound)) {
			return "", mapped
		}
		// Unknown address: keep going so the caller cannot probe existence.
		// The local record is created anyway; any code against it fails at
		// the gateway like a wrong code would.
	}

	challengeID := uuid.NewString()
	ttl := e.config.Challenge.ValidityTTL
	now := e.now()
	record := &stores.ChallengeRecord{
		Email:     email,
		Purpose:   uint8(purpose),
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
	}
	if err := e.challenges.Save(ctx, challengeID, record, ttl); err != nil {
		return "", mapChallengeStoreError(err)
	}

	e.metricInc(MetricChallengeIssued)
	e.emitFlow(ctx, notifyEventChallengeSent, email, purpose, true, nil, nil)
	return challengeID, nil
}

// discardChallenge and discardPending are best-effort cleanups used by
// cancel paths; the records expire on TTL regardless.
func (e *Engine) discardChallenge(ctx context.Context, challengeID string) {
	if challengeID == "" {
		return
	}
	if _, err := e.challenges.Delete(ctx, challengeID); err != nil {
		e.warn("sessioncore: challenge discard failed", "error", err)
	}
}

func (e *Engine) discardPending(ctx context.Context, identityID string) {
	if identityID == "" {
		return
	}
	if _, err := e.pending.Delete(ctx, identityID); err != nil {
		e.warn("sessioncore: pending profile discard failed", "error", err)
	}
}
