package sessioncore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/demio-app/sessioncore/internal/stores"
)

// VerifyChallenge checks a code against the active challenge. An expired
// challenge fails locally before any round-trip; the caller must resend. A
// wrong code increments the attempt counter and leaves the flow, and the
// validity window, untouched. On success the transition depends on purpose:
// sign-in and sign-up establish the session (sign-up first promotes the
// pending profile, which is the only point at which the profile record may
// be created); reset moves to PhasePasswordUpdate with no session yet.
func (f *AuthFlow) VerifyChallenge(ctx context.Context, code string) error {
	e := f.engine
	if e == nil || e.gateway == nil {
		return ErrEngineNotReady
	}

	f.mu.Lock()
	if f.phase != PhaseChallengeIssued {
		f.mu.Unlock()
		return ErrInvalidPhase
	}
	if f.loading {
		f.mu.Unlock()
		return ErrFlowBusy
	}
	if f.challengeID == "" {
		f.mu.Unlock()
		return ErrNoChallenge
	}
	if f.validity.Expired() {
		f.mu.Unlock()
		e.metricInc(MetricChallengeExpired)
		return f.localFail(ErrChallengeExpired)
	}
	challengeID := f.challengeID
	email := f.pendingEmail
	purpose := f.purpose
	identityID := f.pendingIdentityID
	epoch := f.epoch
	f.loading = true
	f.mu.Unlock()

	if _, err := e.challenges.Get(ctx, challengeID); err != nil {
		mapped := mapChallengeStoreError(err)
		e.metricInc(MetricChallengeFailure)
		return f.fail(epoch, mapped)
	}

	cctx, cancel := e.callCtx(ctx)
	sess, err := e.gateway.VerifyOTP(cctx, email, code, purpose)
	cancel()
	if err != nil {
		return f.failVerifyAttempt(ctx, epoch, challengeID, email, purpose, err)
	}

	// Consume the record. Losing the race here means a resend superseded
	// this challenge while the gateway call was in flight; the stale result
	// must not establish anything.
	deleted, err := e.challenges.Delete(ctx, challengeID)
	if err != nil {
		e.metricInc(MetricChallengeFailure)
		return f.fail(epoch, mapChallengeStoreError(err))
	}
	if !deleted {
		e.metricInc(MetricChallengeFailure)
		return f.fail(epoch, ErrChallengeInvalid)
	}

	if purpose == PurposeSignUp {
		if err := e.promotePendingProfile(ctx, identityID); err != nil {
			e.metricInc(MetricChallengeFailure)
			return f.fail(epoch, err)
		}
	}

	e.metricInc(MetricChallengeVerified)
	e.emitFlow(ctx, notifyEventChallengeVerified, email, purpose, true, nil, nil)

	if purpose == PurposeReset {
		return f.toPasswordUpdate(epoch, sess)
	}
	return f.establish(ctx, epoch, sess)
}

// ResendChallenge reissues the active challenge once the cooldown has
// elapsed. The new challenge fully supersedes the old one: the old record is
// consumed first, so a code issued before the resend can never verify.
func (f *AuthFlow) ResendChallenge(ctx context.Context) error {
	e := f.engine
	if e == nil || e.gateway == nil {
		return ErrEngineNotReady
	}

	f.mu.Lock()
	if f.phase != PhaseChallengeIssued {
		f.mu.Unlock()
		return ErrInvalidPhase
	}
	if f.loading {
		f.mu.Unlock()
		return ErrFlowBusy
	}
	if f.challengeID == "" {
		f.mu.Unlock()
		return ErrNoChallenge
	}
	if f.resend.Remaining() > 0 {
		f.mu.Unlock()
		return ErrResendCooldown
	}
	oldID := f.challengeID
	email := f.pendingEmail
	purpose := f.purpose
	epoch := f.epoch
	f.loading = true
	f.mu.Unlock()

	e.discardChallenge(ctx, oldID)

	uniform := purpose == PurposeReset && e.config.Reset.UniformResponse
	challengeID, err := e.issueChallenge(ctx, email, purpose, uniform)
	if err != nil {
		return f.fail(epoch, err)
	}

	f.mu.Lock()
	if f.epoch != epoch {
		f.mu.Unlock()
		e.discardChallenge(ctx, challengeID)
		return ErrFlowCancelled
	}
	f.loading = false
	f.lastErr = nil
	f.challengeID = challengeID
	f.validity.Reset()
	_ = f.validity.Start(e.config.Challenge.ValidityTTL)
	f.resend.Reset()
	_ = f.resend.Start(e.config.Challenge.ResendCooldown)
	f.mu.Unlock()

	e.metricInc(MetricChallengeResend)
	e.emitFlow(ctx, notifyEventChallengeResent, email, purpose, true, nil, nil)
	return nil
}

// failVerifyAttempt books a failed verification: a rejected code moves the
// attempt counter, a transport failure moves nothing, and the validity
// window is never touched. Expiry stays wall-clock based.
func (f *AuthFlow) failVerifyAttempt(
	ctx context.Context,
	epoch uint64,
	challengeID, email string,
	purpose Purpose,
	cause error,
) error {
	e := f.engine

	// A transport failure is not a guess at the code. It must neither move
	// the attempt counter nor consume the challenge; the same code verifies
	// once the gateway is reachable again.
	mapped := e.mapGatewayErr(cause)
	if errors.Is(mapped, ErrGatewayUnavailable) {
		e.metricInc(MetricChallengeFailure)
		e.emitFlow(ctx, notifyEventChallengeVerified, email, purpose, false, mapped, nil)
		return f.fail(epoch, mapped)
	}

	exceeded, recErr := e.challenges.RecordFailure(ctx, challengeID, e.config.Challenge.MaxAttempts)
	if recErr != nil {
		e.metricInc(MetricChallengeFailure)
		return f.fail(epoch, mapChallengeStoreError(recErr))
	}
	if exceeded {
		e.metricInc(MetricChallengeFailure)
		e.emitFlow(ctx, notifyEventChallengeVerified, email, purpose, false, ErrChallengeAttempts, nil)
		return f.fail(epoch, ErrChallengeAttempts)
	}

	if !errors.Is(mapped, ErrChallengeExpired) {
		mapped = ErrChallengeInvalid
	}
	e.metricInc(MetricChallengeFailure)
	e.emitFlow(ctx, notifyEventChallengeVerified, email, purpose, false, mapped, nil)
	return f.fail(epoch, mapped)
}

// promotePendingProfile persists the parked sign-up fields as the identity's
// profile and drops the pending entry. Called only from the
// verification-success path; no other path may touch the pending record.
func (e *Engine) promotePendingProfile(ctx context.Context, identityID string) error {
	if identityID == "" {
		return nil
	}
	record, err := e.pending.Get(ctx, identityID)
	if errors.Is(err, stores.ErrPendingProfileNotFound) {
		// An evicted entry is not fatal: the identity is confirmed, only the
		// optional profile fields are gone.
		e.warn("sessioncore: pending profile missing at promotion", "identity", identityID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProfileUnavailable, err)
	}

	now := time.Now()
	profile := Profile{
		ID:          identityID,
		Email:       record.Email,
		FirstName:   record.FirstName,
		LastName:    record.LastName,
		DateOfBirth: record.DateOfBirth,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	cctx, cancel := e.callCtx(ctx)
	defer cancel()
	if err := e.profiles.UpsertProfile(cctx, profile); err != nil {
		return fmt.Errorf("%w: %v", ErrProfileUnavailable, err)
	}
	e.discardPending(ctx, identityID)
	return nil
}

// toPasswordUpdate settles a verified reset challenge. The gateway session
// created by the verification is held internally for the password update
// call but is not exposed: the flow has not established anything yet.
func (f *AuthFlow) toPasswordUpdate(epoch uint64, sess *GatewaySession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.epoch != epoch {
		return ErrFlowCancelled
	}
	f.loading = false
	f.lastErr = nil
	f.phase = PhasePasswordUpdate
	f.challengeID = ""
	f.session = sess
	f.validity.Reset()
	f.resend.Reset()
	return nil
}
