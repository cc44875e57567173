package sessioncore

import (
	"context"
	"fmt"

	"github.com/demio-app/sessioncore/internal/stores"
)

// SubmitSignUp registers a new identity. Terms, required fields, email
// shape, and password policy are all checked locally first, so a rejected
// submission never consumes a gateway request. Pre-existence is decided by a
// profile lookup rather than a probe sign-in, so checking for a duplicate
// has no side effect at the gateway. On success the non-secret profile
// fields are parked in the pending store (TTL-bounded) until the emailed
// confirmation code verifies; only that verification may promote them to a
// persisted profile.
func (f *AuthFlow) SubmitSignUp(
	ctx context.Context,
	profile SignUpProfile,
	password string,
	termsAccepted bool,
) error {
	e := f.engine
	if e == nil || e.gateway == nil || e.profiles == nil {
		return ErrEngineNotReady
	}
	if f.Mode() != ModeSignUp {
		return ErrInvalidPhase
	}
	if !termsAccepted {
		return f.localFail(ErrTermsNotAccepted)
	}
	if profile.FirstName == "" || profile.LastName == "" || profile.DateOfBirth == "" {
		return f.localFail(ErrMissingField)
	}
	if !ValidateEmail(profile.Email) {
		return f.localFail(ErrInvalidEmail)
	}
	if !ValidatePassword(password) {
		return f.localFail(ErrPasswordPolicy)
	}

	epoch, err := f.begin(PhaseIdle)
	if err != nil {
		return err
	}

	cctx, cancel := e.callCtx(ctx)
	existing, err := e.profiles.FindProfileByEmail(cctx, profile.Email)
	cancel()
	if err != nil {
		wrapped := fmt.Errorf("%w: %v", ErrProfileUnavailable, err)
		e.metricInc(MetricSignUpFailure)
		e.emitFlow(ctx, notifyEventSignUp, profile.Email, PurposeSignUp, false, wrapped, nil)
		return f.fail(epoch, wrapped)
	}
	if existing != nil {
		e.metricInc(MetricSignUpDuplicate)
		e.emitFlow(ctx, notifyEventSignUp, profile.Email, PurposeSignUp, false, ErrAccountExists, nil)
		return f.fail(epoch, ErrAccountExists)
	}

	cctx, cancel = e.callCtx(ctx)
	identityID, err := e.gateway.SignUp(cctx, profile.Email, password)
	cancel()
	if err != nil {
		mapped := e.mapGatewayErr(err)
		e.metricInc(MetricSignUpFailure)
		e.emitFlow(ctx, notifyEventSignUp, profile.Email, PurposeSignUp, false, mapped, nil)
		return f.fail(epoch, mapped)
	}

	record := &stores.PendingProfileRecord{
		Email:       profile.Email,
		FirstName:   profile.FirstName,
		LastName:    profile.LastName,
		DateOfBirth: profile.DateOfBirth,
		CreatedAt:   e.now().Unix(),
	}
	if err := e.pending.Save(ctx, identityID, record, e.config.PendingProfile.TTL); err != nil {
		wrapped := fmt.Errorf("%w: %v", ErrProfileUnavailable, err)
		e.metricInc(MetricSignUpFailure)
		e.emitFlow(ctx, notifyEventSignUp, profile.Email, PurposeSignUp, false, wrapped, nil)
		return f.fail(epoch, wrapped)
	}

	challengeID, err := e.issueChallenge(ctx, profile.Email, PurposeSignUp, false)
	if err != nil {
		e.discardPending(ctx, identityID)
		e.metricInc(MetricSignUpFailure)
		e.emitFlow(ctx, notifyEventSignUp, profile.Email, PurposeSignUp, false, err, nil)
		return f.fail(epoch, err)
	}

	e.metricInc(MetricSignUpSuccess)
	e.emitFlow(ctx, notifyEventSignUp, profile.Email, PurposeSignUp, true, nil, nil)
	return f.advanceToChallenge(ctx, epoch, profile.Email, identityID, challengeID, PurposeSignUp)
}
