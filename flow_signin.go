package sessioncore

import "context"

// SubmitSignIn runs the sign-in credential check. Locally invalid input is
// rejected before any gateway call. A successful password check does NOT
// establish a session: the gateway probe is compensated with a sign-out and
// the flow moves to PhaseChallengeIssued awaiting the emailed second factor,
// so password-correct-but-OTP-pending never leaves a live session behind.
func (f *AuthFlow) SubmitSignIn(ctx context.Context, email, password string) error {
	e := f.engine
	if e == nil || e.gateway == nil {
		return ErrEngineNotReady
	}
	if f.Mode() != ModeSignIn {
		return ErrInvalidPhase
	}
	if !ValidateEmail(email) {
		return f.localFail(ErrInvalidEmail)
	}
	if password == "" {
		return f.localFail(ErrMissingField)
	}

	epoch, err := f.begin(PhaseIdle)
	if err != nil {
		return err
	}

	if err := e.checkPassword(ctx, email, password); err != nil {
		e.metricInc(MetricSignInFailure)
		e.emitFlow(ctx, notifyEventSignIn, email, PurposeSignIn, false, err, nil)
		return f.fail(epoch, err)
	}

	challengeID, err := e.issueChallenge(ctx, email, PurposeSignIn, false)
	if err != nil {
		e.metricInc(MetricSignInFailure)
		e.emitFlow(ctx, notifyEventSignIn, email, PurposeSignIn, false, err, nil)
		return f.fail(epoch, err)
	}

	e.metricInc(MetricSignInSuccess)
	e.emitFlow(ctx, notifyEventSignIn, email, PurposeSignIn, true, nil, nil)
	return f.advanceToChallenge(ctx, epoch, email, "", challengeID, PurposeSignIn)
}
