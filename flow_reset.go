package sessioncore

import "context"

// RequestPasswordReset issues a reset-purpose challenge for the address.
// With Reset.UniformResponse (the default) the outcome is identical for
// known and unknown addresses, so the endpoint cannot be used to enumerate
// accounts.
func (f *AuthFlow) RequestPasswordReset(ctx context.Context, email string) error {
	e := f.engine
	if e == nil || e.gateway == nil {
		return ErrEngineNotReady
	}
	if email == "" {
		return f.localFail(ErrMissingField)
	}
	if !ValidateEmail(email) {
		return f.localFail(ErrInvalidEmail)
	}

	epoch, err := f.begin(PhaseIdle)
	if err != nil {
		return err
	}

	challengeID, err := e.issueChallenge(ctx, email, PurposeReset, e.config.Reset.UniformResponse)
	if err != nil {
		e.emitFlow(ctx, notifyEventResetRequested, email, PurposeReset, false, err, nil)
		return f.fail(epoch, err)
	}

	e.metricInc(MetricResetRequested)
	e.emitFlow(ctx, notifyEventResetRequested, email, PurposeReset, true, nil, nil)
	return f.advanceToChallenge(ctx, epoch, email, "", challengeID, PurposeReset)
}

// UpdatePassword completes the reset branch. Valid only after the reset
// challenge verified. The gateway's password update re-authenticates the
// user; when the provider does not hand back a live session, an explicit
// sign-in with the new password covers the gap before the flow settles into
// PhaseEstablished.
func (f *AuthFlow) UpdatePassword(ctx context.Context, newPassword string) error {
	e := f.engine
	if e == nil || e.gateway == nil {
		return ErrEngineNotReady
	}
	if !ValidatePassword(newPassword) {
		return f.localFail(ErrPasswordPolicy)
	}

	epoch, err := f.begin(PhasePasswordUpdate)
	if err != nil {
		return err
	}

	f.mu.Lock()
	email := f.pendingEmail
	f.mu.Unlock()

	cctx, cancel := e.callCtx(ctx)
	sess, err := e.gateway.UpdatePassword(cctx, newPassword)
	cancel()
	if err != nil {
		mapped := e.mapGatewayErr(err)
		e.emitFlow(ctx, notifyEventPasswordUpdated, email, PurposeReset, false, mapped, nil)
		return f.fail(epoch, mapped)
	}

	if sess == nil {
		cctx, cancel = e.callCtx(ctx)
		sess, err = e.gateway.Session(cctx)
		cancel()
		if err != nil {
			mapped := e.mapGatewayErr(err)
			e.emitFlow(ctx, notifyEventPasswordUpdated, email, PurposeReset, false, mapped, nil)
			return f.fail(epoch, mapped)
		}
	}
	if sess == nil {
		// Provider updated the password without re-authenticating; sign in
		// explicitly so the terminal phase always carries a session.
		cctx, cancel = e.callCtx(ctx)
		sess, err = e.gateway.SignInWithPassword(cctx, email, newPassword)
		cancel()
		if err != nil {
			mapped := e.mapGatewayErr(err)
			e.emitFlow(ctx, notifyEventPasswordUpdated, email, PurposeReset, false, mapped, nil)
			return f.fail(epoch, mapped)
		}
	}

	e.metricInc(MetricPasswordUpdated)
	e.emitFlow(ctx, notifyEventPasswordUpdated, email, PurposeReset, true, nil, nil)
	return f.establish(ctx, epoch, sess)
}
