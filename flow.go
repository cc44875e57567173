package sessioncore

import (
	"context"
	"sync"
	"time"

	"github.com/demio-app/sessioncore/countdown"
)

// Mode selects which credential-submission flavor a flow accepts.
type Mode uint8

const (
	// ModeSignIn authenticates an existing identity (password + second factor).
	ModeSignIn Mode = iota + 1
	// ModeSignUp registers a new identity and confirms its email.
	ModeSignUp
)

func (m Mode) String() string {
	switch m {
	case ModeSignIn:
		return "signin"
	case ModeSignUp:
		return "signup"
	default:
		return "unknown"
	}
}

// Phase is the position of an AuthFlow in its state machine.
type Phase uint8

const (
	// PhaseIdle accepts credential submissions and reset requests.
	PhaseIdle Phase = iota
	// PhaseChallengeIssued waits for a code, with resend after cooldown.
	PhaseChallengeIssued
	// PhasePasswordUpdate follows a verified reset challenge; no session yet.
	PhasePasswordUpdate
	// PhaseEstablished is terminal: an authenticated session exists.
	PhaseEstablished
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseChallengeIssued:
		return "challenge_issued"
	case PhasePasswordUpdate:
		return "password_update"
	case PhaseEstablished:
		return "established"
	default:
		return "unknown"
	}
}

// AuthFlow is one live authentication state machine, owned by a single UI
// session. Transition methods reject re-entrant submissions while a gateway
// call is in flight; Cancel stays available throughout and a result that
// arrives after Cancel is discarded, never applied.
type AuthFlow struct {
	engine *Engine

	mu                sync.Mutex
	mode              Mode
	phase             Phase
	purpose           Purpose
	pendingEmail      string
	pendingIdentityID string
	challengeID       string
	validity          *countdown.Countdown
	resend            *countdown.Countdown
	loading           bool
	epoch             uint64
	session           *GatewaySession
	lastErr           error
}

// NewFlow creates an idle flow for the given mode.
func (e *Engine) NewFlow(mode Mode) *AuthFlow {
	now := time.Now
	if e != nil && e.now != nil {
		now = e.now
	}
	return &AuthFlow{
		engine:   e,
		mode:     mode,
		phase:    PhaseIdle,
		validity: countdown.NewWithNow(now),
		resend:   countdown.NewWithNow(now),
	}
}

// Phase reports the current state-machine position.
func (f *AuthFlow) Phase() Phase {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.phase
}

// Mode reports the flow's submission flavor.
func (f *AuthFlow) Mode() Mode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mode
}

// Purpose reports the purpose of the active challenge, zero when none.
func (f *AuthFlow) Purpose() Purpose {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.purpose
}

// PendingEmail reports the address the current flow is acting for.
func (f *AuthFlow) PendingEmail() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pendingEmail
}

// Loading reports whether a transition is between dispatch and resolution.
func (f *AuthFlow) Loading() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loading
}

// Err reports the most recent transition error, nil after a success.
func (f *AuthFlow) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}

// Session returns the established session, nil before PhaseEstablished.
// A password check that merely triggered the second factor never shows a
// session here.
func (f *AuthFlow) Session() *GatewaySession {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.phase != PhaseEstablished {
		return nil
	}
	return f.session
}

// ChallengeRemaining reports time until the active challenge expires.
func (f *AuthFlow) ChallengeRemaining() time.Duration {
	return f.validity.Remaining()
}

// ChallengeExpired reports whether the active challenge has run out.
func (f *AuthFlow) ChallengeExpired() bool {
	return f.validity.Expired()
}

// ResendRemaining reports time until resend becomes available.
func (f *AuthFlow) ResendRemaining() time.Duration {
	return f.resend.Remaining()
}

// SignInWithOAuth delegates entirely to the provider redirect; the flow's
// own state does not change because control leaves the page.
func (f *AuthFlow) SignInWithOAuth(ctx context.Context, provider, redirectTo string) error {
	e := f.engine
	if e == nil || e.gateway == nil {
		return ErrEngineNotReady
	}
	cctx, cancel := e.callCtx(ctx)
	defer cancel()
	if err := e.gateway.SignInWithOAuth(cctx, provider, redirectTo); err != nil {
		return e.mapGatewayErr(err)
	}
	return nil
}

// Cancel discards the active challenge and pending-profile entry and returns
// the flow to PhaseIdle. Valid from any non-terminal phase, including while
// a transition is loading; the in-flight result is then disregarded on
// arrival. Record cleanup is best effort, TTLs cover the rest.
func (f *AuthFlow) Cancel(ctx context.Context) error {
	e := f.engine
	if e == nil {
		return ErrEngineNotReady
	}

	f.mu.Lock()
	if f.phase == PhaseEstablished {
		f.mu.Unlock()
		return ErrInvalidPhase
	}
	challengeID := f.challengeID
	identityID := f.pendingIdentityID
	email := f.pendingEmail
	f.epoch++
	f.phase = PhaseIdle
	f.purpose = 0
	f.pendingEmail = ""
	f.pendingIdentityID = ""
	f.challengeID = ""
	f.loading = false
	f.lastErr = nil
	f.session = nil
	f.validity.Reset()
	f.resend.Reset()
	f.mu.Unlock()

	e.discardChallenge(ctx, challengeID)
	e.discardPending(ctx, identityID)
	e.metricInc(MetricFlowCancelled)
	e.emitFlow(ctx, notifyEventFlowCancelled, email, 0, true, nil, nil)
	return nil
}

// Back is the UI-facing alias for Cancel.
func (f *AuthFlow) Back(ctx context.Context) error {
	return f.Cancel(ctx)
}

// begin takes the transition guard: the phase must match, and no other
// submission may be in flight. Returns the epoch the caller must present to
// settle the transition.
func (f *AuthFlow) begin(expect Phase) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.phase != expect {
		return 0, ErrInvalidPhase
	}
	if f.loading {
		return 0, ErrFlowBusy
	}
	f.loading = true
	return f.epoch, nil
}

// fail settles a transition with an error, leaving the prior phase
// untouched. A stale epoch means the user cancelled mid-flight; the state
// has already been reset and must not be written.
func (f *AuthFlow) fail(epoch uint64, err error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.epoch != epoch {
		return ErrFlowCancelled
	}
	f.loading = false
	f.lastErr = err
	return err
}

// localFail records a pre-network validation error without a guard cycle.
func (f *AuthFlow) localFail(err error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastErr = err
	return err
}

// advanceToChallenge settles a successful credential submission or reset
// request: the flow moves to PhaseChallengeIssued and both countdown
// windows are armed. On a stale epoch the fresh challenge record is
// discarded so the superseded flow leaves nothing verifiable behind.
func (f *AuthFlow) advanceToChallenge(
	ctx context.Context,
	epoch uint64,
	email, identityID, challengeID string,
	purpose Purpose,
) error {
	e := f.engine

	f.mu.Lock()
	if f.epoch != epoch {
		f.mu.Unlock()
		e.discardChallenge(ctx, challengeID)
		e.discardPending(ctx, identityID)
		return ErrFlowCancelled
	}
	f.loading = false
	f.lastErr = nil
	f.phase = PhaseChallengeIssued
	f.purpose = purpose
	f.pendingEmail = email
	f.pendingIdentityID = identityID
	f.challengeID = challengeID
	f.validity.Reset()
	_ = f.validity.Start(e.config.Challenge.ValidityTTL)
	f.resend.Reset()
	_ = f.resend.Start(e.config.Challenge.ResendCooldown)
	f.mu.Unlock()
	return nil
}

// establish settles a flow into the terminal phase.
func (f *AuthFlow) establish(ctx context.Context, epoch uint64, sess *GatewaySession) error {
	e := f.engine

	f.mu.Lock()
	if f.epoch != epoch {
		f.mu.Unlock()
		return ErrFlowCancelled
	}
	email := f.pendingEmail
	f.loading = false
	f.lastErr = nil
	f.phase = PhaseEstablished
	f.challengeID = ""
	f.pendingIdentityID = ""
	if sess != nil {
		f.session = sess
	}
	f.validity.Reset()
	f.resend.Reset()
	f.mu.Unlock()

	e.metricInc(MetricSessionEstablished)
	e.emitFlow(ctx, notifyEventSessionEstablished, email, 0, true, nil, nil)
	return nil
}
