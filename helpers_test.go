package sessioncore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/demio-app/sessioncore/internal/stores"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

// testClock is a hand-advanced clock shared by the engine and both flow
// countdowns so expiry tests never sleep. It starts at the real current time
// because store records carry wall-clock expiry stamps.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Now()}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestEngine(t *testing.T, rdb *redis.Client, gw IdentityGateway, ps ProfileStore, clock *testClock) *Engine {
	t.Helper()

	cfg := defaultConfig()
	cfg.Metrics.Enabled = true

	return &Engine{
		config:     cfg,
		gateway:    gw,
		profiles:   ps,
		challenges: stores.NewChallengeStore(rdb, cfg.Challenge.RedisPrefix),
		pending:    stores.NewPendingProfileStore(rdb, cfg.PendingProfile.RedisPrefix),
		metrics:    NewMetrics(cfg.Metrics),
		now:        clock.Now,
	}
}

// fakeGateway scripts the identity provider. Error fields, when set, are
// returned by the matching call; current mirrors the provider-side live
// session so compensation can be asserted.
type fakeGateway struct {
	mu sync.Mutex

	signInErr  error
	signUpErr  error
	sendOTPErr error
	verifyErr  error
	updateErr  error

	identityID    string
	acceptCode    string
	verifySession *GatewaySession
	updateSession *GatewaySession

	current *GatewaySession

	signInCalls  int
	signOutCalls int
	signUpCalls  int
	sendOTPCalls int
	verifyCalls  int
	updateCalls  int
	lastPurpose  Purpose
	lastPassword string

	// verifyGate, when non-nil, blocks VerifyOTP until closed.
	verifyGate chan struct{}
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		identityID: "identity-1",
		acceptCode: "123456",
		verifySession: &GatewaySession{
			UserID:      "identity-1",
			Email:       "alice@example.com",
			AccessToken: "token-1",
		},
	}
}

func (g *fakeGateway) SignInWithPassword(ctx context.Context, email, password string) (*GatewaySession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.signInCalls++
	g.lastPassword = password
	if g.signInErr != nil {
		return nil, g.signInErr
	}
	sess := &GatewaySession{UserID: g.identityID, Email: email, AccessToken: "token-pw"}
	g.current = sess
	return sess, nil
}

func (g *fakeGateway) SignUp(ctx context.Context, email, password string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.signUpCalls++
	if g.signUpErr != nil {
		return "", g.signUpErr
	}
	return g.identityID, nil
}

func (g *fakeGateway) SendOTP(ctx context.Context, email string, purpose Purpose) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sendOTPCalls++
	g.lastPurpose = purpose
	return g.sendOTPErr
}

func (g *fakeGateway) VerifyOTP(ctx context.Context, email, code string, purpose Purpose) (*GatewaySession, error) {
	g.mu.Lock()
	gate := g.verifyGate
	g.verifyCalls++
	g.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.verifyErr != nil {
		return nil, g.verifyErr
	}
	if code != g.acceptCode {
		return nil, ErrChallengeInvalid
	}
	g.current = g.verifySession
	return g.verifySession, nil
}

func (g *fakeGateway) UpdatePassword(ctx context.Context, newPassword string) (*GatewaySession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.updateCalls++
	g.lastPassword = newPassword
	if g.updateErr != nil {
		return nil, g.updateErr
	}
	if g.updateSession != nil {
		g.current = g.updateSession
	}
	return g.updateSession, nil
}

func (g *fakeGateway) SignOut(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.signOutCalls++
	g.current = nil
	return nil
}

func (g *fakeGateway) SignInWithOAuth(ctx context.Context, provider, redirectTo string) error {
	return nil
}

func (g *fakeGateway) Session(ctx context.Context) (*GatewaySession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current, nil
}

func (g *fakeGateway) liveSession() *GatewaySession {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current
}

type fakeProfiles struct {
	mu       sync.Mutex
	byID     map[string]Profile
	findErr  error
	upErr    error
	upserted int
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{byID: make(map[string]Profile)}
}

func (p *fakeProfiles) UpsertProfile(ctx context.Context, profile Profile) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.upErr != nil {
		return p.upErr
	}
	p.byID[profile.ID] = profile
	p.upserted++
	return nil
}

func (p *fakeProfiles) GetProfile(ctx context.Context, id string) (*Profile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if profile, ok := p.byID[id]; ok {
		out := profile
		return &out, nil
	}
	return nil, nil
}

func (p *fakeProfiles) FindProfileByEmail(ctx context.Context, email string) (*Profile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.findErr != nil {
		return nil, p.findErr
	}
	for _, profile := range p.byID {
		if profile.Email == email {
			out := profile
			return &out, nil
		}
	}
	return nil, nil
}

func (p *fakeProfiles) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.byID)
}

func waitForLoading(t *testing.T, f *AuthFlow) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if f.Loading() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("flow never entered the loading state")
}

func signInToChallenge(t *testing.T, f *AuthFlow) {
	t.Helper()
	if err := f.SubmitSignIn(context.Background(), "alice@example.com", "Password1"); err != nil {
		t.Fatalf("SubmitSignIn failed: %v", err)
	}
	if f.Phase() != PhaseChallengeIssued {
		t.Fatalf("expected PhaseChallengeIssued, got %v", f.Phase())
	}
}
