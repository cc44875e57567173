package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	identity *Identity
	err      error
}

func (s *fakeSource) Identity(context.Context) (*Identity, error) {
	return s.identity, s.err
}

func signedInSource() *fakeSource {
	return &fakeSource{identity: &Identity{UserID: "identity-1", Token: "token-1"}}
}

type fakeAPI struct {
	mu sync.Mutex

	reply       string
	sessionID   string
	completeErr error
	fetchErr    error

	completeCalls int
	createCalls   int
	lastRequest   CompletionRequest

	sessions []Session
	stored   map[string][]Message
	deleted  []string

	// gate, when non-nil, blocks Complete until closed.
	gate    chan struct{}
	entered chan struct{}
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		reply:     "hello there",
		sessionID: "session-1",
		stored:    make(map[string][]Message),
		entered:   make(chan struct{}, 16),
	}
}

func (a *fakeAPI) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	a.mu.Lock()
	a.completeCalls++
	if req.SessionID == "" {
		a.createCalls++
	}
	a.lastRequest = req
	gate := a.gate
	a.mu.Unlock()

	select {
	case a.entered <- struct{}{}:
	default:
	}

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.completeErr != nil {
		return nil, a.completeErr
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = a.sessionID
	}
	return &CompletionResponse{Reply: a.reply, SessionID: sessionID}, nil
}

func (a *fakeAPI) ListSessions(ctx context.Context, identity Identity) ([]Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Session, len(a.sessions))
	copy(out, a.sessions)
	return out, nil
}

func (a *fakeAPI) FetchSession(ctx context.Context, identity Identity, sessionID string) ([]Message, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fetchErr != nil {
		return nil, a.fetchErr
	}
	msgs, ok := a.stored[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (a *fakeAPI) DeleteSession(ctx context.Context, identity Identity, sessionID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.stored[sessionID]; !ok && len(a.stored) > 0 {
		return ErrSessionNotFound
	}
	delete(a.stored, sessionID)
	a.deleted = append(a.deleted, sessionID)
	return nil
}

func TestSendMessageRequiresIdentity(t *testing.T) {
	o := NewOrchestrator(newFakeAPI(), &fakeSource{}, Options{})

	_, err := o.SendMessage(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrAuthRequired)
	assert.Empty(t, o.Messages())
}

func TestSendMessageRejectsEmpty(t *testing.T) {
	o := NewOrchestrator(newFakeAPI(), signedInSource(), Options{})

	_, err := o.SendMessage(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestSendMessageCreatesSessionLazily(t *testing.T) {
	api := newFakeAPI()
	o := NewOrchestrator(api, signedInSource(), Options{})

	require.Empty(t, o.SessionID())

	reply, err := o.SendMessage(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, RoleAssistant, reply.Role)
	assert.Equal(t, "hello there", reply.Content)
	assert.Equal(t, "session-1", o.SessionID())
	assert.Equal(t, 1, api.createCalls)

	msgs := o.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, Message{Role: RoleUser, Content: "hi"}, msgs[0])
	assert.Equal(t, Message{Role: RoleAssistant, Content: "hello there"}, msgs[1])

	// The second send reuses the session.
	_, err = o.SendMessage(context.Background(), "again")
	require.NoError(t, err)
	assert.Equal(t, 1, api.createCalls)
	assert.Equal(t, "session-1", api.lastRequest.SessionID)
}

func TestConcurrentSendsShareOneSession(t *testing.T) {
	api := newFakeAPI()
	o := NewOrchestrator(api, signedInSource(), Options{})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = o.SendMessage(context.Background(), "hi")
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, context.Canceled)
		}
	}
	assert.Equal(t, 1, api.createCalls, "concurrent first sends must share one session creation")
	assert.Equal(t, "session-1", o.SessionID())
}

func TestCancelSendDiscardsReply(t *testing.T) {
	api := newFakeAPI()
	api.gate = make(chan struct{})
	o := NewOrchestrator(api, signedInSource(), Options{})

	done := make(chan error, 1)
	go func() {
		_, err := o.SendMessage(context.Background(), "hi")
		done <- err
	}()

	select {
	case <-api.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("send never reached the endpoint")
	}

	o.CancelSend()
	close(api.gate)

	err := <-done
	assert.ErrorIs(t, err, context.Canceled)

	msgs := o.Messages()
	require.Len(t, msgs, 1, "the cancelled reply must not be appended")
	assert.Equal(t, RoleUser, msgs[0].Role)
}

func TestSendMessageCapsHistoryAndFiltersSystem(t *testing.T) {
	api := newFakeAPI()
	stored := []Message{{Role: RoleSystem, Content: "persona prompt"}}
	for i := 0; i < 12; i++ {
		stored = append(stored,
			Message{Role: RoleUser, Content: "q"},
			Message{Role: RoleAssistant, Content: "a"},
		)
	}
	api.stored["session-1"] = stored
	o := NewOrchestrator(api, signedInSource(), Options{})

	require.NoError(t, o.LoadSession(context.Background(), "session-1"))
	require.Len(t, o.Messages(), 24, "system entries are filtered on load")

	_, err := o.SendMessage(context.Background(), "newest question")
	require.NoError(t, err)

	history := api.lastRequest.History
	require.Len(t, history, 10)
	for _, m := range history {
		assert.NotEqual(t, RoleSystem, m.Role)
		assert.NotEqual(t, "newest question", m.Content, "a message is not part of its own history")
	}
}

func TestStartNewSessionClearsState(t *testing.T) {
	api := newFakeAPI()
	o := NewOrchestrator(api, signedInSource(), Options{})

	_, err := o.SendMessage(context.Background(), "hi")
	require.NoError(t, err)
	require.NotEmpty(t, o.SessionID())

	o.StartNewSession()
	assert.Empty(t, o.SessionID())
	assert.Empty(t, o.Messages())

	api.sessionID = "session-2"
	_, err = o.SendMessage(context.Background(), "fresh start")
	require.NoError(t, err)
	assert.Equal(t, "session-2", o.SessionID())
	assert.Equal(t, 2, api.createCalls)
}

func TestLoadSessionNotFoundResetsState(t *testing.T) {
	api := newFakeAPI()
	api.stored["session-1"] = []Message{{Role: RoleUser, Content: "hi"}}
	o := NewOrchestrator(api, signedInSource(), Options{})

	require.NoError(t, o.LoadSession(context.Background(), "session-1"))
	require.Equal(t, "session-1", o.SessionID())

	err := o.LoadSession(context.Background(), "session-gone")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Empty(t, o.SessionID())
	assert.Empty(t, o.Messages())
}

func TestSessionsOrderedByRecency(t *testing.T) {
	api := newFakeAPI()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	api.sessions = []Session{
		{ID: "old", UpdatedAt: base},
		{ID: "newest", UpdatedAt: base.Add(2 * time.Hour)},
		{ID: "mid", UpdatedAt: base.Add(time.Hour)},
	}
	o := NewOrchestrator(api, signedInSource(), Options{})

	sessions, err := o.Sessions(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 3)
	assert.Equal(t, "newest", sessions[0].ID)
	assert.Equal(t, "mid", sessions[1].ID)
	assert.Equal(t, "old", sessions[2].ID)
}

func TestDeleteSessionClearsCurrent(t *testing.T) {
	api := newFakeAPI()
	api.stored["session-1"] = []Message{{Role: RoleUser, Content: "hi"}}
	api.stored["session-2"] = []Message{{Role: RoleUser, Content: "yo"}}
	o := NewOrchestrator(api, signedInSource(), Options{})

	require.NoError(t, o.LoadSession(context.Background(), "session-1"))

	// Deleting another session leaves the current one alone.
	require.NoError(t, o.DeleteSession(context.Background(), "session-2"))
	assert.Equal(t, "session-1", o.SessionID())

	require.NoError(t, o.DeleteSession(context.Background(), "session-1"))
	assert.Empty(t, o.SessionID())
	assert.Empty(t, o.Messages())
}

func TestStartNewSessionCancelsInFlightSend(t *testing.T) {
	api := newFakeAPI()
	api.gate = make(chan struct{})
	o := NewOrchestrator(api, signedInSource(), Options{})

	done := make(chan error, 1)
	go func() {
		_, err := o.SendMessage(context.Background(), "hi")
		done <- err
	}()

	select {
	case <-api.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("send never reached the endpoint")
	}

	o.StartNewSession()
	close(api.gate)

	err := <-done
	assert.ErrorIs(t, err, context.Canceled)

	assert.Empty(t, o.Messages(), "the new session must start without carried-over messages")
	assert.Empty(t, o.SessionID(), "the superseded send must not attach its session")
}
