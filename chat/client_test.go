package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIdentity() Identity {
	return Identity{UserID: "identity-1", Token: "token-1"}
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(ClientConfig{
		BaseURL:    srv.URL,
		MaxRetries: 2,
		RetryBase:  time.Millisecond,
	})
	require.NoError(t, err)
	return client, srv
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	_, err := NewClient(ClientConfig{})
	assert.Error(t, err)
}

func TestClientComplete(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/chat", r.URL.Path)
		require.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))

		var payload completionPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "hi", payload.Message)
		assert.Equal(t, "identity-1", payload.UserID)
		assert.Empty(t, payload.SessionID)

		json.NewEncoder(w).Encode(completionReply{Message: "hello there", SessionID: "session-1"})
	}))

	resp, err := client.Complete(context.Background(), CompletionRequest{
		Identity: testIdentity(),
		Message:  "hi",
	})
	require.NoError(t, err)
	assert.Equal(t, "hello there", resp.Reply)
	assert.Equal(t, "session-1", resp.SessionID)
}

func TestClientListSessions(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/sessions", r.URL.Path)
		require.Equal(t, "identity-1", r.URL.Query().Get("user_id"))

		json.NewEncoder(w).Encode(sessionsReply{Sessions: []Session{
			{ID: "session-1", Title: "first chat"},
		}})
	}))

	sessions, err := client.ListSessions(context.Background(), testIdentity())
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "first chat", sessions[0].Title)
}

func TestClientFetchSession(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/session", r.URL.Path)
		require.Equal(t, "session-1", r.URL.Query().Get("session_id"))

		var reply sessionReply
		reply.Session.ChatHistory = []Message{
			{Role: RoleSystem, Content: "persona"},
			{Role: RoleUser, Content: "hi"},
		}
		json.NewEncoder(w).Encode(reply)
	}))

	msgs, err := client.FetchSession(context.Background(), testIdentity(), "session-1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleUser, msgs[1].Role)
}

func TestClientStatusMapping(t *testing.T) {
	var status atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(status.Load()))
	}))
	ctx := context.Background()

	status.Store(http.StatusNotFound)
	_, err := client.FetchSession(ctx, testIdentity(), "gone")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	status.Store(http.StatusUnauthorized)
	_, err = client.Complete(ctx, CompletionRequest{Identity: testIdentity(), Message: "hi"})
	assert.ErrorIs(t, err, ErrAuthRequired)

	status.Store(http.StatusBadRequest)
	_, err = client.Complete(ctx, CompletionRequest{Identity: testIdentity(), Message: "hi"})
	assert.ErrorIs(t, err, ErrEndpointUnavailable)
}

func TestClientRetriesTransientReadFailures(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(sessionsReply{Sessions: nil})
	}))

	sessions, err := client.ListSessions(context.Background(), testIdentity())
	require.NoError(t, err)
	assert.Empty(t, sessions)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClientDoesNotRetrySends(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := client.Complete(context.Background(), CompletionRequest{Identity: testIdentity(), Message: "hi"})
	assert.ErrorIs(t, err, ErrEndpointUnavailable)
	assert.Equal(t, int32(1), calls.Load(), "sends must never be retried")
}

func TestClientNotFoundIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := client.FetchSession(context.Background(), testIdentity(), "gone")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClientDeleteSession(t *testing.T) {
	var deleted atomic.Bool
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		require.Equal(t, "/session", r.URL.Path)
		require.Equal(t, "session-1", r.URL.Query().Get("session_id"))
		deleted.Store(true)
		w.WriteHeader(http.StatusNoContent)
	}))

	require.NoError(t, client.DeleteSession(context.Background(), testIdentity(), "session-1"))
	assert.True(t, deleted.Load())
}
