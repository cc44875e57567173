package chat

import (
	"context"
	"errors"
)

var (
	// ErrAuthRequired is returned when no authenticated identity is
	// available for a chat operation.
	ErrAuthRequired = errors.New("authentication required")
	// ErrEmptyMessage is returned when a send carries no content.
	ErrEmptyMessage = errors.New("empty message")
	// ErrSessionNotFound is returned when the endpoint has no session under
	// the given id for this identity.
	ErrSessionNotFound = errors.New("chat session not found")
	// ErrEndpointUnavailable wraps transport and server failures from the
	// chat endpoint.
	ErrEndpointUnavailable = errors.New("chat endpoint unavailable")
)

// Identity is the authenticated caller context attached to every endpoint
// call.
type Identity struct {
	UserID string
	Token  string
}

// IdentitySource resolves the current identity. Implementations return
// (nil, nil) when no one is signed in; an error means resolution itself
// failed.
type IdentitySource interface {
	Identity(ctx context.Context) (*Identity, error)
}

// CompletionRequest is one send. An empty SessionID asks the endpoint to
// create a session; the response then carries the new id.
type CompletionRequest struct {
	Identity  Identity
	SessionID string
	Message   string
	History   []Message
}

// CompletionResponse is the endpoint's reply to a send.
type CompletionResponse struct {
	Reply     string
	SessionID string
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound)
}

// API is the remote chat endpoint consumed by the orchestrator.
// Implementations signal an unknown session with [ErrSessionNotFound] and a
// rejected identity with [ErrAuthRequired].
type API interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	ListSessions(ctx context.Context, identity Identity) ([]Session, error)
	FetchSession(ctx context.Context, identity Identity, sessionID string) ([]Message, error)
	DeleteSession(ctx context.Context, identity Identity, sessionID string) error
}
