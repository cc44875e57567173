package chat

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

const defaultHistoryLimit = 10

// Options tunes an orchestrator. The zero value is usable.
type Options struct {
	// HistoryLimit caps how many prior turns accompany a send. Defaults to
	// ten when zero or negative.
	HistoryLimit int
	// Logger receives warnings for best-effort paths. Nil disables logging.
	Logger *slog.Logger
}

// Orchestrator drives one conversation for one UI session. All methods are
// safe for concurrent use. The message buffer it exposes never contains
// system-role entries.
type Orchestrator struct {
	api          API
	source       IdentitySource
	historyLimit int
	logger       *slog.Logger

	mu         sync.Mutex
	sessionID  string
	messages   []Message
	creating   chan struct{}
	sendCancel context.CancelFunc
	// generation guards the message buffer: bumped per send and by every
	// state reset, so a superseded send cannot append its reply.
	generation uint64
	// sessionEpoch guards the session pointer: bumped only when the caller
	// switches or clears the session, so a send that was merely superseded
	// can still attach the session it created.
	sessionEpoch uint64
}

// NewOrchestrator binds the endpoint and identity source.
func NewOrchestrator(api API, source IdentitySource, opts Options) *Orchestrator {
	limit := opts.HistoryLimit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return &Orchestrator{
		api:          api,
		source:       source,
		historyLimit: limit,
		logger:       opts.Logger,
	}
}

// SessionID reports the active session id, empty before the first send
// completes.
func (o *Orchestrator) SessionID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sessionID
}

// Messages returns a copy of the visible conversation.
func (o *Orchestrator) Messages() []Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Message, len(o.messages))
	copy(out, o.messages)
	return out
}

// SendMessage submits one user turn and returns the assistant reply. The
// user message is appended optimistically before the round-trip. Without an
// active session the endpoint creates one; concurrent first sends share a
// single creation so at most one session ever results.
//
// Cancellation, via ctx, [Orchestrator.CancelSend], or a newer send
// superseding this one, is reported as [context.Canceled] and the reply is
// discarded. The optimistic user message stays in the buffer either way.
func (o *Orchestrator) SendMessage(ctx context.Context, text string) (*Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}
	identity, err := o.identity(ctx)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	if o.sendCancel != nil {
		o.sendCancel()
	}
	sctx, cancel := context.WithCancel(ctx)
	o.sendCancel = cancel
	o.generation++
	gen := o.generation
	epoch := o.sessionEpoch
	history := o.recentHistoryLocked()
	o.messages = append(o.messages, Message{Role: RoleUser, Content: text})
	o.mu.Unlock()
	defer cancel()

	sessionID, owns, err := o.resolveSession(sctx, ctx)
	if err != nil {
		return nil, err
	}
	if owns {
		defer o.settleCreate(epoch)
	}

	resp, err := o.api.Complete(sctx, CompletionRequest{
		Identity:  *identity,
		SessionID: sessionID,
		Message:   text,
		History:   history,
	})
	if err != nil {
		if cause := cancelCause(sctx, ctx); cause != nil {
			return nil, cause
		}
		return nil, err
	}

	reply := Message{Role: RoleAssistant, Content: resp.Reply}

	o.mu.Lock()
	if o.sessionEpoch == epoch && o.sessionID == "" && resp.SessionID != "" {
		o.sessionID = resp.SessionID
	}
	if o.generation != gen {
		o.mu.Unlock()
		return nil, context.Canceled
	}
	o.messages = append(o.messages, reply)
	o.sendCancel = nil
	o.mu.Unlock()
	return &reply, nil
}

// CancelSend aborts the in-flight send, if any. The pending reply is
// discarded on arrival.
func (o *Orchestrator) CancelSend() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sendCancel != nil {
		o.sendCancel()
		o.sendCancel = nil
	}
	o.generation++
}

// StartNewSession aborts any in-flight send and clears the buffer and
// session pointer. The next send creates a fresh session.
func (o *Orchestrator) StartNewSession() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.resetLocked()
}

// LoadSession replaces the conversation with a stored one, system entries
// filtered out. An unknown id clears the local state and returns
// [ErrSessionNotFound] so the caller never points at a dead session.
func (o *Orchestrator) LoadSession(ctx context.Context, sessionID string) error {
	identity, err := o.identity(ctx)
	if err != nil {
		return err
	}
	msgs, err := o.api.FetchSession(ctx, *identity, sessionID)
	if err != nil {
		if isNotFound(err) {
			o.mu.Lock()
			o.resetLocked()
			o.mu.Unlock()
			return ErrSessionNotFound
		}
		return err
	}

	o.mu.Lock()
	o.resetLocked()
	o.sessionID = sessionID
	o.messages = filterVisible(msgs)
	o.mu.Unlock()
	return nil
}

// Sessions lists the identity's stored sessions, most recently updated
// first. An empty list is not an error.
func (o *Orchestrator) Sessions(ctx context.Context) ([]Session, error) {
	identity, err := o.identity(ctx)
	if err != nil {
		return nil, err
	}
	sessions, err := o.api.ListSessions(ctx, *identity)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	return sessions, nil
}

// DeleteSession removes a stored session. Deleting the active session also
// clears the local conversation.
func (o *Orchestrator) DeleteSession(ctx context.Context, sessionID string) error {
	identity, err := o.identity(ctx)
	if err != nil {
		return err
	}
	if err := o.api.DeleteSession(ctx, *identity, sessionID); err != nil {
		if isNotFound(err) {
			return ErrSessionNotFound
		}
		return err
	}

	o.mu.Lock()
	if o.sessionID == sessionID {
		o.resetLocked()
	}
	o.mu.Unlock()
	return nil
}

func (o *Orchestrator) identity(ctx context.Context) (*Identity, error) {
	identity, err := o.source.Identity(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthRequired, err)
	}
	if identity == nil || identity.UserID == "" {
		return nil, ErrAuthRequired
	}
	return identity, nil
}

// resetLocked aborts any in-flight send and returns to the empty
// un-sessioned state. Callers hold o.mu.
func (o *Orchestrator) resetLocked() {
	if o.sendCancel != nil {
		o.sendCancel()
		o.sendCancel = nil
	}
	o.generation++
	o.sessionEpoch++
	o.sessionID = ""
	o.messages = nil
}

// recentHistoryLocked caps the turns sent alongside a message. The message
// being sent is not part of its own history. Callers hold o.mu.
func (o *Orchestrator) recentHistoryLocked() []Message {
	visible := filterVisible(o.messages)
	if len(visible) > o.historyLimit {
		visible = visible[len(visible)-o.historyLimit:]
	}
	return visible
}

// resolveSession returns the session id to send with, empty when this send
// owns the lazy creation. A send arriving while another send is already
// creating waits for that creation instead of starting a second one; if the
// creation yields nothing the waiter takes over.
func (o *Orchestrator) resolveSession(sctx, parent context.Context) (string, bool, error) {
	for {
		o.mu.Lock()
		if o.sessionID != "" {
			id := o.sessionID
			o.mu.Unlock()
			return id, false, nil
		}
		if o.creating == nil {
			o.creating = make(chan struct{})
			o.mu.Unlock()
			return "", true, nil
		}
		wait := o.creating
		o.mu.Unlock()

		select {
		case <-wait:
		case <-sctx.Done():
			if cause := cancelCause(sctx, parent); cause != nil {
				return "", false, cause
			}
			return "", false, sctx.Err()
		}
	}
}

// settleCreate releases the creation guard once the owning send resolved,
// whether or not a session resulted.
func (o *Orchestrator) settleCreate(epoch uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.creating != nil {
		close(o.creating)
		o.creating = nil
	}
	if o.sessionEpoch != epoch && o.logger != nil {
		o.logger.Debug("chat: session creation settled after a reset")
	}
}

// cancelCause distinguishes a deliberate local cancel from the parent
// context ending. Returns nil when the send context is still live.
func cancelCause(sctx, parent context.Context) error {
	if sctx.Err() == nil {
		return nil
	}
	if parent.Err() != nil {
		return parent.Err()
	}
	return context.Canceled
}
