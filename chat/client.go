package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

const (
	defaultRequestTimeout = 30 * time.Second
	defaultRetryBase      = 250 * time.Millisecond
	defaultMaxRetries     = 3
)

// ClientConfig tunes the HTTP client. Only BaseURL is required.
type ClientConfig struct {
	// BaseURL is the chat endpoint root, without a trailing slash.
	BaseURL string
	// Timeout caps each request. Defaults to 30s.
	Timeout time.Duration
	// MaxRetries bounds the retry loop on idempotent reads. Defaults to 3.
	MaxRetries uint64
	// RetryBase is the first backoff interval. Defaults to 250ms.
	RetryBase time.Duration
	// HTTPClient overrides the underlying client, for tests. Timeout is
	// ignored when set.
	HTTPClient *http.Client
}

// Client talks to the chat endpoint over HTTP with bearer authentication.
// Session reads retry transient failures with exponential backoff; sends and
// deletes never retry, a duplicate would alter the conversation.
type Client struct {
	baseURL    string
	http       *http.Client
	maxRetries uint64
	retryBase  time.Duration
}

var _ API = (*Client)(nil)

// NewClient validates the config and builds a client.
func NewClient(cfg ClientConfig) (*Client, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		return nil, fmt.Errorf("chat: base url is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("chat: invalid base url: %w", err)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultRequestTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = defaultMaxRetries
	}
	retryBase := cfg.RetryBase
	if retryBase <= 0 {
		retryBase = defaultRetryBase
	}
	return &Client{
		baseURL:    base,
		http:       httpClient,
		maxRetries: maxRetries,
		retryBase:  retryBase,
	}, nil
}

type completionPayload struct {
	Message   string    `json:"message"`
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id,omitempty"`
	History   []Message `json:"history,omitempty"`
}

type completionReply struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

// Complete posts one turn. Not retried.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	payload := completionPayload{
		Message:   req.Message,
		UserID:    req.Identity.UserID,
		SessionID: req.SessionID,
		History:   req.History,
	}
	var reply completionReply
	if err := c.call(ctx, http.MethodPost, "/chat", req.Identity, payload, &reply); err != nil {
		return nil, err
	}
	return &CompletionResponse{Reply: reply.Message, SessionID: reply.SessionID}, nil
}

type sessionsReply struct {
	Sessions []Session `json:"sessions"`
}

// ListSessions fetches the identity's stored sessions. Retried on transient
// failure.
func (c *Client) ListSessions(ctx context.Context, identity Identity) ([]Session, error) {
	path := "/sessions?user_id=" + url.QueryEscape(identity.UserID)
	var reply sessionsReply
	if err := c.callWithRetry(ctx, http.MethodGet, path, identity, nil, &reply); err != nil {
		return nil, err
	}
	return reply.Sessions, nil
}

type sessionReply struct {
	Session struct {
		ChatHistory []Message `json:"chat_history"`
	} `json:"session"`
}

// FetchSession fetches one stored conversation. Retried on transient
// failure.
func (c *Client) FetchSession(ctx context.Context, identity Identity, sessionID string) ([]Message, error) {
	path := "/session?session_id=" + url.QueryEscape(sessionID) +
		"&user_id=" + url.QueryEscape(identity.UserID)
	var reply sessionReply
	if err := c.callWithRetry(ctx, http.MethodGet, path, identity, nil, &reply); err != nil {
		return nil, err
	}
	return reply.Session.ChatHistory, nil
}

// DeleteSession removes one stored conversation. Not retried.
func (c *Client) DeleteSession(ctx context.Context, identity Identity, sessionID string) error {
	path := "/session?session_id=" + url.QueryEscape(sessionID) +
		"&user_id=" + url.QueryEscape(identity.UserID)
	return c.call(ctx, http.MethodDelete, path, identity, nil, nil)
}

func (c *Client) callWithRetry(
	ctx context.Context,
	method, path string,
	identity Identity,
	payload, out any,
) error {
	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(c.retryBase))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := c.call(ctx, method, path, identity, payload, out)
		if err == nil {
			return nil
		}
		if isRetryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func (c *Client) call(
	ctx context.Context,
	method, path string,
	identity Identity,
	payload, out any,
) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("chat: encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("chat: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+identity.Token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEndpointUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return ErrAuthRequired
	case resp.StatusCode == http.StatusNotFound:
		return ErrSessionNotFound
	default:
		// Drain so the connection can be reused before reporting.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: status %d", ErrEndpointUnavailable, resp.StatusCode)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrEndpointUnavailable, err)
	}
	return nil
}

// isRetryable limits retries to transport and server-side failures; client
// errors and auth rejections would only repeat.
func isRetryable(err error) bool {
	return errors.Is(err, ErrEndpointUnavailable)
}
