package chat

import "time"

// Role tags who produced a message.
type Role string

const (
	// RoleSystem marks prompt scaffolding. Never exposed to callers.
	RoleSystem Role = "system"
	// RoleUser marks messages typed by the user.
	RoleUser Role = "user"
	// RoleAssistant marks endpoint replies.
	RoleAssistant Role = "assistant"
)

// Message is one conversation turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Session is one stored conversation. Created by the endpoint on the first
// send, never by the client directly.
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"session_name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// filterVisible drops system-role entries. Idempotent; returns a fresh slice
// so callers never alias internal buffers.
func filterVisible(msgs []Message) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == RoleSystem {
			continue
		}
		out = append(out, m)
	}
	return out
}
