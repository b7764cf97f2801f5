// Package session keeps per-session conversation history across requests.
package session

import (
	"errors"
	"regexp"
	"time"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var (
	// ErrNotFound is returned when appending to a session that was never created.
	ErrNotFound = errors.New("session not found")
	// ErrInvalidID is returned for session IDs that cannot be used as a storage key.
	ErrInvalidID = errors.New("invalid session id")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("session store closed")
)

var validID = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ValidID reports whether id can name a session.
func ValidID(id string) bool {
	return validID.MatchString(id)
}

// Message is one turn of a conversation.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation is the persisted context of one session.
type Conversation struct {
	SessionID string         `json:"session_id"`
	UserID    string         `json:"user_id,omitempty"`
	Metadata  map[string]any `json:"metadata"`
	History   []Message      `json:"history"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Recent returns up to n of the latest messages, oldest first.
func (c *Conversation) Recent(n int) []Message {
	if c == nil || n <= 0 {
		return nil
	}
	if len(c.History) <= n {
		return c.History
	}
	return c.History[len(c.History)-n:]
}

func (c *Conversation) clone() *Conversation {
	out := *c
	out.History = append([]Message(nil), c.History...)
	out.Metadata = make(map[string]any, len(c.Metadata))
	for k, v := range c.Metadata {
		out.Metadata[k] = v
	}
	return &out
}

// Store persists conversations keyed by session ID.
// Returned conversations are copies; mutating them does not affect the store.
type Store interface {
	// Get returns the conversation, or nil when the session does not exist.
	Get(sessionID string) (*Conversation, error)
	// Create starts a conversation, replacing any existing one with the same ID.
	Create(sessionID, userID string, metadata map[string]any) (*Conversation, error)
	// AppendHistory adds msg to the end of the session history.
	AppendHistory(sessionID string, msg Message) error
	// Close releases the store. Later calls fail with ErrClosed.
	Close() error
}

// GetOrCreate returns the existing conversation or creates one.
func GetOrCreate(s Store, sessionID, userID string, metadata map[string]any) (*Conversation, error) {
	conv, err := s.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if conv != nil {
		return conv, nil
	}
	return s.Create(sessionID, userID, metadata)
}
