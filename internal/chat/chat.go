// Package chat defines the conversation domain model shared by the store,
// repository and controller.
package chat

import (
	"time"

	"github.com/google/uuid"
)

// Message roles. The persisted record shape only ever carries these three.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// DefaultTitle is the sentinel title of a conversation that has not yet
// derived one from its first user message.
const DefaultTitle = "New Chat"

// titleLimit is the maximum number of runes kept when deriving a title.
const titleLimit = 30

// Message is a single conversational turn. Messages are immutable once
// appended to a conversation; the only exception is the in-progress assistant
// reply, which the controller keeps in a separate pending slot until the
// stream settles.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Conversation is a titled, ordered sequence of messages keyed by a unique id.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	Messages  []Message `json:"messages"`
}

// NewConversation creates an empty conversation with a fresh id and the
// default title.
func NewConversation() *Conversation {
	return &Conversation{
		ID:        uuid.NewString(),
		Title:     DefaultTitle,
		CreatedAt: time.Now().UTC(),
		Messages:  []Message{},
	}
}

// Append adds a message to the end of the conversation.
func (c *Conversation) Append(role, content string) {
	c.Messages = append(c.Messages, Message{Role: role, Content: content})
}

// Clone returns a deep copy. The repository mirror hands clones across its
// boundary so callers never alias the cached message slice.
func (c *Conversation) Clone() *Conversation {
	cp := *c
	cp.Messages = make([]Message, len(c.Messages))
	copy(cp.Messages, c.Messages)
	return &cp
}

// DeriveTitle produces a conversation title from the first user message:
// the first 30 runes, with an ellipsis when the message was longer.
func DeriveTitle(text string) string {
	runes := []rune(text)
	if len(runes) <= titleLimit {
		return text
	}
	return string(runes[:titleLimit]) + "..."
}
