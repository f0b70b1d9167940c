// Package chat answers questions against the indexed corpus. It combines
// retrieval, conversational memory, greeting detection, and a lexical
// confidence gate into a single request/response cycle.
package chat

import (
	"github.com/hyperjump/kotae/internal/models"
)

// Conversation is an append-only log of turns for one session. It is not
// safe for concurrent use; the caller serializes access per session.
type Conversation struct {
	turns []models.Turn
}

// NewConversation creates an empty conversation.
func NewConversation() *Conversation {
	return &Conversation{}
}

// Append adds a turn to the log.
func (c *Conversation) Append(speaker models.Speaker, text string) {
	c.turns = append(c.turns, models.Turn{Speaker: speaker, Text: text})
}

// History returns all turns in order.
func (c *Conversation) History() []models.Turn {
	return c.turns
}

// Window returns the most recent n turns, or all of them when fewer
// exist. n of zero or less returns nil.
func (c *Conversation) Window(n int) []models.Turn {
	if n <= 0 {
		return nil
	}
	if n >= len(c.turns) {
		return c.turns
	}
	return c.turns[len(c.turns)-n:]
}

// Len returns the number of turns.
func (c *Conversation) Len() int {
	return len(c.turns)
}
