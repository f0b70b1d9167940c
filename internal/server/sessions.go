package server

import (
	"sync"

	"github.com/google/uuid"

	"github.com/hyperjump/kotae/internal/chat"
)

// session pairs a conversation with its own lock. The chat engine assumes
// a single writer per session, so concurrent requests for the same
// session are serialized here.
type session struct {
	mu   sync.Mutex
	conv *chat.Conversation
}

// sessionRegistry owns the conversations of all active sessions.
type sessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*session
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{sessions: make(map[string]*session)}
}

// acquire returns the locked session for id, creating it if needed. An
// empty id gets a fresh session under a new UUID. The caller must unlock
// the session when done. The possibly-new id is returned alongside.
func (r *sessionRegistry) acquire(id string) (*session, string) {
	r.mu.Lock()
	if id == "" {
		id = uuid.NewString()
	}
	sess, ok := r.sessions[id]
	if !ok {
		sess = &session{conv: chat.NewConversation()}
		r.sessions[id] = sess
	}
	r.mu.Unlock()

	sess.mu.Lock()
	return sess, id
}

// count returns the number of active sessions.
func (r *sessionRegistry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
