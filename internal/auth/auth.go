// Package auth is the opaque session gate consulted before any chat operation
// is reachable. It issues bearer tokens on login and answers yes/no for a
// presented token; credential validation itself is intentionally minimal.
package auth

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// CookieName is the session cookie the HTTP layer sets and checks.
const CookieName = "user-session"

// SessionTTL is how long an issued session stays valid.
const SessionTTL = 7 * 24 * time.Hour

// ErrUnauthorized reports a missing or invalid session.
var ErrUnauthorized = errors.New("unauthorized")

// Gate tracks issued sessions in memory.
type Gate struct {
	mu       sync.Mutex
	sessions map[string]time.Time // token -> expiry
}

// NewGate creates an empty session gate.
func NewGate() *Gate {
	return &Gate{sessions: make(map[string]time.Time)}
}

// Login validates the credentials and returns a fresh session token. Any
// non-empty email/password pair is accepted; real credential checks live
// outside this system.
func (g *Gate) Login(email, password string) (string, error) {
	if email == "" || password == "" {
		return "", errors.New("email and password are required")
	}
	token := uuid.NewString()
	g.mu.Lock()
	g.sessions[token] = time.Now().Add(SessionTTL)
	g.mu.Unlock()
	return token, nil
}

// Check reports whether the token belongs to a live session.
func (g *Gate) Check(token string) bool {
	if token == "" {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	expiry, ok := g.sessions[token]
	if !ok {
		return false
	}
	if time.Now().After(expiry) {
		delete(g.sessions, token)
		return false
	}
	return true
}
