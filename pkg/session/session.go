package session

import (
	"context"
	"sync"
)

// Role of the logged in account
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleArea   Role = "area"
	RoleWorker Role = "worker"
)

// User is the profile returned at login
type User struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name,omitempty"`
	AreaID   uint   `json:"area_id,omitempty"`
}

// Session holds the credentials of one logged in account. It is created at
// login and handed to whatever needs it; nothing reads it from globals.
type Session struct {
	mu    sync.RWMutex
	token string
	role  Role
	user  User
}

// New creates a session from a login response
func New(token string, role Role, user User) *Session {
	return &Session{token: token, role: role, user: user}
}

// Set replaces the credentials, e.g. after a fresh login
func (s *Session) Set(token string, role Role, user User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token, s.role, s.user = token, role, user
}

// Clear forgets the credentials. Called when the backend rejects the token.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token, s.role, s.user = "", "", User{}
}

func (s *Session) Valid() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != ""
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) Role() Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.role
}

func (s *Session) User() User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// Authorization is the header value for authenticated requests, empty when
// logged out
func (s *Session) Authorization() string {
	if t := s.Token(); t != "" {
		return "Bearer " + t
	}
	return ""
}

type ctxKey struct{}

// NewContext returns a context carrying the session
func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext extracts the session, if any
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(*Session)
	return s, ok && s != nil
}
