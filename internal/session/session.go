// Package session holds the mutable repository session shared between the
// control API and the processing loop. The loop re-reads the selected context
// and collection before every record registration, so an operator switching
// projects mid-cycle takes effect on the next candidate.
package session

import "sync"

// State is the observable session selection.
type State struct {
	User       string `json:"user"`
	Context    string `json:"context"`
	Collection string `json:"collection"`
	LoggedIn   bool   `json:"logged_in"`
}

// Session is safe for concurrent use.
type Session struct {
	mu    sync.RWMutex
	state State
}

// New creates a session pre-selected to the given context and collection.
func New(contextID, collectionID string) *Session {
	return &Session{state: State{Context: contextID, Collection: collectionID}}
}

// Snapshot returns a copy of the current selection.
func (s *Session) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// SetLogin records a successful login.
func (s *Session) SetLogin(user string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.User = user
	s.state.LoggedIn = true
}

// ClearLogin records a logout. The context selection survives so a re-login
// resumes where the operator left off.
func (s *Session) ClearLogin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.User = ""
	s.state.LoggedIn = false
}

// SetContext switches the active project context.
func (s *Session) SetContext(contextID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Context = contextID
}

// SetCollection switches the target collection for new records.
func (s *Session) SetCollection(collectionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Collection = collectionID
}
