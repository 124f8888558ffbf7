package session

import (
	"sync"

	"github.com/dvergara/docuchat/internal/model/chat"
)

// State is a read-only snapshot of the session, safe to hand to renderers.
type State struct {
	Authenticated bool            `json:"authenticated"`
	Username      string          `json:"username"`
	History       chat.Transcript `json:"history"`
	SelectedChat  string          `json:"selectedChat"`
	SavedChats    []string        `json:"savedChats"`
	Generation    int             `json:"uploadSlotGeneration"`
}

// Session is the mutable per-session state. The demo deployment has exactly
// one user, so authentication is fixed at construction.
type Session struct {
	mu sync.RWMutex

	authenticated bool
	username      string
	history       chat.Transcript
	documentCtx   string
	selectedChat  string
	savedChats    []string
	generation    int
	pendingUpload string
}

// New returns a Session for the given user with empty working state.
func New(username string) *Session {
	return &Session{
		authenticated: true,
		username:      username,
	}
}

// Snapshot returns a consistent copy of the observable state.
func (s *Session) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{
		Authenticated: s.authenticated,
		Username:      s.username,
		History:       s.history.Clone(),
		SelectedChat:  s.selectedChat,
		SavedChats:    append([]string(nil), s.savedChats...),
		Generation:    s.generation,
	}
}

// Username returns the session owner.
func (s *Session) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.username
}

// History returns a copy of the working history.
func (s *Session) History() chat.Transcript {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.Clone()
}

// SetHistory replaces the working history.
func (s *Session) SetHistory(history chat.Transcript) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = history.Clone()
}

// Append adds messages to the working history in order.
func (s *Session) Append(messages ...chat.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, messages...)
}

// DocumentContext returns the pending extracted document text.
func (s *Session) DocumentContext() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.documentCtx
}

// SetDocumentContext stores extracted text for the next turn.
func (s *Session) SetDocumentContext(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documentCtx = text
}

// SelectedChat returns the persisted chat id, or "" for an unsaved chat.
func (s *Session) SelectedChat() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedChat
}

// SetSelectedChat records which stored chat the working history belongs to.
func (s *Session) SetSelectedChat(chatID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectedChat = chatID
}

// SavedChats returns the cached chat id list.
func (s *Session) SavedChats() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.savedChats...)
}

// SetSavedChats refreshes the cached chat id list.
func (s *Session) SetSavedChats(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.savedChats = append([]string(nil), ids...)
}

// Generation returns the current upload slot generation.
func (s *Session) Generation() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// AdvanceGeneration invalidates the current upload slot so stale uploads
// cannot be resubmitted, and returns the new generation.
func (s *Session) AdvanceGeneration() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.pendingUpload = ""
	return s.generation
}

// PendingUpload returns the stashed upload path for the current slot.
func (s *Session) PendingUpload() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pendingUpload
}

// SetPendingUpload records the stashed file for the current slot.
func (s *Session) SetPendingUpload(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingUpload = path
}

// Clear empties the working conversation: history, document context and
// selection. The saved chat list and generation are managed separately.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
	s.documentCtx = ""
	s.selectedChat = ""
}
