package conversation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/dvergara/docuchat/internal/extract"
	"github.com/dvergara/docuchat/internal/model/chat"
	"github.com/dvergara/docuchat/internal/session"
	"github.com/dvergara/docuchat/internal/store"
	"github.com/dvergara/docuchat/internal/upload"
)

var (
	ErrCompletionFailure = errors.New("completion backend failed")
	ErrStaleUploadSlot   = errors.New("upload slot is stale")
)

// documentContextPrefix labels injected document text for the model.
const documentContextPrefix = "Contexto del documento:\n"

// Completer is the completion backend seam; the ai package provides the real
// one and tests substitute fakes.
type Completer interface {
	Complete(ctx context.Context, messages chat.Transcript) (string, error)
}

// Notification is a UI-facing side effect emitted after a successful turn.
type Notification struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload,omitempty"`
}

const (
	NotifyScrollToBottom = "scroll_to_bottom"
	NotifyAnimateReply   = "animate_assistant_reply"
)

// Notifier delivers notifications to the presentation layer.
type Notifier interface {
	Notify(Notification)
}

// Options bound the request window and the injected document context.
type Options struct {
	HistoryWindow int
	ContextLimit  int
}

func (o Options) withDefaults() Options {
	if o.HistoryWindow <= 0 {
		o.HistoryWindow = 10
	}
	if o.ContextLimit <= 0 {
		o.ContextLimit = 50000
	}
	return o
}

// Service orchestrates turns and chat lifecycle operations for one session.
// A mutex serializes operations, matching the one-event-at-a-time session
// model; only the completion round trip blocks while holding it.
type Service struct {
	mu sync.Mutex

	session   *session.Session
	store     *store.Store
	completer Completer
	extractor *extract.Extractor
	uploads   *upload.Manager
	notifier  Notifier
	opts      Options
}

// NewService wires the conversation core.
func NewService(sess *session.Session, st *store.Store, completer Completer, extractor *extract.Extractor, uploads *upload.Manager, notifier Notifier, opts Options) *Service {
	return &Service{
		session:   sess,
		store:     st,
		completer: completer,
		extractor: extractor,
		uploads:   uploads,
		notifier:  notifier,
		opts:      opts.withDefaults(),
	}
}

// State returns the session snapshot for rendering.
func (s *Service) State() session.State {
	return s.session.Snapshot()
}

// RefreshSavedChats reloads the chat list cache from the store.
func (s *Service) RefreshSavedChats() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshSavedChatsLocked()
}

// Send runs one conversation turn: append the user message, inject pending
// document context, call the completion backend with the bounded window,
// append the reply and persist. Blank input is a no-op, not an error.
//
// On completion failure the optimistic user append stays in working history
// but is not persisted until a later successful turn.
func (s *Service) Send(ctx context.Context, input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.session.Append(chat.Message{Role: chat.RoleUser, Content: input})

	if docCtx := s.session.DocumentContext(); docCtx != "" {
		s.session.Append(chat.Message{
			Role:    chat.RoleSystem,
			Content: documentContextPrefix + truncateRunes(docCtx, s.opts.ContextLimit),
		})
	}

	if s.completer == nil {
		return "", fmt.Errorf("%w: backend not configured", ErrCompletionFailure)
	}

	window := s.session.History().Window(s.opts.HistoryWindow)
	reply, err := s.completer.Complete(ctx, window)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCompletionFailure, err)
	}

	s.session.Append(chat.Message{Role: chat.RoleAssistant, Content: reply, Animated: true})

	s.persistWorkingHistory()

	s.notify(Notification{Type: NotifyScrollToBottom})
	s.notify(Notification{Type: NotifyAnimateReply, Payload: map[string]any{
		"text": reply,
		"id":   "assistant_msg",
	}})

	return reply, nil
}

// NewChat discards any pending upload and resets the session to an unsaved
// empty chat, persisting the current history first when it has content.
func (s *Service) NewChat(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.uploads.Discard(s.session.PendingUpload())

	if len(s.session.History()) > 0 {
		s.persistWorkingHistory()
	}

	s.session.Clear()
	s.session.AdvanceGeneration()
	return s.refreshSavedChatsLocked()
}

// SelectChat loads a stored transcript into the working history, dropping the
// pending upload and document context of the previous chat.
func (s *Service) SelectChat(_ context.Context, chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.uploads.Discard(s.session.PendingUpload())
	s.session.AdvanceGeneration()
	s.session.SetDocumentContext("")

	transcript, err := s.store.Load(s.session.Username(), chatID)
	if err != nil {
		return err
	}

	s.session.SetSelectedChat(chatID)
	s.session.SetHistory(transcript)
	return nil
}

// RenameChat renames a stored chat. Blank names and name collisions are
// silently skipped; when the selected chat is renamed the selection follows.
func (s *Service) RenameChat(_ context.Context, chatID, newName string) error {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Rename(s.session.Username(), chatID, newName); err != nil {
		if errors.Is(err, store.ErrNameCollision) {
			log.Printf("[conversation] rename of %s skipped: %s already exists", chatID, newName)
			return nil
		}
		return err
	}

	if s.session.SelectedChat() == chatID {
		s.session.SetSelectedChat(newName)
	}
	return s.refreshSavedChatsLocked()
}

// DeleteChat removes a stored chat; deleting the selected chat also clears
// the working history and selection.
func (s *Service) DeleteChat(_ context.Context, chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Delete(s.session.Username(), chatID); err != nil {
		log.Printf("[conversation] delete of %s failed: %v", chatID, err)
	}

	if s.session.SelectedChat() == chatID {
		s.session.SetHistory(nil)
		s.session.SetSelectedChat("")
	}
	return s.refreshSavedChatsLocked()
}

// HandleUpload stashes the slot's inbound file, extracts its text and stores
// the result as the pending document context. Extraction failures are logged
// and swallowed into an empty context so the chat flow never blocks.
func (s *Service) HandleUpload(ctx context.Context, filename, mediaType string, content []byte, generation int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if generation != s.session.Generation() {
		return "", ErrStaleUploadSlot
	}

	// A re-submission within the same slot replaces the previous file.
	s.uploads.Discard(s.session.PendingUpload())

	path, err := s.uploads.Stash(filename, content)
	if err != nil {
		return "", err
	}
	s.session.SetPendingUpload(path)

	text, err := s.extractor.Extract(ctx, content, mediaType)
	if err != nil {
		log.Printf("[conversation] extraction failed for %s (%s): %v", filename, mediaType, err)
		text = ""
	}

	s.session.SetDocumentContext(text)
	log.Printf("[conversation] extracted context: %s...", truncateRunes(text, 500))
	return text, nil
}

// persistWorkingHistory saves the working history under the selected id,
// minting one on first save, and refreshes the chat list cache. Store
// failures are logged; the in-memory turn is already complete.
func (s *Service) persistWorkingHistory() {
	user := s.session.Username()
	chatID, err := s.store.Save(user, s.session.History(), s.session.SelectedChat())
	if err != nil {
		log.Printf("[conversation] failed to persist chat: %v", err)
		return
	}
	s.session.SetSelectedChat(chatID)

	if err := s.refreshSavedChatsLocked(); err != nil {
		log.Printf("[conversation] failed to refresh chat list: %v", err)
	}
}

func (s *Service) refreshSavedChatsLocked() error {
	ids, err := s.store.List(s.session.Username())
	if err != nil {
		return err
	}
	s.session.SetSavedChats(ids)
	return nil
}

func (s *Service) notify(n Notification) {
	if s.notifier != nil {
		s.notifier.Notify(n)
	}
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
