package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dvergara/docuchat/internal/model/chat"
)

var (
	ErrChatNotFound  = errors.New("chat not found")
	ErrNameCollision = errors.New("chat name already exists")
)

const transcriptExt = ".json"

// timestampLayout yields ids like 20240601_120000 so lexicographic order
// matches creation order for unnamed chats.
const timestampLayout = "20060102_150405"

// Store persists one JSON transcript file per chat under a per-user directory.
type Store struct {
	root string
}

// New returns a Store rooted at the given data directory.
func New(root string) *Store {
	return &Store{root: root}
}

// userDir resolves the user's directory, creating it on first access.
func (s *Store) userDir(user string) (string, error) {
	dir := filepath.Join(s.root, user)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create user dir: %w", err)
	}
	return dir, nil
}

// List returns the user's chat ids sorted descending, so timestamp-named
// chats appear newest first. Renamed chats sort by the same rule.
func (s *Store) List(user string) ([]string, error) {
	dir, err := s.userDir(user)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read user dir: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, transcriptExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, transcriptExt))
	}

	sort.Sort(sort.Reverse(sort.StringSlice(ids)))
	return ids, nil
}

// Load reads the full message sequence for a chat id.
func (s *Store) Load(user, chatID string) (chat.Transcript, error) {
	dir, err := s.userDir(user)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(dir, chatID+transcriptExt))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrChatNotFound
		}
		return nil, fmt.Errorf("read transcript: %w", err)
	}

	var transcript chat.Transcript
	if err := json.Unmarshal(data, &transcript); err != nil {
		return nil, fmt.Errorf("decode transcript %s: %w", chatID, err)
	}
	return transcript, nil
}

// Save writes the transcript under selectedID, or mints a timestamp id when
// selectedID is empty, and returns the id used. The file lands via rename so
// readers never observe a partial write.
func (s *Store) Save(user string, transcript chat.Transcript, selectedID string) (string, error) {
	dir, err := s.userDir(user)
	if err != nil {
		return "", err
	}

	chatID := selectedID
	if chatID == "" {
		chatID = time.Now().Format(timestampLayout)
	}

	data, err := encodeTranscript(transcript)
	if err != nil {
		return "", err
	}

	target := filepath.Join(dir, chatID+transcriptExt)
	tmp, err := os.CreateTemp(dir, "."+chatID+".*")
	if err != nil {
		return "", fmt.Errorf("create temp transcript: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write transcript: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close transcript: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("store transcript: %w", err)
	}

	return chatID, nil
}

// Rename moves a transcript to a new id. An existing target is never
// overwritten.
func (s *Store) Rename(user, oldID, newID string) error {
	dir, err := s.userDir(user)
	if err != nil {
		return err
	}

	oldPath := filepath.Join(dir, oldID+transcriptExt)
	newPath := filepath.Join(dir, newID+transcriptExt)

	if _, err := os.Stat(newPath); err == nil {
		return ErrNameCollision
	}
	if _, err := os.Stat(oldPath); err != nil {
		if os.IsNotExist(err) {
			return ErrChatNotFound
		}
		return fmt.Errorf("stat transcript: %w", err)
	}

	if err := os.Rename(oldPath, newPath); err != nil {
		return fmt.Errorf("rename transcript: %w", err)
	}
	return nil
}

// Delete removes a chat permanently. A missing chat is not an error.
func (s *Store) Delete(user, chatID string) error {
	dir, err := s.userDir(user)
	if err != nil {
		return err
	}

	if err := os.Remove(filepath.Join(dir, chatID+transcriptExt)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete transcript: %w", err)
	}
	return nil
}

// encodeTranscript renders the stable on-disk form: two-space indent, UTF-8
// kept unescaped so non-ASCII content stays readable.
func encodeTranscript(transcript chat.Transcript) ([]byte, error) {
	if transcript == nil {
		transcript = chat.Transcript{}
	}

	var buf strings.Builder
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(transcript); err != nil {
		return nil, fmt.Errorf("encode transcript: %w", err)
	}
	return []byte(buf.String()), nil
}
