package session_test

import (
	"testing"

	"github.com/dvergara/docuchat/internal/model/chat"
	"github.com/dvergara/docuchat/internal/session"
)

func TestNewDefaults(t *testing.T) {
	s := session.New("usuario_demo")

	state := s.Snapshot()
	if !state.Authenticated {
		t.Fatal("demo session must start authenticated")
	}
	if state.Username != "usuario_demo" {
		t.Fatalf("username = %q", state.Username)
	}
	if state.SelectedChat != "" || len(state.History) != 0 || state.Generation != 0 {
		t.Fatalf("fresh session not empty: %+v", state)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	s := session.New("usuario_demo")
	s.Append(chat.Message{Role: chat.RoleUser, Content: "hola"})

	state := s.Snapshot()
	state.History[0].Content = "mutado"

	if s.History()[0].Content != "hola" {
		t.Fatal("snapshot mutation leaked into session state")
	}
}

func TestAdvanceGenerationDropsPendingUpload(t *testing.T) {
	s := session.New("usuario_demo")
	s.SetPendingUpload("/tmp/algo.pdf")

	if got := s.AdvanceGeneration(); got != 1 {
		t.Fatalf("generation = %d, want 1", got)
	}
	if s.PendingUpload() != "" {
		t.Fatal("stale slot must not keep its pending upload")
	}
}

func TestClear(t *testing.T) {
	s := session.New("usuario_demo")
	s.Append(chat.Message{Role: chat.RoleUser, Content: "hola"})
	s.SetDocumentContext("texto")
	s.SetSelectedChat("20240101_000000")
	s.SetSavedChats([]string{"20240101_000000"})

	s.Clear()

	if len(s.History()) != 0 || s.DocumentContext() != "" || s.SelectedChat() != "" {
		t.Fatal("Clear must empty history, context and selection")
	}
	if len(s.SavedChats()) != 1 {
		t.Fatal("Clear must not touch the chat list cache")
	}
}
