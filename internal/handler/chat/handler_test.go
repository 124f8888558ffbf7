package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/dvergara/docuchat/internal/extract"
	"github.com/dvergara/docuchat/internal/model/chat"
	"github.com/dvergara/docuchat/internal/service/conversation"
	"github.com/dvergara/docuchat/internal/session"
	"github.com/dvergara/docuchat/internal/store"
	"github.com/dvergara/docuchat/internal/upload"
)

type stubCompleter struct {
	reply string
	err   error
}

func (s *stubCompleter) Complete(context.Context, chat.Transcript) (string, error) {
	return s.reply, s.err
}

func setupRouter(t *testing.T, completer *stubCompleter) (*chi.Mux, *store.Store, *session.Session) {
	t.Helper()

	sess := session.New("usuario_demo")
	st := store.New(t.TempDir())
	uploads := upload.NewManager(t.TempDir())
	svc := conversation.NewService(sess, st, completer, extract.New(""), uploads, nil, conversation.Options{})

	r := chi.NewRouter()
	New(svc).RegisterRoutes(r)
	return r, st, sess
}

func postJSON(t *testing.T, r http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestSendMessage(t *testing.T) {
	r, _, _ := setupRouter(t, &stubCompleter{reply: "respuesta"})

	resp := postJSON(t, r, "/messages", map[string]string{"content": "hola"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var result struct {
		Reply   string          `json:"reply"`
		ChatID  string          `json:"chatId"`
		History chat.Transcript `json:"history"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Reply != "respuesta" || result.ChatID == "" || len(result.History) != 2 {
		t.Fatalf("unexpected response: %+v", result)
	}
}

func TestSendMessageBlank(t *testing.T) {
	r, _, _ := setupRouter(t, &stubCompleter{reply: "respuesta"})

	resp := postJSON(t, r, "/messages", map[string]string{"content": "   "})
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}
}

func TestSendMessageCompletionFailure(t *testing.T) {
	r, _, _ := setupRouter(t, &stubCompleter{err: errors.New("timeout")})

	resp := postJSON(t, r, "/messages", map[string]string{"content": "hola"})
	if resp.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.Code)
	}
}

func TestSelectChatNotFound(t *testing.T) {
	r, _, _ := setupRouter(t, &stubCompleter{})

	resp := postJSON(t, r, "/chats/fantasma/select", map[string]string{})
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestSelectChat(t *testing.T) {
	r, st, _ := setupRouter(t, &stubCompleter{})

	transcript := chat.Transcript{{Role: chat.RoleUser, Content: "hola"}}
	if _, err := st.Save("usuario_demo", transcript, "viejo"); err != nil {
		t.Fatalf("Save err: %v", err)
	}

	resp := postJSON(t, r, "/chats/viejo/select", map[string]string{})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var state session.State
	if err := json.Unmarshal(resp.Body.Bytes(), &state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if state.SelectedChat != "viejo" || len(state.History) != 1 {
		t.Fatalf("unexpected state: %+v", state)
	}
}

func TestRenameChat(t *testing.T) {
	r, st, _ := setupRouter(t, &stubCompleter{})

	if _, err := st.Save("usuario_demo", chat.Transcript{{Role: chat.RoleUser, Content: "x"}}, "viejo"); err != nil {
		t.Fatalf("Save err: %v", err)
	}

	resp := postJSON(t, r, "/chats/viejo/rename", map[string]string{"newName": "facturas"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var result struct {
		Chats []string `json:"chats"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(result.Chats) != 1 || result.Chats[0] != "facturas" {
		t.Fatalf("chat list after rename: %v", result.Chats)
	}
}

func TestDeleteChatAlwaysSucceeds(t *testing.T) {
	r, _, _ := setupRouter(t, &stubCompleter{})

	req := httptest.NewRequest(http.MethodDelete, "/chats/fantasma", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}

func TestUploadUnsupportedFormat(t *testing.T) {
	r, _, sess := setupRouter(t, &stubCompleter{})

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	writer.WriteField("generation", strconv.Itoa(sess.Generation()))
	part, err := writer.CreateFormFile("file", "notas.txt")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	part.Write([]byte("hola"))
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var result struct {
		Text          string `json:"text"`
		ContextLoaded bool   `json:"contextLoaded"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Text != extract.UnsupportedText || !result.ContextLoaded {
		t.Fatalf("unexpected upload result: %+v", result)
	}
}

func TestUploadStaleGeneration(t *testing.T) {
	r, _, sess := setupRouter(t, &stubCompleter{})
	sess.AdvanceGeneration()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	writer.WriteField("generation", "0")
	part, _ := writer.CreateFormFile("file", "doc.pdf")
	part.Write([]byte("x"))
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.Code)
	}
}

func TestStateSnapshot(t *testing.T) {
	r, _, _ := setupRouter(t, &stubCompleter{})

	req := httptest.NewRequest(http.MethodGet, "/state", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var state session.State
	if err := json.Unmarshal(resp.Body.Bytes(), &state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if !state.Authenticated || state.Username != "usuario_demo" {
		t.Fatalf("unexpected state: %+v", state)
	}
}
