package chat

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dvergara/docuchat/internal/service/conversation"
	"github.com/dvergara/docuchat/internal/store"
	"github.com/dvergara/docuchat/pkg/utils"
)

// maxUploadBytes caps a single document upload.
const maxUploadBytes = 32 << 20

// Handler exposes the conversation core over HTTP.
type Handler struct {
	svc *conversation.Service
}

// New creates the chat handler.
func New(svc *conversation.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the chat endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/state", h.handleState)
	r.Get("/chats", h.handleListChats)
	r.Post("/chats", h.handleNewChat)
	r.Post("/messages", h.handleSendMessage)
	r.Post("/chats/{chatID}/select", h.handleSelectChat)
	r.Post("/chats/{chatID}/rename", h.handleRenameChat)
	r.Delete("/chats/{chatID}", h.handleDeleteChat)
	r.Post("/upload", h.handleUpload)
}

// handleState returns the session snapshot for rendering.
func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.svc.State())
}

// handleListChats returns the saved chat ids, newest first.
func (h *Handler) handleListChats(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]any{"chats": h.svc.State().SavedChats})
}

// handleSendMessage runs one conversation turn.
func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(payload.Content) == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	reply, err := h.svc.Send(r.Context(), payload.Content)
	if err != nil {
		if errors.Is(err, conversation.ErrCompletionFailure) {
			utils.RespondError(w, http.StatusBadGateway, "completion backend failed, no reply produced")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	state := h.svc.State()
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"reply":   reply,
		"chatId":  state.SelectedChat,
		"history": state.History,
	})
}

// handleNewChat resets the session to a fresh unsaved chat.
func (h *Handler) handleNewChat(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.NewChat(r.Context()); err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, h.svc.State())
}

// handleSelectChat loads a stored chat into the working history.
func (h *Handler) handleSelectChat(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")

	if err := h.svc.SelectChat(r.Context(), chatID); err != nil {
		if errors.Is(err, store.ErrChatNotFound) {
			utils.RespondError(w, http.StatusNotFound, "chat not found")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, h.svc.State())
}

// handleRenameChat renames a stored chat. Blank names and collisions are
// no-ops; the returned snapshot lets the client observe the outcome.
func (h *Handler) handleRenameChat(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")

	var payload struct {
		NewName string `json:"newName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.svc.RenameChat(r.Context(), chatID, payload.NewName); err != nil {
		if errors.Is(err, store.ErrChatNotFound) {
			utils.RespondError(w, http.StatusNotFound, "chat not found")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	state := h.svc.State()
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"selectedChat": state.SelectedChat,
		"chats":        state.SavedChats,
	})
}

// handleDeleteChat removes a stored chat permanently.
func (h *Handler) handleDeleteChat(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")

	if err := h.svc.DeleteChat(r.Context(), chatID); err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, h.svc.State())
}

// handleUpload accepts the slot's single document and extracts its text into
// the pending conversation context.
func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	generation, err := strconv.Atoi(r.FormValue("generation"))
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "generation field is required")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "could not read upload")
		return
	}

	mediaType := header.Header.Get("Content-Type")
	text, err := h.svc.HandleUpload(r.Context(), header.Filename, mediaType, content, generation)
	if err != nil {
		if errors.Is(err, conversation.ErrStaleUploadSlot) {
			utils.RespondError(w, http.StatusConflict, "upload slot is stale")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"text":          text,
		"contextLoaded": text != "",
	})
}
