package chat

import (
	"encoding/json"
	"net/http"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/philo-chat/backend/internal/handler/respond"
	middlewarePkg "github.com/zhouzirui/philo-chat/backend/internal/middleware"
	"github.com/zhouzirui/philo-chat/backend/pkg/utils"
)

const maxInputRunes = 2000

// Handler 聊天服务的HTTP处理器
type Handler struct {
	ws *WebSocketHandler
}

// New 创建聊天处理器
func New() *Handler {
	return &Handler{ws: NewWebSocketHandler()}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/chats", func(cr chi.Router) {
		cr.Post("/", h.handleNewChat)
		cr.Get("/", h.handleListChats)
		cr.Put("/exit", h.handleExitChat)
		cr.Post("/messages", h.handleCompleteChat)
		cr.Get("/ws", h.ws.handleWebSocket)
		cr.Post("/{chatName}/select", h.handleSelectChat)
		cr.Delete("/{chatName}", h.handleDeleteChat)
	})
}

// handleNewChat 创建会话
func (h *Handler) handleNewChat(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ChatName      string `json:"chatName"`
		PhilosopherID *int   `json:"philosopherId"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !validChatName(payload.ChatName) {
		utils.RespondError(w, http.StatusUnprocessableEntity, "chatName must be 3-20 characters")
		return
	}
	if payload.PhilosopherID == nil || *payload.PhilosopherID < 0 {
		utils.RespondError(w, http.StatusUnprocessableEntity, "philosopherId must be a non-negative integer")
		return
	}

	session, ok := middlewarePkg.SessionFrom(r.Context())
	if !ok {
		respond.NoSession(w)
		return
	}

	if err := session.NewChat(payload.ChatName, *payload.PhilosopherID); err != nil {
		respond.Error(w, err)
		return
	}
	respond.Message(w, http.StatusCreated, "Added chat successfully")
}

// handleListChats 列出当前用户的全部会话
func (h *Handler) handleListChats(w http.ResponseWriter, r *http.Request) {
	session, ok := middlewarePkg.SessionFrom(r.Context())
	if !ok {
		respond.NoSession(w)
		return
	}

	chats, err := session.ListChats()
	if err != nil {
		respond.Error(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, chats)
}

// handleSelectChat 选中会话并返回历史消息
func (h *Handler) handleSelectChat(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "chatName")
	if !validChatName(name) {
		utils.RespondError(w, http.StatusUnprocessableEntity, "chatName must be 3-20 characters")
		return
	}

	session, ok := middlewarePkg.SessionFrom(r.Context())
	if !ok {
		respond.NoSession(w)
		return
	}

	history, err := session.SelectChat(name)
	if err != nil {
		respond.Error(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"chatName": name,
		"messages": history,
	})
}

// handleExitChat 退出当前会话
func (h *Handler) handleExitChat(w http.ResponseWriter, r *http.Request) {
	session, ok := middlewarePkg.SessionFrom(r.Context())
	if !ok {
		respond.NoSession(w)
		return
	}

	if err := session.ExitChat(); err != nil {
		respond.Error(w, err)
		return
	}
	respond.Message(w, http.StatusOK, "Exited chat successfully")
}

// handleDeleteChat 删除会话
func (h *Handler) handleDeleteChat(w http.ResponseWriter, r *http.Request) {
	session, ok := middlewarePkg.SessionFrom(r.Context())
	if !ok {
		respond.NoSession(w)
		return
	}

	if err := session.DeleteChat(chi.URLParam(r, "chatName")); err != nil {
		respond.Error(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCompleteChat 向当前会话发送消息并返回哲学家的回复
func (h *Handler) handleCompleteChat(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		InputText string `json:"inputText"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !validInput(payload.InputText) {
		utils.RespondError(w, http.StatusUnprocessableEntity, "inputText must be 1-2000 characters")
		return
	}

	session, ok := middlewarePkg.SessionFrom(r.Context())
	if !ok {
		respond.NoSession(w)
		return
	}

	turn, err := session.CompleteChat(r.Context(), payload.InputText)
	if err != nil {
		respond.Error(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, []any{turn.Assistant, turn.User})
}

func validChatName(name string) bool {
	n := utf8.RuneCountInString(name)
	return n >= 3 && n <= 20
}

func validInput(text string) bool {
	n := utf8.RuneCountInString(text)
	return n >= 1 && n <= maxInputRunes
}
