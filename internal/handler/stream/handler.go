package stream

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/philo-chat/backend/internal/handler/respond"
	middlewarePkg "github.com/zhouzirui/philo-chat/backend/internal/middleware"
	chatService "github.com/zhouzirui/philo-chat/backend/internal/service/chat"
	"github.com/zhouzirui/philo-chat/backend/pkg/utils"
)

const (
	maxInputRunes            = 2000
	defaultKeepAliveInterval = 15 * time.Second
)

// Handler 以 Server-Sent Events 形式返回一次对话轮次
type Handler struct {
	keepAlive time.Duration
}

// New creates a stream handler. A non-positive keepAlive uses the default.
func New(keepAlive time.Duration) *Handler {
	if keepAlive <= 0 {
		keepAlive = defaultKeepAliveInterval
	}
	return &Handler{keepAlive: keepAlive}
}

// RegisterRoutes 注册SSE路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stream", h.handleStream)
}

type turnResult struct {
	turn chatService.Turn
	err  error
}

// handleStream 对当前会话执行一轮对话。事件依次为 start、(注释心跳)、message 或 error、end。
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	text := r.URL.Query().Get("message")
	if n := utf8.RuneCountInString(text); n < 1 || n > maxInputRunes {
		utils.RespondError(w, http.StatusUnprocessableEntity, "message must be 1-2000 characters")
		return
	}

	session, ok := middlewarePkg.SessionFrom(r.Context())
	if !ok {
		respond.NoSession(w)
		return
	}

	// 先以普通 HTTP 响应返回前置条件错误
	if _, ok := session.CurrentUser(); !ok {
		respond.Error(w, chatService.ErrNotAuthenticated)
		return
	}
	chatName, ok := session.ActiveChat()
	if !ok {
		respond.Error(w, chatService.ErrNoActiveChat)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	if err := utils.SendSSEEvent(w, flusher, "start", map[string]string{"chatName": chatName}); err != nil {
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	done := make(chan turnResult, 1)
	go func() {
		turn, err := session.CompleteChat(ctx, text)
		done <- turnResult{turn: turn, err: err}
	}()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case res := <-done:
			h.finish(w, flusher, res)
			return
		case <-ticker.C:
			if err := utils.SendSSEComment(w, flusher, "ping"); err != nil {
				log.Printf("[stream] client went away while waiting for chat=%s", chatName)
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (h *Handler) finish(w http.ResponseWriter, flusher http.Flusher, res turnResult) {
	if res.err != nil {
		message := res.err.Error()
		var domainErr *chatService.Error
		if errors.As(res.err, &domainErr) {
			message = domainErr.Msg
		}
		_ = utils.SendSSEEvent(w, flusher, "error", map[string]string{
			"message": message,
			"status":  chatService.StatusOf(res.err).String(),
		})
	} else {
		_ = utils.SendSSEEvent(w, flusher, "message", map[string]any{
			"assistant": res.turn.Assistant,
			"user":      res.turn.User,
		})
	}
	_ = utils.SendSSEEvent(w, flusher, "end", map[string]bool{"finished": true})
}
