package philosopher

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/philo-chat/backend/internal/handler/respond"
	middlewarePkg "github.com/zhouzirui/philo-chat/backend/internal/middleware"
	"github.com/zhouzirui/philo-chat/backend/pkg/utils"
)

// Handler 哲学家名册的HTTP处理器
type Handler struct{}

// New 创建哲学家处理器
func New() *Handler {
	return &Handler{}
}

// RegisterRoutes 注册哲学家相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/philosophers", h.handleListPhilosophers)
}

// handleListPhilosophers 列出所有哲学家
func (h *Handler) handleListPhilosophers(w http.ResponseWriter, r *http.Request) {
	session, ok := middlewarePkg.SessionFrom(r.Context())
	if !ok {
		respond.NoSession(w)
		return
	}

	philosophers, err := session.ListPhilosophers()
	if err != nil {
		respond.Error(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, philosophers)
}
