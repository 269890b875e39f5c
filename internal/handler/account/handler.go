package account

import (
	"encoding/json"
	"net/http"
	"regexp"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/philo-chat/backend/internal/handler/respond"
	middlewarePkg "github.com/zhouzirui/philo-chat/backend/internal/middleware"
	"github.com/zhouzirui/philo-chat/backend/pkg/utils"
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9]+$`)

// Handler 账户相关的HTTP处理器
type Handler struct {
	limit func(http.Handler) http.Handler
}

// New 创建账户处理器。limit 用于注册和登录接口限流，可为 nil。
func New(limit func(http.Handler) http.Handler) *Handler {
	return &Handler{limit: limit}
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterRoutes 注册账户相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	limited := r
	if h.limit != nil {
		limited = r.With(h.limit)
	}
	limited.Post("/users", h.handleSignup)
	limited.Post("/login", h.handleLogin)

	r.Post("/profile/logout", h.handleLogout)
	r.Delete("/profile", h.handleDeleteAccount)
}

// handleSignup 注册新用户
func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	creds, ok := decodeCredentials(w, r)
	if !ok {
		return
	}
	session, ok := middlewarePkg.SessionFrom(r.Context())
	if !ok {
		respond.NoSession(w)
		return
	}

	if err := session.Signup(creds.Username, creds.Password); err != nil {
		respond.Error(w, err)
		return
	}
	respond.Message(w, http.StatusCreated, "User created successfully")
}

// handleLogin 登录
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	creds, ok := decodeCredentials(w, r)
	if !ok {
		return
	}
	session, ok := middlewarePkg.SessionFrom(r.Context())
	if !ok {
		respond.NoSession(w)
		return
	}

	if err := session.Login(creds.Username, creds.Password); err != nil {
		respond.Error(w, err)
		return
	}
	middlewarePkg.Claim(w, r)
	respond.Message(w, http.StatusOK, "Logged in successfully")
}

// handleLogout 登出
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	session, ok := middlewarePkg.SessionFrom(r.Context())
	if !ok {
		respond.NoSession(w)
		return
	}

	if err := session.Logout(); err != nil {
		respond.Error(w, err)
		return
	}
	middlewarePkg.Release(w, r)
	respond.Message(w, http.StatusOK, "Logged out successfully")
}

// handleDeleteAccount 注销账户
func (h *Handler) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	session, ok := middlewarePkg.SessionFrom(r.Context())
	if !ok {
		respond.NoSession(w)
		return
	}

	if err := session.DeleteAccount(); err != nil {
		respond.Error(w, err)
		return
	}
	middlewarePkg.Release(w, r)
	w.WriteHeader(http.StatusNoContent)
}

func decodeCredentials(w http.ResponseWriter, r *http.Request) (credentials, bool) {
	var creds credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return credentials{}, false
	}

	if n := len(creds.Username); n < 3 || n > 20 || !usernamePattern.MatchString(creds.Username) {
		utils.RespondError(w, http.StatusUnprocessableEntity, "username must be 3-20 lowercase letters or digits")
		return credentials{}, false
	}
	if n := len(creds.Password); n < 4 || n > 30 {
		utils.RespondError(w, http.StatusUnprocessableEntity, "password must be 4-30 characters")
		return credentials{}, false
	}
	return creds, true
}
