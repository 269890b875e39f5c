package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/philo-chat/backend/internal/handler/account"
	"github.com/zhouzirui/philo-chat/backend/internal/handler/chat"
	"github.com/zhouzirui/philo-chat/backend/internal/handler/philosopher"
	"github.com/zhouzirui/philo-chat/backend/internal/handler/stream"
	"github.com/zhouzirui/philo-chat/backend/internal/metrics"
	middlewarePkg "github.com/zhouzirui/philo-chat/backend/internal/middleware"
	chatService "github.com/zhouzirui/philo-chat/backend/internal/service/chat"
	"github.com/zhouzirui/philo-chat/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services. recorder and limiter may be nil.
func NewRouter(seats *chatService.Seats, recorder *metrics.Recorder, limiter *middlewarePkg.RateLimiter) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if recorder != nil {
		r.Handle("/metrics", recorder.Handler())
	}

	var limit func(http.Handler) http.Handler
	if limiter != nil {
		limit = limiter.Limit
	}

	accountHandler := account.New(limit)
	philosopherHandler := philosopher.New()
	chatHandler := chat.New()
	streamHandler := stream.New(0)

	r.Route("/api", func(api chi.Router) {
		api.Use(middlewarePkg.Seat(seats))

		accountHandler.RegisterRoutes(api)
		philosopherHandler.RegisterRoutes(api)
		chatHandler.RegisterRoutes(api)
		streamHandler.RegisterRoutes(api)
	})

	return r
}
