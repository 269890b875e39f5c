package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/philo-chat/backend/internal/app"
	"github.com/zhouzirui/philo-chat/backend/internal/config"
	"github.com/zhouzirui/philo-chat/backend/internal/handler"
	"github.com/zhouzirui/philo-chat/backend/internal/metrics"
	"github.com/zhouzirui/philo-chat/backend/internal/middleware"
	"github.com/zhouzirui/philo-chat/backend/internal/service/chat"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	opts, err := app.NewOptions(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to initialize chat core: %v", err)
	}

	recorder := metrics.NewRecorder()
	opts.Observer = recorder

	seats := chat.NewSeats(opts, cfg.Chat.SeatIdleTTL)
	recorder.TrackSeats(seats)
	go seats.Run(ctx)

	limiter := middleware.NewRateLimiter(cfg.Auth.RPS, cfg.Auth.Burst)
	router := handler.NewRouter(seats, recorder, limiter)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Philo Chat backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
