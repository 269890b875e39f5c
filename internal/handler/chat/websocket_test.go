package chat

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	middlewarePkg "github.com/zhouzirui/philo-chat/backend/internal/middleware"
	model "github.com/zhouzirui/philo-chat/backend/internal/model/chat"
	"github.com/zhouzirui/philo-chat/backend/internal/model/philosopher"
	chatService "github.com/zhouzirui/philo-chat/backend/internal/service/chat"
)

type delayedCompleter struct {
	reply string
	delay time.Duration
}

func (c delayedCompleter) Complete(ctx context.Context, _ string, _ []model.Message) (string, error) {
	select {
	case <-time.After(c.delay):
		return c.reply, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// dialSlowChat serves a websocket whose read timeout is much shorter than
// the completion, so the connection only survives if pongs keep flowing.
func dialSlowChat(t *testing.T, completer chatService.Completer, timeout time.Duration) *websocket.Conn {
	t.Helper()
	session := chatService.NewSession(chatService.Options{
		Philosophers: philosopher.NewMemoryStore(philosopher.Seed()),
		Completer:    completer,
		Timeout:      timeout,
	})
	if err := session.Signup("ada", "pw12"); err != nil {
		t.Fatalf("Signup err: %v", err)
	}
	if err := session.Login("ada", "pw12"); err != nil {
		t.Fatalf("Login err: %v", err)
	}
	if err := session.NewChat("agora", 0); err != nil {
		t.Fatalf("NewChat err: %v", err)
	}
	if _, err := session.SelectChat("agora"); err != nil {
		t.Fatalf("SelectChat err: %v", err)
	}

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(middlewarePkg.WithSession(req.Context(), session)))
		})
	})
	h := &Handler{ws: newWebSocketHandler(100*time.Millisecond, 30*time.Millisecond)}
	h.RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/chats/ws", nil)
	if err != nil {
		t.Fatalf("dial err: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var connected map[string]any
	if err := conn.ReadJSON(&connected); err != nil || connected["type"] != "connected" {
		t.Fatalf("unexpected first frame %v, err=%v", connected, err)
	}
	return conn
}

type frame struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

func sendText(t *testing.T, conn *websocket.Conn, text string) frame {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": "text", "data": map[string]string{"text": text}}); err != nil {
		t.Fatalf("write err: %v", err)
	}
	var f frame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("read err: %v", err)
	}
	return f
}

func TestWebSocketTurnOutlivesReadTimeout(t *testing.T) {
	conn := dialSlowChat(t, delayedCompleter{reply: "Slowly, friend.", delay: 400 * time.Millisecond}, 2*time.Second)

	f := sendText(t, conn, "Why hurry?")
	if f.Type != "result" {
		t.Fatalf("expected result frame, got %+v", f)
	}
	assistant, _ := f.Data["assistant"].(map[string]any)
	if assistant["content"] != "Slowly, friend." {
		t.Fatalf("unexpected assistant message: %+v", f.Data)
	}

	// the connection stays usable for the next turn
	if f := sendText(t, conn, "Again?"); f.Type != "result" {
		t.Fatalf("expected second result frame, got %+v", f)
	}
}

func TestWebSocketDeliversCompletionTimeout(t *testing.T) {
	conn := dialSlowChat(t, delayedCompleter{reply: "too late", delay: 2 * time.Second}, 300*time.Millisecond)

	f := sendText(t, conn, "Are you there?")
	if f.Type != "error" || f.Data["status"] != "llm_error" {
		t.Fatalf("expected llm_error frame, got %+v", f)
	}
}
