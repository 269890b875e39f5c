package middleware

import (
	"context"
	"net/http"
	"strings"

	chatService "github.com/zhouzirui/philo-chat/backend/internal/service/chat"
)

// TokenHeader carries the seat token in both directions.
const TokenHeader = "X-Session-Token"

// TokenQuery is accepted when the client cannot set headers (EventSource, browser WebSocket).
const TokenQuery = "token"

type ctxSeatKey struct{}

type seatRef struct {
	seats   *chatService.Seats
	token   string
	session *chatService.Session
}

// Seat resolves the caller's session from TokenHeader, falling back to the
// TokenQuery parameter. A request without a known token runs on a detached
// session; it only becomes a seat when a handler calls Claim.
func Seat(seats *chatService.Seats) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimSpace(r.Header.Get(TokenHeader))
			if token == "" {
				token = strings.TrimSpace(r.URL.Query().Get(TokenQuery))
			}

			ref := &seatRef{seats: seats}
			if session, ok := seats.Get(token); ok {
				ref.token = token
				ref.session = session
				w.Header().Set(TokenHeader, token)
			} else {
				ref.session = seats.Detached()
			}

			ctx := context.WithValue(r.Context(), ctxSeatKey{}, ref)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Claim registers the request's session as a seat if it is not one yet and
// sets the token header. It must run before the response is written.
func Claim(w http.ResponseWriter, r *http.Request) {
	ref, ok := r.Context().Value(ctxSeatKey{}).(*seatRef)
	if !ok || ref.seats == nil {
		return
	}
	if ref.token == "" {
		ref.token = ref.seats.Adopt(ref.session)
	}
	w.Header().Set(TokenHeader, ref.token)
}

// Release closes the request's seat; the token stops resolving.
func Release(w http.ResponseWriter, r *http.Request) {
	ref, ok := r.Context().Value(ctxSeatKey{}).(*seatRef)
	if !ok || ref.seats == nil || ref.token == "" {
		return
	}
	ref.seats.Close(ref.token)
	ref.token = ""
	w.Header().Del(TokenHeader)
}

// SessionFrom returns the session attached by Seat.
func SessionFrom(ctx context.Context) (*chatService.Session, bool) {
	ref, ok := ctx.Value(ctxSeatKey{}).(*seatRef)
	if !ok || ref.session == nil {
		return nil, false
	}
	return ref.session, true
}

// WithSession attaches session to ctx; handlers under test use it directly.
func WithSession(ctx context.Context, session *chatService.Session) context.Context {
	return context.WithValue(ctx, ctxSeatKey{}, &seatRef{session: session})
}
