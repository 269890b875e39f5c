package chat

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Seats hands out independent sessions keyed by opaque tokens. All seats
// share one account directory, so a user can sign up on one seat and log in
// on another, while each seat keeps its own single-user state.
type Seats struct {
	opts Options
	ttl  time.Duration
	now  func() time.Time

	mu    sync.Mutex
	seats map[string]*seat
}

type seat struct {
	session  *Session
	lastUsed time.Time
}

// NewSeats creates a seat registry. opts.Directory is created when nil and
// shared by every seat. A non-positive ttl disables reaping.
func NewSeats(opts Options, ttl time.Duration) *Seats {
	if opts.Directory == nil {
		opts.Directory = NewDirectory()
	}
	return &Seats{
		opts:  opts,
		ttl:   ttl,
		now:   time.Now,
		seats: make(map[string]*seat),
	}
}

// Directory returns the shared account registry.
func (s *Seats) Directory() *Directory {
	return s.opts.Directory
}

// Open creates a new seat and returns its token.
func (s *Seats) Open() (string, *Session) {
	session := s.Detached()
	return s.Adopt(session), session
}

// Detached returns a session over the shared directory that is not
// registered as a seat. Adopt registers it once it holds state worth keeping.
func (s *Seats) Detached() *Session {
	return NewSession(s.opts)
}

// Adopt registers session as a seat and returns its token.
func (s *Seats) Adopt(session *Session) string {
	token := uuid.NewString()

	s.mu.Lock()
	s.seats[token] = &seat{session: session, lastUsed: s.now()}
	s.mu.Unlock()

	return token
}

// Get returns the session for token and marks it as used.
func (s *Seats) Get(token string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.seats[token]
	if !ok {
		return nil, false
	}
	st.lastUsed = s.now()
	return st.session, true
}

// Close discards a seat.
func (s *Seats) Close(token string) {
	s.mu.Lock()
	delete(s.seats, token)
	s.mu.Unlock()
}

// Len reports the number of open seats.
func (s *Seats) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seats)
}

// Reap closes seats idle for longer than the ttl and returns how many were closed.
func (s *Seats) Reap(now time.Time) int {
	if s.ttl <= 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	reaped := 0
	for token, st := range s.seats {
		if now.Sub(st.lastUsed) > s.ttl {
			delete(s.seats, token)
			reaped++
		}
	}
	return reaped
}

// Run reaps idle seats periodically until ctx is cancelled.
func (s *Seats) Run(ctx context.Context) {
	if s.ttl <= 0 {
		return
	}

	interval := s.ttl / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			if n := s.Reap(t); n > 0 {
				log.Printf("[seats] reaped %d idle seats", n)
			}
		}
	}
}
