package chat

import (
	"context"
	"log"
	"sync"
	"time"

	model "github.com/zhouzirui/philo-chat/backend/internal/model/chat"
	"github.com/zhouzirui/philo-chat/backend/internal/model/philosopher"
)

// DefaultCompletionTimeout bounds a completion call when Options.Timeout is zero.
const DefaultCompletionTimeout = 60 * time.Second

// Directory is the account registry. It may be shared by several sessions.
type Directory struct {
	mu    sync.RWMutex
	users map[string]*User
}

// NewDirectory returns an empty registry.
func NewDirectory() *Directory {
	return &Directory{users: make(map[string]*User)}
}

// Len reports the number of registered accounts.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.users)
}

func (d *Directory) find(username string) (*User, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[username]
	return u, ok
}

func (d *Directory) add(u *User) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.users[u.username]; exists {
		return false
	}
	d.users[u.username] = u
	return true
}

func (d *Directory) remove(u *User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.users[u.username] == u {
		delete(d.users, u.username)
	}
}

// Observer is notified after every session operation.
type Observer interface {
	ObserveOperation(op string, status Status, elapsed time.Duration)
}

// Options configures a Session.
type Options struct {
	// Directory is shared between sessions; nil gives the session its own.
	Directory    *Directory
	Philosophers philosopher.Store
	Prompts      PromptProvider
	Completer    Completer
	Timeout      time.Duration
	Observer     Observer
}

// Session is a single seat: at most one user is logged in at a time, and
// every operation checks that before delegating to the user.
type Session struct {
	dir          *Directory
	philosophers philosopher.Store
	prompts      PromptProvider
	completer    Completer
	timeout      time.Duration
	observer     Observer

	mu      sync.Mutex
	current *User
}

// NewSession builds a session from opts.
func NewSession(opts Options) *Session {
	dir := opts.Directory
	if dir == nil {
		dir = NewDirectory()
	}
	roster := opts.Philosophers
	if roster == nil {
		roster = philosopher.NewMemoryStore(nil)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultCompletionTimeout
	}
	return &Session{
		dir:          dir,
		philosophers: roster,
		prompts:      opts.Prompts,
		completer:    opts.Completer,
		timeout:      timeout,
		observer:     opts.Observer,
	}
}

// currentUser returns the logged-in user. A user whose account was removed
// through another session is treated as logged out.
func (s *Session) currentUser() *User {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return nil
	}
	if u, ok := s.dir.find(s.current.username); !ok || u != s.current {
		s.current = nil
	}
	return s.current
}

// CurrentUser reports the username of the logged-in user.
func (s *Session) CurrentUser() (string, bool) {
	u := s.currentUser()
	if u == nil {
		return "", false
	}
	return u.username, true
}

// Signup registers a new account. It is refused while someone is logged in.
func (s *Session) Signup(username, password string) (err error) {
	defer s.observe("signup", time.Now(), &err)

	if s.currentUser() != nil {
		return withOp("signup", ErrAlreadyAuthenticated)
	}
	if _, exists := s.dir.find(username); exists {
		return withOp("signup", ErrUsernameTaken)
	}

	u, err := newUser(username, password)
	if err != nil {
		return &Error{Status: BadRequest, Op: "signup", Msg: "invalid password", Err: err}
	}
	if !s.dir.add(u) {
		return withOp("signup", ErrUsernameTaken)
	}
	log.Printf("[session] user signed up: %s", username)
	return nil
}

// Login authenticates username on this session.
func (s *Session) Login(username, password string) (err error) {
	defer s.observe("login", time.Now(), &err)

	if s.currentUser() != nil {
		return withOp("login", ErrAlreadyAuthenticated)
	}
	u, ok := s.dir.find(username)
	if !ok {
		return withOp("login", ErrUserNotFound)
	}
	if !u.passwordMatches(password) {
		return withOp("login", ErrWrongPassword)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		return withOp("login", ErrAlreadyAuthenticated)
	}
	s.current = u
	log.Printf("[session] user logged in: %s", username)
	return nil
}

// Logout clears the logged-in user.
func (s *Session) Logout() (err error) {
	defer s.observe("logout", time.Now(), &err)

	if s.currentUser() == nil {
		return withOp("logout", ErrNotLoggedIn)
	}
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
	return nil
}

// DeleteAccount removes the logged-in user, with all chats, and logs out.
func (s *Session) DeleteAccount() (err error) {
	defer s.observe("delete_account", time.Now(), &err)

	u := s.currentUser()
	if u == nil {
		return withOp("delete account", ErrNotLoggedIn)
	}
	s.dir.remove(u)

	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
	log.Printf("[session] account deleted: %s", u.username)
	return nil
}

// NewChat creates a chat with the philosopher identified by philosopherID.
func (s *Session) NewChat(name string, philosopherID int) (err error) {
	defer s.observe("new_chat", time.Now(), &err)

	u := s.currentUser()
	if u == nil {
		return withOp("new chat", ErrNotAuthenticated)
	}
	p, ok := s.philosophers.FindByID(philosopherID)
	if !ok {
		return withOp("new chat", ErrPhilosopherNotFound)
	}
	return u.NewChat(name, p)
}

// SelectChat activates a chat and returns its transcript.
func (s *Session) SelectChat(name string) (history []model.Message, err error) {
	defer s.observe("select_chat", time.Now(), &err)

	u := s.currentUser()
	if u == nil {
		return nil, withOp("select chat", ErrNotAuthenticated)
	}
	return u.SelectChat(name)
}

// ListChats lists the logged-in user's chats.
func (s *Session) ListChats() (chats []Summary, err error) {
	defer s.observe("list_chats", time.Now(), &err)

	u := s.currentUser()
	if u == nil {
		return nil, withOp("list chats", ErrNotAuthenticated)
	}
	return u.ListChats()
}

// ActiveChat reports the name of the selected chat.
func (s *Session) ActiveChat() (string, bool) {
	u := s.currentUser()
	if u == nil {
		return "", false
	}
	return u.ActiveChat()
}

// ExitChat leaves the active chat.
func (s *Session) ExitChat() (err error) {
	defer s.observe("exit_chat", time.Now(), &err)

	u := s.currentUser()
	if u == nil {
		return withOp("exit chat", ErrNotAuthenticated)
	}
	return u.ExitChat()
}

// DeleteChat deletes one of the logged-in user's chats.
func (s *Session) DeleteChat(name string) (err error) {
	defer s.observe("delete_chat", time.Now(), &err)

	u := s.currentUser()
	if u == nil {
		return withOp("delete chat", ErrNotAuthenticated)
	}
	return u.DeleteChat(name)
}

// CompleteChat sends text to the active chat and returns the reply together
// with the recorded user message.
func (s *Session) CompleteChat(ctx context.Context, text string) (turn Turn, err error) {
	defer s.observe("complete_chat", time.Now(), &err)

	u := s.currentUser()
	if u == nil {
		return Turn{}, withOp("complete chat", ErrNotAuthenticated)
	}
	turn, err = u.CompleteChat(ctx, text, s.prompts, s.completer, s.timeout)
	if err != nil && StatusOf(err) == LLMError {
		log.Printf("[session] completion failed for user=%s: %v", u.username, err)
	}
	return turn, err
}

// ListPhilosophers returns the roster.
func (s *Session) ListPhilosophers() (list []philosopher.Philosopher, err error) {
	defer s.observe("list_philosophers", time.Now(), &err)

	list = s.philosophers.List()
	if len(list) == 0 {
		return nil, withOp("list philosophers", ErrNoPhilosophers)
	}
	return list, nil
}

func (s *Session) observe(op string, start time.Time, err *error) {
	if s.observer == nil {
		return
	}
	s.observer.ObserveOperation(op, StatusOf(*err), time.Since(start))
}
