package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	model "github.com/zhouzirui/philo-chat/backend/internal/model/chat"
	"github.com/zhouzirui/philo-chat/backend/internal/model/philosopher"
)

// User is an account owning a set of chats.
type User struct {
	username     string
	passwordHash []byte

	mu    sync.Mutex
	chats map[string]*Chat
	order []string
	// active is the key of the selected chat, empty when none is selected.
	active string
}

func newUser(username, password string) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	return &User{
		username:     username,
		passwordHash: hash,
		chats:        make(map[string]*Chat),
	}, nil
}

// Username returns the account name.
func (u *User) Username() string { return u.username }

func (u *User) passwordMatches(password string) bool {
	return bcrypt.CompareHashAndPassword(u.passwordHash, []byte(password)) == nil
}

// NewChat creates a chat bound to p. A blank name is rejected; the empty
// key means "no chat selected".
func (u *User) NewChat(name string, p philosopher.Philosopher) error {
	if strings.TrimSpace(name) == "" {
		return withOp("new chat", ErrChatNameRequired)
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	if _, exists := u.chats[name]; exists {
		return withOp("new chat", ErrChatExists)
	}
	u.chats[name] = newChat(name, p)
	u.order = append(u.order, name)
	return nil
}

// SelectChat makes the named chat active and returns its transcript.
func (u *User) SelectChat(name string) ([]model.Message, error) {
	u.mu.Lock()
	c, ok := u.chats[name]
	if ok {
		u.active = name
	}
	u.mu.Unlock()

	if !ok {
		return nil, withOp("select chat", ErrChatNotFound)
	}
	return c.History(), nil
}

// ListChats returns every chat in creation order.
func (u *User) ListChats() ([]Summary, error) {
	u.mu.Lock()
	chats := make([]*Chat, 0, len(u.order))
	for _, name := range u.order {
		chats = append(chats, u.chats[name])
	}
	u.mu.Unlock()

	if len(chats) == 0 {
		return nil, withOp("list chats", ErrNoChats)
	}

	summaries := make([]Summary, 0, len(chats))
	for _, c := range chats {
		summaries = append(summaries, c.Summary())
	}
	return summaries, nil
}

// ActiveChat returns the name of the selected chat.
func (u *User) ActiveChat() (string, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.active, u.active != ""
}

// ExitChat clears the active chat.
func (u *User) ExitChat() error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.active == "" {
		return withOp("exit chat", ErrNoActiveChat)
	}
	u.active = ""
	return nil
}

// DeleteChat removes the named chat, clearing the selection if it was active.
func (u *User) DeleteChat(name string) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if _, ok := u.chats[name]; !ok {
		return withOp("delete chat", ErrChatNotFound)
	}
	if u.active == name {
		u.active = ""
	}
	delete(u.chats, name)
	for i, n := range u.order {
		if n == name {
			u.order = append(u.order[:i], u.order[i+1:]...)
			break
		}
	}
	return nil
}

// CompleteChat runs a completion turn on the active chat. The user lock is
// released before the model is called.
func (u *User) CompleteChat(ctx context.Context, text string, prompts PromptProvider, completer Completer, timeout time.Duration) (Turn, error) {
	u.mu.Lock()
	c := u.chats[u.active]
	u.mu.Unlock()

	if c == nil {
		return Turn{}, withOp("complete chat", ErrNoActiveChat)
	}
	return c.Complete(ctx, text, u.username, prompts, completer, timeout)
}
