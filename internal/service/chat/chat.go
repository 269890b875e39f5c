package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	model "github.com/zhouzirui/philo-chat/backend/internal/model/chat"
	"github.com/zhouzirui/philo-chat/backend/internal/model/philosopher"
)

// PromptProvider returns the system prompt that primes the model for a philosopher.
type PromptProvider interface {
	Prompt(p philosopher.Philosopher) string
}

// Completer generates the philosopher's reply for a transcript.
type Completer interface {
	Complete(ctx context.Context, systemPrompt string, history []model.Message) (string, error)
}

// Chat is a named conversation bound to one philosopher.
type Chat struct {
	name        string
	philosopher philosopher.Philosopher
	createdAt   time.Time

	// turnMu is held for a whole completion turn so turns never interleave.
	// mu guards transcript and is only held for copies and appends, so
	// readers are not blocked behind the model call.
	turnMu     sync.Mutex
	mu         sync.Mutex
	transcript []model.Message
}

// Summary is the listing view of a chat.
type Summary struct {
	Name        string                  `json:"name"`
	Philosopher philosopher.Philosopher `json:"philosopher"`
	Messages    int                     `json:"messages"`
	CreatedAt   time.Time               `json:"createdAt"`
}

// Turn is the outcome of a successful completion, reply first.
type Turn struct {
	Assistant model.Message `json:"assistant"`
	User      model.Message `json:"user"`
}

func newChat(name string, p philosopher.Philosopher) *Chat {
	return &Chat{
		name:        name,
		philosopher: p,
		createdAt:   time.Now().UTC(),
		transcript:  make([]model.Message, 0, 16),
	}
}

// Name returns the chat name.
func (c *Chat) Name() string { return c.name }

// Philosopher returns the persona the chat is bound to.
func (c *Chat) Philosopher() philosopher.Philosopher { return c.philosopher }

// History returns a copy of the transcript.
func (c *Chat) History() []model.Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	copied := make([]model.Message, len(c.transcript))
	copy(copied, c.transcript)
	return copied
}

// Summary describes the chat for listings.
func (c *Chat) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Summary{
		Name:        c.name,
		Philosopher: c.philosopher,
		Messages:    len(c.transcript),
		CreatedAt:   c.createdAt,
	}
}

// Complete runs one completion turn. The user's message is appended before
// the model is called and is kept when the call fails.
func (c *Chat) Complete(ctx context.Context, text, author string, prompts PromptProvider, completer Completer, timeout time.Duration) (Turn, error) {
	const op = "complete chat"

	c.turnMu.Lock()
	defer c.turnMu.Unlock()

	userMsg := model.Message{
		ID:        uuid.NewString(),
		Role:      model.RoleUser,
		Author:    author,
		Content:   text,
		CreatedAt: time.Now().UTC(),
	}
	c.mu.Lock()
	c.transcript = append(c.transcript, userMsg)
	c.mu.Unlock()

	if completer == nil {
		return Turn{}, withOp(op, ErrCompletionUnavailable)
	}

	systemPrompt := ""
	if prompts != nil {
		systemPrompt = prompts.Prompt(c.philosopher)
	}

	history := c.History()

	callCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	reply, err := completer.Complete(callCtx, systemPrompt, history)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s: %w", timeout, err)
		}
		return Turn{}, &Error{Status: LLMError, Op: op, Msg: ErrCompletionFailed.Msg, Err: err}
	}

	assistantMsg := model.Message{
		ID:        uuid.NewString(),
		Role:      model.RoleAssistant,
		Author:    c.philosopher.Name,
		Content:   reply,
		CreatedAt: time.Now().UTC(),
	}
	c.mu.Lock()
	c.transcript = append(c.transcript, assistantMsg)
	c.mu.Unlock()

	return Turn{Assistant: assistantMsg, User: userMsg}, nil
}
