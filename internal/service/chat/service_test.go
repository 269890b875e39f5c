package chat_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	model "github.com/zhouzirui/philo-chat/backend/internal/model/chat"
	"github.com/zhouzirui/philo-chat/backend/internal/model/philosopher"
	chat "github.com/zhouzirui/philo-chat/backend/internal/service/chat"
)

type stubCompleter struct {
	mu      sync.Mutex
	reply   string
	err     error
	delay   time.Duration
	prompts []string
	seen    [][]model.Message
}

func (s *stubCompleter) Complete(ctx context.Context, systemPrompt string, history []model.Message) (string, error) {
	s.mu.Lock()
	s.prompts = append(s.prompts, systemPrompt)
	s.seen = append(s.seen, history)
	s.mu.Unlock()

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

type namePrompts struct{}

func (namePrompts) Prompt(p philosopher.Philosopher) string { return "You are " + p.Name }

func newSession(completer chat.Completer) *chat.Session {
	return chat.NewSession(chat.Options{
		Philosophers: philosopher.NewMemoryStore(philosopher.Seed()),
		Prompts:      namePrompts{},
		Completer:    completer,
		Timeout:      time.Second,
	})
}

func loggedIn(t *testing.T, completer chat.Completer) *chat.Session {
	t.Helper()
	s := newSession(completer)
	if err := s.Signup("ada", "pw12"); err != nil {
		t.Fatalf("Signup err: %v", err)
	}
	if err := s.Login("ada", "pw12"); err != nil {
		t.Fatalf("Login err: %v", err)
	}
	return s
}

func expectStatus(t *testing.T, err error, want chat.Status) {
	t.Helper()
	if got := chat.StatusOf(err); got != want {
		t.Fatalf("unexpected status: got %s want %s (err=%v)", got, want, err)
	}
}

func TestSignupDuplicateUsername(t *testing.T) {
	s := newSession(nil)

	expectStatus(t, s.Signup("ada", "pw12"), chat.Success)
	err := s.Signup("ada", "other")
	expectStatus(t, err, chat.BadRequest)
	if !errors.Is(err, chat.ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestSignupWhileLoggedInDenied(t *testing.T) {
	s := loggedIn(t, nil)
	expectStatus(t, s.Signup("bob", "pw12"), chat.PermissionDenied)
}

func TestLoginOutcomes(t *testing.T) {
	s := newSession(nil)
	expectStatus(t, s.Signup("ada", "pw12"), chat.Success)

	expectStatus(t, s.Login("nobody", "pw12"), chat.NotFound)
	expectStatus(t, s.Login("ada", "wrong"), chat.PermissionDenied)
	expectStatus(t, s.Login("ada", "pw12"), chat.Success)

	// A second login is refused whatever the credentials.
	expectStatus(t, s.Login("ada", "pw12"), chat.PermissionDenied)
	expectStatus(t, s.Login("nobody", "x"), chat.PermissionDenied)

	if name, ok := s.CurrentUser(); !ok || name != "ada" {
		t.Fatalf("unexpected current user %q %v", name, ok)
	}
}

func TestLogoutRequiresLogin(t *testing.T) {
	s := newSession(nil)
	expectStatus(t, s.Logout(), chat.PermissionDenied)

	s = loggedIn(t, nil)
	expectStatus(t, s.Logout(), chat.Success)
	if _, ok := s.CurrentUser(); ok {
		t.Fatal("expected no current user after logout")
	}
}

func TestDeleteAccountRemovesUser(t *testing.T) {
	s := newSession(nil)
	expectStatus(t, s.DeleteAccount(), chat.PermissionDenied)

	expectStatus(t, s.Signup("ada", "pw12"), chat.Success)
	expectStatus(t, s.Login("ada", "pw12"), chat.Success)
	expectStatus(t, s.DeleteAccount(), chat.Success)

	if _, ok := s.CurrentUser(); ok {
		t.Fatal("expected logout after account deletion")
	}
	expectStatus(t, s.Login("ada", "pw12"), chat.NotFound)
}

func TestChatOperationsRequireLogin(t *testing.T) {
	s := newSession(nil)

	expectStatus(t, s.NewChat("c1", 0), chat.BadRequest)
	_, err := s.SelectChat("c1")
	expectStatus(t, err, chat.BadRequest)
	_, err = s.ListChats()
	expectStatus(t, err, chat.BadRequest)
	expectStatus(t, s.ExitChat(), chat.BadRequest)
	expectStatus(t, s.DeleteChat("c1"), chat.BadRequest)
	_, err = s.CompleteChat(context.Background(), "hi")
	expectStatus(t, err, chat.BadRequest)
}

func TestNewChatDuplicateName(t *testing.T) {
	s := loggedIn(t, nil)

	expectStatus(t, s.NewChat("c1", 0), chat.Success)
	expectStatus(t, s.NewChat("c1", 2), chat.BadRequest)
}

func TestNewChatUnknownPhilosopher(t *testing.T) {
	s := loggedIn(t, nil)

	err := s.NewChat("c1", 99)
	expectStatus(t, err, chat.NotFound)
	if !errors.Is(err, chat.ErrPhilosopherNotFound) {
		t.Fatalf("expected ErrPhilosopherNotFound, got %v", err)
	}
	_, err = s.ListChats()
	expectStatus(t, err, chat.NotFound)
}

func TestDeletingActiveChatClearsSelection(t *testing.T) {
	s := loggedIn(t, nil)

	expectStatus(t, s.NewChat("c1", 0), chat.Success)
	_, err := s.SelectChat("c1")
	expectStatus(t, err, chat.Success)
	expectStatus(t, s.DeleteChat("c1"), chat.Success)
	expectStatus(t, s.ExitChat(), chat.BadRequest)

	expectStatus(t, s.DeleteChat("c1"), chat.NotFound)
}

func TestSelectingAnotherChatSwitchesActive(t *testing.T) {
	s := loggedIn(t, &stubCompleter{reply: "ok"})

	expectStatus(t, s.NewChat("c1", 0), chat.Success)
	expectStatus(t, s.NewChat("c2", 1), chat.Success)
	if _, err := s.SelectChat("c1"); err != nil {
		t.Fatalf("SelectChat err: %v", err)
	}
	if _, err := s.SelectChat("c2"); err != nil {
		t.Fatalf("SelectChat err: %v", err)
	}
	if name, _ := s.ActiveChat(); name != "c2" {
		t.Fatalf("expected c2 active, got %q", name)
	}

	turn, err := s.CompleteChat(context.Background(), "hello")
	if err != nil {
		t.Fatalf("CompleteChat err: %v", err)
	}
	if turn.Assistant.Author != "Plato" {
		t.Fatalf("expected reply from Plato, got %s", turn.Assistant.Author)
	}

	_, err = s.SelectChat("missing")
	expectStatus(t, err, chat.NotFound)
}

func TestListChatsIsStable(t *testing.T) {
	s := loggedIn(t, nil)
	expectStatus(t, s.NewChat("c1", 0), chat.Success)
	expectStatus(t, s.NewChat("c2", 3), chat.Success)

	first, err := s.ListChats()
	if err != nil {
		t.Fatalf("ListChats err: %v", err)
	}
	second, err := s.ListChats()
	if err != nil {
		t.Fatalf("ListChats err: %v", err)
	}
	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("unexpected chat counts %d %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Name != second[i].Name || first[i].Philosopher != second[i].Philosopher {
			t.Fatalf("listing changed between calls: %+v vs %+v", first[i], second[i])
		}
	}
}

func TestCompleteChatWithoutActiveChat(t *testing.T) {
	s := loggedIn(t, &stubCompleter{reply: "ok"})
	expectStatus(t, s.NewChat("c1", 0), chat.Success)

	_, err := s.CompleteChat(context.Background(), "hello")
	expectStatus(t, err, chat.BadRequest)
}

func TestCompletionFailureKeepsUserMessage(t *testing.T) {
	s := loggedIn(t, &stubCompleter{err: errors.New("quota exceeded")})
	expectStatus(t, s.NewChat("c1", 0), chat.Success)
	if _, err := s.SelectChat("c1"); err != nil {
		t.Fatalf("SelectChat err: %v", err)
	}

	for i := 0; i < 2; i++ {
		_, err := s.CompleteChat(context.Background(), "are you there?")
		expectStatus(t, err, chat.LLMError)
	}

	history, err := s.SelectChat("c1")
	if err != nil {
		t.Fatalf("SelectChat err: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected both unanswered turns recorded, got %d", len(history))
	}
	last := history[len(history)-1]
	if last.Author != "ada" || last.Content != "are you there?" || last.Role != model.RoleUser {
		t.Fatalf("unexpected last message: %+v", last)
	}
}

func TestCompletionTimeoutIsLLMError(t *testing.T) {
	s := chat.NewSession(chat.Options{
		Philosophers: philosopher.NewMemoryStore(philosopher.Seed()),
		Completer:    &stubCompleter{reply: "late", delay: time.Second},
		Timeout:      20 * time.Millisecond,
	})
	expectStatus(t, s.Signup("ada", "pw12"), chat.Success)
	expectStatus(t, s.Login("ada", "pw12"), chat.Success)
	expectStatus(t, s.NewChat("c1", 0), chat.Success)
	if _, err := s.SelectChat("c1"); err != nil {
		t.Fatalf("SelectChat err: %v", err)
	}

	_, err := s.CompleteChat(context.Background(), "hello")
	expectStatus(t, err, chat.LLMError)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded in chain, got %v", err)
	}
}

func TestCompletionWithoutCompleter(t *testing.T) {
	s := loggedIn(t, nil)
	expectStatus(t, s.NewChat("c1", 0), chat.Success)
	if _, err := s.SelectChat("c1"); err != nil {
		t.Fatalf("SelectChat err: %v", err)
	}

	_, err := s.CompleteChat(context.Background(), "hello")
	if !errors.Is(err, chat.ErrCompletionUnavailable) {
		t.Fatalf("expected ErrCompletionUnavailable, got %v", err)
	}
}

func TestListPhilosophers(t *testing.T) {
	s := newSession(nil)
	list, err := s.ListPhilosophers()
	if err != nil {
		t.Fatalf("ListPhilosophers err: %v", err)
	}
	if len(list) != 5 {
		t.Fatalf("expected 5 philosophers, got %d", len(list))
	}

	empty := chat.NewSession(chat.Options{Philosophers: philosopher.NewMemoryStore(nil)})
	_, err = empty.ListPhilosophers()
	expectStatus(t, err, chat.NotFound)
}

func TestEndToEndScenario(t *testing.T) {
	completer := &stubCompleter{reply: "Hi there"}
	s := newSession(completer)
	ctx := context.Background()

	expectStatus(t, s.Signup("ada", "pw12"), chat.Success)
	expectStatus(t, s.Login("ada", "pw12"), chat.Success)
	expectStatus(t, s.NewChat("c1", 0), chat.Success)

	history, err := s.SelectChat("c1")
	if err != nil {
		t.Fatalf("SelectChat err: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("expected empty history, got %d", len(history))
	}

	turn, err := s.CompleteChat(ctx, "Hello")
	if err != nil {
		t.Fatalf("CompleteChat err: %v", err)
	}
	if turn.Assistant.Content != "Hi there" || turn.Assistant.Author != "Socrates" {
		t.Fatalf("unexpected assistant message: %+v", turn.Assistant)
	}
	if turn.User.Content != "Hello" || turn.User.Author != "ada" {
		t.Fatalf("unexpected user message: %+v", turn.User)
	}

	if len(completer.seen) != 1 || len(completer.seen[0]) != 1 || completer.seen[0][0].Content != "Hello" {
		t.Fatalf("completer should see the just-sent message, got %+v", completer.seen)
	}
	if completer.prompts[0] != "You are Socrates" {
		t.Fatalf("unexpected system prompt %q", completer.prompts[0])
	}

	chats, err := s.ListChats()
	if err != nil {
		t.Fatalf("ListChats err: %v", err)
	}
	if len(chats) != 1 || chats[0].Name != "c1" || chats[0].Messages != 2 {
		t.Fatalf("unexpected chats: %+v", chats)
	}

	expectStatus(t, s.DeleteChat("c1"), chat.Success)
	_, err = s.ListChats()
	expectStatus(t, err, chat.NotFound)
}

func TestConcurrentTurnsOnSameChatDoNotInterleave(t *testing.T) {
	s := loggedIn(t, &stubCompleter{reply: "yes", delay: 5 * time.Millisecond})
	expectStatus(t, s.NewChat("c1", 0), chat.Success)
	if _, err := s.SelectChat("c1"); err != nil {
		t.Fatalf("SelectChat err: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.CompleteChat(context.Background(), "q"); err != nil {
				t.Errorf("CompleteChat err: %v", err)
			}
		}()
	}
	wg.Wait()

	history, err := s.SelectChat("c1")
	if err != nil {
		t.Fatalf("SelectChat err: %v", err)
	}
	if len(history) != 16 {
		t.Fatalf("expected 16 messages, got %d", len(history))
	}
	for i, msg := range history {
		want := model.RoleUser
		if i%2 == 1 {
			want = model.RoleAssistant
		}
		if msg.Role != want {
			t.Fatalf("message %d has role %s, want %s", i, msg.Role, want)
		}
	}
}

func TestBlankChatNameIsRejected(t *testing.T) {
	s := loggedIn(t, &stubCompleter{reply: "ok"})

	expectStatus(t, s.NewChat("", 0), chat.BadRequest)
	expectStatus(t, s.NewChat("   ", 0), chat.BadRequest)

	_, err := s.CompleteChat(context.Background(), "hello")
	expectStatus(t, err, chat.BadRequest)
	if _, ok := s.ActiveChat(); ok {
		t.Fatal("expected no active chat")
	}

	_, err = s.SelectChat("")
	expectStatus(t, err, chat.NotFound)
	expectStatus(t, s.ExitChat(), chat.BadRequest)
}

type gateCompleter struct {
	started chan struct{}
	release chan struct{}
}

func (g *gateCompleter) Complete(ctx context.Context, _ string, _ []model.Message) (string, error) {
	close(g.started)
	select {
	case <-g.release:
		return "done", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func TestReadsDoNotWaitForInFlightTurn(t *testing.T) {
	gate := &gateCompleter{started: make(chan struct{}), release: make(chan struct{})}
	s := loggedIn(t, gate)
	if err := s.NewChat("agora", 0); err != nil {
		t.Fatalf("NewChat err: %v", err)
	}
	if _, err := s.SelectChat("agora"); err != nil {
		t.Fatalf("SelectChat err: %v", err)
	}

	turnDone := make(chan error, 1)
	go func() {
		_, err := s.CompleteChat(context.Background(), "hello")
		turnDone <- err
	}()
	<-gate.started

	readsDone := make(chan struct{})
	go func() {
		defer close(readsDone)
		if chats, err := s.ListChats(); err != nil || chats[0].Messages != 1 {
			t.Errorf("ListChats during turn: %+v, err=%v", chats, err)
		}
		if history, err := s.SelectChat("agora"); err != nil || len(history) != 1 {
			t.Errorf("SelectChat during turn: %d messages, err=%v", len(history), err)
		}
	}()

	select {
	case <-readsDone:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("reads blocked behind the completion call")
	}

	close(gate.release)
	if err := <-turnDone; err != nil {
		t.Fatalf("CompleteChat err: %v", err)
	}
	history, _ := s.SelectChat("agora")
	if len(history) != 2 {
		t.Fatalf("expected 2 messages after the turn, got %d", len(history))
	}
}
