// Package console implements the interactive terminal client. It drives a
// single in-process Session, one command per line.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	model "github.com/zhouzirui/philo-chat/backend/internal/model/chat"
	"github.com/zhouzirui/philo-chat/backend/internal/model/philosopher"
	"github.com/zhouzirui/philo-chat/backend/internal/service/chat"
)

const (
	cmdSignup           = "signup"
	cmdLogin            = "login"
	cmdLogout           = "logout"
	cmdDeleteAccount    = "delete_account"
	cmdNewChat          = "new_chat"
	cmdSelectChat       = "select_chat"
	cmdListChats        = "list_chats"
	cmdExitChat         = "exit_chat"
	cmdDeleteChat       = "delete_chat"
	cmdListPhilosophers = "list_philosophers"
	cmdHelp             = "help"
	cmdExit             = "exit"
)

var commands = []string{
	cmdSignup, cmdLogin, cmdLogout, cmdDeleteAccount, cmdNewChat, cmdSelectChat,
	cmdListChats, cmdExitChat, cmdDeleteChat, cmdListPhilosophers, cmdHelp, cmdExit,
}

// PasswordReader reads a secret after printing prompt.
type PasswordReader func(prompt string) (string, error)

// REPL reads commands from in and writes results to out.
type REPL struct {
	session      *chat.Session
	in           *bufio.Scanner
	out          io.Writer
	readPassword PasswordReader
}

// New creates a REPL bound to session. Passwords are read from in like any
// other line unless SetPasswordReader is used.
func New(session *chat.Session, in io.Reader, out io.Writer) *REPL {
	return &REPL{
		session: session,
		in:      bufio.NewScanner(in),
		out:     out,
	}
}

// SetPasswordReader installs a reader used for password prompts.
func (r *REPL) SetPasswordReader(fn PasswordReader) {
	r.readPassword = fn
}

// Run processes commands until exit, end of input, or ctx is done.
func (r *REPL) Run(ctx context.Context) error {
	r.println("Welcome to Philosopher Chat!")
	r.println(helpMenu())

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		command, err := r.prompt("Please enter the command: ")
		if err != nil {
			return ignoreEOF(err)
		}

		switch strings.TrimSpace(command) {
		case cmdExit:
			return nil
		case cmdHelp:
			r.println(helpMenu())
		case "":
		default:
			if err := r.dispatch(ctx, strings.TrimSpace(command)); err != nil {
				return ignoreEOF(err)
			}
		}
	}
}

func (r *REPL) dispatch(ctx context.Context, command string) error {
	switch command {
	case cmdSignup:
		username, password, err := r.credentials()
		if err != nil {
			return err
		}
		r.report(r.session.Signup(username, password))
	case cmdLogin:
		username, password, err := r.credentials()
		if err != nil {
			return err
		}
		r.report(r.session.Login(username, password))
	case cmdLogout:
		r.report(r.session.Logout())
	case cmdDeleteAccount:
		r.report(r.session.DeleteAccount())
	case cmdNewChat:
		return r.newChat()
	case cmdSelectChat:
		name, err := r.prompt("Enter the chat name: ")
		if err != nil {
			return err
		}
		return r.chatLoop(ctx, name)
	case cmdListChats:
		chats, err := r.session.ListChats()
		if err == nil {
			for _, c := range chats {
				r.printf("%s\tPhilosopher-> %s\n", c.Name, c.Philosopher.Name)
			}
		}
		r.report(err)
	case cmdDeleteChat:
		name, err := r.prompt("Enter the chat name: ")
		if err != nil {
			return err
		}
		r.report(r.session.DeleteChat(name))
	case cmdListPhilosophers:
		list, err := r.session.ListPhilosophers()
		if err == nil {
			r.printPhilosophers(list)
		}
		r.report(err)
	default:
		r.println("Please enter a valid command.")
	}
	return nil
}

func (r *REPL) newChat() error {
	name, err := r.prompt("Enter the chat name: ")
	if err != nil {
		return err
	}

	list, err := r.session.ListPhilosophers()
	if err != nil {
		r.println("No philosophers found.")
		return nil
	}
	r.printPhilosophers(list)

	choice, err := r.prompt("Choose a philosopher by number: ")
	if err != nil {
		return err
	}
	n, convErr := strconv.Atoi(strings.TrimSpace(choice))
	if convErr != nil {
		r.println("Invalid input. Please enter a valid number.")
		return nil
	}
	if n < 1 || n > len(list) {
		r.println("Invalid choice.")
		return nil
	}

	r.report(r.session.NewChat(name, list[n-1].ID))
	return nil
}

// chatLoop selects name and sends every line as a turn until exit_chat.
func (r *REPL) chatLoop(ctx context.Context, name string) error {
	history, err := r.session.SelectChat(name)
	if err != nil {
		r.report(err)
		return nil
	}
	for _, msg := range history {
		r.printMessage(msg)
	}

	for {
		if _, ok := r.session.ActiveChat(); !ok {
			break
		}
		text, err := r.prompt("Enter your message (type 'exit_chat' to leave): ")
		if err != nil {
			return err
		}
		if strings.TrimSpace(text) == cmdExitChat {
			r.report(r.session.ExitChat())
			break
		}

		turn, err := r.session.CompleteChat(ctx, text)
		if err != nil {
			r.printf("Error: %s\n", describe(err))
			continue
		}
		r.printMessage(turn.User)
		r.printMessage(turn.Assistant)
	}

	r.println("Exited chat.")
	return nil
}

func (r *REPL) credentials() (string, string, error) {
	username, err := r.prompt("Enter your username: ")
	if err != nil {
		return "", "", err
	}
	var password string
	if r.readPassword != nil {
		password, err = r.readPassword("Enter your password: ")
	} else {
		password, err = r.prompt("Enter your password: ")
	}
	if err != nil {
		return "", "", err
	}
	return strings.TrimSpace(username), password, nil
}

func (r *REPL) prompt(label string) (string, error) {
	fmt.Fprint(r.out, label)
	if !r.in.Scan() {
		if err := r.in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.in.Text(), nil
}

func (r *REPL) report(err error) {
	r.println(describe(err))
}

func (r *REPL) printPhilosophers(list []philosopher.Philosopher) {
	for i, p := range list {
		r.printf("%d. %s\n", i+1, p.Name)
	}
}

func (r *REPL) printMessage(msg model.Message) {
	r.println(strings.Repeat("-", 50))
	r.printf("[%s] %s →\n%s\n", msg.CreatedAt.Format("2006-01-02 15:04:05"), msg.Author, msg.Content)
}

func (r *REPL) println(s string) {
	fmt.Fprintln(r.out, s)
}

func (r *REPL) printf(format string, args ...any) {
	fmt.Fprintf(r.out, format, args...)
}

// describe renders an operation outcome as a status line.
func describe(err error) string {
	if err == nil {
		return chat.Success.String()
	}
	var domainErr *chat.Error
	if errors.As(err, &domainErr) {
		return fmt.Sprintf("%s: %s", domainErr.Status, domainErr.Msg)
	}
	return err.Error()
}

func helpMenu() string {
	var b strings.Builder
	b.WriteString("Available commands:")
	for _, c := range commands {
		b.WriteString("\n\t-")
		b.WriteString(c)
	}
	return b.String()
}

func ignoreEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
