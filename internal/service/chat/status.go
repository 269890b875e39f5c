package chat

import (
	"errors"
	"fmt"
)

// Status is the closed set of outcomes every operation resolves to.
type Status int

const (
	Success Status = iota
	BadRequest
	NotFound
	PermissionDenied
	LLMError
)

func (s Status) String() string {
	switch s {
	case Success:
		return "success"
	case BadRequest:
		return "bad_request"
	case NotFound:
		return "not_found"
	case PermissionDenied:
		return "permission_denied"
	case LLMError:
		return "llm_error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Error carries the Status of a failed operation.
type Error struct {
	Status Status
	Op     string
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Msg
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinels by status and message so that errors tagged with an
// operation name still compare equal to the bare sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Status == e.Status && t.Msg == e.Msg
}

var (
	ErrAlreadyAuthenticated  = &Error{Status: PermissionDenied, Msg: "a user is already logged in"}
	ErrNotLoggedIn           = &Error{Status: PermissionDenied, Msg: "no user is logged in"}
	ErrNotAuthenticated      = &Error{Status: BadRequest, Msg: "login required"}
	ErrUsernameTaken         = &Error{Status: BadRequest, Msg: "username already exists"}
	ErrUserNotFound          = &Error{Status: NotFound, Msg: "user not found"}
	ErrWrongPassword         = &Error{Status: PermissionDenied, Msg: "incorrect password"}
	ErrChatNameRequired      = &Error{Status: BadRequest, Msg: "chat name is required"}
	ErrChatExists            = &Error{Status: BadRequest, Msg: "chat already exists"}
	ErrChatNotFound          = &Error{Status: NotFound, Msg: "chat not found"}
	ErrNoChats               = &Error{Status: NotFound, Msg: "no chats"}
	ErrNoActiveChat          = &Error{Status: BadRequest, Msg: "no chat selected"}
	ErrPhilosopherNotFound   = &Error{Status: NotFound, Msg: "philosopher not found"}
	ErrNoPhilosophers        = &Error{Status: NotFound, Msg: "no philosophers available"}
	ErrCompletionUnavailable = &Error{Status: LLMError, Msg: "completion service unavailable"}
	ErrCompletionFailed      = &Error{Status: LLMError, Msg: "completion failed"}
)

// StatusOf reports the Status carried by err. A nil error is Success and an
// error that is not a *Error is treated as BadRequest.
func StatusOf(err error) Status {
	if err == nil {
		return Success
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return BadRequest
}

// withOp tags a sentinel with the operation that produced it.
func withOp(op string, sentinel *Error) error {
	return &Error{Status: sentinel.Status, Op: op, Msg: sentinel.Msg}
}
