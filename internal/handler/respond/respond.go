package respond

import (
	"errors"
	"net/http"

	chatService "github.com/zhouzirui/philo-chat/backend/internal/service/chat"
	"github.com/zhouzirui/philo-chat/backend/pkg/utils"
)

// StatusCode maps a domain status to an HTTP status code.
func StatusCode(status chatService.Status) int {
	switch status {
	case chatService.Success:
		return http.StatusOK
	case chatService.BadRequest:
		return http.StatusBadRequest
	case chatService.NotFound:
		return http.StatusNotFound
	case chatService.PermissionDenied:
		return http.StatusUnauthorized
	case chatService.LLMError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error writes err as {"error", "status"} with the mapped code. Only the
// sentinel message is exposed, never the wrapped cause.
func Error(w http.ResponseWriter, err error) {
	status := chatService.StatusOf(err)
	message := err.Error()
	var domainErr *chatService.Error
	if errors.As(err, &domainErr) {
		message = domainErr.Msg
	}
	utils.RespondStatusError(w, StatusCode(status), message, status.String())
}

// Message writes a {"message": ...} body.
func Message(w http.ResponseWriter, code int, message string) {
	utils.RespondMessage(w, code, message)
}

// NoSession is written when a route runs without the seat middleware.
func NoSession(w http.ResponseWriter) {
	utils.RespondError(w, http.StatusInternalServerError, "session unavailable")
}
