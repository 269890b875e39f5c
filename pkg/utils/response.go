package utils

import (
	"encoding/json"
	"log"
	"net/http"
)

// ErrorBody 错误响应体。Status 为领域状态（如 not_found），仅领域错误携带。
type ErrorBody struct {
	Error  string `json:"error"`
	Status string `json:"status,omitempty"`
}

// RespondJSON 发送JSON响应
func RespondJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

// RespondError 发送错误响应（请求校验、限流等非领域错误）
func RespondError(w http.ResponseWriter, code int, message string) {
	RespondJSON(w, code, ErrorBody{Error: message})
}

// RespondStatusError 发送带领域状态的错误响应
func RespondStatusError(w http.ResponseWriter, code int, message, status string) {
	RespondJSON(w, code, ErrorBody{Error: message, Status: status})
}

// RespondMessage 发送 {"message": ...} 响应
func RespondMessage(w http.ResponseWriter, code int, message string) {
	RespondJSON(w, code, map[string]string{"message": message})
}
