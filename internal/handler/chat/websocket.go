package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zhouzirui/philo-chat/backend/internal/handler/respond"
	middlewarePkg "github.com/zhouzirui/philo-chat/backend/internal/middleware"
	chatService "github.com/zhouzirui/philo-chat/backend/internal/service/chat"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second
)

// WebSocketHandler 通过 WebSocket 进行对话轮次
type WebSocketHandler struct {
	upgrader     websocket.Upgrader
	readTimeout  time.Duration
	pingInterval time.Duration
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler() *WebSocketHandler {
	return newWebSocketHandler(readTimeout, pingInterval)
}

func newWebSocketHandler(read, ping time.Duration) *WebSocketHandler {
	return &WebSocketHandler{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		readTimeout:  read,
		pingInterval: ping,
	}
}

type inboundMessage struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// TextMessage 文本消息
type TextMessage struct {
	Text string `json:"text"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// handleWebSocket 处理WebSocket连接
// 读循环只负责收帧和处理 pong，对话轮次在单独的 goroutine 中顺序执行，
// 因此模型调用再慢也不会让读超时断开连接。
func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	session, ok := middlewarePkg.SessionFrom(r.Context())
	if !ok {
		respond.NoSession(w)
		return
	}

	// 升级前校验，错误仍以普通 HTTP 响应返回。
	if _, ok := session.ActiveChat(); !ok {
		respond.Error(w, chatService.ErrNoActiveChat)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadDeadline(time.Now().Add(h.readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(h.readTimeout))
		return nil
	})

	writes := make(chan outgoingMessage, 4)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writeLoop(ctx, cancel, conn, writes)
	}()
	// 先取消再等待写循环排空，之后才关闭连接
	defer func() {
		cancel()
		<-writerDone
	}()

	turns := make(chan inboundMessage, 4)
	go h.turnLoop(ctx, session, turns, writes)
	defer close(turns)

	name, _ := session.ActiveChat()
	writes <- outgoingMessage{Type: "connected", Data: map[string]string{"chatName": name}, Timestamp: time.Now().Unix()}

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[ws] read error: %v", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(h.readTimeout))

		select {
		case turns <- msg:
		case <-ctx.Done():
			return
		}
	}
}

// turnLoop 顺序处理收到的消息并把结果交给写循环
func (h *WebSocketHandler) turnLoop(ctx context.Context, session *chatService.Session, turns <-chan inboundMessage, writes chan<- outgoingMessage) {
	for msg := range turns {
		reply := h.handleMessage(ctx, session, &msg)
		select {
		case writes <- reply:
		case <-ctx.Done():
			return
		}
	}
}

func (h *WebSocketHandler) handleMessage(ctx context.Context, session *chatService.Session, msg *inboundMessage) outgoingMessage {
	switch msg.Type {
	case "text":
		var text TextMessage
		if err := json.Unmarshal(msg.Data, &text); err != nil {
			return errorMessage("invalid text payload", chatService.BadRequest)
		}
		if !validInput(text.Text) {
			return errorMessage("text must be 1-2000 characters", chatService.BadRequest)
		}

		turn, err := session.CompleteChat(ctx, text.Text)
		if err != nil {
			message := err.Error()
			var domainErr *chatService.Error
			if errors.As(err, &domainErr) {
				message = domainErr.Msg
			}
			return errorMessage(message, chatService.StatusOf(err))
		}
		return outgoingMessage{
			Type:      "result",
			Data:      map[string]any{"assistant": turn.Assistant, "user": turn.User},
			Timestamp: time.Now().Unix(),
		}
	default:
		return errorMessage("unsupported message type: "+msg.Type, chatService.BadRequest)
	}
}

func errorMessage(message string, status chatService.Status) outgoingMessage {
	return outgoingMessage{
		Type:      "error",
		Data:      map[string]string{"message": message, "status": status.String()},
		Timestamp: time.Now().Unix(),
	}
}

// writeLoop 串行写出消息并定期发送ping。ctx 结束时尽力写出已排队的消息。
func (h *WebSocketHandler) writeLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, writes <-chan outgoingMessage) {
	defer cancel()

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.drain(conn, writes)
			return
		case msg := <-writes:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("[ws] write failed: %v", err)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *WebSocketHandler) drain(conn *websocket.Conn, writes <-chan outgoingMessage) {
	for {
		select {
		case msg := <-writes:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		default:
			return
		}
	}
}
