package handler

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/hertz-contrib/websocket"
	"go.uber.org/zap"

	"StillStudying/internal/middleware"
	"StillStudying/internal/model/dto"
	"StillStudying/internal/service"
	bizerr "StillStudying/pkg/errors"
	"StillStudying/pkg/logger"
	"StillStudying/pkg/response"
)

// 入站事件名
const (
	eventStartSession    = "start_session"
	eventCheckInResponse = "check_in_response"
	eventEndSession      = "end_session"
	eventError           = "error"
)

// Envelope WebSocket 消息信封
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outEnvelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// wsClient 单个连接，写操作串行化
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (cl *wsClient) write(event string, data interface{}) error {
	raw, err := json.Marshal(outEnvelope{Event: event, Data: data})
	if err != nil {
		return err
	}

	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.conn.WriteMessage(websocket.TextMessage, raw)
}

// Hub 按用户维护连接集合，实现协调器的出站投递
// 同一用户允许多端在线，事件广播到该用户的全部连接
type Hub struct {
	mu      sync.RWMutex
	clients map[int64]map[*wsClient]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[int64]map[*wsClient]struct{})}
}

// Send 投递事件给用户的所有在线连接，无人在线静默丢弃
func (h *Hub) Send(userID int64, event string, data interface{}) {
	h.mu.RLock()
	set := h.clients[userID]
	targets := make([]*wsClient, 0, len(set))
	for cl := range set {
		targets = append(targets, cl)
	}
	h.mu.RUnlock()

	for _, cl := range targets {
		if err := cl.write(event, data); err != nil {
			logger.Logger.Warn("Failed to write websocket event",
				zap.Int64("user_id", userID),
				zap.String("event", event),
				zap.Error(err),
			)
		}
	}
}

func (h *Hub) add(userID int64, cl *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*wsClient]struct{})
	}
	h.clients[userID][cl] = struct{}{}
}

func (h *Hub) remove(userID int64, cl *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set := h.clients[userID]; set != nil {
		delete(set, cl)
		if len(set) == 0 {
			delete(h.clients, userID)
		}
	}
}

var hub = NewHub()

var upgrader = websocket.HertzUpgrader{
	CheckOrigin: func(c *app.RequestContext) bool {
		return true
	},
}

// WebSocketHandler 会话实时通道
// GET /v1/ws
// 断线只摘连接不动状态机，重连自动下发会话快照
func WebSocketHandler(ctx context.Context, c *app.RequestContext) {
	userID, ok := middleware.GetUserID(ctx, c)
	if !ok {
		response.Error(ctx, c, bizerr.ValidationFailed)
		return
	}

	err := upgrader.Upgrade(c, func(conn *websocket.Conn) {
		cl := &wsClient{conn: conn}
		hub.add(userID, cl)
		defer hub.remove(userID, cl)

		logger.Logger.Info("WebSocket connected", zap.Int64("user_id", userID))

		// 有活跃会话则立即下发快照，没有就静默
		if _, err := coordinator.Resume(context.Background(), userID); err != nil &&
			!bizerr.Is(err, bizerr.SessionNotActive) {
			logger.Logger.Error("Failed to resume session on connect",
				zap.Int64("user_id", userID),
				zap.Error(err),
			)
		}

		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				logger.Logger.Info("WebSocket disconnected",
					zap.Int64("user_id", userID),
					zap.Error(err),
				)
				return
			}
			dispatch(userID, cl, raw)
		}
	})
	if err != nil {
		logger.Logger.Error("WebSocket upgrade failed",
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
	}
}

// dispatch 处理一条入站消息，成功的回执由协调器经 Hub 广播
func dispatch(userID int64, cl *wsClient, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		sendError(cl, "INVALID_ENVELOPE", "malformed message envelope")
		return
	}

	ctx := context.Background()

	switch env.Event {
	case eventStartSession:
		var req dto.StartSessionRequest
		if err := json.Unmarshal(env.Data, &req); err != nil {
			sendError(cl, "INVALID_ENVELOPE", "malformed start_session data")
			return
		}
		scheduleID, err := service.ParseID(req.ScheduleID)
		if err != nil {
			sendError(cl, "VALIDATION_FAILED", "invalid schedule_id")
			return
		}
		if _, err := coordinator.StartSession(ctx, userID, scheduleID); err != nil {
			sendDefError(cl, err)
		}

	case eventCheckInResponse:
		var req dto.CheckInResponseRequest
		if err := json.Unmarshal(env.Data, &req); err != nil {
			sendError(cl, "INVALID_ENVELOPE", "malformed check_in_response data")
			return
		}
		_, _, err := coordinator.RespondCheckIn(ctx, userID, req.ChallengeID, req.StillStudying)
		if err != nil && !bizerr.Is(err, bizerr.ChallengeNotOutstanding) {
			// 陈旧/重复响应静默丢弃，其余错误回给客户端
			sendDefError(cl, err)
		}

	case eventEndSession:
		if _, err := coordinator.EndSession(ctx, userID); err != nil {
			sendDefError(cl, err)
		}

	default:
		sendError(cl, "UNKNOWN_EVENT", "unsupported event: "+env.Event)
	}
}

func sendError(cl *wsClient, code, message string) {
	_ = cl.write(eventError, map[string]string{
		"code":    code,
		"message": message,
	})
}

func sendDefError(cl *wsClient, err error) {
	if def, ok := err.(bizerr.Definition); ok {
		sendError(cl, def.Code, def.Message)
		return
	}
	sendError(cl, "INTERNAL_ERROR", "internal error")
}
