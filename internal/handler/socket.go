package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"sudooom.im.chat/internal/config"
	"sudooom.im.chat/internal/connection"
	"sudooom.im.chat/internal/middleware"
	"sudooom.im.chat/internal/model"
)

// PresenceTracker 由 service.PresenceService 实现
type PresenceTracker interface {
	Connect(ctx context.Context, conn connection.Conn)
	Disconnect(ctx context.Context, conn connection.Conn)
}

// TypingRelay 由 service.TypingService 实现
type TypingRelay interface {
	Typing(ctx context.Context, senderID int64, data model.TypingData)
	StopTyping(ctx context.Context, senderID int64, data model.TypingData)
}

// SocketHandler 推送通道入口
// 携带有效会话的连接注册为在线用户；匿名连接只接收在线列表广播
type SocketHandler struct {
	auth       middleware.Authenticator
	presence   PresenceTracker
	typing     TypingRelay
	upgrader   websocket.Upgrader
	opts       connection.Options
	cookieName string
	logger     *slog.Logger
}

// NewSocketHandler 创建推送通道处理器
func NewSocketHandler(auth middleware.Authenticator, presence PresenceTracker, typing TypingRelay, wsCfg config.WebSocketConfig, cors config.CORSConfig, cookieName string) *SocketHandler {
	allowAny := slices.Contains(cors.AllowedOrigins, "*")
	return &SocketHandler{
		auth:     auth,
		presence: presence,
		typing:   typing,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  wsCfg.ReadBufferSize,
			WriteBufferSize: wsCfg.WriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowAny || slices.Contains(cors.AllowedOrigins, origin)
			},
		},
		opts: connection.Options{
			SendBufferSize: wsCfg.SendBufferSize,
			PongWait:       wsCfg.PongWait,
		},
		cookieName: cookieName,
		logger:     slog.Default(),
	}
}

// Serve 升级连接并阻塞直到客户端断开
func (h *SocketHandler) Serve(c *gin.Context) {
	userID := h.identify(c)

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", "remoteAddr", c.Request.RemoteAddr, "error", err)
		return
	}

	conn := connection.NewConnection(ws, userID, h.opts, h.logger)
	ctx := context.WithoutCancel(c.Request.Context())

	h.presence.Connect(ctx, conn)
	h.logger.Info("Client connected", "connId", conn.ID(), "userId", userID)

	err = conn.ReadLoop(func(data []byte) {
		h.handleFrame(ctx, conn, data)
	})

	conn.Close()
	h.presence.Disconnect(ctx, conn)
	if err != nil {
		h.logger.Debug("Client read loop ended", "connId", conn.ID(), "userId", userID, "error", err)
	}
	h.logger.Info("Client disconnected", "connId", conn.ID(), "userId", userID)
}

// identify 会话无效时降级为匿名连接
func (h *SocketHandler) identify(c *gin.Context) int64 {
	token := middleware.TokenFromRequest(c, h.cookieName)
	if token == "" {
		return 0
	}
	user, _, err := h.auth.Authenticate(c.Request.Context(), token)
	if err != nil {
		h.logger.Debug("Socket session rejected, connecting anonymously", "error", err)
		return 0
	}
	return user.ID
}

func (h *SocketHandler) handleFrame(ctx context.Context, conn connection.Conn, data []byte) {
	if conn.UserID() <= 0 {
		return
	}

	var frame model.InboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		h.logger.Debug("Drop malformed frame", "connId", conn.ID(), "error", err)
		return
	}

	switch frame.Event {
	case model.EventTyping:
		h.typing.Typing(ctx, conn.UserID(), frame.Data)
	case model.EventStopTyping:
		h.typing.StopTyping(ctx, conn.UserID(), frame.Data)
	default:
		h.logger.Debug("Drop unknown event", "connId", conn.ID(), "event", frame.Event)
	}
}
