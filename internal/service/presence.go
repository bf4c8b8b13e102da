package service

import (
	"context"
	"log/slog"

	"sudooom.im.chat/internal/connection"
	"sudooom.im.chat/internal/metrics"
	"sudooom.im.chat/internal/model"
)

// PresenceService 在线状态服务
// 本节点状态由 connection.Manager 维护，mirror 可选，用于多节点共享在线列表
type PresenceService struct {
	manager    *connection.Manager
	mirror     PresenceMirror
	dispatcher *DispatcherService
	logger     *slog.Logger
}

// NewPresenceService 创建在线状态服务，mirror 可以为 nil
func NewPresenceService(manager *connection.Manager, mirror PresenceMirror, dispatcher *DispatcherService) *PresenceService {
	return &PresenceService{
		manager:    manager,
		mirror:     mirror,
		dispatcher: dispatcher,
		logger:     slog.Default(),
	}
}

// Connect 注册连接并广播在线列表；匿名连接只接收广播，不进入在线表
func (s *PresenceService) Connect(ctx context.Context, conn connection.Conn) {
	previous := s.manager.Add(conn)
	if previous != nil {
		s.logger.Info("User connection replaced",
			"userId", conn.UserID(),
			"previousConnId", previous.ID(),
			"connId", conn.ID())
	}

	if conn.UserID() > 0 {
		if s.mirror != nil {
			if err := s.mirror.SetOnline(ctx, conn.UserID(), conn.ID()); err != nil {
				s.logger.Error("Failed to mirror online state", "userId", conn.UserID(), "error", err)
			}
		}
		s.dispatcher.Takeover(conn.UserID(), conn.CreateTime())
	}

	s.updateGauges()
	s.broadcastOnlineUsers(ctx)
}

// Disconnect 注销连接；只有仍是当前连接时才会让用户下线
func (s *PresenceService) Disconnect(ctx context.Context, conn connection.Conn) {
	removed := s.manager.Remove(conn)

	if removed && s.mirror != nil {
		if _, err := s.mirror.SetOffline(ctx, conn.UserID(), conn.ID()); err != nil {
			s.logger.Error("Failed to mirror offline state", "userId", conn.UserID(), "error", err)
		}
	}

	s.updateGauges()
	s.broadcastOnlineUsers(ctx)
}

// IsOnline 用户是否在本节点在线
func (s *PresenceService) IsOnline(userID int64) bool {
	_, ok := s.manager.GetByUserID(userID)
	return ok
}

// OnlineUsers 在线用户列表；mirror 不可用时退化为本节点视图
func (s *PresenceService) OnlineUsers(ctx context.Context) model.IDList {
	if s.mirror != nil {
		ids, err := s.mirror.OnlineUsers(ctx)
		if err == nil {
			return model.IDList(ids)
		}
		s.logger.Warn("Failed to read online users from mirror", "error", err)
	}
	return model.IDList(s.manager.OnlineUserIDs())
}

func (s *PresenceService) broadcastOnlineUsers(ctx context.Context) {
	s.dispatcher.Broadcast(model.EventGetOnlineUsers, s.OnlineUsers(ctx))
}

func (s *PresenceService) updateGauges() {
	metrics.ConnectionsActive.Set(float64(s.manager.Count()))
	metrics.UsersOnline.Set(float64(len(s.manager.OnlineUserIDs())))
}
