package service

import (
	"context"
	"log/slog"

	"sudooom.im.chat/internal/model"
)

// TypingService 输入状态转发
// 发送者身份取自连接，不信任客户端上报的 senderId；无效请求静默丢弃
type TypingService struct {
	resolver   *Resolver
	dispatcher *DispatcherService
	logger     *slog.Logger
}

// NewTypingService 创建输入状态服务
func NewTypingService(resolver *Resolver, dispatcher *DispatcherService) *TypingService {
	return &TypingService{
		resolver:   resolver,
		dispatcher: dispatcher,
		logger:     slog.Default(),
	}
}

// Typing 转发正在输入
func (s *TypingService) Typing(ctx context.Context, senderID int64, data model.TypingData) {
	s.forward(ctx, model.EventTyping, senderID, data, data.SenderName)
}

// StopTyping 转发停止输入
func (s *TypingService) StopTyping(ctx context.Context, senderID int64, data model.TypingData) {
	s.forward(ctx, model.EventStopTyping, senderID, data, "")
}

func (s *TypingService) forward(ctx context.Context, event string, senderID int64, data model.TypingData, senderName string) {
	if senderID <= 0 {
		return
	}

	switch data.ChatType {
	case model.ChatTypeGroup:
		if data.GroupID <= 0 {
			return
		}
		group, err := s.resolver.ResolveGroup(ctx, senderID, data.GroupID)
		if err != nil {
			s.logger.Debug("Drop typing event", "event", event, "groupId", data.GroupID, "senderId", senderID, "error", err)
			return
		}
		s.dispatcher.Notify(event, model.TypingPayload{
			ChatType:   model.ChatTypeGroup,
			GroupID:    data.GroupID,
			SenderID:   senderID,
			SenderName: senderName,
		}, group.Without(senderID)...)

	case model.ChatTypeDirect:
		if data.ReceiverID <= 0 || data.ReceiverID == senderID {
			return
		}
		s.dispatcher.Notify(event, model.TypingPayload{
			ChatType:   model.ChatTypeDirect,
			SenderID:   senderID,
			SenderName: senderName,
		}, data.ReceiverID)
	}
}
