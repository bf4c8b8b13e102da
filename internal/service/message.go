package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"sudooom.im.chat/internal/metrics"
	"sudooom.im.chat/internal/model"
	"sudooom.im.chat/internal/repository"
	appErrors "sudooom.im.chat/pkg/errors"
)

// SendInput 发送消息参数，Image 为 base64 或 data URL
type SendInput struct {
	Text  string
	Image string
}

// MessageService 消息服务
type MessageService struct {
	messages   MessageStore
	resolver   *Resolver
	uploader   Uploader
	dispatcher *DispatcherService
	ids        IDGenerator
	now        func() time.Time
	logger     *slog.Logger
}

// NewMessageService 创建消息服务
func NewMessageService(messages MessageStore, resolver *Resolver, uploader Uploader, dispatcher *DispatcherService, ids IDGenerator) *MessageService {
	return &MessageService{
		messages:   messages,
		resolver:   resolver,
		uploader:   uploader,
		dispatcher: dispatcher,
		ids:        ids,
		now:        time.Now,
		logger:     slog.Default(),
	}
}

// SendDirect 发送直聊消息，只推送给接收方
func (s *MessageService) SendDirect(ctx context.Context, senderID, peerID int64, in SendInput) (*model.Message, error) {
	if err := validateContent(in); err != nil {
		return nil, err
	}
	if err := s.resolver.ResolveDirect(ctx, senderID, peerID); err != nil {
		return nil, err
	}

	msg, err := s.create(ctx, senderID, in, func(m *model.Message) {
		m.ChatType = model.ChatTypeDirect
		m.ReceiverID = &peerID
	})
	if err != nil {
		return nil, err
	}

	s.dispatcher.Notify(model.EventNewMessage, msg, peerID)
	return msg, nil
}

// SendGroup 发送群聊消息，推送给包括发送者在内的全部成员
func (s *MessageService) SendGroup(ctx context.Context, senderID, groupID int64, in SendInput) (*model.Message, error) {
	if err := validateContent(in); err != nil {
		return nil, err
	}
	group, err := s.resolver.ResolveGroup(ctx, senderID, groupID)
	if err != nil {
		return nil, err
	}

	msg, err := s.create(ctx, senderID, in, func(m *model.Message) {
		m.ChatType = model.ChatTypeGroup
		m.GroupID = &groupID
	})
	if err != nil {
		return nil, err
	}

	s.dispatcher.Notify(model.EventNewGroupMessage, msg, group.Members...)
	return msg, nil
}

func (s *MessageService) create(ctx context.Context, senderID int64, in SendInput, target func(*model.Message)) (*model.Message, error) {
	var imageURL string
	if in.Image != "" {
		url, err := s.uploader.Upload(ctx, in.Image)
		if err != nil {
			s.logger.Error("Failed to upload message image", "senderId", senderID, "error", err)
			return nil, appErrors.ErrUploadFailed.Wrap(err)
		}
		imageURL = url
	}

	now := s.now()
	msg := &model.Message{
		ID:        s.ids.NextID(),
		SenderID:  senderID,
		Text:      in.Text,
		Image:     imageURL,
		CreatedAt: now,
		UpdatedAt: now,
	}
	target(msg)

	if err := s.messages.Create(ctx, msg); err != nil {
		s.logger.Error("Failed to save message", "senderId", senderID, "chatType", msg.ChatType, "error", err)
		return nil, appErrors.ErrDBError.Wrap(err)
	}
	metrics.MessagesSent.WithLabelValues(string(msg.ChatType)).Inc()
	return msg, nil
}

// Edit 编辑消息文本，仅发送者可编辑且已删除的消息不可编辑
func (s *MessageService) Edit(ctx context.Context, messageID, byUserID int64, text string) (*model.Message, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, appErrors.ErrTextRequired
	}

	msg, err := s.loadMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != byUserID {
		return nil, appErrors.ErrNotMessageOwner
	}
	if msg.IsDeleted {
		return nil, appErrors.ErrMessageDeleted
	}

	now := s.now()
	msg.Text = trimmed
	msg.IsEdited = true
	msg.EditedAt = &now
	msg.UpdatedAt = now
	if err := s.messages.Update(ctx, msg); err != nil {
		return nil, s.storeError(err, "edit", messageID)
	}

	s.notifyChange(ctx, model.EventMessageUpdated, msg)
	return msg, nil
}

// SoftDelete 软删除消息：清空内容并保留记录
func (s *MessageService) SoftDelete(ctx context.Context, messageID, byUserID int64) (*model.Message, error) {
	msg, err := s.loadMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != byUserID {
		return nil, appErrors.ErrDeleteNotOwner
	}

	msg.Tombstone(s.now())
	if err := s.messages.Update(ctx, msg); err != nil {
		return nil, s.storeError(err, "delete", messageID)
	}

	s.notifyChange(ctx, model.EventMessageDeleted, msg)
	return msg, nil
}

// notifyChange 编辑/删除后通知：直聊推送双方，群聊推送当前全部成员
func (s *MessageService) notifyChange(ctx context.Context, event string, msg *model.Message) {
	if !msg.IsGroup() || msg.GroupID == nil {
		targets := []int64{msg.SenderID}
		if msg.ReceiverID != nil {
			targets = append(targets, *msg.ReceiverID)
		}
		s.dispatcher.Notify(event, msg, targets...)
		return
	}

	group, err := s.resolver.loadGroup(ctx, *msg.GroupID)
	if err != nil {
		// 群已不存在时无人可通知
		s.logger.Debug("Skip group notification", "groupId", *msg.GroupID, "event", event, "error", err)
		return
	}
	s.dispatcher.Notify(event, msg, group.Members...)
}

// MarkSeen 将 peer 发给 viewer 的消息全部标为已读，返回更新条数（幂等）
func (s *MessageService) MarkSeen(ctx context.Context, peerID, viewerID int64) (int64, error) {
	n, err := s.messages.MarkSeen(ctx, peerID, viewerID)
	if err != nil {
		s.logger.Error("Failed to mark messages seen", "peerId", peerID, "viewerId", viewerID, "error", err)
		return 0, appErrors.ErrDBError.Wrap(err)
	}
	return n, nil
}

// ListDirect 获取直聊记录，按创建时间升序
func (s *MessageService) ListDirect(ctx context.Context, viewerID, peerID int64) ([]*model.Message, error) {
	msgs, err := s.messages.ListDirect(ctx, viewerID, peerID)
	if err != nil {
		s.logger.Error("Failed to list direct messages", "viewerId", viewerID, "peerId", peerID, "error", err)
		return nil, appErrors.ErrDBError.Wrap(err)
	}
	return nonNil(msgs), nil
}

// ListGroup 获取群聊记录，仅成员可见
func (s *MessageService) ListGroup(ctx context.Context, viewerID, groupID int64) ([]*model.Message, error) {
	if _, err := s.resolver.ResolveGroup(ctx, viewerID, groupID); err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListGroup(ctx, groupID)
	if err != nil {
		s.logger.Error("Failed to list group messages", "groupId", groupID, "error", err)
		return nil, appErrors.ErrDBError.Wrap(err)
	}
	return nonNil(msgs), nil
}

// ClearDirect 清空直聊记录，任一参与方均可操作
func (s *MessageService) ClearDirect(ctx context.Context, viewerID, peerID int64) (int64, error) {
	if err := s.resolver.ResolveDirect(ctx, viewerID, peerID); err != nil {
		return 0, err
	}
	n, err := s.messages.DeleteDirect(ctx, viewerID, peerID)
	if err != nil {
		s.logger.Error("Failed to clear direct chat", "viewerId", viewerID, "peerId", peerID, "error", err)
		return 0, appErrors.ErrDBError.Wrap(err)
	}

	s.dispatcher.Notify(model.EventConversationCleared, model.ConversationCleared{
		ChatType: model.ChatTypeDirect,
		PeerID:   viewerID,
	}, peerID)
	return n, nil
}

// ClearGroup 清空群聊记录，仅管理员可操作
func (s *MessageService) ClearGroup(ctx context.Context, viewerID, groupID int64) (int64, error) {
	group, err := s.resolver.ResolveGroup(ctx, viewerID, groupID)
	if err != nil {
		return 0, err
	}
	if !group.IsAdmin(viewerID) {
		return 0, appErrors.ErrClearNotAdmin
	}

	n, err := s.messages.DeleteByGroup(ctx, groupID)
	if err != nil {
		s.logger.Error("Failed to clear group messages", "groupId", groupID, "error", err)
		return 0, appErrors.ErrDBError.Wrap(err)
	}

	s.dispatcher.Notify(model.EventConversationCleared, model.ConversationCleared{
		ChatType: model.ChatTypeGroup,
		GroupID:  groupID,
	}, group.Without(viewerID)...)
	return n, nil
}

func (s *MessageService) loadMessage(ctx context.Context, messageID int64) (*model.Message, error) {
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, repository.ErrMessageNotFound) {
			return nil, appErrors.ErrMessageNotFound
		}
		return nil, appErrors.ErrDBError.Wrap(err)
	}
	return msg, nil
}

func (s *MessageService) storeError(err error, op string, messageID int64) error {
	if errors.Is(err, repository.ErrMessageNotFound) {
		return appErrors.ErrMessageNotFound
	}
	s.logger.Error("Failed to update message", "op", op, "messageId", messageID, "error", err)
	return appErrors.ErrDBError.Wrap(err)
}

func validateContent(in SendInput) error {
	if strings.TrimSpace(in.Text) == "" && in.Image == "" {
		return appErrors.ErrTextRequired
	}
	return nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
