package service

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"sudooom.im.chat/internal/model"
	appErrors "sudooom.im.chat/pkg/errors"
)

// ConversationService 侧边栏会话摘要
// 每次请求都从消息表重新计算，不单独存储，因此不会与消息记录不一致
type ConversationService struct {
	users    UserStore
	messages MessageStore
	logger   *slog.Logger
}

// NewConversationService 创建会话摘要服务
func NewConversationService(users UserStore, messages MessageStore) *ConversationService {
	return &ConversationService{
		users:    users,
		messages: messages,
		logger:   slog.Default(),
	}
}

type peerSummary struct {
	lastMessage   string
	lastMessageAt time.Time
	unread        int
}

// BuildSidebar 构建 viewer 的侧边栏：除自己外的全部用户，按最近消息时间倒序，无消息的排在最后
func (s *ConversationService) BuildSidebar(ctx context.Context, viewerID int64) ([]model.SidebarUser, error) {
	users, err := s.users.ListExcept(ctx, viewerID)
	if err != nil {
		s.logger.Error("Failed to list users for sidebar", "viewerId", viewerID, "error", err)
		return nil, appErrors.ErrDBError.Wrap(err)
	}
	msgs, err := s.messages.ListInvolving(ctx, viewerID)
	if err != nil {
		s.logger.Error("Failed to list messages for sidebar", "viewerId", viewerID, "error", err)
		return nil, appErrors.ErrDBError.Wrap(err)
	}

	summaries := summarize(viewerID, msgs)

	sidebar := make([]model.SidebarUser, 0, len(users))
	for _, u := range users {
		entry := model.SidebarUser{PublicUser: u.Public()}
		if sum, ok := summaries[u.ID]; ok {
			at := sum.lastMessageAt
			entry.LastMessage = sum.lastMessage
			entry.LastMessageAt = &at
			entry.UnreadCount = sum.unread
		}
		sidebar = append(sidebar, entry)
	}

	slices.SortStableFunc(sidebar, func(a, b model.SidebarUser) int {
		switch {
		case a.LastMessageAt == nil && b.LastMessageAt == nil:
			return 0
		case a.LastMessageAt == nil:
			return 1
		case b.LastMessageAt == nil:
			return -1
		default:
			return b.LastMessageAt.Compare(*a.LastMessageAt)
		}
	})
	return sidebar, nil
}

// summarize 按对方用户聚合直聊消息；msgs 可以是任意顺序
// 预览取创建时间最新的一条，未读数只统计对方发给 viewer 且未读的消息
func summarize(viewerID int64, msgs []*model.Message) map[int64]*peerSummary {
	summaries := make(map[int64]*peerSummary)
	for _, msg := range msgs {
		if msg.IsGroup() {
			continue
		}
		peer := msg.Peer(viewerID)
		sum, ok := summaries[peer]
		if !ok {
			sum = &peerSummary{}
			summaries[peer] = sum
		}
		if !ok || msg.CreatedAt.After(sum.lastMessageAt) {
			sum.lastMessage = msg.Preview()
			sum.lastMessageAt = msg.CreatedAt
		}
		if msg.SenderID != viewerID && !msg.Seen {
			sum.unread++
		}
	}
	return summaries
}
