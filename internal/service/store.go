package service

import (
	"context"
	"time"

	"sudooom.im.chat/internal/model"
)

// UserStore 用户存储，由 repository.UserRepository 实现
type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByFullName(ctx context.Context, fullName string) (bool, error)
	UpdateProfilePic(ctx context.Context, id int64, url string) (*model.User, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	ListExcept(ctx context.Context, id int64) ([]*model.User, error)
	ListByIDs(ctx context.Context, ids []int64) ([]*model.User, error)
}

// MessageStore 消息存储，由 repository.MessageRepository 实现
type MessageStore interface {
	Create(ctx context.Context, msg *model.Message) error
	GetByID(ctx context.Context, id int64) (*model.Message, error)
	Update(ctx context.Context, msg *model.Message) error
	MarkSeen(ctx context.Context, peerID, viewerID int64) (int64, error)
	ListDirect(ctx context.Context, userA, userB int64) ([]*model.Message, error)
	ListGroup(ctx context.Context, groupID int64) ([]*model.Message, error)
	ListInvolving(ctx context.Context, userID int64) ([]*model.Message, error)
	DeleteDirect(ctx context.Context, userA, userB int64) (int64, error)
	DeleteByGroup(ctx context.Context, groupID int64) (int64, error)
}

// GroupStore 群组存储，由 repository.GroupRepository 实现
type GroupStore interface {
	Create(ctx context.Context, group *model.Group) error
	GetByID(ctx context.Context, id int64) (*model.Group, error)
	ListByMember(ctx context.Context, userID int64) ([]*model.Group, error)
	// UpdateMembership 原子地读取最新群组并执行 apply，成员为空时删除群组
	UpdateMembership(ctx context.Context, id int64, apply func(group *model.Group) error) (*model.Group, error)
}

// SessionStore 会话注销记录
type SessionStore interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// ResetTokenStore 密码重置 Token 存储
type ResetTokenStore interface {
	Save(ctx context.Context, tokenHash string, userID int64) error
	Consume(ctx context.Context, tokenHash string) (int64, error)
}

// PresenceMirror 跨节点在线状态
type PresenceMirror interface {
	SetOnline(ctx context.Context, userID int64, connID string) error
	SetOffline(ctx context.Context, userID int64, connID string) (bool, error)
	OnlineUsers(ctx context.Context) ([]int64, error)
}

// Uploader 对象存储，返回可访问的 URL
type Uploader interface {
	Upload(ctx context.Context, payload string) (string, error)
}

// PurgeScheduler 群消息清理任务调度
type PurgeScheduler interface {
	EnqueueGroupPurge(ctx context.Context, groupID int64) error
}

// EventPublisher 跨节点事件发布
type EventPublisher interface {
	Publish(event *model.RemoteEvent) error
}

// IDGenerator 生成全局唯一 ID
type IDGenerator interface {
	NextID() int64
}
