package service

import (
	"context"
	"errors"

	"sudooom.im.chat/internal/model"
	"sudooom.im.chat/internal/repository"
	appErrors "sudooom.im.chat/pkg/errors"
)

// Resolver 会话授权：所有消息与群操作的第一道校验
type Resolver struct {
	users  UserStore
	groups GroupStore
}

// NewResolver 创建会话授权器
func NewResolver(users UserStore, groups GroupStore) *Resolver {
	return &Resolver{users: users, groups: groups}
}

// ResolveDirect 校验直聊：任意两个不同的已存在用户之间都允许
// 对方不存在与给自己发消息返回同一个通用错误，不暴露用户是否存在
func (r *Resolver) ResolveDirect(ctx context.Context, viewerID, peerID int64) error {
	if peerID <= 0 || viewerID == peerID {
		return appErrors.ErrInvalidRecipient
	}
	if _, err := r.users.GetByID(ctx, peerID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return appErrors.ErrInvalidRecipient
		}
		return appErrors.ErrDBError.Wrap(err)
	}
	return nil
}

// ResolveGroup 校验群聊：群不存在返回 NotFound，非成员返回 Forbidden
func (r *Resolver) ResolveGroup(ctx context.Context, viewerID, groupID int64) (*model.Group, error) {
	group, err := r.loadGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !group.IsMember(viewerID) {
		return nil, appErrors.ErrNotGroupMember
	}
	return group, nil
}

func (r *Resolver) loadGroup(ctx context.Context, groupID int64) (*model.Group, error) {
	group, err := r.groups.GetByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, repository.ErrGroupNotFound) {
			return nil, appErrors.ErrGroupNotFound
		}
		return nil, appErrors.ErrDBError.Wrap(err)
	}
	return group, nil
}
