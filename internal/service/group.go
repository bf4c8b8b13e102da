package service

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"

	"sudooom.im.chat/internal/metrics"
	"sudooom.im.chat/internal/model"
	"sudooom.im.chat/internal/repository"
	appErrors "sudooom.im.chat/pkg/errors"
)

// LeaveResult 退群结果
type LeaveResult struct {
	Deleted bool
	Group   *model.GroupView
}

// GroupService 群成员管理
// 状态：Active(成员, 管理员) -> Active'(成员减少，管理员可能转移) -> Deleted
type GroupService struct {
	groups     GroupStore
	messages   MessageStore
	users      UserStore
	dispatcher *DispatcherService
	purger     PurgeScheduler
	ids        IDGenerator
	logger     *slog.Logger
}

// NewGroupService 创建群服务，purger 可以为 nil
func NewGroupService(groups GroupStore, messages MessageStore, users UserStore, dispatcher *DispatcherService, purger PurgeScheduler, ids IDGenerator) *GroupService {
	return &GroupService{
		groups:     groups,
		messages:   messages,
		users:      users,
		dispatcher: dispatcher,
		purger:     purger,
		ids:        ids,
		logger:     slog.Default(),
	}
}

// Create 创建群组，创建者自动成为成员与管理员，去重后至少 2 人
func (s *GroupService) Create(ctx context.Context, creatorID int64, name string, memberIDs []int64) (*model.GroupView, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, appErrors.ErrGroupNameRequired
	}

	members := make(model.IDList, 0, len(memberIDs)+1)
	members = append(members, creatorID)
	for _, id := range memberIDs {
		if id > 0 {
			members = append(members, id)
		}
	}
	members = members.Unique()
	if len(members) < 2 {
		return nil, appErrors.ErrGroupTooSmall
	}

	users, err := s.users.ListByIDs(ctx, members)
	if err != nil {
		return nil, appErrors.ErrDBError.Wrap(err)
	}
	if len(users) != len(members) {
		return nil, appErrors.ErrUserNotFound
	}

	group := &model.Group{
		ID:      s.ids.NextID(),
		Name:    name,
		AdminID: creatorID,
		Members: members,
	}
	if err := s.groups.Create(ctx, group); err != nil {
		s.logger.Error("Failed to create group", "creatorId", creatorID, "error", err)
		return nil, appErrors.ErrDBError.Wrap(err)
	}

	s.logger.Info("Group created", "groupId", group.ID, "admin", creatorID, "members", len(members))
	return buildView(group, indexUsers(users)), nil
}

// ListMine 获取用户所在的群组，按最近更新时间倒序
func (s *GroupService) ListMine(ctx context.Context, userID int64) ([]*model.GroupView, error) {
	groups, err := s.groups.ListByMember(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to list groups", "userId", userID, "error", err)
		return nil, appErrors.ErrDBError.Wrap(err)
	}

	var ids model.IDList
	for _, g := range groups {
		ids = append(ids, g.AdminID)
		ids = append(ids, g.Members...)
	}
	users, err := s.users.ListByIDs(ctx, ids.Unique())
	if err != nil {
		return nil, appErrors.ErrDBError.Wrap(err)
	}
	index := indexUsers(users)

	views := make([]*model.GroupView, 0, len(groups))
	for _, g := range groups {
		views = append(views, buildView(g, index))
	}
	return views, nil
}

// Leave 退出群组
// 最后一名成员退出时删除群组及其消息；管理员退出时由剩余成员中最早加入的一位接任
func (s *GroupService) Leave(ctx context.Context, groupID, userID int64) (*LeaveResult, error) {
	var formerMembers model.IDList
	var formerAdmin int64
	group, err := s.mutate(ctx, groupID, func(g *model.Group) error {
		if !g.IsMember(userID) {
			return appErrors.ErrLeaveNotMember
		}
		formerMembers = slices.Clone(g.Members)
		formerAdmin = g.AdminID
		g.Members = g.Without(userID)
		if len(g.Members) > 0 && g.IsAdmin(userID) {
			g.AdminID = g.Members[0]
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(group.Members) == 0 {
		s.purgeMessages(ctx, groupID, "empty")
		s.dispatcher.Notify(model.EventGroupDeleted, model.GroupRef{GroupID: groupID}, formerMembers...)
		return &LeaveResult{Deleted: true}, nil
	}
	if group.AdminID != formerAdmin {
		s.logger.Info("Group admin reassigned", "groupId", groupID, "from", formerAdmin, "to", group.AdminID)
	}

	view, err := s.view(ctx, group)
	if err != nil {
		return nil, err
	}
	s.dispatcher.Notify(model.EventGroupUpdated, view, group.Members...)
	s.dispatcher.Notify(model.EventGroupRemoved, model.GroupRef{GroupID: groupID}, userID)
	return &LeaveResult{Group: view}, nil
}

// RemoveMember 管理员移除成员
func (s *GroupService) RemoveMember(ctx context.Context, groupID, byUserID, targetID int64) (*model.GroupView, error) {
	group, err := s.mutate(ctx, groupID, func(g *model.Group) error {
		if !g.IsAdmin(byUserID) {
			return appErrors.ErrRemoveNotAdmin
		}
		if targetID == byUserID {
			return appErrors.ErrCannotRemoveSelf
		}
		if !g.IsMember(targetID) {
			return appErrors.ErrMemberNotFound
		}
		g.Members = g.Without(targetID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	view, err := s.view(ctx, group)
	if err != nil {
		return nil, err
	}
	s.dispatcher.Notify(model.EventGroupUpdated, view, group.Members...)
	s.dispatcher.Notify(model.EventGroupRemoved, model.GroupRef{GroupID: groupID}, targetID)
	return view, nil
}

// Delete 管理员解散群组
func (s *GroupService) Delete(ctx context.Context, groupID, byUserID int64) error {
	var formerMembers model.IDList
	_, err := s.mutate(ctx, groupID, func(g *model.Group) error {
		if !g.IsAdmin(byUserID) {
			return appErrors.ErrDeleteNotAdmin
		}
		formerMembers = slices.Clone(g.Members)
		g.Members = nil
		return nil
	})
	if err != nil {
		return err
	}

	s.purgeMessages(ctx, groupID, "admin")
	s.dispatcher.Notify(model.EventGroupDeleted, model.GroupRef{GroupID: groupID}, formerMembers...)
	return nil
}

// mutate 成员变更统一走存储层的原子读改写，并发的退群/移除不会互相覆盖
func (s *GroupService) mutate(ctx context.Context, groupID int64, apply func(g *model.Group) error) (*model.Group, error) {
	group, err := s.groups.UpdateMembership(ctx, groupID, apply)
	if err == nil {
		return group, nil
	}

	var appErr *appErrors.AppError
	switch {
	case errors.As(err, &appErr):
		return nil, appErr
	case errors.Is(err, repository.ErrGroupNotFound):
		return nil, appErrors.ErrGroupNotFound
	}
	s.logger.Error("Failed to update group membership", "groupId", groupID, "error", err)
	return nil, appErrors.ErrDBError.Wrap(err)
}

// purgeMessages 群组删除后清理消息；两步不在同一事务中
// 清理失败只记录日志并投递重试任务，不回滚群组删除
func (s *GroupService) purgeMessages(ctx context.Context, groupID int64, reason string) {
	metrics.GroupsDeleted.WithLabelValues(reason).Inc()

	purged, err := s.messages.DeleteByGroup(ctx, groupID)
	if err != nil {
		metrics.PurgeFailures.Inc()
		s.logger.Error("Failed to purge group messages after group deletion",
			"groupId", groupID,
			"error", err)
		s.schedulePurge(ctx, groupID)
		return
	}

	s.logger.Info("Group deleted", "groupId", groupID, "reason", reason, "purgedMessages", purged)
}

func (s *GroupService) schedulePurge(ctx context.Context, groupID int64) {
	if s.purger == nil {
		s.logger.Warn("No purge scheduler configured, group messages left orphaned", "groupId", groupID)
		return
	}
	if err := s.purger.EnqueueGroupPurge(ctx, groupID); err != nil {
		s.logger.Error("Failed to enqueue group purge", "groupId", groupID, "error", err)
	}
}

func (s *GroupService) view(ctx context.Context, group *model.Group) (*model.GroupView, error) {
	ids := append(model.IDList{group.AdminID}, group.Members...)
	users, err := s.users.ListByIDs(ctx, ids.Unique())
	if err != nil {
		return nil, appErrors.ErrDBError.Wrap(err)
	}
	return buildView(group, indexUsers(users)), nil
}

func indexUsers(users []*model.User) map[int64]*model.User {
	index := make(map[int64]*model.User, len(users))
	for _, u := range users {
		index[u.ID] = u
	}
	return index
}

// buildView 展开成员与管理员，成员保持加入顺序
func buildView(group *model.Group, users map[int64]*model.User) *model.GroupView {
	view := &model.GroupView{
		ID:        group.ID,
		Name:      group.Name,
		Members:   make([]model.PublicUser, 0, len(group.Members)),
		CreatedAt: group.CreatedAt,
		UpdatedAt: group.UpdatedAt,
	}
	if admin, ok := users[group.AdminID]; ok {
		view.Admin = admin.Public()
	} else {
		view.Admin = model.PublicUser{ID: group.AdminID}
	}
	for _, id := range group.Members {
		if u, ok := users[id]; ok {
			view.Members = append(view.Members, u.Public())
		} else {
			view.Members = append(view.Members, model.PublicUser{ID: id})
		}
	}
	return view
}
