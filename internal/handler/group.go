package handler

import (
	"github.com/gin-gonic/gin"

	"sudooom.im.chat/internal/middleware"
	"sudooom.im.chat/internal/model"
	appErrors "sudooom.im.chat/pkg/errors"
	"sudooom.im.chat/pkg/response"
)

// GroupHandler 群组处理器
type GroupHandler struct {
	groupService   GroupService
	messageService MessageService
}

// NewGroupHandler 创建群组处理器
func NewGroupHandler(groupService GroupService, messageService MessageService) *GroupHandler {
	return &GroupHandler{groupService: groupService, messageService: messageService}
}

type createGroupRequest struct {
	Name      string       `json:"name"`
	MemberIDs model.IDList `json:"memberIds"`
}

// Create 创建群组
func (h *GroupHandler) Create(c *gin.Context) {
	var req createGroupRequest
	if !bindJSON(c, &req) {
		return
	}

	group, err := h.groupService.Create(c.Request.Context(), middleware.GetUserID(c), req.Name, req.MemberIDs)
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}
	response.Created(c, group)
}

// List 我的群组
func (h *GroupHandler) List(c *gin.Context) {
	groups, err := h.groupService.ListMine(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}
	response.Success(c, groups)
}

// Messages 群聊记录
func (h *GroupHandler) Messages(c *gin.Context) {
	groupID, ok := pathID(c, "groupId", appErrors.ErrGroupNotFound)
	if !ok {
		return
	}

	msgs, err := h.messageService.ListGroup(c.Request.Context(), middleware.GetUserID(c), groupID)
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}
	response.Success(c, msgs)
}

// Send 发送群消息
func (h *GroupHandler) Send(c *gin.Context) {
	groupID, ok := pathID(c, "groupId", appErrors.ErrGroupNotFound)
	if !ok {
		return
	}
	var req sendRequest
	if !bindJSON(c, &req) {
		return
	}

	msg, err := h.messageService.SendGroup(c.Request.Context(), middleware.GetUserID(c), groupID, req.input())
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}
	response.Created(c, msg)
}

// ClearMessages 清空群聊记录
func (h *GroupHandler) ClearMessages(c *gin.Context) {
	groupID, ok := pathID(c, "groupId", appErrors.ErrGroupNotFound)
	if !ok {
		return
	}

	n, err := h.messageService.ClearGroup(c.Request.Context(), middleware.GetUserID(c), groupID)
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}
	response.SuccessWithMsg(c, "Group chat cleared successfully", gin.H{"deletedCount": n})
}

// Leave 退出群组
func (h *GroupHandler) Leave(c *gin.Context) {
	groupID, ok := pathID(c, "groupId", appErrors.ErrGroupNotFound)
	if !ok {
		return
	}

	result, err := h.groupService.Leave(c.Request.Context(), groupID, middleware.GetUserID(c))
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}

	if result.Deleted {
		response.SuccessWithMsg(c, "You left and group was deleted", gin.H{"deleted": true})
		return
	}
	response.SuccessWithMsg(c, "Left group successfully", gin.H{"deleted": false, "group": result.Group})
}

// Delete 解散群组
func (h *GroupHandler) Delete(c *gin.Context) {
	groupID, ok := pathID(c, "groupId", appErrors.ErrGroupNotFound)
	if !ok {
		return
	}

	if err := h.groupService.Delete(c.Request.Context(), groupID, middleware.GetUserID(c)); err != nil {
		response.ErrorFromAppError(c, err)
		return
	}
	response.SuccessWithMsg(c, "Group deleted successfully", model.GroupRef{GroupID: groupID})
}

// RemoveMember 移除成员
func (h *GroupHandler) RemoveMember(c *gin.Context) {
	groupID, ok := pathID(c, "groupId", appErrors.ErrGroupNotFound)
	if !ok {
		return
	}
	memberID, ok := pathID(c, "memberId", appErrors.ErrMemberNotFound)
	if !ok {
		return
	}

	group, err := h.groupService.RemoveMember(c.Request.Context(), groupID, middleware.GetUserID(c), memberID)
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}
	response.SuccessWithMsg(c, "Member removed successfully", gin.H{"group": group})
}
