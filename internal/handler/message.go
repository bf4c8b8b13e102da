package handler

import (
	"github.com/gin-gonic/gin"

	"sudooom.im.chat/internal/middleware"
	appErrors "sudooom.im.chat/pkg/errors"
	"sudooom.im.chat/pkg/response"
)

// MessageHandler 直聊消息处理器
type MessageHandler struct {
	messageService MessageService
	sidebar        SidebarBuilder
}

// NewMessageHandler 创建消息处理器
func NewMessageHandler(messageService MessageService, sidebar SidebarBuilder) *MessageHandler {
	return &MessageHandler{messageService: messageService, sidebar: sidebar}
}

// Sidebar 侧边栏用户列表
func (h *MessageHandler) Sidebar(c *gin.Context) {
	users, err := h.sidebar.BuildSidebar(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}
	response.Success(c, users)
}

// List 获取与某用户的聊天记录
func (h *MessageHandler) List(c *gin.Context) {
	peerID, ok := pathID(c, "id", appErrors.ErrInvalidRecipient)
	if !ok {
		return
	}

	msgs, err := h.messageService.ListDirect(c.Request.Context(), middleware.GetUserID(c), peerID)
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}
	response.Success(c, msgs)
}

// Send 发送直聊消息
func (h *MessageHandler) Send(c *gin.Context) {
	peerID, ok := pathID(c, "id", appErrors.ErrInvalidRecipient)
	if !ok {
		return
	}
	var req sendRequest
	if !bindJSON(c, &req) {
		return
	}

	msg, err := h.messageService.SendDirect(c.Request.Context(), middleware.GetUserID(c), peerID, req.input())
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}
	response.Created(c, msg)
}

// MarkSeen 将对方发来的消息标为已读
func (h *MessageHandler) MarkSeen(c *gin.Context) {
	peerID, ok := pathID(c, "id", appErrors.ErrInvalidRecipient)
	if !ok {
		return
	}

	n, err := h.messageService.MarkSeen(c.Request.Context(), peerID, middleware.GetUserID(c))
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}
	response.Success(c, gin.H{"updatedCount": n})
}

// Clear 清空与某用户的聊天记录
func (h *MessageHandler) Clear(c *gin.Context) {
	peerID, ok := pathID(c, "id", appErrors.ErrInvalidRecipient)
	if !ok {
		return
	}

	n, err := h.messageService.ClearDirect(c.Request.Context(), middleware.GetUserID(c), peerID)
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}
	response.SuccessWithMsg(c, "Chat cleared successfully", gin.H{"deletedCount": n})
}

type editRequest struct {
	Text string `json:"text"`
}

// Edit 编辑消息
func (h *MessageHandler) Edit(c *gin.Context) {
	messageID, ok := pathID(c, "id", appErrors.ErrMessageNotFound)
	if !ok {
		return
	}
	var req editRequest
	if !bindJSON(c, &req) {
		return
	}

	msg, err := h.messageService.Edit(c.Request.Context(), messageID, middleware.GetUserID(c), req.Text)
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}
	response.Success(c, msg)
}

// Delete 删除消息（软删除）
func (h *MessageHandler) Delete(c *gin.Context) {
	messageID, ok := pathID(c, "id", appErrors.ErrMessageNotFound)
	if !ok {
		return
	}

	msg, err := h.messageService.SoftDelete(c.Request.Context(), messageID, middleware.GetUserID(c))
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}
	response.Success(c, msg)
}
