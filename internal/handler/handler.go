package handler

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"sudooom.im.chat/internal/model"
	"sudooom.im.chat/internal/service"
	appErrors "sudooom.im.chat/pkg/errors"
	"sudooom.im.chat/pkg/jwt"
	"sudooom.im.chat/pkg/response"
)

// AuthService 由 service.AuthService 实现
type AuthService interface {
	Signup(ctx context.Context, req *service.SignupRequest) (*model.User, *jwt.Session, error)
	Login(ctx context.Context, req *service.LoginRequest) (*model.User, *jwt.Session, error)
	Logout(ctx context.Context, token string) error
	UpdateProfile(ctx context.Context, userID int64, profilePic string) (*model.User, error)
	ForgotPassword(ctx context.Context, email, origin string) (*service.ForgotPasswordResult, error)
	ResetPassword(ctx context.Context, token, password string) error
}

// MessageService 由 service.MessageService 实现
type MessageService interface {
	SendDirect(ctx context.Context, senderID, peerID int64, in service.SendInput) (*model.Message, error)
	SendGroup(ctx context.Context, senderID, groupID int64, in service.SendInput) (*model.Message, error)
	Edit(ctx context.Context, messageID, byUserID int64, text string) (*model.Message, error)
	SoftDelete(ctx context.Context, messageID, byUserID int64) (*model.Message, error)
	MarkSeen(ctx context.Context, peerID, viewerID int64) (int64, error)
	ListDirect(ctx context.Context, viewerID, peerID int64) ([]*model.Message, error)
	ListGroup(ctx context.Context, viewerID, groupID int64) ([]*model.Message, error)
	ClearDirect(ctx context.Context, viewerID, peerID int64) (int64, error)
	ClearGroup(ctx context.Context, viewerID, groupID int64) (int64, error)
}

// SidebarBuilder 由 service.ConversationService 实现
type SidebarBuilder interface {
	BuildSidebar(ctx context.Context, viewerID int64) ([]model.SidebarUser, error)
}

// GroupService 由 service.GroupService 实现
type GroupService interface {
	Create(ctx context.Context, creatorID int64, name string, memberIDs []int64) (*model.GroupView, error)
	ListMine(ctx context.Context, userID int64) ([]*model.GroupView, error)
	Leave(ctx context.Context, groupID, userID int64) (*service.LeaveResult, error)
	RemoveMember(ctx context.Context, groupID, byUserID, targetID int64) (*model.GroupView, error)
	Delete(ctx context.Context, groupID, byUserID int64) error
}

// sendRequest 发送消息请求，图片字段兼容 image 与 img
type sendRequest struct {
	Text  string `json:"text"`
	Image string `json:"image"`
	Img   string `json:"img"`
}

func (r *sendRequest) input() service.SendInput {
	image := r.Image
	if image == "" {
		image = r.Img
	}
	return service.SendInput{Text: r.Text, Image: image}
}

// pathID 解析路径中的 ID，非法 ID 按资源不存在处理
func pathID(c *gin.Context, name string, notFound *appErrors.AppError) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.ErrorFromAppError(c, notFound)
		return 0, false
	}
	return id, true
}

// bindJSON 解析请求体；空请求体视为空对象，字段校验交给 service
func bindJSON(c *gin.Context, req any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(req); err != nil {
		response.ErrorWithMsg(c, appErrors.CodeInvalidParams, "Invalid request body")
		return false
	}
	return true
}
