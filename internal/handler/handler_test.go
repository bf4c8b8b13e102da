package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/gin-gonic/gin"

	"sudooom.im.chat/internal/config"
	"sudooom.im.chat/internal/middleware"
	"sudooom.im.chat/internal/model"
	"sudooom.im.chat/internal/service"
	appErrors "sudooom.im.chat/pkg/errors"
	"sudooom.im.chat/pkg/jwt"
)

// APIResponse 用于解析响应体
type APIResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

var (
	alice = &model.User{ID: 1, FullName: "Alice", Email: "alice@example.com"}
	bob   = &model.User{ID: 2, FullName: "Bob", Email: "bob@example.com"}
)

var testCookie = config.JWTConfig{CookieName: "jwt", Expire: time.Hour}

// tokenAuth 以 token 作为用户名的会话校验
type tokenAuth struct{}

func (tokenAuth) Authenticate(_ context.Context, token string) (*model.User, *jwt.Claims, error) {
	switch token {
	case "alice":
		return alice, &jwt.Claims{UserID: alice.ID}, nil
	case "bob":
		return bob, &jwt.Claims{UserID: bob.ID}, nil
	}
	return nil, nil, appErrors.ErrTokenInvalid
}

// ============== 假服务 ==============

type fakeAuthService struct {
	signupErr   error
	lastReset   [2]string
	loggedOut   []string
	forgotEmail string
}

func (f *fakeAuthService) Signup(_ context.Context, req *service.SignupRequest) (*model.User, *jwt.Session, error) {
	if f.signupErr != nil {
		return nil, nil, f.signupErr
	}
	return &model.User{ID: 10, FullName: req.FullName, Email: req.Email, PasswordHash: "hash"}, &jwt.Session{Token: "tok"}, nil
}

func (f *fakeAuthService) Login(_ context.Context, req *service.LoginRequest) (*model.User, *jwt.Session, error) {
	if req.Password != "secret1" {
		return nil, nil, appErrors.ErrInvalidCredentials
	}
	return alice, &jwt.Session{Token: "alice"}, nil
}

func (f *fakeAuthService) Logout(_ context.Context, token string) error {
	f.loggedOut = append(f.loggedOut, token)
	return nil
}

func (f *fakeAuthService) UpdateProfile(_ context.Context, userID int64, profilePic string) (*model.User, error) {
	if profilePic == "" {
		return nil, appErrors.ErrProfilePicRequired
	}
	return &model.User{ID: userID, FullName: "Alice", ProfilePic: "/uploads/x.png"}, nil
}

func (f *fakeAuthService) ForgotPassword(_ context.Context, email, _ string) (*service.ForgotPasswordResult, error) {
	f.forgotEmail = email
	return &service.ForgotPasswordResult{Message: service.ForgotPasswordMessage}, nil
}

func (f *fakeAuthService) ResetPassword(_ context.Context, token, password string) error {
	f.lastReset = [2]string{token, password}
	if password == "" {
		return appErrors.ErrPasswordRequired
	}
	return nil
}

type fakeMessageService struct {
	lastInput  service.SendInput
	lastPeer   int64
	lastViewer int64
	editErr    error
}

func (f *fakeMessageService) SendDirect(_ context.Context, senderID, peerID int64, in service.SendInput) (*model.Message, error) {
	f.lastInput, f.lastPeer, f.lastViewer = in, peerID, senderID
	if in.Text == "" && in.Image == "" {
		return nil, appErrors.ErrTextRequired
	}
	return &model.Message{ID: 100, SenderID: senderID, ReceiverID: &peerID, ChatType: model.ChatTypeDirect, Text: in.Text, Image: in.Image}, nil
}

func (f *fakeMessageService) SendGroup(_ context.Context, senderID, groupID int64, in service.SendInput) (*model.Message, error) {
	f.lastInput, f.lastViewer = in, senderID
	return &model.Message{ID: 101, SenderID: senderID, GroupID: &groupID, ChatType: model.ChatTypeGroup, Text: in.Text}, nil
}

func (f *fakeMessageService) Edit(_ context.Context, messageID, byUserID int64, text string) (*model.Message, error) {
	if f.editErr != nil {
		return nil, f.editErr
	}
	return &model.Message{ID: messageID, SenderID: byUserID, Text: text, IsEdited: true}, nil
}

func (f *fakeMessageService) SoftDelete(_ context.Context, messageID, byUserID int64) (*model.Message, error) {
	return &model.Message{ID: messageID, SenderID: byUserID, IsDeleted: true}, nil
}

func (f *fakeMessageService) MarkSeen(_ context.Context, peerID, viewerID int64) (int64, error) {
	f.lastPeer, f.lastViewer = peerID, viewerID
	return 3, nil
}

func (f *fakeMessageService) ListDirect(_ context.Context, viewerID, peerID int64) ([]*model.Message, error) {
	f.lastPeer, f.lastViewer = peerID, viewerID
	return []*model.Message{}, nil
}

func (f *fakeMessageService) ListGroup(_ context.Context, viewerID, groupID int64) ([]*model.Message, error) {
	if groupID != 500 {
		return nil, appErrors.ErrGroupNotFound
	}
	return []*model.Message{{ID: 1, SenderID: viewerID, GroupID: &groupID, ChatType: model.ChatTypeGroup, Text: "hi"}}, nil
}

func (f *fakeMessageService) ClearDirect(context.Context, int64, int64) (int64, error) { return 4, nil }

func (f *fakeMessageService) ClearGroup(_ context.Context, viewerID, _ int64) (int64, error) {
	if viewerID != alice.ID {
		return 0, appErrors.ErrClearNotAdmin
	}
	return 2, nil
}

type fakeSidebar struct{}

func (fakeSidebar) BuildSidebar(context.Context, int64) ([]model.SidebarUser, error) {
	return []model.SidebarUser{{PublicUser: bob.Public(), LastMessage: "yo", UnreadCount: 1}}, nil
}

type fakeGroupService struct {
	createdMembers []int64
	leaveDeletes   bool
	removed        [3]int64
}

func (f *fakeGroupService) Create(_ context.Context, creatorID int64, name string, memberIDs []int64) (*model.GroupView, error) {
	f.createdMembers = memberIDs
	return &model.GroupView{ID: 500, Name: name, Admin: alice.Public(), Members: []model.PublicUser{alice.Public(), bob.Public()}}, nil
}

func (f *fakeGroupService) ListMine(context.Context, int64) ([]*model.GroupView, error) {
	return []*model.GroupView{}, nil
}

func (f *fakeGroupService) Leave(_ context.Context, groupID, _ int64) (*service.LeaveResult, error) {
	if f.leaveDeletes {
		return &service.LeaveResult{Deleted: true}, nil
	}
	return &service.LeaveResult{Group: &model.GroupView{ID: groupID, Name: "team", Admin: bob.Public()}}, nil
}

func (f *fakeGroupService) RemoveMember(_ context.Context, groupID, byUserID, targetID int64) (*model.GroupView, error) {
	f.removed = [3]int64{groupID, byUserID, targetID}
	return &model.GroupView{ID: groupID, Name: "team", Admin: alice.Public()}, nil
}

func (f *fakeGroupService) Delete(_ context.Context, _, byUserID int64) error {
	if byUserID != alice.ID {
		return appErrors.ErrDeleteNotAdmin
	}
	return nil
}

// ============== 工具 ==============

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func doRequest(r http.Handler, method, path, token string, body any) (*httptest.ResponseRecorder, APIResponse) {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.AddCookie(&http.Cookie{Name: "jwt", Value: token})
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp APIResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func protect() gin.HandlerFunc {
	return middleware.ProtectRoute(tokenAuth{}, "jwt")
}
