package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sudooom.im.chat/internal/config"
	"sudooom.im.chat/internal/middleware"
	"sudooom.im.chat/internal/service"
	"sudooom.im.chat/pkg/jwt"
	"sudooom.im.chat/pkg/response"
)

// AuthHandler 认证处理器
type AuthHandler struct {
	authService AuthService
	cookie      config.JWTConfig
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(authService AuthService, cookie config.JWTConfig) *AuthHandler {
	return &AuthHandler{authService: authService, cookie: cookie}
}

// Signup 用户注册，成功后直接登录
func (h *AuthHandler) Signup(c *gin.Context) {
	var req service.SignupRequest
	if !bindJSON(c, &req) {
		return
	}

	user, session, err := h.authService.Signup(c.Request.Context(), &req)
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}

	h.setSessionCookie(c, session)
	response.Created(c, user.Public())
}

// Login 用户登录
func (h *AuthHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	user, session, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}

	h.setSessionCookie(c, session)
	response.Success(c, user.Public())
}

// Logout 用户登出：清除 Cookie，会话有效时同时吊销
func (h *AuthHandler) Logout(c *gin.Context) {
	token := middleware.TokenFromRequest(c, h.cookie.CookieName)
	if err := h.authService.Logout(c.Request.Context(), token); err != nil {
		response.ErrorFromAppError(c, err)
		return
	}

	h.clearSessionCookie(c)
	response.SuccessWithMsg(c, "Logged out successfully", nil)
}

// Check 返回当前登录用户
func (h *AuthHandler) Check(c *gin.Context) {
	response.Success(c, middleware.GetUser(c).Public())
}

type updateProfileRequest struct {
	ProfilePic string `json:"profilePic"`
}

// UpdateProfile 更新头像
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	var req updateProfileRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.authService.UpdateProfile(c.Request.Context(), middleware.GetUserID(c), req.ProfilePic)
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}
	response.Success(c, user.Public())
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

// ForgotPassword 申请密码重置链接
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.authService.ForgotPassword(c.Request.Context(), req.Email, c.GetHeader("Origin"))
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}
	response.SuccessWithMsg(c, result.Message, result)
}

type resetPasswordRequest struct {
	Password string `json:"password"`
}

// ResetPassword 使用路径中的 Token 重置密码
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.authService.ResetPassword(c.Request.Context(), c.Param("token"), req.Password); err != nil {
		response.ErrorFromAppError(c, err)
		return
	}
	response.SuccessWithMsg(c, "Password reset successful", nil)
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, session *jwt.Session) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(h.cookie.CookieName, session.Token, int(h.cookie.Expire.Seconds()), "/", "", h.cookie.CookieSecure, true)
}

func (h *AuthHandler) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(h.cookie.CookieName, "", -1, "/", "", h.cookie.CookieSecure, true)
}
