package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"sudooom.im.chat/internal/model"
	"sudooom.im.chat/internal/repository"
	appErrors "sudooom.im.chat/pkg/errors"
	"sudooom.im.chat/pkg/jwt"
)

const (
	minPasswordLength = 6
	defaultFrontend   = "http://localhost:5173"

	// ForgotPasswordMessage 无论邮箱是否存在都返回同一提示，避免账号枚举
	ForgotPasswordMessage = "If this email exists, a reset link has been sent"
)

// SignupRequest 注册请求
type SignupRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ForgotPasswordResult 找回密码结果，ResetLink 仅在账号存在时返回
type ForgotPasswordResult struct {
	Message   string `json:"message"`
	ResetLink string `json:"resetLink,omitempty"`
}

// AuthService 认证服务
type AuthService struct {
	users       UserStore
	sessions    SessionStore
	resetTokens ResetTokenStore
	jwtService  *jwt.Service
	uploader    Uploader
	ids         IDGenerator
	frontendURL string
	bcryptCost  int
	logger      *slog.Logger
}

// NewAuthService 创建认证服务
func NewAuthService(users UserStore, sessions SessionStore, resetTokens ResetTokenStore, jwtService *jwt.Service, uploader Uploader, ids IDGenerator, frontendURL string) *AuthService {
	return &AuthService{
		users:       users,
		sessions:    sessions,
		resetTokens: resetTokens,
		jwtService:  jwtService,
		uploader:    uploader,
		ids:         ids,
		frontendURL: frontendURL,
		bcryptCost:  bcrypt.DefaultCost,
		logger:      slog.Default(),
	}
}

// Signup 用户注册：邮箱精确匹配、昵称忽略大小写均不可重复
func (s *AuthService) Signup(ctx context.Context, req *SignupRequest) (*model.User, *jwt.Session, error) {
	fullName := strings.TrimSpace(req.FullName)
	if fullName == "" || req.Email == "" || req.Password == "" {
		return nil, nil, appErrors.ErrInvalidParams
	}
	if len(req.Password) < minPasswordLength {
		return nil, nil, appErrors.ErrPasswordTooShort
	}

	exists, err := s.users.ExistsByEmail(ctx, req.Email)
	if err != nil {
		return nil, nil, appErrors.ErrDBError.Wrap(err)
	}
	if exists {
		return nil, nil, appErrors.ErrEmailExists
	}
	exists, err = s.users.ExistsByFullName(ctx, fullName)
	if err != nil {
		return nil, nil, appErrors.ErrDBError.Wrap(err)
	}
	if exists {
		return nil, nil, appErrors.ErrNameExists
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, nil, appErrors.ErrServerError.Wrap(err)
	}

	user := &model.User{
		ID:           s.ids.NextID(),
		FullName:     fullName,
		Email:        req.Email,
		PasswordHash: string(passwordHash),
	}
	if err := s.users.Create(ctx, user); err != nil {
		switch {
		case errors.Is(err, repository.ErrEmailExists):
			return nil, nil, appErrors.ErrEmailExists
		case errors.Is(err, repository.ErrNameExists):
			return nil, nil, appErrors.ErrNameExists
		}
		s.logger.Error("Failed to create user", "email", req.Email, "error", err)
		return nil, nil, appErrors.ErrDBError.Wrap(err)
	}

	session, err := s.jwtService.GenerateSession(user.ID)
	if err != nil {
		return nil, nil, appErrors.ErrServerError.Wrap(err)
	}

	s.logger.Info("User signed up", "userId", user.ID)
	return user, session, nil
}

// Login 用户登录，邮箱不存在与密码错误返回同一错误
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*model.User, *jwt.Session, error) {
	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, nil, appErrors.ErrInvalidCredentials
		}
		return nil, nil, appErrors.ErrDBError.Wrap(err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, nil, appErrors.ErrInvalidCredentials
	}

	session, err := s.jwtService.GenerateSession(user.ID)
	if err != nil {
		return nil, nil, appErrors.ErrServerError.Wrap(err)
	}
	return user, session, nil
}

// Logout 吊销会话 Token；Token 无效或已过期时无需处理
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	claims, err := s.jwtService.ValidateToken(token)
	if err != nil || claims.ID == "" || claims.ExpiresAt == nil {
		return nil
	}
	if err := s.sessions.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		s.logger.Error("Failed to revoke session", "userId", claims.UserID, "error", err)
		return appErrors.ErrServerError.Wrap(err)
	}
	return nil
}

// Authenticate 校验会话 Token 并加载当前用户
func (s *AuthService) Authenticate(ctx context.Context, token string) (*model.User, *jwt.Claims, error) {
	if token == "" {
		return nil, nil, appErrors.ErrUnauthenticated
	}

	claims, err := s.jwtService.ValidateToken(token)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, nil, appErrors.ErrTokenExpired
		}
		return nil, nil, appErrors.ErrTokenInvalid
	}

	revoked, err := s.sessions.IsRevoked(ctx, claims.ID)
	if err != nil {
		s.logger.Error("Failed to check session revocation", "userId", claims.UserID, "error", err)
		return nil, nil, appErrors.ErrServerError.Wrap(err)
	}
	if revoked {
		return nil, nil, appErrors.ErrTokenInvalid
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, nil, appErrors.ErrTokenInvalid
		}
		return nil, nil, appErrors.ErrDBError.Wrap(err)
	}
	return user, claims, nil
}

// UpdateProfile 上传并更新头像
func (s *AuthService) UpdateProfile(ctx context.Context, userID int64, profilePic string) (*model.User, error) {
	if profilePic == "" {
		return nil, appErrors.ErrProfilePicRequired
	}

	url, err := s.uploader.Upload(ctx, profilePic)
	if err != nil {
		s.logger.Error("Failed to upload profile pic", "userId", userID, "error", err)
		return nil, appErrors.ErrUploadFailed.Wrap(err)
	}

	user, err := s.users.UpdateProfilePic(ctx, userID, url)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, appErrors.ErrUserNotFound
		}
		return nil, appErrors.ErrDBError.Wrap(err)
	}
	return user, nil
}

// ForgotPassword 生成一次性重置 Token（15 分钟有效），只存储其 SHA-256 哈希
// origin 为请求来源，仅在未配置前端地址时用于拼接链接
func (s *AuthService) ForgotPassword(ctx context.Context, email, origin string) (*ForgotPasswordResult, error) {
	result := &ForgotPasswordResult{Message: ForgotPasswordMessage}
	if email == "" {
		return result, nil
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return result, nil
		}
		return nil, appErrors.ErrDBError.Wrap(err)
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, appErrors.ErrServerError.Wrap(err)
	}
	token := hex.EncodeToString(raw)

	if err := s.resetTokens.Save(ctx, hashResetToken(token), user.ID); err != nil {
		s.logger.Error("Failed to save reset token", "userId", user.ID, "error", err)
		return nil, appErrors.ErrServerError.Wrap(err)
	}

	result.ResetLink = s.resetBaseURL(origin) + "/reset-password/" + token
	return result, nil
}

// ResetPassword 使用重置 Token 修改密码，Token 使用后立即失效
func (s *AuthService) ResetPassword(ctx context.Context, token, password string) error {
	if token == "" {
		return appErrors.ErrResetTokenInvalid
	}
	if password == "" {
		return appErrors.ErrPasswordRequired
	}
	if len(password) < minPasswordLength {
		return appErrors.ErrPasswordTooShort
	}

	userID, err := s.resetTokens.Consume(ctx, hashResetToken(token))
	if err != nil {
		if errors.Is(err, repository.ErrResetTokenNotFound) {
			return appErrors.ErrResetTokenInvalid
		}
		return appErrors.ErrServerError.Wrap(err)
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return appErrors.ErrServerError.Wrap(err)
	}
	if err := s.users.UpdatePassword(ctx, userID, string(passwordHash)); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return appErrors.ErrResetTokenInvalid
		}
		return appErrors.ErrDBError.Wrap(err)
	}

	s.logger.Info("Password reset", "userId", userID)
	return nil
}

func (s *AuthService) resetBaseURL(origin string) string {
	base := s.frontendURL
	if base == "" {
		base = origin
	}
	if base == "" {
		base = defaultFrontend
	}
	return strings.TrimRight(base, "/")
}

func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
