package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrTokenInvalid = errors.New("token is invalid")
	ErrTokenExpired = errors.New("token has expired")
)

const issuer = "im-chat"

// Claims 会话 Token 声明
// ID (jti) 用于登出时在 Redis 中吊销
type Claims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

// Session 签发结果
type Session struct {
	Token     string
	TokenID   string
	ExpiresAt time.Time
}

// Service JWT 服务
type Service struct {
	secretKey []byte
	expire    time.Duration
}

// NewService 创建 JWT 服务
func NewService(secretKey string, expire time.Duration) *Service {
	return &Service{
		secretKey: []byte(secretKey),
		expire:    expire,
	}
}

// Expire 会话有效期
func (s *Service) Expire() time.Duration {
	return s.expire
}

// GenerateSession 为用户签发会话 Token
func (s *Service) GenerateSession(userID int64) (*Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.expire)
	tokenID := uuid.NewString()

	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secretKey)
	if err != nil {
		return nil, err
	}

	return &Session{
		Token:     token,
		TokenID:   tokenID,
		ExpiresAt: expiresAt,
	}, nil
}

// ValidateToken 验证会话 Token
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return s.secretKey, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == 0 {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
