package storage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"sudooom.im.chat/internal/config"
)

var (
	ErrEmptyPayload     = errors.New("storage: empty payload")
	ErrInvalidPayload   = errors.New("storage: payload is not valid base64")
	ErrPayloadTooLarge  = errors.New("storage: payload exceeds size limit")
	ErrUnsupportedMedia = errors.New("storage: unsupported content type")
)

const defaultMaxBytes = 5 << 20

// 允许的图片类型及扩展名
var extensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// LocalStorage 本地磁盘对象存储，文件由 /uploads 静态路由对外提供
type LocalStorage struct {
	dir      string
	baseURL  string
	maxBytes int64
	logger   *slog.Logger
}

// NewLocalStorage 创建本地存储并确保目录存在
func NewLocalStorage(cfg config.UploadConfig) (*LocalStorage, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create upload dir: %w", err)
	}
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	return &LocalStorage{
		dir:      cfg.Dir,
		baseURL:  strings.TrimRight(cfg.PublicBaseURL, "/"),
		maxBytes: maxBytes,
		logger:   slog.Default(),
	}, nil
}

// Upload 保存 data URL 或裸 base64 图片，返回访问 URL
func (s *LocalStorage) Upload(ctx context.Context, payload string) (string, error) {
	data, err := s.decode(payload)
	if err != nil {
		return "", err
	}

	contentType := http.DetectContentType(data)
	ext, ok := extensions[contentType]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedMedia, contentType)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := uuid.NewString() + ext
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("storage: write file: %w", err)
	}

	s.logger.Debug("File uploaded", "name", name, "contentType", contentType, "bytes", len(data))
	return s.baseURL + "/" + name, nil
}

func (s *LocalStorage) decode(payload string) ([]byte, error) {
	payload = strings.TrimSpace(payload)
	if strings.HasPrefix(payload, "data:") {
		idx := strings.Index(payload, ",")
		if idx < 0 {
			return nil, ErrInvalidPayload
		}
		payload = payload[idx+1:]
	}
	if payload == "" {
		return nil, ErrEmptyPayload
	}
	if int64(base64.StdEncoding.DecodedLen(len(payload))) > s.maxBytes+2 {
		return nil, ErrPayloadTooLarge
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, ErrPayloadTooLarge
	}
	return data, nil
}
