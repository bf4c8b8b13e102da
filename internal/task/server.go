package task

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"

	"sudooom.im.chat/internal/config"
)

// GroupPurger 群消息批量删除，由 repository.MessageRepository 实现
type GroupPurger interface {
	DeleteByGroup(ctx context.Context, groupID int64) (int64, error)
}

// Server 后台任务消费者
type Server struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *slog.Logger
}

// NewServer 创建任务消费者并注册处理器
func NewServer(redisCfg config.RedisConfig, taskCfg config.TaskConfig, purger GroupPurger) *Server {
	logger := slog.Default()
	concurrency := taskCfg.Concurrency
	if concurrency <= 0 {
		concurrency = 2
	}

	srv := asynq.NewServer(RedisOpt(redisCfg), asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{QueueMaintenance: 1},
		Logger:      &asynqLogger{logger: logger.With("component", "asynq")},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, t *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			logger.Error("Task failed",
				"type", t.Type(),
				"retried", retried,
				"maxRetry", maxRetry,
				"error", err)
		}),
	})

	mux := asynq.NewServeMux()
	mux.Handle(TypePurgeGroupMessages, NewPurgeGroupHandler(purger))

	return &Server{server: srv, mux: mux, logger: logger}
}

// Start 启动消费（非阻塞）
func (s *Server) Start() error {
	if err := s.server.Start(s.mux); err != nil {
		return fmt.Errorf("task: start server: %w", err)
	}
	s.logger.Info("Task server started", "queue", QueueMaintenance)
	return nil
}

// Shutdown 等待进行中的任务完成后退出
func (s *Server) Shutdown() {
	s.server.Shutdown()
	s.logger.Info("Task server stopped")
}

// PurgeGroupHandler 处理群消息清理任务
type PurgeGroupHandler struct {
	purger GroupPurger
	logger *slog.Logger
}

func NewPurgeGroupHandler(purger GroupPurger) *PurgeGroupHandler {
	return &PurgeGroupHandler{purger: purger, logger: slog.Default()}
}

// ProcessTask 实现 asynq.Handler；参数错误不重试
func (h *PurgeGroupHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p PurgeGroupPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("task: invalid purge payload: %v: %w", err, asynq.SkipRetry)
	}
	if p.GroupID <= 0 {
		return fmt.Errorf("task: invalid group id %d: %w", p.GroupID, asynq.SkipRetry)
	}

	n, err := h.purger.DeleteByGroup(ctx, p.GroupID)
	if err != nil {
		return fmt.Errorf("task: purge group %d: %w", p.GroupID, err)
	}

	h.logger.Info("Orphaned group messages purged", "groupId", p.GroupID, "purgedMessages", n)
	return nil
}

// asynqLogger 将 asynq 内部日志转到 slog
type asynqLogger struct {
	logger *slog.Logger
}

func (l *asynqLogger) Debug(args ...any) { l.logger.Debug(fmt.Sprint(args...)) }
func (l *asynqLogger) Info(args ...any)  { l.logger.Info(fmt.Sprint(args...)) }
func (l *asynqLogger) Warn(args ...any)  { l.logger.Warn(fmt.Sprint(args...)) }
func (l *asynqLogger) Error(args ...any) { l.logger.Error(fmt.Sprint(args...)) }

func (l *asynqLogger) Fatal(args ...any) {
	l.logger.Error(fmt.Sprint(args...))
	os.Exit(1)
}
