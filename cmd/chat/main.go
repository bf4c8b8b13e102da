package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"sudooom.im.chat/internal/config"
	"sudooom.im.chat/internal/connection"
	"sudooom.im.chat/internal/handler"
	"sudooom.im.chat/internal/health"
	imNats "sudooom.im.chat/internal/nats"
	"sudooom.im.chat/internal/repository"
	"sudooom.im.chat/internal/router"
	"sudooom.im.chat/internal/service"
	"sudooom.im.chat/internal/storage"
	"sudooom.im.chat/internal/task"
	"sudooom.im.chat/pkg/jwt"
	"sudooom.im.chat/pkg/snowflake"
)

func main() {
	// 加载配置
	cfg, err := config.Load(config.GetEnv("CHAT_CONFIG", "configs/config.yaml"))
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// 初始化日志
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.App.LogLevel),
	})).With("node", cfg.App.NodeID)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 连接数据库
	db, err := connectDatabase(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	logger.Info("Connected to PostgreSQL", "host", cfg.Database.Host)

	// 连接 Redis
	redisClient := connectRedis(cfg.Redis)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	logger.Info("Connected to Redis", "host", cfg.Redis.Host)

	idNode, err := snowflake.NewNode(cfg.App.NodeID)
	if err != nil {
		logger.Error("Failed to create id generator", "error", err)
		os.Exit(1)
	}

	uploader, err := storage.NewLocalStorage(cfg.Upload)
	if err != nil {
		logger.Error("Failed to prepare upload storage", "error", err)
		os.Exit(1)
	}

	// 初始化存储层
	userRepo := repository.NewUserRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	sessionRepo := repository.NewSessionRepository(redisClient)
	resetTokenRepo := repository.NewResetTokenRepository(redisClient)
	presenceRepo := repository.NewPresenceRepository(redisClient, cfg.App.NodeID)

	// 上次异常退出遗留的在线记录
	if err := presenceRepo.ClearNode(ctx); err != nil {
		logger.Warn("Failed to clear stale presence entries", "error", err)
	}

	// 初始化服务
	manager := connection.NewManager()
	dispatcher := service.NewDispatcherService(manager, cfg.App.NodeID)
	resolver := service.NewResolver(userRepo, groupRepo)
	presenceService := service.NewPresenceService(manager, presenceRepo, dispatcher)
	jwtService := jwt.NewService(cfg.JWT.SecretKey, cfg.JWT.Expire)
	authService := service.NewAuthService(userRepo, sessionRepo, resetTokenRepo, jwtService, uploader, idNode, cfg.App.FrontendURL)
	messageService := service.NewMessageService(messageRepo, resolver, uploader, dispatcher, idNode)
	conversationService := service.NewConversationService(userRepo, messageRepo)
	typingService := service.NewTypingService(resolver, dispatcher)

	// 后台任务：群消息清理重试
	var purger service.PurgeScheduler
	var taskClient *task.Client
	var taskServer *task.Server
	if cfg.Task.Enabled {
		taskClient = task.NewClient(cfg.Redis, cfg.Task)
		purger = taskClient
		taskServer = task.NewServer(cfg.Redis, cfg.Task, messageRepo)
		if err := taskServer.Start(); err != nil {
			logger.Error("Failed to start task server", "error", err)
			os.Exit(1)
		}
	}
	groupService := service.NewGroupService(groupRepo, messageRepo, userRepo, dispatcher, purger, idNode)

	// 多节点推送
	var natsClient *imNats.Client
	var subscriber *imNats.EventSubscriber
	var natsConn *nats.Conn
	if cfg.NATS.Enabled {
		natsClient, err = imNats.NewClient(cfg.NATS, fmt.Sprintf("%s-%d", cfg.App.Name, cfg.App.NodeID))
		if err != nil {
			logger.Error("Failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		natsConn = natsClient.Conn()
		dispatcher.SetPublisher(imNats.NewEventPublisher(natsConn))
		subscriber = imNats.NewEventSubscriber(natsConn, cfg.App.NodeID, dispatcher, imNats.SubscriberConfig{})
		if err := subscriber.Start(ctx); err != nil {
			logger.Error("Failed to start subscriber", "error", err)
			os.Exit(1)
		}
		logger.Info("Connected to NATS", "url", cfg.NATS.URL)
	}

	// 心跳检测，超时连接由读循环退出后统一下线
	heartbeat := connection.NewHeartbeatChecker(manager, 2*cfg.WebSocket.PongWait, cfg.WebSocket.PongWait/2, logger, nil)
	go heartbeat.Start(ctx)

	// HTTP 服务
	healthChecker := health.NewChecker(natsConn, redisClient, db, manager.Count)
	engine := router.SetupRouter(cfg, authService, router.Handlers{
		Auth:    handler.NewAuthHandler(authService, cfg.JWT),
		Message: handler.NewMessageHandler(messageService, conversationService),
		Group:   handler.NewGroupHandler(groupService, messageService),
		Socket:  handler.NewSocketHandler(authService, presenceService, typingService, cfg.WebSocket, cfg.CORS, cfg.JWT.CookieName),
		Health:  healthChecker,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("Chat service started", "name", cfg.App.Name, "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	// 优雅退出
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}
	manager.CloseAll()
	cancel()

	if taskServer != nil {
		taskServer.Shutdown()
	}
	if taskClient != nil {
		_ = taskClient.Close()
	}
	if subscriber != nil {
		subscriber.Stop()
	}
	if natsClient != nil {
		natsClient.Close()
	}
	if err := presenceRepo.ClearNode(shutdownCtx); err != nil {
		logger.Warn("Failed to clear presence entries", "error", err)
	}
	_ = redisClient.Close()
	db.Close()

	logger.Info("Chat service stopped")
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// connectRedis 连接 Redis
func connectRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

// connectDatabase 连接 PostgreSQL
func connectDatabase(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, err
	}

	poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = 10 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}
