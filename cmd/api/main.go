package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vidtube/vidtube/internal/config"
	"github.com/vidtube/vidtube/internal/handlers"
	"github.com/vidtube/vidtube/internal/middleware"
	"github.com/vidtube/vidtube/internal/readmodel"
	"github.com/vidtube/vidtube/internal/repository"
	"github.com/vidtube/vidtube/internal/services"
	"github.com/vidtube/vidtube/pkg/cache"
	"github.com/vidtube/vidtube/pkg/logger"
	"github.com/vidtube/vidtube/pkg/queue"
	"github.com/vidtube/vidtube/pkg/storage"
)

func main() {
	// 加载配置
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	logger := logger.NewWithLevel(cfg.Log.Level)
	logger.Info("Starting VidTube API server...")

	ctx := context.Background()

	// 初始化数据库
	db, err := repository.NewDatabase(ctx, &cfg.Mongo)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to MongoDB")
	}
	defer db.Close()

	// 创建索引
	if err := db.EnsureIndexes(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to ensure indexes")
	}

	// 初始化Redis缓存
	redisClient := cache.NewRedisClient(
		cfg.Redis.Addr(),
		cfg.Redis.Password,
		cfg.Redis.DB,
		cfg.Redis.PoolSize,
		cfg.Redis.MinIdleConns,
	)
	defer redisClient.Close()

	// 检查Redis连接
	if err := redisClient.Ping(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}

	// 初始化对象存储
	mediaStore, err := storage.NewMediaStore(storage.Config{
		Endpoint:      cfg.Storage.Endpoint,
		AccessKey:     cfg.Storage.AccessKey,
		SecretKey:     cfg.Storage.SecretKey,
		UseSSL:        cfg.Storage.UseSSL,
		Bucket:        cfg.Storage.Bucket,
		Region:        cfg.Storage.Region,
		PublicBaseURL: cfg.Storage.PublicBaseURL,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to create media store")
	}
	if err := mediaStore.EnsureBucket(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to ensure media bucket")
	}

	// 初始化Kafka生产者
	userEventsProducer := queue.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics.UserEvents)
	defer userEventsProducer.Close()

	videoEventsProducer := queue.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics.VideoEvents)
	defer videoEventsProducer.Close()

	// 初始化仓库
	userRepo := repository.NewUserRepository(db)
	videoRepo := repository.NewVideoRepository(db)
	subscriptionRepo := repository.NewSubscriptionRepository(db)
	likeRepo := repository.NewLikeRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	tweetRepo := repository.NewTweetRepository(db)
	viewRepo := repository.NewViewRepository(db)

	reader := readmodel.NewReader(db)
	limits := readmodel.Limits{Default: cfg.Pagination.DefaultLimit, Max: cfg.Pagination.MaxLimit}

	// 初始化服务
	sessionService := services.NewSessionService(redisClient, &cfg.JWT, logger)
	userService := services.NewUserService(userRepo, reader, sessionService, mediaStore, userEventsProducer, cfg.JWT.ResetTokenTTL, logger)
	videoService := services.NewVideoService(videoRepo, viewRepo, userRepo, reader, mediaStore, redisClient, videoEventsProducer, cfg.Feed.CacheTTL, logger)
	subscriptionService := services.NewSubscriptionService(subscriptionRepo, userRepo, userEventsProducer, logger)
	likeService := services.NewLikeService(likeRepo, videoRepo, commentRepo, tweetRepo, reader, videoEventsProducer, logger)
	commentService := services.NewCommentService(commentRepo, likeRepo, videoRepo, tweetRepo, reader, videoEventsProducer, logger)
	tweetService := services.NewTweetService(tweetRepo, commentRepo, likeRepo, userEventsProducer, logger)

	// 初始化处理器
	userHandler := handlers.NewUserHandler(userService, limits, handlers.CookieConfig{
		Secure:     cfg.JWT.SecureCookies,
		AccessTTL:  cfg.JWT.ExpireTime,
		RefreshTTL: cfg.JWT.RefreshExpireTime,
	})
	videoHandler := handlers.NewVideoHandler(videoService, limits)
	socialHandler := handlers.NewSocialHandler(subscriptionService, likeService, commentService, tweetService, limits)

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 健康检查
	health := func(c *gin.Context) {
		status := http.StatusOK
		body := gin.H{"status": "healthy", "time": time.Now().Unix()}
		if err := db.Ping(c.Request.Context()); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "unhealthy"
			body["mongo"] = err.Error()
		}
		if err := redisClient.Ping(c.Request.Context()); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "unhealthy"
			body["redis"] = err.Error()
		}
		c.JSON(status, body)
	}

	// 创建路由
	router := handlers.NewRouter(logger, &middleware.JWTConfig{Secret: cfg.JWT.Secret}, handlers.RouterOptions{
		CORSOrigin:   cfg.Server.CORSOrigin,
		QueryTimeout: cfg.Feed.QueryTimeout,
		MaxBodySize:  cfg.Server.MaxUploadSize,
	}, health, userHandler, videoHandler, socialHandler)

	// 创建HTTP服务器
	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 启动服务器
	go func() {
		logger.WithField("port", cfg.Server.Port).Info("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start HTTP server")
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// 优雅关闭
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server exited")
}

func init() {
	// 创建必要的目录
	if err := os.MkdirAll("configs", 0755); err != nil {
		log.Printf("Failed to create directory configs: %v", err)
	}

	// 创建默认配置文件（如果不存在）
	configPath := "configs/config.yaml"
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := createDefaultConfig(configPath); err != nil {
			log.Printf("Failed to create default config: %v", err)
		}
	}
}

func createDefaultConfig(path string) error {
	defaultConfig := `server:
  port: ":8080"
  mode: "debug"
  read_timeout: 30s
  write_timeout: 60s
  cors_origin: "*"
  max_upload_size: 536870912

log:
  level: "info"

mongo:
  uri: "mongodb://localhost:27017"
  database: "vidtube"
  max_pool_size: 100
  min_pool_size: 5
  connect_timeout: 10s

redis:
  host: "localhost"
  port: 6379
  password: ""
  db: 0
  pool_size: 100
  min_idle_conns: 10

kafka:
  brokers:
    - "localhost:9092"
  topics:
    user_events: "user-events"
    video_events: "video-events"
  group_id: "vidtube-worker-group"
  max_attempts: 5        # 单条消息的处理次数上限
  retry_backoff: 500ms   # 首次重试间隔，之后翻倍

jwt:
  secret: "your-secret-key-change-in-production"
  expire_time: 24h
  refresh_secret: "your-refresh-secret-change-in-production"
  refresh_expire_time: 240h
  reset_token_ttl: 1h    # 重置密码链接有效期
  secure_cookies: false

storage:
  endpoint: "localhost:9000"
  access_key: "minioadmin"
  secret_key: "minioadmin"
  use_ssl: false
  bucket: "vidtube-media"
  region: "us-east-1"

pagination:
  default_limit: 20
  max_limit: 100

feed:
  cache_ttl: 30s         # 已发布视频列表分页缓存时间
  query_timeout: 10s`

	return os.WriteFile(path, []byte(defaultConfig), 0644)
}
