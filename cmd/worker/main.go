package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/vidtube/vidtube/internal/config"
	"github.com/vidtube/vidtube/internal/repository"
	"github.com/vidtube/vidtube/internal/workers"
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
	logger.Info("Starting VidTube cleanup worker...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 初始化数据库
	db, err := repository.NewDatabase(ctx, &cfg.Mongo)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to MongoDB")
	}
	defer db.Close()

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

	// 初始化Kafka消费者
	retry := queue.RetryPolicy{MaxAttempts: cfg.Kafka.MaxAttempts, Backoff: cfg.Kafka.RetryBackoff}
	videoEventsConsumer := queue.NewKafkaConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.VideoEvents, cfg.Kafka.GroupID, retry, logger)
	userEventsConsumer := queue.NewKafkaConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.UserEvents, cfg.Kafka.GroupID, retry, logger)

	// 初始化仓库
	commentRepo := repository.NewCommentRepository(db)
	likeRepo := repository.NewLikeRepository(db)
	viewRepo := repository.NewViewRepository(db)

	// 初始化工作处理器
	worker := workers.NewCleanupWorker(
		commentRepo,
		likeRepo,
		viewRepo,
		mediaStore,
		[]*queue.KafkaConsumer{videoEventsConsumer, userEventsConsumer},
		logger,
	)

	// 启动工作处理器
	done := make(chan struct{})
	var workerErr error
	go func() {
		defer close(done)
		if workerErr = worker.Start(ctx); workerErr != nil {
			logger.WithError(workerErr).Error("Cleanup worker stopped with error")
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-done:
	}

	logger.Info("Shutting down worker...")

	cancel()
	<-done

	if err := worker.Stop(); err != nil {
		logger.WithError(err).Error("Failed to stop cleanup worker")
	}

	// 未提交的消息在重启后由 Kafka 重新投递
	if workerErr != nil {
		logger.WithError(workerErr).Fatal("Worker exited with error")
	}
	logger.Info("Worker exited")
}
