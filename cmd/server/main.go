// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"notebook-rag-go/internal/config"
	"notebook-rag-go/internal/handler"
	"notebook-rag-go/internal/middleware"
	"notebook-rag-go/internal/model"
	"notebook-rag-go/internal/pipeline"
	"notebook-rag-go/internal/repository"
	"notebook-rag-go/internal/service"
	"notebook-rag-go/pkg/database"
	"notebook-rag-go/pkg/embedding"
	"notebook-rag-go/pkg/extractor"
	"notebook-rag-go/pkg/kafka"
	"notebook-rag-go/pkg/llm"
	"notebook-rag-go/pkg/log"
	"notebook-rag-go/pkg/storage"
	"notebook-rag-go/pkg/token"
	"notebook-rag-go/pkg/vector"

	"github.com/gin-gonic/gin"
)

func main() {
	// 1. 初始化配置
	cfg, err := config.Load("./configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "配置加载失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化存储层：MySQL / Redis / MinIO / Elasticsearch / Kafka
	db, err := database.NewMySQL(cfg.Database.MySQL.DSN)
	if err != nil {
		log.Fatalf("MySQL 初始化失败: %v", err)
	}
	if err := db.AutoMigrate(
		&model.User{}, &model.Notebook{}, &model.Source{},
		&model.Chunk{}, &model.Message{},
	); err != nil {
		log.Fatalf("数据库迁移失败: %v", err)
	}

	rdb, err := database.NewRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	if err != nil {
		log.Fatalf("Redis 初始化失败: %v", err)
	}

	objectStore, err := storage.New(cfg.MinIO)
	if err != nil {
		log.Fatalf("MinIO 初始化失败: %v", err)
	}

	vectorStore, err := vector.New(cfg.Elasticsearch, cfg.Embedding.Dimensions)
	if err != nil {
		log.Fatalf("Elasticsearch 初始化失败: %v", err)
	}

	producer := kafka.NewProducer(cfg.Kafka)
	defer producer.Close()

	// 4. 初始化 Repository
	userRepo := repository.NewUserRepository(db)
	notebookRepo := repository.NewNotebookRepository(db)
	sourceRepo := repository.NewSourceRepository(db)
	chunkRepo := repository.NewChunkRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	conversationRepo := repository.NewConversationRepository(rdb)

	// 5. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours, cfg.JWT.RefreshTokenExpireDays)
	ext := extractor.New(cfg.Tika, time.Duration(cfg.Ingest.FetchTimeoutSecs)*time.Second)
	embeddingClient := embedding.NewClient(cfg.Embedding)
	llmClient := llm.NewClient(cfg.LLM)

	userService := service.NewUserService(userRepo, jwtManager)
	notebookService := service.NewNotebookService(
		notebookRepo, sourceRepo, chunkRepo, messageRepo, conversationRepo, vectorStore, objectStore)
	sourceService := service.NewSourceService(sourceRepo, chunkRepo, objectStore, vectorStore, producer)
	retrievalService := service.NewRetrievalService(embeddingClient, vectorStore)
	chatService := service.NewChatService(
		notebookRepo, messageRepo, conversationRepo, retrievalService, llmClient, cfg.Ingest)

	// 6. 初始化摄取管道并启动后台 Kafka 消费者
	processor := pipeline.NewProcessor(
		ext, embeddingClient, vectorStore, objectStore, llmClient,
		sourceRepo, chunkRepo, cfg.Ingest)
	consumer := kafka.NewConsumer(cfg.Kafka, processor, cfg.Ingest.Workers)
	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		consumer.Run(consumerCtx)
	}()

	// 7. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	userHandler := handler.NewUserHandler(userService)
	notebookHandler := handler.NewNotebookHandler(notebookService)
	sourceHandler := handler.NewSourceHandler(notebookService, sourceService)
	chatHandler := handler.NewChatHandler(chatService, notebookService, userService, jwtManager)

	// 8. 注册路由
	apiV1 := r.Group("/api/v1")
	{
		auth := apiV1.Group("/auth")
		{
			auth.POST("/refreshToken", userHandler.Refresh)
		}

		users := apiV1.Group("/users")
		{
			// 无需认证的路由 (公开访问)
			users.POST("/register", userHandler.Register)
			users.POST("/login", userHandler.Login)

			// 需要认证的路由 (仅限登录用户访问)
			authed := users.Group("/")
			authed.Use(middleware.AuthMiddleware(jwtManager, userService))
			{
				authed.GET("/me", userHandler.GetProfile)
			}
		}

		// Notebook 路由组，需要认证
		notebooks := apiV1.Group("/notebooks")
		notebooks.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			notebooks.POST("", notebookHandler.Create)
			notebooks.GET("", notebookHandler.List)
			notebooks.GET("/:id", notebookHandler.Get)
			notebooks.DELETE("/:id", notebookHandler.Delete)

			// 来源的提交、轮询和删除
			notebooks.POST("/:id/sources", sourceHandler.Submit)
			notebooks.GET("/:id/sources", sourceHandler.List)
			notebooks.GET("/:id/sources/:sourceId", sourceHandler.Get)
			notebooks.DELETE("/:id/sources/:sourceId", sourceHandler.Delete)

			// 对话历史读取
			notebooks.GET("/:id/messages", chatHandler.History)
		}
	}

	// Chat 路由 (WebSocket)，token 在路径中完成认证
	r.GET("/chat/:token", chatHandler.Handle)

	// 9. 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 先停 HTTP，再停消费者：Run 返回前会等在途任务全部做完
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("HTTP 服务器关闭失败: %v", err)
	}
	stopConsumer()
	select {
	case <-consumerDone:
	case <-ctx.Done():
		log.Warnf("等待摄取任务完成超时")
	}

	log.Info("服务已优雅关闭")
}
