package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"shopassist/internal/api"
	"shopassist/internal/chatapi"
	"shopassist/internal/config"
	"shopassist/internal/conversation"
	"shopassist/internal/previews"
	"shopassist/internal/redis"
	"shopassist/internal/render"
	"shopassist/internal/storage"
	"shopassist/internal/worker"
)

func main() {
	cfg, err := config.Load(os.Getenv("SHOPASSIST_CONFIG"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	dbType := cfg.BasicConfig.Database
	if dbType == "" {
		dbType = "sqlite3"
	}
	log.Printf("dbType: %s\n", dbType)
	db, err := storage.Open(dbType, cfg)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	// Create the previews table
	if err := storage.Migrate(db, dbType); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	previewTTL := time.Duration(cfg.BasicConfig.PreviewTTL) * time.Minute
	previewStore, err := previews.NewStore(db, storage.Driver(dbType), cfg.BasicConfig.PreviewDir, previewTTL)
	if err != nil {
		log.Fatalf("init preview store: %v", err)
	}
	previewStore.StartCleaner(bgCtx, time.Duration(cfg.BasicConfig.PreviewCleanEvery)*time.Minute)

	var limiter api.Limiter
	if cfg.Redis.Enabled {
		rdb, err := redis.NewRedisClient(cfg)
		if err != nil {
			log.Fatalf("create redis client: %v", err)
		}
		defer rdb.Close()
		if cfg.BasicConfig.RateLimitQPS > 0 {
			limiter = api.NewRedisLimiter(rdb, cfg.BasicConfig.RateLimitQPS)
		}
	} else if cfg.BasicConfig.RateLimitQPS > 0 {
		limiter = api.NewLocalLimiter(cfg.BasicConfig.RateLimitQPS)
	}

	dispatcher := worker.NewDispatcher(worker.DispatcherConfig{
		MinWorkers:        cfg.BasicConfig.MinWorkers,
		MaxWorkers:        cfg.BasicConfig.MaxWorkers,
		QueueSize:         cfg.BasicConfig.QueueSize,
		WorkerIdleTimeout: time.Duration(cfg.BasicConfig.WorkerIdleTimeout) * time.Minute,
	})
	defer dispatcher.Stop()

	callTimeout := time.Duration(cfg.ChatAPI.TimeoutSeconds) * time.Second
	client := chatapi.NewClient(chatapi.Options{
		BaseURL:       cfg.ChatAPI.BaseURL,
		Timeout:       callTimeout,
		RatePerSecond: cfg.ChatAPI.RatePerSecond,
		Burst:         cfg.ChatAPI.Burst,
	})

	sessions := conversation.NewRegistry(conversation.Options{
		Client:             client,
		Executor:           dispatcher,
		Previews:           previewStore,
		CallTimeout:        callTimeout,
		RejectWhileLoading: true,
	}, time.Duration(cfg.BasicConfig.SessionIdleTTL)*time.Minute)
	sessions.StartJanitor(bgCtx, time.Minute)

	handlers := api.NewHandler(api.Options{
		Sessions: sessions,
		Previews: previewStore,
		Renderer: render.New(cfg.BasicConfig.ImageBaseURL),
		Limiter:  limiter,
	})

	router := gin.Default()
	handlers.RegisterRoutes(router)

	addr := cfg.BasicConfig.ServerAddress
	if addr == "" {
		addr = ":8090"
	}

	if err := router.Run(addr); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
