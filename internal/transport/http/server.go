package http

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"warbler/internal/cache"
	"warbler/internal/config"
	"warbler/internal/database"
	"warbler/internal/handler"
	"warbler/internal/logger"
	"warbler/internal/metrics"
	"warbler/internal/queue"
	"warbler/internal/redis"
	"warbler/internal/repository"
	"warbler/internal/service"
	"warbler/internal/session"
	"warbler/internal/view"
	"warbler/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func Run() error {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger.Setup(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Connect to Database
	db, err := database.Connect(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	tx := repository.NewTransactor(db)
	userRepo := repository.NewUserRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	followRepo := repository.NewFollowRepository(db)
	likeRepo := repository.NewLikeRepository(db)

	// 3. Timeline cache and workers (optional)
	var (
		timelineCache cache.TimelineCache
		publisher     queue.Publisher
		workers       *worker.Manager
	)
	if cfg.RedisURL != "" {
		client, err := redis.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer client.Close()

		timelineCache = cache.NewTimelineCache(client.Client)
		publisher = queue.NewPublisher(client.Client)

		workers = worker.NewManager(
			queue.NewConsumer(client.Client),
			worker.NewHandler(timelineCache, followRepo, messageRepo),
			worker.ManagerConfig{WorkerCount: cfg.TimelineWorkers},
		)
		if err := workers.Start(ctx); err != nil {
			return fmt.Errorf("failed to start timeline workers: %w", err)
		}
		defer workers.Stop()
	} else {
		log.Println("[Server] REDIS_URL not set, timelines are read from the database")
	}

	// 4. Media (optional)
	var images handler.ImageStore
	if cfg.MediaEnabled() {
		media, err := service.NewMediaService(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to set up media storage: %w", err)
		}
		images = media
	}

	// 5. Services
	userOpts := []service.UserServiceOption{
		service.WithDefaultImages(cfg.DefaultImageURL, cfg.DefaultHeaderImageURL),
	}
	if timelineCache != nil {
		userOpts = append(userOpts, service.WithTimelineCache(timelineCache))
	}
	userService := service.NewUserService(tx, userRepo, userOpts...)
	messageService := service.NewMessageService(tx, messageRepo, publisher)
	followService := service.NewFollowService(tx, followRepo, userRepo, publisher)
	likeService := service.NewLikeService(tx, likeRepo, messageRepo)
	timelineService := service.NewTimelineService(messageRepo, timelineCache)
	tokenService := service.NewTokenService(cfg.JWTSecret, cfg.AccessTokenMaxAge)

	// 6. HTTP
	renderer, err := view.New()
	if err != nil {
		return fmt.Errorf("failed to load templates: %w", err)
	}
	sessions := session.NewManager(cfg.SessionSecret, cfg.SecureCookies)
	m := metrics.New()
	web := handler.NewWeb(sessions, renderer, m)

	router := NewRouter(RouterConfig{
		AuthHandler:    handler.NewAuthHandler(web, userService, tokenService, images),
		UserHandler:    handler.NewUserHandler(web, userService, followService, likeService, messageService, images),
		MessageHandler: handler.NewMessageHandler(web, messageService, likeService),
		HomeHandler:    handler.NewHomeHandler(web, timelineService, userService, likeService),
		APIHandler:     handler.NewAPIHandler(timelineService, messageService, m),
		Users:          userRepo,
		Sessions:       sessions,
		Tokens:         tokenService,
		Metrics:        m,
	})

	srv := &stdhttp.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("[Server] Listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Println("[Server] Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
