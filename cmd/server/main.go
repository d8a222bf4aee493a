package main

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	config "github.com/maheshrc27/crosspost/configs"
	"github.com/maheshrc27/crosspost/internal/api/handlers"
	"github.com/maheshrc27/crosspost/internal/api/middleware"
	job "github.com/maheshrc27/crosspost/internal/jobs"
	"github.com/maheshrc27/crosspost/internal/queue"
	"github.com/maheshrc27/crosspost/internal/repository"
	"github.com/maheshrc27/crosspost/internal/service"
	"github.com/maheshrc27/crosspost/pkg/utils"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg := config.LoadConfig()

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer closeDB(db)

	if err := db.Ping(); err != nil {
		log.Fatalf("Database is unreachable: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisURI})
	defer redisClient.Close()

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
	client := asynq.NewClient(redisConn)
	defer client.Close()

	key := sha256.Sum256([]byte(cfg.SecretKey))
	tokenCipher, err := utils.NewTokenCipher(key[:])
	if err != nil {
		log.Fatalf("Failed to create token cipher: %v", err)
	}

	httpClient := &http.Client{Timeout: 5 * time.Minute}

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			slog.Error(err.Error())
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.FrontendURL,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	socialAccountRepo := repository.NewSocialAccountRepository(db, tokenCipher)
	subscriptionRepo := repository.NewSubscriptionRepository(db)
	attemptRepo := repository.NewPublishAttemptRepository(db)
	lockRepo := repository.NewPublishLockRepository(redisClient)

	mediaService, err := service.NewMediaService(context.Background(), cfg, httpClient)
	if err != nil {
		log.Fatalf("Failed to configure media storage: %v", err)
	}

	tokenManager := service.NewTokenManager(cfg, httpClient)
	tokenService := service.NewTokenService(tokenManager, socialAccountRepo)

	snapchatService := service.NewSnapchatService(cfg, httpClient, mediaService)
	instagramService := service.NewInstagramService(cfg, httpClient)
	youtubeService := service.NewYoutubeService(cfg, httpClient, mediaService)
	publishers := []service.PlatformPublisher{snapchatService, instagramService, youtubeService}

	publishService := service.NewPublishService(postRepo, socialAccountRepo, subscriptionRepo, attemptRepo, lockRepo,
		tokenService, cfg.Scheduler.PublishLockTTL, publishers...)
	analyticsService := service.NewAnalyticsService(postRepo, socialAccountRepo, tokenService,
		cfg.Scheduler.AnalyticsReadFresh, cfg.Scheduler.AnalyticsSweepFresh, publishers...)
	schedulerService := service.NewSchedulerService(postRepo, userRepo, publishService, cfg.Scheduler.SweepConcurrency)
	postService := service.NewPostService(postRepo, socialAccountRepo, attemptRepo, tokenService, publishers...)

	authMiddleware := middleware.NewAuthMiddleware(*cfg)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	post := handlers.NewPostHandler(postService, publishService, analyticsService, client)
	api.Post("/posts", post.CreatePost)
	api.Get("/posts", post.ListPosts)
	api.Get("/posts/:id", post.GetPost)
	api.Put("/posts/:id", post.UpdatePost)
	api.Delete("/posts/:id", post.RemovePost)
	api.Post("/posts/:id/publish", post.PublishPost)
	api.Get("/posts/:id/analytics", post.GetAnalytics)
	api.Get("/posts/:id/attempts", post.ListAttempts)

	cronRoutes := app.Group("/cron")
	cronRoutes.Use(authMiddleware.CronSecret())

	cronHandler := handlers.NewCronHandler(schedulerService, analyticsService)
	cronRoutes.Post("/publish-scheduled", cronHandler.PublishScheduled)
	cronRoutes.Post("/sync-analytics", cronHandler.SyncAnalytics)

	// cron jobs
	if cfg.Scheduler.InProcessCron {
		refreshTokenJob := job.NewTokenRefreshJob(socialAccountRepo, tokenService)
		publishJob := job.NewScheduledPublishJob(schedulerService, 30*time.Minute)
		analyticsJob := job.NewAnalyticsSyncJob(analyticsService, 30*time.Minute)

		c := cron.New()
		mustAddFunc(c, cfg.Scheduler.TokenRefreshSpec, refreshTokenJob.RefreshTokens)
		mustAddFunc(c, cfg.Scheduler.SweepSpec, publishJob.PublishDue)
		mustAddFunc(c, cfg.Scheduler.AnalyticsSpec, analyticsJob.SyncAnalytics)
		c.Start()
		defer c.Stop()
	}

	//queue
	queueW := queue.NewQueue(postRepo, publishService)

	server := asynq.NewServer(redisConn, asynq.Config{
		Concurrency: 10,
	})
	go func() {
		mux := asynq.NewServeMux()
		mux.HandleFunc(queue.TaskTypeSchedulePost, queueW.HandleSchedulePostTask)

		log.Println("Starting the Asynq server...")
		if err := server.Run(mux); err != nil {
			log.Fatalf("Could not start Asynq server: %v", err)
		}
	}()

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Printf("Server is running on http://localhost:%s", cfg.Port)

	gracefulShutdown(app, server, db)
}

func mustAddFunc(c *cron.Cron, spec string, fn func()) {
	if err := c.AddFunc(spec, fn); err != nil {
		log.Fatalf("Invalid cron spec %q: %v", spec, err)
	}
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, server *asynq.Server, db *sql.DB) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}
	server.Shutdown()

	closeDB(db)
	log.Println("Server shutdown complete.")
}
