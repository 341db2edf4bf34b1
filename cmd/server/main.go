package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sketchroom/backend/internal/config"
	"github.com/sketchroom/backend/internal/database"
	"github.com/sketchroom/backend/internal/handlers"
	"github.com/sketchroom/backend/internal/middleware"
	"github.com/sketchroom/backend/internal/services"
	"github.com/sketchroom/backend/internal/storage"
	"github.com/sketchroom/backend/internal/tasks"
	"github.com/sketchroom/backend/internal/ws"
	"github.com/sketchroom/backend/pkg/logger"
	"github.com/sketchroom/backend/pkg/utils"
)

func main() {
	_ = godotenv.Load()
	logger.Init()

	cfg := config.Load()
	utils.ConfigureJWT(cfg.JWT.Secret, cfg.JWT.ExpirationHours)

	db, err := database.Connect(cfg.DB)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}

	storageClient, err := storage.NewMinIOClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("minio initialization failed: %v", err)
	}
	if err := storageClient.EnsureBucket(context.Background()); err != nil {
		log.Fatalf("failed ensuring minio bucket: %v", err)
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
	queueClient := asynq.NewClient(redisOpt)
	defer queueClient.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	worker := tasks.NewWorker(redisOpt, db, cfg.Cleanup.Interval)
	worker.Start()

	notifier := services.NewNotifier(db)
	mailer := services.NewMailer(queueClient, cfg.Server.FrontendURL)
	roomService := services.NewRoomService(db, notifier, mailer, cfg.Room)

	hub := ws.NewHub()
	go hub.Run()
	gateway := ws.NewGateway(hub, roomService, queueClient)

	authHandler := handlers.NewAuthHandler(db, storageClient, mailer)
	userHandler := handlers.NewUserHandler(db)
	roomHandler := handlers.NewRoomHandler(db, roomService)
	invitationHandler := handlers.NewInvitationHandler(db, roomService)
	notificationHandler := handlers.NewNotificationHandler(db)

	authMiddleware := middleware.NewAuthMiddleware(db)
	loginRateLimit := middleware.RateLimit(redisClient, cfg.RateLimit.MaxRequests, cfg.RateLimit.Window)

	app := fiber.New(fiber.Config{BodyLimit: 10 * 1024 * 1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS(cfg.Server.FrontendURL))
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	authRoutes := api.Group("/auth")
	authRoutes.Post("/register", loginRateLimit, authHandler.Register)
	authRoutes.Post("/login", loginRateLimit, authHandler.Login)
	authRoutes.Post("/verify-email", authHandler.VerifyEmail)
	authRoutes.Post("/forgot-password", loginRateLimit, authHandler.ForgotPassword)
	authRoutes.Post("/reset-password", authHandler.ResetPassword)
	authRoutes.Get("/check-username/:name", authHandler.CheckUsername)
	authRoutes.Get("/me", authMiddleware.RequireAuth, authHandler.Me)
	authRoutes.Put("/me", authMiddleware.RequireAuth, authHandler.UpdateProfile)
	authRoutes.Post("/avatar", authMiddleware.RequireAuth, authHandler.UploadAvatar)
	authRoutes.Delete("/account", authMiddleware.RequireAuth, authHandler.DeleteAccount)

	api.Get("/users/search", authMiddleware.RequireAuth, userHandler.Search)
	api.Get("/users/:id", authMiddleware.RequireAuth, userHandler.Get)

	roomRoutes := api.Group("/rooms")
	roomRoutes.Post("/create", authMiddleware.RequireAuth, roomHandler.Create)
	roomRoutes.Post("/join", authMiddleware.RequireAuth, roomHandler.Join)
	roomRoutes.Get("/public", authMiddleware.OptionalAuth, roomHandler.Public)
	roomRoutes.Get("/my-rooms", authMiddleware.RequireAuth, roomHandler.MyRooms)
	roomRoutes.Get("/:code/validate", authMiddleware.OptionalAuth, roomHandler.Validate)
	roomRoutes.Get("/:id", authMiddleware.RequireAuth, roomHandler.Get)
	roomRoutes.Put("/:id", authMiddleware.RequireAuth, roomHandler.Update)
	roomRoutes.Delete("/:id", authMiddleware.RequireAuth, roomHandler.Delete)
	roomRoutes.Post("/:id/leave", authMiddleware.RequireAuth, roomHandler.Leave)
	roomRoutes.Get("/:id/participants", authMiddleware.RequireAuth, roomHandler.Participants)
	roomRoutes.Post("/:id/participants/:userId", authMiddleware.RequireAuth, roomHandler.ManageParticipant)
	roomRoutes.Post("/:id/invite", authMiddleware.RequireAuth, roomHandler.Invite)

	invitationRoutes := api.Group("/invitations", authMiddleware.RequireAuth)
	invitationRoutes.Get("/", invitationHandler.List)
	invitationRoutes.Post("/:id/accept", invitationHandler.Accept)
	invitationRoutes.Post("/:id/reject", invitationHandler.Reject)

	notificationRoutes := api.Group("/notifications", authMiddleware.RequireAuth)
	notificationRoutes.Get("/", notificationHandler.List)
	notificationRoutes.Get("/unread-count", notificationHandler.UnreadCount)
	notificationRoutes.Put("/read-all", notificationHandler.MarkAllRead)
	notificationRoutes.Put("/:id/read", notificationHandler.MarkRead)
	notificationRoutes.Delete("/all", notificationHandler.DeleteAll)
	notificationRoutes.Delete("/:id", notificationHandler.Delete)

	app.Get("/ws/rooms/:code", gateway.UpgradeGuard, gateway.Handler())

	listenAddr := fmt.Sprintf(":%s", cfg.Server.Port)

	logger.Info("server_starting", map[string]interface{}{
		"port":    cfg.Server.Port,
		"address": listenAddr,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(listenAddr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Printf("shutting down server due to signal: %s", sig)
		hub.Shutdown()
		worker.Shutdown()
		shutdownDone := make(chan struct{})
		go func() {
			_ = app.Shutdown()
			close(shutdownDone)
		}()
		select {
		case <-shutdownDone:
		case <-time.After(10 * time.Second):
			log.Print("forced shutdown timeout reached")
		}
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server error: %v", err)
		}
	}
}
