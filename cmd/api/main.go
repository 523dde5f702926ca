package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/pennysavia/pennysavia-api/internal/config"
	"github.com/pennysavia/pennysavia-api/internal/database"
	"github.com/pennysavia/pennysavia-api/internal/handler"
	"github.com/pennysavia/pennysavia-api/internal/middleware"
	"github.com/pennysavia/pennysavia-api/internal/models"
	"github.com/pennysavia/pennysavia-api/internal/repository"
	"github.com/pennysavia/pennysavia-api/internal/router"
	"github.com/pennysavia/pennysavia-api/internal/service"
	cloud "github.com/pennysavia/pennysavia-api/pkg/cloudinary"
	"github.com/pennysavia/pennysavia-api/pkg/telegram"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(&models.Submission{}, &models.User{}, &models.ChatMessage{}, &models.UploadRecord{}); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	natsConn, err := database.ConnectNATS(cfg.NATSURL)
	if err != nil {
		log.Fatalf("failed to connect to nats: %v", err)
	}
	if natsConn != nil {
		defer natsConn.Close()
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	submissionRepo := repository.NewSubmissionRepository(db)
	userRepo := repository.NewUserRepository(db)
	chatRepo := repository.NewChatRepository(db)
	uploadRepo := repository.NewUploadRepository(db)

	var (
		botClient *telegram.Client
		notifier  service.SubmissionNotifier
	)
	if cfg.TelegramEnabled() {
		botClient, err = telegram.New(telegram.Config{
			Token:       cfg.TelegramBotToken,
			AdminChatID: cfg.TelegramAdminChatID,
		}, logger)
		if err != nil {
			log.Fatalf("failed to create telegram client: %v", err)
		}
		notifier = service.NewTelegramNotifier(botClient, logger)
	} else {
		logger.Warn().Msg("telegram credentials missing, notifications are logged only")
		notifier = service.NewLogNotifier(logger)
	}

	var storage service.FileStorage
	if cfg.CloudinaryCloudName != "" {
		uploader, err := cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
		if err != nil {
			log.Fatalf("failed to create cloudinary client: %v", err)
		}
		storage = uploader
	}

	submissionService := service.NewSubmissionService(submissionRepo, validate, notifier, cfg.NotifyTimeout, logger)
	userService := service.NewUserService(userRepo, validate, logger)
	chatService := service.NewChatService(chatRepo, userRepo, redisClient, cfg.ChatChannel, natsConn, validate, logger)
	uploadService := service.NewUploadService(storage, uploadRepo, int64(cfg.UploadMaxMB)<<20, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, router.Dependencies{
		Health:      handler.NewHealthHandler(cfg.AppName, version),
		Submissions: handler.NewSubmissionHandler(submissionService, logger),
		Users:       handler.NewUserHandler(userService, logger),
		Chat:        handler.NewChatHandler(chatService, logger),
		Uploads:     handler.NewUploadHandler(uploadService, logger),
		JWTSecret:   cfg.JWTSecret,
	})

	runCtx, stopConsumers := context.WithCancel(context.Background())
	defer stopConsumers()

	chatService.Start(runCtx)

	if botClient != nil {
		botService := service.NewBotService(botClient, submissionService, chatService, cfg.TelegramAdminChatID, logger)
		go botClient.Listen(runCtx, botService.HandleUpdate)
	}

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
