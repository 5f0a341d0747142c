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
	"github.com/groupcal/backend/internal/calendar"
	"github.com/groupcal/backend/internal/config"
	"github.com/groupcal/backend/internal/database"
	"github.com/groupcal/backend/internal/handlers"
	"github.com/groupcal/backend/internal/mailer"
	"github.com/groupcal/backend/internal/metrics"
	"github.com/groupcal/backend/internal/middleware"
	"github.com/groupcal/backend/internal/services"
	"github.com/groupcal/backend/pkg/logger"
	"github.com/groupcal/backend/pkg/utils"
)

func main() {
	logger.Init()

	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("loading .env failed: %v", err)
	}
	cfg := config.Load()
	utils.ConfigureJWT(cfg.JWT.Secret, cfg.JWT.ExpirationHours)

	db, err := database.Connect(cfg.DB, cfg.Seed)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}

	sender, err := mailer.New(cfg.Mail)
	if err != nil {
		log.Fatalf("mailer initialization failed: %v", err)
	}

	var provider calendar.Provider
	providerName := "google"
	if cfg.Calendar.CalDAVEndpoint != "" {
		providerName = "caldav"
		caldav, err := calendar.NewCalDAVProvider(cfg.Calendar)
		if err != nil {
			log.Fatalf("caldav initialization failed: %v", err)
		}
		provider = caldav
	} else {
		provider = calendar.NewGoogleProvider(cfg.Calendar.Timezone)
	}

	var verifier services.IDTokenVerifier
	if cfg.Google.ClientID != "" {
		verifier = services.NewGoogleVerifier(context.Background(), cfg.Google.ClientID)
	}

	registry := services.NewMembershipRegistry(db)
	participation := services.NewParticipationService(db)
	notifier := services.NewNotificationService(db, sender, cfg.Mail.From, cfg.Mail.QueueSize, cfg.Mail.Timeout)
	auditService := services.NewAuditService(db, cfg.Audit.QueueSize)

	eventService := services.NewEventService(db, registry, participation, notifier)
	groupService := services.NewGroupService(db, registry)
	syncService := services.NewCalendarSyncService(db, registry, provider, calendar.LoadLocation(cfg.Calendar.Timezone))
	authService := services.NewAuthService(db, verifier)

	authMiddleware := middleware.NewAuthMiddleware(db)

	app := fiber.New(fiber.Config{BodyLimit: 4 * 1024 * 1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS(cfg.Server.CORSOrigins))
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())
	app.Use(metrics.Middleware())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", metrics.Handler())

	handlers.Register(app, handlers.Handlers{
		Auth:     handlers.NewAuthHandler(authService, auditService),
		Events:   handlers.NewEventsHandler(eventService, syncService, auditService),
		Groups:   handlers.NewGroupsHandler(groupService, auditService),
		Calendar: handlers.NewCalendarHandler(syncService, auditService),
		Audit:    handlers.NewAuditHandler(auditService),
		Version: handlers.NewVersionHandler(handlers.ServerInfo{
			Timezone:         cfg.Calendar.Timezone,
			CalendarProvider: providerName,
			GoogleSignIn:     verifier != nil,
			EmailDelivery:    cfg.Mail.Enabled(),
		}),
	}, authMiddleware)

	listenAddr := fmt.Sprintf(":%s", cfg.Server.Port)

	logger.Info("server_starting", map[string]interface{}{
		"port":            cfg.Server.Port,
		"address":         listenAddr,
		"db_driver":       cfg.DB.Driver,
		"mail_enabled":    cfg.Mail.Enabled(),
		"calendar":        providerName,
		"google_sign_in":  verifier != nil,
		"calendar_tz":     cfg.Calendar.Timezone,
		"audit_queue":     cfg.Audit.QueueSize,
		"mail_queue_size": cfg.Mail.QueueSize,
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
		shutdownDone := make(chan struct{})
		go func() {
			_ = app.Shutdown()
			// Drain queued notifications and audit entries after the last
			// request has finished.
			notifier.Close()
			auditService.Close()
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
