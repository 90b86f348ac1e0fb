package main

// @title Go WhatsApp Session Manager
// @version 1.0.0
// @description Multi-session WhatsApp lifecycle manager with paced, rate limited bulk messaging

// @contact.name gdbrns
// @contact.url https://github.com/gdbrns/go-whatsapp-session-manager

// @license.name MIT
// @license.url https://github.com/gdbrns/go-whatsapp-session-manager/blob/main/LICENSE

// @host localhost:7001
// @BasePath /

// @securityDefinitions.apikey AdminAuth
// @in header
// @name X-Admin-Secret
// @description Admin secret key for session administration

// @securityDefinitions.apikey APIKeyAuth
// @in header
// @name X-API-Key
// @description API key for every /api route

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Session scoped JWT bearer token

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	cron "github.com/robfig/cron/v3"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"

	"github.com/gdbrns/go-whatsapp-session-manager/pkg/log"
	"github.com/gdbrns/go-whatsapp-session-manager/pkg/router"

	"github.com/gdbrns/go-whatsapp-session-manager/internal"
)

func main() {
	// Load Configuration
	cfg, err := internal.LoadConfig()
	if err != nil {
		log.Print(nil).Fatal(err.Error())
	}
	log.SetLevel(cfg.LogLevel)

	// Initialize Services
	svc, err := internal.NewServices(cfg, nil)
	if err != nil {
		log.Print(nil).Fatal(err.Error())
	}

	// Intialize Cron
	c := cron.New(cron.WithChain(
		cron.Recover(cron.DiscardLogger),
	), cron.WithSeconds())

	// Initialize Fiber
	app := fiber.New(fiber.Config{
		ErrorHandler:   router.HttpErrorHandler,
		BodyLimit:      router.BodyLimitBytes(),
		ReadBufferSize: 8192, // Increase from default 4096 to handle larger headers (JWT tokens)
		Immutable:      true, // Params and headers outlive handlers as registry and throttle keys
	})

	// Request ID + panic recovery (structured JSON)
	app.Use(router.HttpRequestID())
	app.Use(router.RecoveryMiddleware())

	// Router Compression
	app.Use(compress.New(compress.Config{
		Level: compress.Level(router.GZipLevel),
		Next: func(c *fiber.Ctx) bool {
			return strings.Contains(c.Path(), "docs")
		},
	}))

	// Router CORS
	app.Use(cors.New(cors.Config{
		AllowOrigins: router.CORSOrigin,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-API-Key, X-Admin-Secret",
		AllowMethods: "GET,POST",
	}))

	// Router Security
	app.Use(helmet.New(helmet.Config{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "SAMEORIGIN",
	}))

	// Router RealIP + request context enrichment
	app.Use(router.HttpRealIP())

	// Load Internal Routes
	internal.Routes(app, svc)
	app.Use(router.HttpNotFound)

	// Running Startup Tasks in the background so the API answers while sessions restore
	ctxStartup, cancelStartup := context.WithCancel(context.Background())
	defer cancelStartup()
	go internal.Startup(ctxStartup, svc)

	// Running Routines Tasks
	internal.Routines(c, svc)

	// Start Server
	go func() {
		if err := app.Listen(cfg.Address + ":" + cfg.Port); err != nil {
			log.Print(nil).Fatal(err.Error())
		}
	}()

	// Watch for Shutdown Signal
	sigShutdown := make(chan os.Signal, 1)
	signal.Notify(sigShutdown, os.Interrupt, syscall.SIGTERM)
	<-sigShutdown
	cancelStartup()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	// Try To Shutdown Cron
	<-c.Stop().Done()

	// Try To Shutdown Server
	if err := app.ShutdownWithContext(ctxShutdown); err != nil {
		log.Print(nil).WithError(err).Error("Failed to shutdown HTTP server")
	}

	// Release Sessions, Drain Jobs and Webhooks
	if err := svc.Shutdown(ctxShutdown); err != nil {
		log.Print(nil).WithError(err).Warn("Graceful shutdown incomplete")
	}
	log.Print(nil).Info("Server stopped")
}
