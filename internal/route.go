package internal

import (
	"github.com/gofiber/fiber/v2"
	swagger "github.com/gofiber/swagger"

	"github.com/gdbrns/go-whatsapp-session-manager/pkg/auth"
	"github.com/gdbrns/go-whatsapp-session-manager/pkg/router"

	ctlAdmin "github.com/gdbrns/go-whatsapp-session-manager/internal/admin"
	ctlGroup "github.com/gdbrns/go-whatsapp-session-manager/internal/group"
	ctlIndex "github.com/gdbrns/go-whatsapp-session-manager/internal/index"
	ctlMessage "github.com/gdbrns/go-whatsapp-session-manager/internal/message"
	ctlSession "github.com/gdbrns/go-whatsapp-session-manager/internal/session"
)

func Routes(app *fiber.App, svc *Services) {
	// Configure OpenAPI / Swagger
	specURL := router.BaseURL + "/docs/swagger.json"
	swaggerHandler := swagger.New(swagger.Config{
		URL: specURL,
	})

	sessionHandler := ctlSession.NewHandler(svc.Controller, svc.Config.Client.AuthTimeout*2)
	messageHandler := ctlMessage.NewHandler(svc.Registry, svc.Dispatcher, svc.Jobs, svc.Config.BulkMaxRecipients)
	groupHandler := ctlGroup.NewHandler(svc.Registry)
	adminHandler := ctlAdmin.NewHandler(svc.Registry, svc.Controller, svc.Versions)

	// Route for Index
	// ---------------------------------------------
	if router.BaseURL == "" {
		app.Get("/", ctlIndex.Index)
	} else {
		app.Get(router.BaseURL, ctlIndex.Index)
		app.Get(router.BaseURL+"/", ctlIndex.Index)
	}

	// Route for OpenAPI / Swagger
	// ---------------------------------------------
	app.Get(router.BaseURL+"/docs/swagger.json", func(c *fiber.Ctx) error {
		return c.SendFile("docs/swagger.json")
	})
	app.Get(router.BaseURL+"/docs/*", swaggerHandler)

	api := app.Group(router.BaseURL+"/api", svc.Throttle.Handler())

	// ============================================================
	// ADMIN ROUTES (X-Admin-Secret authentication)
	// ============================================================
	admin := api.Group("/admin", auth.AdminAuth())
	admin.Get("/sessions", adminHandler.ListSessions)
	admin.Post("/sessions/cleanup", adminHandler.CleanupSessions)
	admin.Get("/whatsapp/version", adminHandler.GetWhatsAppWebVersion)
	admin.Post("/whatsapp/version/refresh", adminHandler.RefreshWhatsAppWebVersion)

	// ============================================================
	// SESSION LIFECYCLE (X-API-Key, or session bearer token)
	// ============================================================
	apiKeyMiddleware := auth.APIKeyAuth()
	sessionMiddleware := auth.SessionAuth()

	whatsapp := api.Group("/whatsapp")
	whatsapp.Post("/initialize", apiKeyMiddleware, sessionHandler.Initialize)
	whatsapp.Post("/reconnect/:session_id", sessionMiddleware, sessionHandler.Reconnect)
	whatsapp.Post("/logout/:session_id", sessionMiddleware, sessionHandler.Logout)
	whatsapp.Get("/status/:session_id", sessionMiddleware, sessionHandler.Status)

	// ============================================================
	// MESSAGES AND GROUPS (X-API-Key)
	// ============================================================
	messages := api.Group("/messages", apiKeyMiddleware)
	messages.Post("/text", messageHandler.SendText)
	messages.Post("/image", messageHandler.SendImage)
	messages.Post("/bulk", messageHandler.SendBulk)
	messages.Get("/bulk/:job_id", messageHandler.BulkStatus)
	messages.Post("/check-numbers", messageHandler.CheckNumbers)

	groups := api.Group("/groups", apiKeyMiddleware)
	groups.Post("/get-group-id", groupHandler.GetGroupID)
}
