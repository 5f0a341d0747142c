package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/groupcal/backend/internal/middleware"
)

type Handlers struct {
	Auth     *AuthHandler
	Events   *EventsHandler
	Groups   *GroupsHandler
	Calendar *CalendarHandler
	Audit    *AuditHandler
	Version  *VersionHandler
}

// Register mounts every API route under /api.
func Register(app *fiber.App, h Handlers, authMiddleware *middleware.AuthMiddleware) {
	api := app.Group("/api")
	api.Get("/version", h.Version.Get)

	authRoutes := api.Group("/auth")
	authRoutes.Post("/login", h.Auth.Login)
	authRoutes.Post("/google", h.Auth.GoogleLogin)
	authRoutes.Get("/me", authMiddleware.RequireAuth, h.Auth.Me)

	eventRoutes := api.Group("/events", authMiddleware.RequireAuth)
	eventRoutes.Post("/", h.Events.Create)
	eventRoutes.Post("/batch", h.Events.CreateBatch)
	eventRoutes.Get("/", h.Events.List)
	eventRoutes.Get("/calendar.ics", h.Events.ExportICS)
	eventRoutes.Get("/:id", h.Events.Get)
	eventRoutes.Put("/:id", h.Events.Update)
	eventRoutes.Delete("/:id", h.Events.Delete)
	eventRoutes.Post("/:id/respond", h.Events.Respond)
	eventRoutes.Get("/:id/participations", h.Events.Participations)

	groupRoutes := api.Group("/groups", authMiddleware.RequireAuth)
	groupRoutes.Post("/", h.Groups.Create)
	groupRoutes.Get("/mine", h.Groups.Mine)
	groupRoutes.Get("/search", h.Groups.Search)
	groupRoutes.Get("/:id/members", h.Groups.Members)
	groupRoutes.Get("/:id/role", h.Groups.Role)
	groupRoutes.Get("/:id/events", h.Events.GroupEvents)
	groupRoutes.Post("/:id/join", h.Groups.Join)
	groupRoutes.Post("/:id/leave", h.Groups.Leave)
	groupRoutes.Delete("/:id/members/:userId", h.Groups.RemoveMember)
	groupRoutes.Put("/:id/members/:userId", h.Groups.ChangeRole)
	groupRoutes.Delete("/:id", h.Groups.Delete)

	calendarRoutes := api.Group("/calendar", authMiddleware.RequireAuth)
	calendarRoutes.Post("/sync", h.Calendar.SyncEvent)
	calendarRoutes.Post("/remove", h.Calendar.RemoveEvent)

	api.Get("/audit-log", authMiddleware.RequireAuth, h.Audit.List)
	api.Get("/audit-log/export", authMiddleware.RequireAuth, h.Audit.ExportMyLog)
}
