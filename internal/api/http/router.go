package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/marketplace-service/internal/api/http/handlers"
	"github.com/spec-kit/marketplace-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Admin          *handlers.AdminHandler
	Inventory      *handlers.InventoryHandler
	Orders         *handlers.OrdersHandler
	Messages       *handlers.MessagesHandler
	Notifications  *handlers.NotificationsHandler
	Profile        *handlers.ProfileHandler
	Support        *handlers.SupportHandler
	Users          *handlers.UsersHandler
	AuthMiddleware *auth.AuthMiddleware
	// AuthRateLimit is applied on top of the global limiter for /api/auth.
	AuthRateLimit RateLimit
	UploadDir     string
	UploadPrefix  string
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	if cfg.UploadDir != "" && cfg.UploadPrefix != "" {
		app.Static(cfg.UploadPrefix, cfg.UploadDir, fiber.Static{ByteRange: true})
	}

	authn := cfg.AuthMiddleware.Handle
	optional := cfg.AuthMiddleware.Optional
	api := app.Group("/api")

	authGroup := api.Group("/auth")
	if cfg.AuthRateLimit.Max > 0 {
		authGroup.Use(RateLimiter(cfg.AuthRateLimit))
	}
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/logout", cfg.Auth.Logout)
	authGroup.Get("/username-available", cfg.Auth.UsernameAvailable)
	authGroup.Get("/me", authn, cfg.Auth.Me)

	admin := api.Group("/admin", authn, auth.RequireAdmin())
	admin.Get("/users", cfg.Admin.ListUsers)
	admin.Patch("/users/:id/role", cfg.Admin.ChangeRole)
	admin.Patch("/users/:id/status", cfg.Admin.SetDisabled)
	admin.Get("/audit-logs", cfg.Admin.ListAuditLogs)
	admin.Post("/tickets/:id/assign", cfg.Admin.ForceAssign)

	inventory := api.Group("/inventory")
	inventory.Get("/", optional, cfg.Inventory.Marketplace)
	inventory.Get("/mine", authn, cfg.Inventory.Mine)
	inventory.Get("/:id", optional, cfg.Inventory.Get)
	inventory.Post("/", authn, cfg.Inventory.Create)
	inventory.Patch("/:id", authn, cfg.Inventory.Update)
	inventory.Delete("/:id", authn, cfg.Inventory.Delete)

	orders := api.Group("/orders", authn)
	orders.Post("/", cfg.Orders.Checkout)
	orders.Get("/", cfg.Orders.Purchases)
	orders.Get("/sales", cfg.Orders.Sales)
	orders.Get("/:id", cfg.Orders.Get)
	orders.Patch("/:id/status", cfg.Orders.UpdateStatus)

	messages := api.Group("/messages", authn)
	messages.Post("/", cfg.Messages.Send)
	messages.Get("/conversations", cfg.Messages.Conversations)
	messages.Get("/:userId", cfg.Messages.Thread)

	notifications := api.Group("/notifications", authn)
	notifications.Get("/", cfg.Notifications.List)
	notifications.Get("/unread-count", cfg.Notifications.UnreadCount)
	notifications.Patch("/read-all", cfg.Notifications.MarkAllRead)
	notifications.Patch("/:id/read", cfg.Notifications.MarkRead)
	notifications.Delete("/:id", cfg.Notifications.Delete)

	profile := api.Group("/profile")
	profile.Patch("/", authn, cfg.Profile.Update)
	profile.Post("/avatar", authn, cfg.Profile.UploadAvatar)
	profile.Get("/:username", optional, cfg.Profile.Get)

	support := api.Group("/support/tickets", authn)
	support.Post("/", cfg.Support.Create)
	support.Get("/", cfg.Support.List)
	support.Get("/:id", cfg.Support.Get)
	support.Patch("/:id", cfg.Support.Update)
	support.Post("/:id/claim", auth.RequireStaff(), cfg.Support.Claim)
	support.Post("/:id/comments", cfg.Support.AddComment)

	users := api.Group("/users")
	users.Get("/search", optional, cfg.Users.Search)
	users.Get("/blocked", authn, cfg.Users.Blocked)
	users.Get("/:username/followers", cfg.Users.Followers)
	users.Get("/:username/following", cfg.Users.Following)
	users.Post("/:username/follow", authn, cfg.Users.Follow)
	users.Delete("/:username/follow", authn, cfg.Users.Unfollow)
	users.Post("/:username/block", authn, cfg.Users.Block)
	users.Delete("/:username/block", authn, cfg.Users.Unblock)
}
