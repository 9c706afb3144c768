package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/auth-service/internal/api/http/handlers"
	"github.com/spec-kit/auth-service/internal/auth"
	"github.com/spec-kit/auth-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health *handlers.HealthHandler
	Auth   *handlers.AuthHandler
	Users  *handlers.UsersHandler
}

// RegisterRoutes wires HTTP routes and their access rules. The auth filter is
// installed globally by RegisterMiddlewares.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/auth", auth.Guard(auth.PermitAll()), cfg.Auth.Login)

	users := app.Group("/users")
	users.Post("", auth.Guard(auth.PermitAll()), cfg.Users.Create)
	users.Get("", auth.Guard(auth.RequireRole(domain.RoleAdmin)), cfg.Users.List)
	users.Get("/:id", auth.Guard(auth.RequireRoleOrSelf(domain.RoleAdmin, "id")), cfg.Users.Get)
}
