package routes

import (
	"autoapply/internal/delivery/http/handler"
	"autoapply/internal/delivery/http/middleware"
	"autoapply/internal/ws"

	"github.com/gofiber/fiber/v3"
)

type Registry struct {
	health       *handler.HealthHandler
	auth         *handler.AuthHandler
	applications *handler.ApplicationHandler
	events       *ws.Handler

	authMW *middleware.AuthMiddleware
}

func NewRegistry(
	health *handler.HealthHandler,
	auth *handler.AuthHandler,
	applications *handler.ApplicationHandler,
	events *ws.Handler,
	authMW *middleware.AuthMiddleware,
) *Registry {
	return &Registry{
		health:       health,
		auth:         auth,
		applications: applications,
		events:       events,
		authMW:       authMW,
	}
}

func (r *Registry) Register(app *fiber.App) {
	if app == nil {
		return
	}

	r.registerHealth(app)
	r.registerAPI(app)
	r.registerWS(app)
}

func (r *Registry) registerHealth(app *fiber.App) {
	r.health.RegisterRoutes(app)
}

func (r *Registry) registerAPI(app *fiber.App) {
	api := app.Group("/api")
	v1 := api.Group("/v1")

	r.auth.RegisterRoutes(v1.Group("/auth"))

	protected := v1.Group("", r.authMW.Middleware())
	r.applications.RegisterRoutes(protected)
}

func (r *Registry) registerWS(app *fiber.App) {
	if r.events == nil {
		return
	}
	app.Get("/ws/events", r.events.HandleEventsWS)
}
