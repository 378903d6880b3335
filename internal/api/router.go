package api

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	swagger "github.com/go-swagno/swagno-fiber/swagger"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/api/docs"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/api/handler"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/api/middleware"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/database"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/ws"
)

// Engine is everything the face and gallery endpoints call into
type Engine interface {
	handler.FaceService
	handler.GalleryService
}

type Dependencies struct {
	Engine    Engine
	Scanner   handler.FrameScanner
	Hub       *ws.Hub
	// Publisher receives gallery change events; defaults to Hub
	Publisher ws.Publisher
	DB        database.Pinger
	RateLimit middleware.RateLimiterConfig
}

type Router struct {
	app         *fiber.App
	logger      *slog.Logger
	deps        *Dependencies
	rateLimiter *middleware.RateLimiter
}

// maxBodySize fits a registration with several full-size photos
const maxBodySize = 64 * 1024 * 1024

func NewRouter(logger *slog.Logger, deps *Dependencies) *Router {
	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(logger),
		AppName:      "Facewatch API",
		BodyLimit:    maxBodySize,
	})

	return &Router{
		app:    app,
		logger: logger,
		deps:   deps,
	}
}

func (r *Router) Setup() {
	// Global middlewares
	r.app.Use(requestid.New())
	r.app.Use(middleware.Recover(r.logger))
	r.app.Use(middleware.Logger(r.logger))
	r.app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	// Swagger documentation
	sw := docs.NewSwagger()
	swagger.SwaggerHandler(r.app, sw.MustToJson())

	var db database.Pinger
	if r.deps != nil {
		db = r.deps.DB
	}
	healthHandler := handler.NewHealthHandler(db)
	r.app.Get("/health", healthHandler.Health)
	r.app.Get("/ready", healthHandler.Ready)

	v1 := r.app.Group("/v1")

	if r.deps == nil {
		return
	}

	var publisher ws.Publisher
	switch {
	case r.deps.Publisher != nil:
		publisher = r.deps.Publisher
	case r.deps.Hub != nil:
		publisher = r.deps.Hub
	}

	// WebSocket endpoint is long lived and stays outside the rate limiter
	if r.deps.Hub != nil {
		v1.Get("/ws", ws.UpgradeMiddleware(), ws.Handler(r.deps.Hub))
	}

	r.rateLimiter = middleware.NewRateLimiter(r.deps.RateLimit)
	v1.Use(r.rateLimiter.Handler())

	if r.deps.Engine != nil {
		faceHandler := handler.NewFaceHandler(r.deps.Engine, publisher, r.logger)
		v1.Post("/faces/identify", faceHandler.Identify)
		v1.Post("/faces/register", faceHandler.Register)
		v1.Get("/faces/:label", faceHandler.Get)
		v1.Delete("/faces/:label", faceHandler.Delete)

		galleryHandler := handler.NewGalleryHandler(r.deps.Engine, publisher, r.logger)
		v1.Post("/gallery/refresh", galleryHandler.Refresh)
		v1.Get("/gallery/stats", galleryHandler.Stats)
		v1.Post("/gallery/nearest", galleryHandler.Nearest)
	}

	if r.deps.Scanner != nil {
		frameHandler := handler.NewFrameHandler(r.deps.Scanner)
		v1.Post("/frames", frameHandler.Submit)
		v1.Get("/frames/stats", frameHandler.Stats)
	}
}

func (r *Router) App() *fiber.App {
	return r.app
}

func (r *Router) Listen(addr string) error {
	return r.app.Listen(addr)
}

func (r *Router) Shutdown() error {
	// Stop rate limiter cleanup goroutine
	if r.rateLimiter != nil {
		r.rateLimiter.Stop()
	}

	return r.app.Shutdown()
}
