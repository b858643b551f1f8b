package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/postforge/postforge/internal/config"
	"github.com/postforge/postforge/internal/middleware"
	"github.com/postforge/postforge/internal/pipeline"
	"github.com/postforge/postforge/internal/store"
)

// SetupRoutes configures all the routes for the application
func SetupRoutes(app *fiber.App, orchestrator *pipeline.Orchestrator, records store.Records, cfg *config.Config) {
	handlers := NewHandlers(orchestrator, records)

	api := app.Group("/api/v1")

	api.Get("/health", handlers.HealthCheck)

	posts := api.Group("/posts")
	{
		posts.Post("", middleware.AdminOnly(cfg.AdminAPIKey), handlers.CreatePost)
		posts.Get("/:id", handlers.GetPost)
	}

	api.Post("/pipeline/:stage", middleware.AdminOnly(cfg.AdminAPIKey), handlers.RunStage)

	// 404 Handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Endpoint not found",
		})
	})
}
