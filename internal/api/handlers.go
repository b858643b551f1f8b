package api

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/postforge/postforge/internal/logger"
	"github.com/postforge/postforge/internal/models"
	"github.com/postforge/postforge/internal/pipeline"
	"github.com/postforge/postforge/internal/store"
)

// Handlers exposes the pipeline over HTTP. The orchestrator and stores are
// injected so tests can run against fakes.
type Handlers struct {
	orchestrator *pipeline.Orchestrator
	records      store.Records
	stages       map[string]*pipeline.Stage
	validate     *validator.Validate
}

func NewHandlers(orchestrator *pipeline.Orchestrator, records store.Records) *Handlers {
	return &Handlers{
		orchestrator: orchestrator,
		records:      records,
		stages:       pipeline.Stages(),
		validate:     validator.New(),
	}
}

// HealthCheck handles GET /api/v1/health
func (h *Handlers) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

type createPostRequest struct {
	WebsiteID string `json:"websiteId" validate:"required"`
	BlogTitle string `json:"blogTitle" validate:"required"`
}

// CreatePost handles POST /api/v1/posts
func (h *Handlers) CreatePost(c *fiber.Ctx) error {
	var req createPostRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "websiteId and blogTitle are required",
		})
	}

	post := &models.Post{
		PostID:    uuid.NewString(),
		WebsiteID: req.WebsiteID,
		BlogTitle: req.BlogTitle,
		PostStatus: pipeline.StatusPending,
	}
	if err := h.records.CreatePost(c.Context(), post); err != nil {
		logger.Error().Err(err).Msg("Failed to create post")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create post",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(post)
}

// GetPost handles GET /api/v1/posts/:id
func (h *Handlers) GetPost(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Post ID is required",
		})
	}

	post, err := h.records.GetPost(c.Context(), id)
	if err != nil {
		logger.Error().Err(err).Str("post_id", id).Msg("Failed to load post")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load post",
		})
	}
	if post == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Post not found",
		})
	}
	return c.JSON(post)
}

// RunStage handles POST /api/v1/pipeline/:stage?websiteId=&postId=
func (h *Handlers) RunStage(c *fiber.Ctx) error {
	stageName := c.Params("stage")
	stage, ok := h.stages[stageName]
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid stage name specified: " + stageName,
		})
	}

	postID := c.Query("postId")
	websiteID := c.Query("websiteId")
	if postID == "" || websiteID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Missing required query parameter: postId or websiteId",
		})
	}

	result, err := h.orchestrator.Process(c.Context(), postID, websiteID, stage)
	if err != nil {
		// The caller sees the typed message only; raw diagnostics stay in
		// the logs.
		var se *pipeline.StageError
		if errors.As(err, &se) {
			return c.Status(se.StatusCode()).JSON(fiber.Map{
				"error": se.Message,
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "An unexpected internal error occurred.",
		})
	}

	return c.JSON(result)
}
