package pipeline

import (
	"context"
	"fmt"

	"github.com/postforge/postforge/internal/logger"
	"github.com/postforge/postforge/internal/models"
)

// Orchestrator drives one stage's execution end-to-end against the record
// store, the blob store, the agent, and the output normalizer.
type Orchestrator struct {
	env *Env
}

func NewOrchestrator(env *Env) *Orchestrator {
	return &Orchestrator{env: env}
}

// Process executes stage for (postID, websiteID). Re-invoking for the same
// pair simply re-executes every step and overwrites prior output and
// status; concurrent invocations race and the last write wins.
func (o *Orchestrator) Process(ctx context.Context, postID, websiteID string, stage *Stage) (*Result, error) {
	if postID == "" || websiteID == "" {
		return nil, Errorf(InvalidRequest, stage.Name, "Missing required postId or websiteId.")
	}

	log := logger.Get().With().
		Str("stage", stage.Name).
		Str("post_id", postID).
		Str("website_id", websiteID).
		Logger()
	log.Info().Msg("Starting stage")

	// Optimistic STARTED write before ownership validation: purely
	// observational, a failure here never aborts the run. The Forbidden
	// check below stays authoritative for every further side effect.
	o.updateStatus(ctx, postID, stage.statusStarted())

	result, err := o.run(ctx, postID, websiteID, stage)
	if err != nil {
		se := AsStageError(err, stage.Name)
		log.Error().
			Str("kind", se.Kind.String()).
			Str("detail", se.Detail).
			Err(se).
			Msg("Stage failed")
		o.updateStatus(ctx, postID, stage.statusFailed())
		return nil, se
	}

	log.Info().Msg("Stage complete")
	return result, nil
}

// run executes the fallible middle of the workflow; Process wraps it with
// status bookkeeping.
func (o *Orchestrator) run(ctx context.Context, postID, websiteID string, stage *Stage) (*Result, error) {
	// Fetch post and validate ownership.
	post, err := o.env.Records.GetPost(ctx, postID)
	if err != nil {
		return nil, Wrap(err, PersistenceFailure, stage.Name, "Failed to load post.")
	}
	if post == nil {
		return nil, Errorf(NotFound, stage.Name, "Post %q not found.", postID)
	}
	if post.WebsiteID != websiteID {
		return nil, Errorf(Forbidden, stage.Name, "Access denied: website ID mismatch.")
	}

	// Fetch website settings.
	settings, err := o.loadSettings(ctx, websiteID)
	if err != nil {
		return nil, Wrap(err, PersistenceFailure, stage.Name, "Failed to load website settings.")
	}
	if settings == nil {
		return nil, Errorf(NotFound, stage.Name, "Website settings for %q not found.", websiteID)
	}

	// Select and invoke the agent.
	client := stage.SelectAgent(o.env, settings)
	output, err := stage.Invoke(ctx, o.env, client, post, settings)
	if err != nil {
		return nil, err
	}
	if output == nil {
		return nil, Errorf(AgentFailure, stage.Name, "Agent returned empty output.")
	}

	// Persist the result and route the locator to the post record.
	value, err := stage.Persist(ctx, o.env, post, output)
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, Errorf(PersistenceFailure, stage.Name, "Failed to persist stage output.")
	}
	if err := o.env.Records.UpdatePost(ctx, postID, map[string]any{stage.OutputKey: value}); err != nil {
		return nil, Wrap(err, PersistenceFailure, stage.Name, "Failed to record stage output locator.")
	}

	// Output is durable at this point: a failed final status write degrades
	// to success-with-warning rather than undoing the stage.
	o.updateStatus(ctx, postID, stage.statusComplete())

	return &Result{
		Message:   fmt.Sprintf("%s stage processed successfully.", stage.Name),
		PostID:    postID,
		OutputKey: stage.OutputKey,
		Output:    value,
	}, nil
}

// updateStatus writes the post status, logging instead of failing: status
// transitions are observational.
func (o *Orchestrator) updateStatus(ctx context.Context, postID, status string) {
	err := o.env.Records.UpdatePost(ctx, postID, map[string]any{models.AttrPostStatus: status})
	if err != nil {
		logger.Warn().Err(err).
			Str("post_id", postID).
			Str("status", status).
			Msg("Failed to update post status")
	}
}

// loadSettings reads website settings through the optional cache.
func (o *Orchestrator) loadSettings(ctx context.Context, websiteID string) (*models.WebsiteSettings, error) {
	if o.env.Cache != nil {
		if settings, ok := o.env.Cache.Get(ctx, websiteID); ok {
			return settings, nil
		}
	}

	settings, err := o.env.Records.GetWebsiteSettings(ctx, websiteID)
	if err != nil || settings == nil {
		return settings, err
	}

	if o.env.Cache != nil {
		if err := o.env.Cache.Set(ctx, settings, o.env.CacheTTL); err != nil {
			logger.Warn().Err(err).Str("website_id", websiteID).Msg("Failed to cache website settings")
		}
	}
	return settings, nil
}
