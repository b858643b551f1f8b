package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/postforge/postforge/internal/agent"
	"github.com/postforge/postforge/internal/cache"
	"github.com/postforge/postforge/internal/models"
	"github.com/postforge/postforge/internal/store"
)

// Env bundles the client handles a stage runs against. All handles are
// constructed once at process start and injected, so tests can substitute
// fakes for the agent and the stores.
type Env struct {
	Records store.Records
	Blobs   store.Blobs
	Agent   agent.Client
	Images  *store.ImageFetcher

	// Cache is the optional website-settings cache. Nil disables caching.
	Cache    cache.SettingsCache
	CacheTTL time.Duration
}

// Stage is the capability record every pipeline stage declares. The
// orchestrator is generic over these five fields and never branches on
// stage identity.
type Stage struct {
	// Name is the registry key, e.g. "research".
	Name string
	// StatusPrefix tags the post status transitions, e.g. "RESEARCH" for
	// RESEARCH_STARTED / RESEARCH_COMPLETE / RESEARCH_FAILED.
	StatusPrefix string
	// OutputKey is the post attribute the persisted result is written to.
	OutputKey string
	// SelectAgent picks the generation backend for this run. The selection
	// point exists so a different backend can be substituted per website
	// without touching orchestration logic.
	SelectAgent func(env *Env, settings *models.WebsiteSettings) agent.Client
	// Invoke reads whichever upstream artifact this stage depends on,
	// calls the agent, and normalizes its output into the stage result.
	Invoke func(ctx context.Context, env *Env, client agent.Client, post *models.Post, settings *models.WebsiteSettings) (any, error)
	// Persist stores the result and returns the value written under
	// OutputKey: a blob locator for large free text, the value itself for
	// inline structured results.
	Persist func(ctx context.Context, env *Env, post *models.Post, result any) (any, error)
}

// Post status values outside the per-stage transitions.
const StatusPending = "PENDING"

func (s *Stage) statusStarted() string  { return s.StatusPrefix + "_STARTED" }
func (s *Stage) statusComplete() string { return s.StatusPrefix + "_COMPLETE" }
func (s *Stage) statusFailed() string   { return s.StatusPrefix + "_FAILED" }

// Result describes a completed stage run. It marshals with the stage's
// output key as the field name, mirroring the persisted attribute.
type Result struct {
	Message   string
	PostID    string
	OutputKey string
	Output    any
}

func (r Result) MarshalJSON() ([]byte, error) {
	doc := map[string]any{
		"message": r.Message,
		"postId":  r.PostID,
	}
	if r.OutputKey != "" {
		doc[r.OutputKey] = r.Output
	}
	return json.Marshal(doc)
}
