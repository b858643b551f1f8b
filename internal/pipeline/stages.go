package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/postforge/postforge/internal/agent"
	"github.com/postforge/postforge/internal/logger"
	"github.com/postforge/postforge/internal/models"
	"github.com/postforge/postforge/internal/normalize"
	"github.com/postforge/postforge/internal/store"
)

// Artifact file names within a post's blob prefix.
const (
	researchArtifact = "research_article.txt"
	refinedArtifact  = "refined_article.txt"
	markdownArtifact = "article.md"
)

const defaultImagePrompts = 3

// defaultAgent is the single fixed agent selection used by every stage
// today; per-website backend selection plugs in here.
func defaultAgent(env *Env, settings *models.WebsiteSettings) agent.Client {
	return env.Agent
}

// Stages returns the stage registry keyed by stage name, in the fixed
// application-level order research → refine → image_prompt → image_gen →
// metadata → markdown.
func Stages() map[string]*Stage {
	return map[string]*Stage{
		"research":     ResearchStage(),
		"refine":       RefineStage(),
		"image_prompt": ImagePromptStage(),
		"image_gen":    ImageGenStage(),
		"metadata":     MetadataStage(),
		"markdown":     MarkdownStage(),
	}
}

// ResearchStage generates the raw research draft from the post's topic.
func ResearchStage() *Stage {
	s := &Stage{
		Name:         "research",
		StatusPrefix: "RESEARCH",
		OutputKey:    models.AttrResearchArticleURI,
		SelectAgent:  defaultAgent,
	}
	s.Invoke = func(ctx context.Context, env *Env, client agent.Client, post *models.Post, settings *models.WebsiteSettings) (any, error) {
		if post.BlogTitle == "" {
			return nil, Errorf(InvalidRequest, s.Name, "Post %q has no blog title.", post.PostID)
		}
		return generateText(ctx, client, s, agent.ResearchPrompt(post.BlogTitle, settings))
	}
	s.Persist = persistText(s, researchArtifact)
	return s
}

// RefineStage rewrites the research draft to the website's tone and length.
func RefineStage() *Stage {
	s := &Stage{
		Name:         "refine",
		StatusPrefix: "REFINE",
		OutputKey:    models.AttrRefinedArticleURI,
		SelectAgent:  defaultAgent,
	}
	s.Invoke = func(ctx context.Context, env *Env, client agent.Client, post *models.Post, settings *models.WebsiteSettings) (any, error) {
		raw, err := upstreamText(ctx, env, s, post.ResearchArticleURI, models.AttrResearchArticleURI, post.PostID)
		if err != nil {
			return nil, err
		}
		return generateText(ctx, client, s, agent.RefinePrompt(post.BlogTitle, raw, settings))
	}
	s.Persist = persistText(s, refinedArtifact)
	return s
}

// ImagePromptStage generates prompt/slug pairs for the refined article and
// stores them inline on the post.
func ImagePromptStage() *Stage {
	s := &Stage{
		Name:         "image_prompt",
		StatusPrefix: "IMAGE_PROMPT",
		OutputKey:    models.AttrImagePrompts,
		SelectAgent:  defaultAgent,
	}
	s.Invoke = func(ctx context.Context, env *Env, client agent.Client, post *models.Post, settings *models.WebsiteSettings) (any, error) {
		refined, err := upstreamText(ctx, env, s, post.RefinedArticleURI, models.AttrRefinedArticleURI, post.PostID)
		if err != nil {
			return nil, err
		}

		count := settings.NumImagePrompts
		if count <= 0 {
			count = defaultImagePrompts
		}

		raw, err := client.Generate(ctx, agent.ImagePromptsPrompt(post.BlogTitle, refined, count, settings))
		if err != nil {
			return nil, Wrap(err, AgentFailure, s.Name, "Image prompt agent call failed.")
		}

		pairs, err := normalize.PromptSlugs(raw, normalize.ListSpec{
			CandidateKeys: []string{"prompts", "image_prompts", "images"},
			Count:         count,
		})
		if err == nil {
			return pairs, nil
		}

		// The model sometimes answers the pair request with bare prompt
		// strings. Fall back to a second call that generates the slugs.
		return promptsWithGeneratedSlugs(ctx, client, s, raw, count)
	}
	s.Persist = persistInline()
	return s
}

// promptsWithGeneratedSlugs parses the first response as a plain prompt
// list and asks the agent for matching slugs.
func promptsWithGeneratedSlugs(ctx context.Context, client agent.Client, s *Stage, raw string, count int) (any, error) {
	prompts, err := normalize.Strings(raw, normalize.ListSpec{
		CandidateKeys: []string{"prompts", "image_prompts"},
		Count:         count,
	})
	if err != nil {
		return nil, malformedErr(err, s, "Image prompt agent did not return a usable prompt list.")
	}

	slugsRaw, err := client.Generate(ctx, agent.SlugsPrompt(prompts))
	if err != nil {
		return nil, Wrap(err, AgentFailure, s.Name, "Slug agent call failed.")
	}
	slugs, err := normalize.Strings(slugsRaw, normalize.ListSpec{
		CandidateKeys: []string{"slugs", "slug_list"},
		Count:         len(prompts),
	})
	if err != nil {
		return nil, malformedErr(err, s, "Slug agent did not return a usable slug list.")
	}

	pairs := make([]models.ImagePrompt, len(prompts))
	for i, prompt := range prompts {
		slug := ""
		if i < len(slugs) {
			slug = slugs[i]
		}
		pairs[i] = models.ImagePrompt{
			Prompt: prompt,
			Slug:   normalize.Slug(slug, i),
		}
	}
	return pairs, nil
}

// ImageGenStage turns each stored prompt into a generated image persisted
// in the blob store, recording the locators inline on the post.
func ImageGenStage() *Stage {
	s := &Stage{
		Name:         "image_gen",
		StatusPrefix: "IMAGE_GEN",
		OutputKey:    models.AttrImageURIs,
		SelectAgent:  defaultAgent,
	}
	s.Invoke = func(ctx context.Context, env *Env, client agent.Client, post *models.Post, settings *models.WebsiteSettings) (any, error) {
		if len(post.ImagePrompts) == 0 {
			return nil, Errorf(InvalidRequest, s.Name,
				"Required %q not found for post %q. Has the image prompt step completed successfully?",
				models.AttrImagePrompts, post.PostID)
		}

		locators := make([]string, 0, len(post.ImagePrompts))
		for i, pair := range post.ImagePrompts {
			url, err := client.GenerateImage(ctx, agent.ImageRequest{
				Prompt: pair.Prompt,
				Size:   "1792x1024",
				Style:  "vivid",
			})
			if err != nil {
				return nil, Wrap(err, AgentFailure, s.Name, fmt.Sprintf("Image generation failed for prompt %d.", i+1))
			}

			locator, err := env.Images.Save(ctx, post.WebsiteID, post.PostID, pair.Slug, url)
			if err != nil {
				return nil, Wrap(err, PersistenceFailure, s.Name, fmt.Sprintf("Failed to store image %d.", i+1))
			}
			locators = append(locators, locator)
			logger.Info().Str("slug", pair.Slug).Str("locator", locator).Msg("Image artifact stored")
		}
		return locators, nil
	}
	s.Persist = persistInline()
	return s
}

// MetadataStage generates SEO metadata for the refined article and stores
// it inline on the post.
func MetadataStage() *Stage {
	s := &Stage{
		Name:         "metadata",
		StatusPrefix: "METADATA",
		OutputKey:    models.AttrMetadata,
		SelectAgent:  defaultAgent,
	}
	s.Invoke = func(ctx context.Context, env *Env, client agent.Client, post *models.Post, settings *models.WebsiteSettings) (any, error) {
		refined, err := upstreamText(ctx, env, s, post.RefinedArticleURI, models.AttrRefinedArticleURI, post.PostID)
		if err != nil {
			return nil, err
		}

		raw, err := client.Generate(ctx, agent.MetadataPrompt(post.BlogTitle, refined, settings))
		if err != nil {
			return nil, Wrap(err, AgentFailure, s.Name, "Metadata agent call failed.")
		}

		obj, err := normalize.Object(raw, []string{"metaTitle", "metaDescription"}, []string{"keywords"})
		if err != nil {
			return nil, malformedErr(err, s, "Metadata agent did not return a usable metadata object.")
		}
		return &models.Metadata{
			MetaTitle:       obj["metaTitle"].(string),
			MetaDescription: obj["metaDescription"].(string),
			Keywords:        obj["keywords"].([]string),
		}, nil
	}
	s.Persist = persistInline()
	return s
}

// MarkdownStage assembles the final markdown document from the refined
// article, the stored metadata, and the image locators.
func MarkdownStage() *Stage {
	s := &Stage{
		Name:         "markdown",
		StatusPrefix: "MARKDOWN",
		OutputKey:    models.AttrMarkdownURI,
		SelectAgent:  defaultAgent,
	}
	s.Invoke = func(ctx context.Context, env *Env, client agent.Client, post *models.Post, settings *models.WebsiteSettings) (any, error) {
		refined, err := upstreamText(ctx, env, s, post.RefinedArticleURI, models.AttrRefinedArticleURI, post.PostID)
		if err != nil {
			return nil, err
		}
		doc, err := AssembleMarkdown(post, refined)
		if err != nil {
			return nil, Wrap(err, PersistenceFailure, s.Name, "Markdown assembly failed.")
		}
		return doc, nil
	}
	s.Persist = func(ctx context.Context, env *Env, post *models.Post, result any) (any, error) {
		doc, ok := result.(string)
		if !ok || doc == "" {
			return nil, Errorf(PersistenceFailure, s.Name, "Markdown output was not a string.")
		}
		key := store.ArtifactKey(post.WebsiteID, post.PostID, markdownArtifact)
		locator, err := env.Blobs.Put(ctx, key, strings.NewReader(doc), "text/markdown; charset=utf-8")
		if err != nil {
			return nil, Wrap(err, PersistenceFailure, s.Name, "Failed to save markdown document.")
		}
		return locator, nil
	}
	return s
}

// --- shared stage helpers ---

// generateText runs a free-text agent invocation; the normalizer is skipped
// for these stages.
func generateText(ctx context.Context, client agent.Client, s *Stage, inv agent.Invocation) (any, error) {
	content, err := client.Generate(ctx, inv)
	if err != nil {
		return nil, Wrap(err, AgentFailure, s.Name, "Agent call failed.")
	}
	if strings.TrimSpace(content) == "" {
		return nil, Errorf(AgentFailure, s.Name, "Agent returned empty content.")
	}
	return content, nil
}

// upstreamText loads a required upstream blob artifact, failing fast with
// InvalidRequest when the post record has no locator for it.
func upstreamText(ctx context.Context, env *Env, s *Stage, locator, attrName, postID string) (string, error) {
	if locator == "" {
		return "", Errorf(InvalidRequest, s.Name,
			"Required %q not found for post %q. Has the previous step completed successfully?", attrName, postID)
	}
	content, err := env.Blobs.GetText(ctx, locator)
	if err != nil {
		return "", Wrap(err, PersistenceFailure, s.Name, fmt.Sprintf("Failed to download %s.", attrName))
	}
	return content, nil
}

// persistText uploads a free-text result under the stage's artifact name.
func persistText(s *Stage, artifact string) func(context.Context, *Env, *models.Post, any) (any, error) {
	return func(ctx context.Context, env *Env, post *models.Post, result any) (any, error) {
		content, ok := result.(string)
		if !ok || content == "" {
			return nil, Errorf(PersistenceFailure, s.Name, "Agent output was not a string.")
		}
		key := store.ArtifactKey(post.WebsiteID, post.PostID, artifact)
		locator, err := env.Blobs.PutText(ctx, key, content)
		if err != nil {
			return nil, Wrap(err, PersistenceFailure, s.Name, "Failed to save agent output.")
		}
		return locator, nil
	}
}

// persistInline stores small structured results directly on the post
// record; the orchestrator writes the value under the stage's output key.
func persistInline() func(context.Context, *Env, *models.Post, any) (any, error) {
	return func(ctx context.Context, env *Env, post *models.Post, result any) (any, error) {
		return result, nil
	}
}

// malformedErr wraps a normalizer failure, keeping the raw model text in
// the internal detail field for diagnostics.
func malformedErr(err error, s *Stage, message string) *StageError {
	se := Wrap(err, MalformedModelOutput, s.Name, message)
	var ne *normalize.Error
	if errors.As(err, &ne) {
		se.Detail = ne.Raw
	}
	return se
}
