package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/postforge/postforge/internal/logger"
	"github.com/postforge/postforge/internal/models"
)

// Records is the entity store for posts and website settings. GetPost and
// GetWebsiteSettings return (nil, nil) when the record is absent; UpdatePost
// merges an attribute map onto the existing record and always stamps
// updateTimestamp.
type Records interface {
	GetPost(ctx context.Context, postID string) (*models.Post, error)
	CreatePost(ctx context.Context, post *models.Post) error
	UpdatePost(ctx context.Context, postID string, attrs map[string]any) error
	GetWebsiteSettings(ctx context.Context, websiteID string) (*models.WebsiteSettings, error)
	PutWebsiteSettings(ctx context.Context, settings *models.WebsiteSettings) error
}

// postColumns maps public attribute names onto their columns. Attribute
// names never reach the SQL text directly: unknown names are rejected and
// values always bind through placeholders.
var postColumns = map[string]string{
	models.AttrWebsiteID:          "website_id",
	models.AttrBlogTitle:          "blog_title",
	models.AttrPostStatus:         "post_status",
	models.AttrResearchArticleURI: "research_article_uri",
	models.AttrRefinedArticleURI:  "refined_article_uri",
	models.AttrImagePrompts:       "image_prompts",
	models.AttrImageURIs:          "image_uris",
	models.AttrMetadata:           "metadata",
	models.AttrMarkdownURI:        "markdown_uri",
}

// jsonAttrs are the attributes stored as JSON text rather than scalars.
var jsonAttrs = map[string]bool{
	models.AttrImagePrompts: true,
	models.AttrImageURIs:    true,
	models.AttrMetadata:     true,
}

const schema = `
CREATE TABLE IF NOT EXISTS posts (
	post_id              TEXT PRIMARY KEY,
	website_id           TEXT NOT NULL,
	blog_title           TEXT NOT NULL,
	post_status          TEXT NOT NULL DEFAULT 'PENDING',
	research_article_uri TEXT,
	refined_article_uri  TEXT,
	image_prompts        TEXT,
	image_uris           TEXT,
	metadata             TEXT,
	markdown_uri         TEXT,
	update_timestamp     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS website_settings (
	website_id          TEXT PRIMARY KEY,
	website_description TEXT,
	target_audience     TEXT,
	tone_of_voice       TEXT,
	core_keywords       TEXT,
	image_style_prompt  TEXT,
	num_image_prompts   INTEGER NOT NULL DEFAULT 3,
	min_words           INTEGER NOT NULL DEFAULT 800,
	max_words           INTEGER NOT NULL DEFAULT 1600,
	seo_instructions    TEXT
);
`

// SQLRecords is the SQLite-backed Records implementation.
type SQLRecords struct {
	db *sql.DB
}

func NewSQLRecords(databasePath string) (*SQLRecords, error) {
	db, err := sql.Open("sqlite", databasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent stage updates.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &SQLRecords{db: db}, nil
}

func (r *SQLRecords) Close() error {
	return r.db.Close()
}

func (r *SQLRecords) GetPost(ctx context.Context, postID string) (*models.Post, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT post_id, website_id, blog_title, post_status,
		       research_article_uri, refined_article_uri,
		       image_prompts, image_uris, metadata, markdown_uri,
		       update_timestamp
		FROM posts WHERE post_id = ?`, postID)

	var (
		post                                 models.Post
		researchURI, refinedURI, markdownURI sql.NullString
		prompts, uris, metadata              sql.NullString
	)
	err := row.Scan(&post.PostID, &post.WebsiteID, &post.BlogTitle, &post.PostStatus,
		&researchURI, &refinedURI, &prompts, &uris, &metadata, &markdownURI,
		&post.UpdateTimestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read post %s: %w", postID, err)
	}

	post.ResearchArticleURI = researchURI.String
	post.RefinedArticleURI = refinedURI.String
	post.MarkdownURI = markdownURI.String
	if prompts.Valid && prompts.String != "" {
		if err := json.Unmarshal([]byte(prompts.String), &post.ImagePrompts); err != nil {
			return nil, fmt.Errorf("corrupt imagePrompts for post %s: %w", postID, err)
		}
	}
	if uris.Valid && uris.String != "" {
		if err := json.Unmarshal([]byte(uris.String), &post.ImageURIs); err != nil {
			return nil, fmt.Errorf("corrupt imageUris for post %s: %w", postID, err)
		}
	}
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &post.Metadata); err != nil {
			return nil, fmt.Errorf("corrupt metadata for post %s: %w", postID, err)
		}
	}
	return &post, nil
}

func (r *SQLRecords) CreatePost(ctx context.Context, post *models.Post) error {
	if post.PostStatus == "" {
		post.PostStatus = "PENDING"
	}
	post.UpdateTimestamp = time.Now().Unix()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO posts (post_id, website_id, blog_title, post_status, update_timestamp)
		VALUES (?, ?, ?, ?, ?)`,
		post.PostID, post.WebsiteID, post.BlogTitle, post.PostStatus, post.UpdateTimestamp)
	if err != nil {
		return fmt.Errorf("failed to create post %s: %w", post.PostID, err)
	}
	return nil
}

// UpdatePost merges attrs onto the post record. Attribute names resolve
// through postColumns; the update always refreshes update_timestamp.
func (r *SQLRecords) UpdatePost(ctx context.Context, postID string, attrs map[string]any) error {
	if postID == "" {
		return fmt.Errorf("postID is required")
	}
	if len(attrs) == 0 {
		return fmt.Errorf("no attributes to update")
	}

	// Deterministic column order keeps the statement stable for logging.
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)

	assignments := make([]string, 0, len(attrs)+1)
	args := make([]any, 0, len(attrs)+2)
	for _, name := range names {
		column, ok := postColumns[name]
		if !ok {
			return fmt.Errorf("unknown post attribute %q", name)
		}
		value := attrs[name]
		if jsonAttrs[name] {
			encoded, err := json.Marshal(value)
			if err != nil {
				return fmt.Errorf("failed to encode attribute %q: %w", name, err)
			}
			value = string(encoded)
		}
		assignments = append(assignments, column+" = ?")
		args = append(args, value)
	}
	assignments = append(assignments, "update_timestamp = ?")
	args = append(args, time.Now().Unix(), postID)

	query := "UPDATE posts SET " + strings.Join(assignments, ", ") + " WHERE post_id = ?"
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update post %s: %w", postID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("post %s not found", postID)
	}

	logger.Debug().Str("post_id", postID).Strs("attributes", names).Msg("Post updated")
	return nil
}

func (r *SQLRecords) GetWebsiteSettings(ctx context.Context, websiteID string) (*models.WebsiteSettings, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT website_id, website_description, target_audience, tone_of_voice,
		       core_keywords, image_style_prompt, num_image_prompts,
		       min_words, max_words, seo_instructions
		FROM website_settings WHERE website_id = ?`, websiteID)

	var (
		s                                     models.WebsiteSettings
		description, audience, tone, keywords sql.NullString
		style, seo                            sql.NullString
	)
	err := row.Scan(&s.WebsiteID, &description, &audience, &tone, &keywords,
		&style, &s.NumImagePrompts, &s.MinWords, &s.MaxWords, &seo)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read settings %s: %w", websiteID, err)
	}

	s.WebsiteDescription = description.String
	s.TargetAudience = audience.String
	s.ToneOfVoice = tone.String
	s.ImageStylePrompt = style.String
	s.SEOInstructions = seo.String
	if keywords.Valid && keywords.String != "" {
		if err := json.Unmarshal([]byte(keywords.String), &s.CoreKeywords); err != nil {
			return nil, fmt.Errorf("corrupt coreKeywords for website %s: %w", websiteID, err)
		}
	}
	return &s, nil
}

func (r *SQLRecords) PutWebsiteSettings(ctx context.Context, settings *models.WebsiteSettings) error {
	keywords, err := json.Marshal(settings.CoreKeywords)
	if err != nil {
		return fmt.Errorf("failed to encode coreKeywords: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO website_settings
			(website_id, website_description, target_audience, tone_of_voice,
			 core_keywords, image_style_prompt, num_image_prompts,
			 min_words, max_words, seo_instructions)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(website_id) DO UPDATE SET
			website_description = excluded.website_description,
			target_audience     = excluded.target_audience,
			tone_of_voice       = excluded.tone_of_voice,
			core_keywords       = excluded.core_keywords,
			image_style_prompt  = excluded.image_style_prompt,
			num_image_prompts   = excluded.num_image_prompts,
			min_words           = excluded.min_words,
			max_words           = excluded.max_words,
			seo_instructions    = excluded.seo_instructions`,
		settings.WebsiteID, settings.WebsiteDescription, settings.TargetAudience,
		settings.ToneOfVoice, string(keywords), settings.ImageStylePrompt,
		settings.NumImagePrompts, settings.MinWords, settings.MaxWords,
		settings.SEOInstructions)
	if err != nil {
		return fmt.Errorf("failed to save settings %s: %w", settings.WebsiteID, err)
	}
	return nil
}
