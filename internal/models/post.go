package models

// Post attribute names as stored in the record store. Stage output keys and
// partial updates refer to these, never to raw column names.
const (
	AttrPostID             = "postId"
	AttrWebsiteID          = "websiteId"
	AttrBlogTitle          = "blogTitle"
	AttrPostStatus         = "postStatus"
	AttrResearchArticleURI = "researchArticleUri"
	AttrRefinedArticleURI  = "refinedArticleUri"
	AttrImagePrompts       = "imagePrompts"
	AttrImageURIs          = "imageUris"
	AttrMetadata           = "metadata"
	AttrMarkdownURI        = "markdownUri"
	AttrUpdateTimestamp    = "updateTimestamp"
)

// Post tracks one article through the pipeline. Each stage owns exactly one
// output field plus the shared status and timestamp.
type Post struct {
	PostID             string         `json:"postId"`
	WebsiteID          string         `json:"websiteId"`
	BlogTitle          string         `json:"blogTitle"`
	PostStatus         string         `json:"postStatus"`
	ResearchArticleURI string         `json:"researchArticleUri,omitempty"`
	RefinedArticleURI  string         `json:"refinedArticleUri,omitempty"`
	ImagePrompts       []ImagePrompt  `json:"imagePrompts,omitempty"`
	ImageURIs          []string       `json:"imageUris,omitempty"`
	Metadata           *Metadata      `json:"metadata,omitempty"`
	MarkdownURI        string         `json:"markdownUri,omitempty"`
	UpdateTimestamp    int64          `json:"updateTimestamp"`
}

// ImagePrompt pairs a generated image prompt with its URL-safe slug.
type ImagePrompt struct {
	Prompt string `json:"prompt"`
	Slug   string `json:"slug"`
}

// Metadata is the SEO metadata generated for a refined article.
type Metadata struct {
	MetaTitle       string   `json:"metaTitle"`
	MetaDescription string   `json:"metaDescription"`
	Keywords        []string `json:"keywords"`
}
