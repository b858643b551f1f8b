package models

// WebsiteSettings holds the per-website generation parameters consumed by
// every stage. Read-only from the pipeline's perspective; it must exist
// before any stage can run for a post belonging to that website.
type WebsiteSettings struct {
	WebsiteID          string   `json:"websiteId"`
	WebsiteDescription string   `json:"websiteDescription"`
	TargetAudience     string   `json:"targetAudience"`
	ToneOfVoice        string   `json:"toneOfVoice"`
	CoreKeywords       []string `json:"coreKeywords"`
	ImageStylePrompt   string   `json:"imageStylePrompt"`
	NumImagePrompts    int      `json:"numImagePrompts"`
	MinWords           int      `json:"minWords"`
	MaxWords           int      `json:"maxWords"`
	SEOInstructions    string   `json:"seoInstructions"`
}
