package agent

import (
	"fmt"
	"strings"

	"github.com/postforge/postforge/internal/models"
)

// snippetLimit bounds how much upstream article text is quoted back into a
// prompt for the structured stages.
const snippetLimit = 8000

func snippet(content string) string {
	if len(content) > snippetLimit {
		return content[:snippetLimit]
	}
	return content
}

func keywordList(keywords []string) string {
	if len(keywords) == 0 {
		return "N/A"
	}
	return strings.Join(keywords, ", ")
}

// ResearchPrompt asks for a comprehensive first draft on the post's topic.
func ResearchPrompt(title string, settings *models.WebsiteSettings) Invocation {
	prompt := fmt.Sprintf(`Please act as an expert researcher and writer. Your task is to generate a comprehensive, deeply researched draft article on the topic: "%s".

**Context about the target website:**
- Description: %s
- Target Audience: %s
- Core Keywords: %s

**Instructions:**
- Conduct thorough research on the topic. Cover all essential aspects, key concepts, examples, and related topics.
- Structure the article logically with clear headings and subheadings.
- The tone should be informative and authoritative, suitable for the target audience.
- Aim for significant depth and detail. This is a first draft, so prioritize comprehensiveness over perfect prose.
- Do NOT include placeholder text. Generate the full content.
- Output only the researched article content itself, starting with the title.`,
		title, settings.WebsiteDescription, settings.TargetAudience, keywordList(settings.CoreKeywords))

	return Invocation{
		System:      "You are an expert researcher and technical writer.",
		Prompt:      prompt,
		Temperature: 0.7,
	}
}

// RefinePrompt asks for the raw draft rewritten to the website's tone and
// length bounds.
func RefinePrompt(title, rawArticle string, settings *models.WebsiteSettings) Invocation {
	tone := settings.ToneOfVoice
	if tone == "" {
		tone = "neutral and informative"
	}
	minWords, maxWords := settings.MinWords, settings.MaxWords
	if minWords <= 0 {
		minWords = 800
	}
	if maxWords <= minWords {
		maxWords = minWords + 800
	}

	prompt := fmt.Sprintf(`Please act as an expert copy editor. Rewrite and refine the following raw article draft on the topic "%s" to match specific brand guidelines and length constraints.

**Brand Guidelines:**
- Brand Tone: %s
- Target Audience: %s

**Content Constraints:**
- Retain all key factual information, concepts, and core arguments from the original draft.
- Ensure the final article flows logically and is engaging for the target audience.
- The final article length MUST be between %d and %d words.
- Output only the refined article content.

**Raw Article Draft:**
--- START OF DRAFT ---
%s
--- END OF DRAFT ---`,
		title, tone, settings.TargetAudience, minWords, maxWords, rawArticle)

	return Invocation{
		System:      "You are an expert copy editor and writer.",
		Prompt:      prompt,
		Temperature: 0.7,
	}
}

// ImagePromptsPrompt asks for count prompt/slug pairs for the refined
// article, as a JSON list.
func ImagePromptsPrompt(title, refinedArticle string, count int, settings *models.WebsiteSettings) Invocation {
	style := settings.ImageStylePrompt
	if style == "" {
		style = "realistic photo"
	}

	prompt := fmt.Sprintf(`Please act as a creative visual director. Analyze the following article draft about "%s" and generate exactly %d diverse text prompts suitable for an AI image generation model, each with a URL-safe slug.

**Instructions:**
- Each prompt should describe a distinct visual concept relevant to a section or key idea of the article.
- Prompts should focus on visual elements (subjects, actions, setting, mood) and mention the desired style: "%s".
- Each slug must be short (2-5 words), lowercase, and use only letters, numbers, and hyphens.
- Output only a valid JSON object of the form {"prompts": [{"prompt": "...", "slug": "..."}, ...]} containing exactly %d entries.

**Refined Article Draft:**
--- START OF DRAFT ---
%s
--- END OF DRAFT ---`,
		title, count, style, count, snippet(refinedArticle))

	return Invocation{
		System:      fmt.Sprintf("You are a visual director generating JSON lists of image prompts with URL-safe slugs. Desired style: %q. Follow the format instructions precisely.", style),
		Prompt:      prompt,
		Temperature: 0.8,
		JSONMode:    true,
	}
}

// SlugsPrompt asks for one URL-safe slug per supplied image prompt. It is
// the fallback when the model answered the pair request with bare prompts.
func SlugsPrompt(prompts []string) Invocation {
	var list strings.Builder
	for i, p := range prompts {
		fmt.Fprintf(&list, "%d. %s\n", i+1, p)
	}

	prompt := fmt.Sprintf(`Analyze the following list of %d image prompts. For EACH prompt, generate a short, descriptive, URL-safe slug (lowercase, alphanumeric, hyphens only) based on the prompt's core subject.

**Instructions:**
- Each slug corresponds to the prompt in the same position.
- Slugs should be short (2-5 words) and capture the main subject of the prompt.
- Output only a valid JSON object of the form {"slugs": ["slug-one", "slug-two", ...]} with exactly %d slugs in input order.

**Input Image Prompts:**
%s`,
		len(prompts), len(prompts), list.String())

	return Invocation{
		System:      fmt.Sprintf("You are a helpful assistant generating JSON lists of URL-safe slugs. Output only a valid JSON list of %d strings.", len(prompts)),
		Prompt:      prompt,
		Temperature: 0.2,
		JSONMode:    true,
	}
}

// MetadataPrompt asks for SEO metadata for the refined article as a flat
// JSON object.
func MetadataPrompt(title, refinedArticle string, settings *models.WebsiteSettings) Invocation {
	instructions := settings.SEOInstructions
	if instructions == "" {
		instructions = "Generate standard SEO metadata."
	}

	prompt := fmt.Sprintf(`Please act as an expert SEO analyst. Analyze the following refined article draft about "%s" and generate relevant SEO metadata.

**Article Context:**
- Core Website Keywords: %s
- Specific SEO Instructions: %s

**Instructions:**
- Generate an SEO-optimized meta title (50-60 characters) including the primary keywords.
- Generate a compelling meta description (150-160 characters) that summarizes the article.
- Generate a list of 5-10 relevant keywords based only on the article's content.
- Output only a valid JSON object with the exact keys "metaTitle" (string), "metaDescription" (string), and "keywords" (list of strings).

**Refined Article Draft:**
--- START OF DRAFT ---
%s
--- END OF DRAFT ---`,
		title, keywordList(settings.CoreKeywords), instructions, snippet(refinedArticle))

	return Invocation{
		System:      `You are an SEO analyst generating metadata as a valid JSON object with keys "metaTitle", "metaDescription", and "keywords".`,
		Prompt:      prompt,
		Temperature: 0.5,
		JSONMode:    true,
	}
}
