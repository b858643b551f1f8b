package agent

import (
	"strings"
	"testing"

	"github.com/postforge/postforge/internal/models"
)

func TestRefinePromptDefaults(t *testing.T) {
	inv := RefinePrompt("T", "draft", &models.WebsiteSettings{})
	if !strings.Contains(inv.Prompt, "between 800 and 1600 words") {
		t.Errorf("default word bounds missing:\n%s", inv.Prompt)
	}
	if !strings.Contains(inv.Prompt, "neutral and informative") {
		t.Error("default tone missing")
	}
}

func TestRefinePromptRespectsSettings(t *testing.T) {
	inv := RefinePrompt("T", "draft", &models.WebsiteSettings{
		ToneOfVoice: "playful",
		MinWords:    500,
		MaxWords:    900,
	})
	if !strings.Contains(inv.Prompt, "between 500 and 900 words") {
		t.Errorf("word bounds not applied:\n%s", inv.Prompt)
	}
	if !strings.Contains(inv.Prompt, "playful") {
		t.Error("tone not applied")
	}
}

func TestImagePromptsPromptTruncatesArticle(t *testing.T) {
	long := strings.Repeat("x", snippetLimit+500)
	inv := ImagePromptsPrompt("T", long, 3, &models.WebsiteSettings{})
	if strings.Count(inv.Prompt, "x") > snippetLimit {
		t.Error("article snippet was not truncated")
	}
	if !inv.JSONMode {
		t.Error("image prompt generation should request JSON mode")
	}
}

func TestSlugsPromptNumbersInputs(t *testing.T) {
	inv := SlugsPrompt([]string{"a harbor", "a market"})
	if !strings.Contains(inv.Prompt, "1. a harbor") || !strings.Contains(inv.Prompt, "2. a market") {
		t.Errorf("prompts not numbered:\n%s", inv.Prompt)
	}
}
