package normalize

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	slugSeparators = regexp.MustCompile(`[\s_]+`)
	slugInvalid    = regexp.MustCompile(`[^a-z0-9-]+`)
	slugHyphenRuns = regexp.MustCompile(`-+`)
)

// Slug sanitizes a model-generated slug into a URL-safe identifier:
// lowercase, [a-z0-9-] only, single hyphens, no leading or trailing hyphen.
// An input that sanitizes to nothing gets a positional fallback, so the
// result is never empty.
func Slug(raw string, index int) string {
	slug := strings.ToLower(strings.TrimSpace(raw))
	slug = slugSeparators.ReplaceAllString(slug, "-")
	slug = slugInvalid.ReplaceAllString(slug, "")
	slug = slugHyphenRuns.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return fmt.Sprintf("image-%d", index)
	}
	return slug
}
