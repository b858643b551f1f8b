package pipeline

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/postforge/postforge/internal/logger"
	"github.com/postforge/postforge/internal/models"
)

var paragraphSplit = regexp.MustCompile(`\n\s*\n`)

// frontMatter is the YAML header of the assembled document. Field order is
// the emitted order.
type frontMatter struct {
	Title       string   `yaml:"title,omitempty"`
	Description string   `yaml:"description,omitempty"`
	Keywords    []string `yaml:"keywords,omitempty"`
	Date        string   `yaml:"date"`
}

// AssembleMarkdown builds the final markdown document: YAML front matter
// from the stored metadata, the refined article body, and the generated
// images interleaved between paragraphs.
func AssembleMarkdown(post *models.Post, refined string) (string, error) {
	if strings.TrimSpace(refined) == "" {
		return "", fmt.Errorf("refined article content is empty")
	}

	fm := frontMatter{Date: time.Now().UTC().Format(time.RFC3339)}
	if post.Metadata != nil {
		fm.Title = post.Metadata.MetaTitle
		fm.Description = post.Metadata.MetaDescription
		fm.Keywords = post.Metadata.Keywords
	}

	var doc strings.Builder
	header, err := yaml.Marshal(fm)
	if err != nil {
		return "", fmt.Errorf("failed to encode front matter: %w", err)
	}
	doc.WriteString("---\n")
	doc.Write(header)
	doc.WriteString("---\n\n")

	doc.WriteString(placeImages(post, refined))
	return doc.String(), nil
}

// placeImages inserts the post's images between paragraphs at a fixed
// interval. Articles without images (or with a single paragraph) pass
// through unchanged.
func placeImages(post *models.Post, refined string) string {
	paragraphs := paragraphSplit.Split(strings.TrimSpace(refined), -1)
	kept := paragraphs[:0]
	for _, p := range paragraphs {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	paragraphs = kept

	if len(post.ImageURIs) == 0 || len(paragraphs) < 2 {
		return refined
	}

	interval := (len(paragraphs) - 1) / (len(post.ImageURIs) + 1)
	if interval < 1 {
		interval = 1
	}

	logger.Debug().
		Int("images", len(post.ImageURIs)).
		Int("paragraphs", len(paragraphs)).
		Int("interval", interval).
		Msg("Placing images into article body")

	var blocks []string
	imageIndex := 0
	for i, para := range paragraphs {
		blocks = append(blocks, para)
		if i > 0 && (i+1)%interval == 0 && imageIndex < len(post.ImageURIs) {
			alt := fmt.Sprintf("Image related to %s - %d", post.BlogTitle, imageIndex+1)
			blocks = append(blocks, fmt.Sprintf("![%s](%s)", alt, post.ImageURIs[imageIndex]))
			imageIndex++
		}
	}
	return strings.Join(blocks, "\n\n")
}
