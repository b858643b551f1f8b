package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrBlobNotFound is returned when a locator does not resolve to an object.
var ErrBlobNotFound = errors.New("blob not found")

// Blobs is the content store for large stage artifacts. Keys are
// hierarchical: {websiteId}/{postId}/{artifactName}. A locator returned by
// Put is only valid once the underlying write has been acknowledged.
type Blobs interface {
	// Put writes content under key and returns its locator.
	Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	// PutText writes a UTF-8 text artifact under key.
	PutText(ctx context.Context, key, content string) (string, error)
	// Get reads the object a locator points at.
	Get(ctx context.Context, locator string) ([]byte, error)
	// GetText reads a text artifact by locator.
	GetText(ctx context.Context, locator string) (string, error)
}

// ArtifactKey builds the canonical blob key for a stage artifact.
func ArtifactKey(websiteID, postID, name string) string {
	return fmt.Sprintf("%s/%s/%s", websiteID, postID, name)
}

// ImageKey builds the blob key for a generated image, named by its slug.
func ImageKey(websiteID, postID, slug, ext string) string {
	return fmt.Sprintf("%s/%s/images/%s%s", websiteID, postID, slug, ext)
}

// splitLocator validates a locator against the expected scheme and bucket
// and returns the object key.
func splitLocator(locator, scheme, bucket string) (string, error) {
	prefix := scheme + "://" + bucket + "/"
	if !strings.HasPrefix(locator, prefix) {
		return "", fmt.Errorf("locator %q does not belong to %s%s", locator, scheme+"://", bucket)
	}
	key := strings.TrimPrefix(locator, prefix)
	if key == "" {
		return "", fmt.Errorf("locator %q has an empty key", locator)
	}
	return key, nil
}
