package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/postforge/postforge/internal/logger"
)

// extByContentType maps sniffed image content types to file extensions.
var extByContentType = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// ImageFetcher downloads generated images over HTTP and streams them into a
// blob store under {websiteId}/{postId}/images/{slug}.{ext}.
type ImageFetcher struct {
	client *resty.Client
	blobs  Blobs
}

func NewImageFetcher(blobs Blobs, timeout time.Duration) *ImageFetcher {
	return &ImageFetcher{
		client: resty.New().
			SetTimeout(timeout).
			SetDoNotParseResponse(true),
		blobs: blobs,
	}
}

// Save fetches url and stores the body as the image artifact for slug.
// The body streams into the blob store; only a sniff buffer is held in
// memory.
func (f *ImageFetcher) Save(ctx context.Context, websiteID, postID, slug, url string) (string, error) {
	logger.Info().Str("slug", slug).Msg("Downloading generated image")

	resp, err := f.client.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		return "", fmt.Errorf("failed to download image for slug %q: %w", slug, err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("unexpected status code %d downloading image for slug %q", resp.StatusCode(), slug)
	}

	contentType, reader, err := sniffContentType(resp.Header().Get("Content-Type"), body)
	if err != nil {
		return "", fmt.Errorf("failed to read image body for slug %q: %w", slug, err)
	}
	ext, ok := extByContentType[contentType]
	if !ok {
		return "", fmt.Errorf("unsupported image content type %q for slug %q", contentType, slug)
	}

	key := ImageKey(websiteID, postID, slug, ext)
	locator, err := f.blobs.Put(ctx, key, reader, contentType)
	if err != nil {
		return "", fmt.Errorf("failed to store image %s: %w", key, err)
	}

	logger.Info().Str("locator", locator).Msg("Image stored")
	return locator, nil
}

// sniffContentType resolves the image content type from the response header,
// falling back to sniffing the first bytes of the body. The peeked bytes are
// stitched back in front of the remaining stream.
func sniffContentType(header string, body io.Reader) (string, io.Reader, error) {
	if header != "" {
		mediaType, _, _ := strings.Cut(header, ";")
		mediaType = strings.TrimSpace(strings.ToLower(mediaType))
		if _, known := extByContentType[mediaType]; known {
			return mediaType, body, nil
		}
	}

	peek := make([]byte, 512)
	n, err := io.ReadFull(body, peek)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", nil, err
	}
	peek = peek[:n]

	contentType := http.DetectContentType(peek)
	if mediaType, _, found := strings.Cut(contentType, ";"); found {
		contentType = strings.TrimSpace(mediaType)
	}
	return contentType, io.MultiReader(bytes.NewReader(peek), body), nil
}
