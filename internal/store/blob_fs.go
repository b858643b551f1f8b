package store

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileBlobs is a filesystem-backed blob store for local development and
// tests. Locators use the file:// scheme with the base directory name as
// the bucket.
type FileBlobs struct {
	basePath string
	bucket   string
	mu       sync.RWMutex
}

func NewFileBlobs(basePath string) (*FileBlobs, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	return &FileBlobs{
		basePath: basePath,
		bucket:   filepath.Base(basePath),
	}, nil
}

func (f *FileBlobs) Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	path, err := f.objectPath(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create object directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create object file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, body); err != nil {
		return "", fmt.Errorf("failed to write object %s: %w", key, err)
	}

	return fmt.Sprintf("file://%s/%s", f.bucket, key), nil
}

func (f *FileBlobs) PutText(ctx context.Context, key, content string) (string, error) {
	return f.Put(ctx, key, strings.NewReader(content), "text/plain")
}

func (f *FileBlobs) Get(ctx context.Context, locator string) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	key, err := splitLocator(locator, "file", f.bucket)
	if err != nil {
		return nil, err
	}
	path, err := f.objectPath(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, locator)
		}
		return nil, fmt.Errorf("failed to read object %s: %w", key, err)
	}
	return data, nil
}

func (f *FileBlobs) GetText(ctx context.Context, locator string) (string, error) {
	data, err := f.Get(ctx, locator)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// objectPath resolves a key inside the base directory, rejecting traversal.
func (f *FileBlobs) objectPath(key string) (string, error) {
	path := filepath.Join(f.basePath, filepath.FromSlash(key))
	if !strings.HasPrefix(path, filepath.Clean(f.basePath)+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid object key: %s", key)
	}
	return path, nil
}
