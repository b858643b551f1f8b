package cache

import (
	"context"
	"sync"
	"time"

	"github.com/postforge/postforge/internal/models"
)

// MockCache provides an in-memory implementation for tests and for running
// without Redis.
type MockCache struct {
	mu   sync.RWMutex
	data map[string]*models.WebsiteSettings
}

func NewMockCache() *MockCache {
	return &MockCache{
		data: make(map[string]*models.WebsiteSettings),
	}
}

func (m *MockCache) Close() error {
	return nil
}

func (m *MockCache) Get(ctx context.Context, websiteID string) (*models.WebsiteSettings, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	settings, ok := m.data[websiteID]
	return settings, ok
}

func (m *MockCache) Set(ctx context.Context, settings *models.WebsiteSettings, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[settings.WebsiteID] = settings
	return nil
}
