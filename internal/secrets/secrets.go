// Package secrets fetches named credentials (code-hosting token, model API
// key) from AWS Secrets Manager, with an in-process TTL cache in front.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"

	"github.com/haasonsaas/scribe/internal/errkind"
)

// DefaultTTL is how long a fetched secret stays cached.
const DefaultTTL = 15 * time.Minute

// Provider resolves a logical secret name to its value.
type Provider interface {
	Fetch(ctx context.Context, name string) (string, error)
}

// ManagerAPI is the subset of the Secrets Manager client the provider needs.
type ManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// Manager fetches secrets from AWS Secrets Manager.
type Manager struct {
	client ManagerAPI
}

// NewManager creates a Secrets Manager backed provider.
func NewManager(cfg aws.Config) *Manager {
	return &Manager{client: secretsmanager.NewFromConfig(cfg)}
}

// NewManagerWithClient creates a provider around an existing client. Used by
// tests to inject a fake.
func NewManagerWithClient(client ManagerAPI) *Manager {
	return &Manager{client: client}
}

// Fetch resolves a secret by name. Missing secrets are an auth failure, not a
// transient one.
func (m *Manager) Fetch(ctx context.Context, name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", errkind.New(errkind.Config, "secret name is required")
	}
	out, err := m.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return "", errkind.Newf(errkind.Auth, "secret %q not found", name)
		}
		return "", errkind.Wrap(errkind.Auth, fmt.Errorf("fetch secret %q: %w", name, err))
	}
	value := aws.ToString(out.SecretString)
	if value == "" {
		return "", errkind.Newf(errkind.Auth, "secret %q is empty", name)
	}
	return value, nil
}

// Cache wraps a Provider with a TTL cache. Callers that receive an
// authentication failure from a downstream service invalidate the entry so the
// next fetch goes to the source.
type Cache struct {
	inner Provider
	ttl   time.Duration
	now   func() time.Time

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	value     string
	fetchedAt time.Time
}

// NewCache creates a caching decorator. A non-positive ttl falls back to
// DefaultTTL.
func NewCache(inner Provider, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		inner:   inner,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

// Fetch returns the cached value when fresh, otherwise delegates and caches.
func (c *Cache) Fetch(ctx context.Context, name string) (string, error) {
	c.mu.RLock()
	entry, ok := c.entries[name]
	c.mu.RUnlock()
	if ok && c.now().Sub(entry.fetchedAt) < c.ttl {
		return entry.value, nil
	}

	value, err := c.inner.Fetch(ctx, name)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.entries[name] = cacheEntry{value: value, fetchedAt: c.now()}
	c.mu.Unlock()
	return value, nil
}

// Invalidate drops a cached entry.
func (c *Cache) Invalidate(name string) {
	c.mu.Lock()
	delete(c.entries, name)
	c.mu.Unlock()
}
