// ABOUTME: Settings and private configuration loaders fetched after sign-in
// ABOUTME: Caches key/value pairs in memory for synchronous access

package settings

import (
	"context"
	"fmt"
	"net/url"
	"sync"
)

// Getter is the subset of the API client used by the loaders.
type Getter interface {
	API(parts ...string) string
	Get(ctx context.Context, url string, out any) error
}

// entry is one key/value pair in a settings or configuration payload.
type entry struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// cache is a thread-safe key/value map shared by both loaders.
type cache struct {
	mu     sync.RWMutex
	values map[string]string
	loaded bool
}

func (c *cache) replace(entries []entry) {
	values := make(map[string]string, len(entries))
	for _, e := range entries {
		switch v := e.Value.(type) {
		case nil:
			values[e.Key] = ""
		case string:
			values[e.Key] = v
		default:
			values[e.Key] = fmt.Sprint(v)
		}
	}

	c.mu.Lock()
	c.values = values
	c.loaded = true
	c.mu.Unlock()
}

// Get returns the value for key.
func (c *cache) Get(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	return v, ok
}

// Loaded reports whether a fetch has completed successfully.
func (c *cache) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// Len returns the number of cached keys.
func (c *cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.values)
}

// Settings holds site settings.
type Settings struct {
	cache
	api Getter
}

// NewSettings creates a Settings loader.
func NewSettings(api Getter) *Settings {
	return &Settings{api: api}
}

// Fetch loads blog, theme and private settings.
func (s *Settings) Fetch(ctx context.Context) error {
	u := s.api.API("settings") + "?" + url.Values{"type": {"blog,theme,private"}}.Encode()

	var resp struct {
		Settings []entry `json:"settings"`
	}
	if err := s.api.Get(ctx, u, &resp); err != nil {
		return fmt.Errorf("fetching settings: %w", err)
	}
	s.replace(resp.Settings)
	return nil
}

// Config holds configuration only available to authenticated clients.
type Config struct {
	cache
	api Getter
}

// NewConfig creates a Config loader.
func NewConfig(api Getter) *Config {
	return &Config{api: api}
}

// FetchAuthenticated loads the private configuration.
func (c *Config) FetchAuthenticated(ctx context.Context) error {
	var resp struct {
		Configuration []entry `json:"configuration"`
	}
	if err := c.api.Get(ctx, c.api.API("configuration", "private"), &resp); err != nil {
		return fmt.Errorf("fetching private configuration: %w", err)
	}
	c.replace(resp.Configuration)
	return nil
}
