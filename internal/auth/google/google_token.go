package google

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

// TokenFileName is the cache file name inside the auth directory.
const TokenFileName = "google-token.json"

// cachedToken is the on-disk layout of the token cache.
type cachedToken struct {
	Token   *oauth2.Token `json:"token"`
	Email   string        `json:"email,omitempty"`
	SavedAt time.Time     `json:"saved_at"`
	Type    string        `json:"type"`
}

// tokenCache persists the last OAuth token, like the browser's own token cache.
type tokenCache struct {
	mu   sync.Mutex
	path string
}

func newTokenCache(path string) *tokenCache {
	return &tokenCache{path: path}
}

// load returns nil, nil when no token is cached.
func (c *tokenCache) load() (*oauth2.Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("google: read token cache: %w", err)
	}
	var entry cachedToken
	if err = json.Unmarshal(data, &entry); err != nil {
		log.Warnf("google: ignoring unreadable token cache %s: %v", c.path, err)
		return nil, nil
	}
	if entry.Token == nil || (entry.Token.AccessToken == "" && entry.Token.RefreshToken == "") {
		return nil, nil
	}
	return entry.Token, nil
}

func (c *tokenCache) save(tok *oauth2.Token) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	log.Debugf("Saving Google token to %s", filepath.Clean(c.path))
	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return fmt.Errorf("google: create token directory: %w", err)
	}
	data, err := json.MarshalIndent(cachedToken{Token: tok, SavedAt: time.Now().UTC(), Type: "google"}, "", "  ")
	if err != nil {
		return fmt.Errorf("google: marshal token: %w", err)
	}
	tmp := c.path + ".tmp"
	if err = os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("google: write token cache: %w", err)
	}
	if err = os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("google: replace token cache: %w", err)
	}
	return nil
}

func (c *tokenCache) remove() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := os.Remove(c.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("google: remove token cache: %w", err)
	}
	return nil
}
