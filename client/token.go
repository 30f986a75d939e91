package client

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// TokenCache persists the access token across process restarts.
type TokenCache interface {
	Load() (string, error)
	Save(token string) error
	Clear() error
}

// TokenHolder owns the client's current access token. The in-memory value
// is authoritative; the cache is only consulted on the first Get.
type TokenHolder struct {
	mu     sync.Mutex
	token  string
	loaded bool
	cache  TokenCache
}

func NewTokenHolder(cache TokenCache) *TokenHolder {
	return &TokenHolder{cache: cache}
}

func (h *TokenHolder) Get() string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.loaded {
		h.loaded = true
		if h.token == "" && h.cache != nil {
			if token, err := h.cache.Load(); err == nil {
				h.token = token
			}
		}
	}
	return h.token
}

func (h *TokenHolder) Set(token string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.token = token
	h.loaded = true
	if h.cache != nil {
		return h.cache.Save(token)
	}
	return nil
}

func (h *TokenHolder) Clear() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.token = ""
	h.loaded = true
	if h.cache != nil {
		return h.cache.Clear()
	}
	return nil
}

type cachedToken struct {
	AccessToken string    `yaml:"access_token"`
	SavedAt     time.Time `yaml:"saved_at"`
}

// FileCache stores the access token as YAML in a single owner-only file.
type FileCache struct {
	Path string
	now  func() time.Time
}

func NewFileCache(path string) *FileCache {
	return &FileCache{Path: path, now: time.Now}
}

func (f *FileCache) Load() (string, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read token cache: %w", err)
	}

	var cached cachedToken
	if err := yaml.Unmarshal(data, &cached); err != nil {
		return "", fmt.Errorf("failed to decode token cache: %w", err)
	}
	return cached.AccessToken, nil
}

func (f *FileCache) Save(token string) error {
	if token == "" {
		return f.Clear()
	}

	data, err := yaml.Marshal(cachedToken{AccessToken: token, SavedAt: f.now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to encode token cache: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return fmt.Errorf("failed to create token cache directory: %w", err)
	}
	if err := os.WriteFile(f.Path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write token cache: %w", err)
	}
	// WriteFile keeps the mode of an existing file.
	return os.Chmod(f.Path, 0o600)
}

func (f *FileCache) Clear() error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove token cache: %w", err)
	}
	return nil
}
