// Package store persists the LinkMark session and category history in a small
// key-value store. Values are JSON; every backend writes all keys of a Set together.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/router-for-me/linkmark/internal/config"
	"github.com/router-for-me/linkmark/internal/util"
)

// Keys used by LinkMark.
const (
	KeyAccessToken     = "accessToken"
	KeyUserInfo        = "userInfo"
	KeyIsAuthenticated = "isAuthenticated"
	KeyCategoryHistory = "categoryHistory"
)

// StateFileName is the document written by the file and git backends.
const StateFileName = "state.json"

// Store is a JSON key-value store. Get omits keys that are not present.
type Store interface {
	Get(ctx context.Context, keys ...string) (map[string]json.RawMessage, error)
	Set(ctx context.Context, values map[string]any) error
	Clear(ctx context.Context) error
	Close() error
}

// Open returns the backend selected by cfg.Store.Type.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	authDir, err := util.ResolveAuthDir(cfg.AuthDir)
	if err != nil {
		return nil, err
	}
	sc := cfg.Store
	switch sc.Type {
	case "", "file":
		path := sc.Path
		if path == "" {
			path = filepath.Join(authDir, StateFileName)
		}
		return NewFileStore(path), nil
	case "sqlite":
		path := sc.Path
		if path == "" {
			path = filepath.Join(authDir, "linkmark.db")
		}
		return NewSQLiteStore(ctx, path)
	case "postgres":
		return NewPostgresStore(ctx, PostgresStoreConfig{DSN: sc.DSN, Schema: sc.Schema})
	case "object":
		return NewObjectStore(ctx, ObjectStoreConfig{
			Endpoint:  sc.Endpoint,
			Bucket:    sc.Bucket,
			AccessKey: sc.AccessKey,
			SecretKey: sc.SecretKey,
			Region:    sc.Region,
			Prefix:    sc.Prefix,
			UseSSL:    sc.UseSSL,
		})
	case "git":
		repoDir := sc.Path
		if repoDir == "" {
			repoDir = filepath.Join(authDir, "state-repo")
		}
		return NewGitStore(GitStoreConfig{
			RepoDir:  repoDir,
			Remote:   sc.GitURL,
			Username: sc.GitUsername,
			Password: sc.GitPassword,
		})
	case "keyring":
		return NewKeyringStore(sc.KeyringService), nil
	default:
		return nil, fmt.Errorf("store: unknown type %q", sc.Type)
	}
}

// StatePath returns the local file a watcher can observe for cfg, or "" when the
// backend has no single local file.
func StatePath(cfg *config.Config) string {
	authDir, err := util.ResolveAuthDir(cfg.AuthDir)
	if err != nil {
		return ""
	}
	switch cfg.Store.Type {
	case "", "file":
		if cfg.Store.Path != "" {
			return cfg.Store.Path
		}
		return filepath.Join(authDir, StateFileName)
	case "git":
		repoDir := cfg.Store.Path
		if repoDir == "" {
			repoDir = filepath.Join(authDir, "state-repo")
		}
		return filepath.Join(repoDir, StateFileName)
	default:
		return ""
	}
}
