package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing/object"
	"github.com/router-for-me/linkmark/internal/config"
	"github.com/zalando/go-keyring"
)

type userInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// exerciseStore checks the behavior every backend must share.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	got, err := s.Get(ctx, KeyAccessToken, KeyUserInfo)
	if err != nil {
		t.Fatalf("Get() on empty store error = %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("Get() on empty store = %v", got)
	}

	if err = s.Set(ctx, map[string]any{
		KeyAccessToken:     "ya29.token",
		KeyUserInfo:        userInfo{Name: "Ada", Email: "ada@example.com"},
		KeyIsAuthenticated: true,
	}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err = s.Set(ctx, map[string]any{KeyCategoryHistory: []string{"Work"}}); err != nil {
		t.Fatalf("Set() history error = %v", err)
	}

	got, err = s.Get(ctx, KeyAccessToken, KeyUserInfo, KeyIsAuthenticated, KeyCategoryHistory, "missing")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("Get() returned %d keys, want 4: %v", len(got), got)
	}
	var token string
	if err = json.Unmarshal(got[KeyAccessToken], &token); err != nil || token != "ya29.token" {
		t.Fatalf("accessToken = %q, %v", token, err)
	}
	var info userInfo
	if err = json.Unmarshal(got[KeyUserInfo], &info); err != nil || info.Email != "ada@example.com" {
		t.Fatalf("userInfo = %+v, %v", info, err)
	}
	var history []string
	if err = json.Unmarshal(got[KeyCategoryHistory], &history); err != nil || len(history) != 1 {
		t.Fatalf("categoryHistory = %v, %v", history, err)
	}

	if err = s.Set(ctx, map[string]any{KeyAccessToken: "ya29.other"}); err != nil {
		t.Fatalf("Set() overwrite error = %v", err)
	}
	got, _ = s.Get(ctx, KeyAccessToken)
	if string(got[KeyAccessToken]) != `"ya29.other"` {
		t.Fatalf("overwritten accessToken = %s", got[KeyAccessToken])
	}

	if err = s.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if err = s.Clear(ctx); err != nil {
		t.Fatalf("second Clear() error = %v", err)
	}
	got, err = s.Get(ctx, KeyAccessToken, KeyCategoryHistory)
	if err != nil {
		t.Fatalf("Get() after clear error = %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("Get() after clear = %v", got)
	}
}

func TestFileStore(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "nested", StateFileName))
	exerciseStore(t, s)
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

func TestFileStoreSkipsUnchangedWrite(t *testing.T) {
	ctx := context.Background()
	s := NewFileStore(filepath.Join(t.TempDir(), StateFileName))
	if err := s.Set(ctx, map[string]any{KeyAccessToken: "a"}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	before, err := os.Stat(s.Path())
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if err = os.Chtimes(s.Path(), before.ModTime().Add(-time.Hour), before.ModTime().Add(-time.Hour)); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	old, _ := os.Stat(s.Path())
	if err = s.Set(ctx, map[string]any{KeyAccessToken: "a"}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	after, _ := os.Stat(s.Path())
	if !after.ModTime().Equal(old.ModTime()) {
		t.Fatal("identical Set rewrote the state file")
	}
}

func TestFileStoreRecoversFromCorruptDocument(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), StateFileName)
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	s := NewFileStore(path)
	if err := s.Set(ctx, map[string]any{KeyIsAuthenticated: false}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, _ := s.Get(ctx, KeyIsAuthenticated)
	if string(got[KeyIsAuthenticated]) != "false" {
		t.Fatalf("isAuthenticated = %s", got[KeyIsAuthenticated])
	}
}

func TestSetRejectsUnencodableValue(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), StateFileName))
	err := s.Set(context.Background(), map[string]any{
		KeyAccessToken: "kept-out",
		KeyUserInfo:    make(chan int),
	})
	if err == nil {
		t.Fatal("expected encode error")
	}
	if _, statErr := os.Stat(s.Path()); !os.IsNotExist(statErr) {
		t.Fatal("a failed Set must not write any key")
	}
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "linkmark.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	defer func() { _ = s.Close() }()
	exerciseStore(t, s)
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()
	exerciseStore(t, NewKeyringStore("linkmark-test"))
}

func TestGitStoreLocalRepository(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state-repo")
	s, err := NewGitStore(GitStoreConfig{RepoDir: dir})
	if err != nil {
		t.Fatalf("NewGitStore() error = %v", err)
	}
	exerciseStore(t, s)

	repo, err := git.PlainOpen(dir)
	if err != nil {
		t.Fatalf("open repo: %v", err)
	}
	commits, err := repo.Log(&git.LogOptions{})
	if err != nil {
		t.Fatalf("log: %v", err)
	}
	count := 0
	_ = commits.ForEach(func(_ *object.Commit) error {
		count++
		return nil
	})
	if count < 3 {
		t.Fatalf("expected a commit per change, got %d", count)
	}
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("LINKMARK_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("LINKMARK_TEST_POSTGRES_DSN not set")
	}
	s, err := NewPostgresStore(context.Background(), PostgresStoreConfig{DSN: dsn, Table: "linkmark_state_test"})
	if err != nil {
		t.Fatalf("NewPostgresStore() error = %v", err)
	}
	defer func() { _ = s.Close() }()
	exerciseStore(t, s)
}

func TestObjectStore(t *testing.T) {
	endpoint := os.Getenv("LINKMARK_TEST_OBJECT_ENDPOINT")
	if endpoint == "" {
		t.Skip("LINKMARK_TEST_OBJECT_ENDPOINT not set")
	}
	s, err := NewObjectStore(context.Background(), ObjectStoreConfig{
		Endpoint:  endpoint,
		Bucket:    "linkmark-test",
		AccessKey: os.Getenv("LINKMARK_TEST_OBJECT_ACCESS_KEY"),
		SecretKey: os.Getenv("LINKMARK_TEST_OBJECT_SECRET_KEY"),
		Prefix:    t.Name(),
		PathStyle: true,
	})
	if err != nil {
		t.Fatalf("NewObjectStore() error = %v", err)
	}
	defer func() { _ = s.Close() }()
	exerciseStore(t, s)
}

func TestOpenSelectsBackend(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		storeType string
		check     func(Store) bool
	}{
		{"file", func(s Store) bool { _, ok := s.(*FileStore); return ok }},
		{"sqlite", func(s Store) bool { _, ok := s.(*SQLiteStore); return ok }},
		{"keyring", func(s Store) bool { _, ok := s.(*KeyringStore); return ok }},
		{"git", func(s Store) bool { _, ok := s.(*GitStore); return ok }},
	}
	for _, tt := range tests {
		t.Run(tt.storeType, func(t *testing.T) {
			cfg := config.Default()
			cfg.AuthDir = t.TempDir()
			cfg.Store.Type = tt.storeType
			s, err := Open(ctx, cfg)
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			defer func() { _ = s.Close() }()
			if !tt.check(s) {
				t.Fatalf("Open() returned %T", s)
			}
		})
	}

	cfg := config.Default()
	cfg.Store.Type = "postgres"
	if _, err := Open(ctx, cfg); err == nil {
		t.Fatal("postgres without DSN must fail")
	}
}

func TestStatePath(t *testing.T) {
	cfg := config.Default()
	cfg.AuthDir = "/tmp/lm"
	if got := StatePath(cfg); got != filepath.Join("/tmp/lm", StateFileName) {
		t.Fatalf("StatePath(file) = %q", got)
	}
	cfg.Store.Type = "sqlite"
	if got := StatePath(cfg); got != "" {
		t.Fatalf("StatePath(sqlite) = %q, want empty", got)
	}
}
