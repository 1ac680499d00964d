package session

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/router-for-me/linkmark/internal/store"
)

type fakeIdentity struct {
	token      string
	tokenErr   error
	removeErr  error
	delay      time.Duration
	calls      atomic.Int32
	removed    []string
	removedMux sync.Mutex
}

func (f *fakeIdentity) GetAuthToken(ctx context.Context, interactive bool) (string, error) {
	f.calls.Add(1)
	if !interactive {
		return "", errors.New("expected interactive flow")
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.token, f.tokenErr
}

func (f *fakeIdentity) RemoveCachedAuthToken(ctx context.Context, token string) error {
	f.removedMux.Lock()
	f.removed = append(f.removed, token)
	f.removedMux.Unlock()
	return f.removeErr
}

func newProfileServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Value) {
	t.Helper()
	var seenToken atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenToken.Store(r.URL.Query().Get("access_token"))
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &seenToken
}

func newTestManager(t *testing.T, id Identity, profileURL string) (*Manager, *store.FileStore) {
	t.Helper()
	st := store.NewFileStore(filepath.Join(t.TempDir(), store.StateFileName))
	return NewManager(id, st, http.DefaultClient, profileURL), st
}

const profileJSON = `{"id":"1","name":"Ada Lovelace","email":"ada@example.com","picture":"https://example.com/a.png"}`

func TestAuthenticatePersistsSession(t *testing.T) {
	srv, seen := newProfileServer(t, http.StatusOK, profileJSON)
	id := &fakeIdentity{token: "ya29.token"}
	m, _ := newTestManager(t, id, srv.URL+"/oauth2/v2/userinfo")

	sess, err := m.Authenticate(context.Background())
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if got, _ := seen.Load().(string); got != "ya29.token" {
		t.Fatalf("profile endpoint saw access_token=%q", got)
	}
	if !sess.IsAuthenticated || sess.UserInfo.Email != "ada@example.com" || sess.AccessToken != "ya29.token" {
		t.Fatalf("session = %+v", sess)
	}

	loaded, err := m.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded == nil || *loaded != *sess {
		t.Fatalf("Load() = %+v, want %+v", loaded, sess)
	}
}

func TestAuthenticateFailuresPersistNothing(t *testing.T) {
	tests := []struct {
		name   string
		id     *fakeIdentity
		status int
		body   string
	}{
		{"identity error", &fakeIdentity{tokenErr: errors.New("user closed the window")}, http.StatusOK, profileJSON},
		{"empty token", &fakeIdentity{}, http.StatusOK, profileJSON},
		{"profile 401", &fakeIdentity{token: "t"}, http.StatusUnauthorized, `{"error":"invalid_token"}`},
		{"profile not json", &fakeIdentity{token: "t"}, http.StatusOK, `<html>`},
		{"profile json array", &fakeIdentity{token: "t"}, http.StatusOK, `[1,2]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newProfileServer(t, tt.status, tt.body)
			m, st := newTestManager(t, tt.id, srv.URL)

			_, err := m.Authenticate(context.Background())
			var authErr *AuthError
			if !errors.As(err, &authErr) {
				t.Fatalf("Authenticate() error = %v, want *AuthError", err)
			}
			if authErr.Message != MsgAuthFailed {
				t.Fatalf("Message = %q", authErr.Message)
			}
			values, _ := st.Get(context.Background(), store.KeyAccessToken, store.KeyUserInfo, store.KeyIsAuthenticated)
			if len(values) != 0 {
				t.Fatalf("store written on failure: %v", values)
			}
		})
	}
}

func TestAuthenticateUnreachableProfile(t *testing.T) {
	srv, _ := newProfileServer(t, http.StatusOK, profileJSON)
	url := srv.URL
	srv.Close()
	m, _ := newTestManager(t, &fakeIdentity{token: "t"}, url)
	if _, err := m.Authenticate(context.Background()); err == nil {
		t.Fatal("expected transport error")
	}
}

func TestAuthenticateSharesInFlightFlow(t *testing.T) {
	srv, _ := newProfileServer(t, http.StatusOK, profileJSON)
	id := &fakeIdentity{token: "t", delay: 100 * time.Millisecond}
	m, _ := newTestManager(t, id, srv.URL)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Authenticate(context.Background()); err != nil {
				t.Errorf("Authenticate() error = %v", err)
			}
		}()
	}
	wg.Wait()
	if n := id.calls.Load(); n != 1 {
		t.Fatalf("identity called %d times, want 1", n)
	}
}

func TestLogoutRevokesAndClears(t *testing.T) {
	srv, _ := newProfileServer(t, http.StatusOK, profileJSON)
	id := &fakeIdentity{token: "ya29.token"}
	m, st := newTestManager(t, id, srv.URL)
	ctx := context.Background()
	if _, err := m.Authenticate(ctx); err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if err := st.Set(ctx, map[string]any{store.KeyCategoryHistory: []string{"Work"}}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	if err := m.Logout(ctx); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if len(id.removed) != 1 || id.removed[0] != "ya29.token" {
		t.Fatalf("removed tokens = %v", id.removed)
	}
	values, _ := st.Get(ctx, store.KeyAccessToken, store.KeyUserInfo, store.KeyIsAuthenticated, store.KeyCategoryHistory)
	if len(values) != 0 {
		t.Fatalf("store not cleared: %v", values)
	}
	if sess, _ := m.Load(ctx); sess != nil {
		t.Fatalf("Load() after logout = %+v", sess)
	}
}

func TestLogoutClearsEvenWhenRevokeFails(t *testing.T) {
	srv, _ := newProfileServer(t, http.StatusOK, profileJSON)
	id := &fakeIdentity{token: "ya29.token", removeErr: errors.New("revoke: 400")}
	m, st := newTestManager(t, id, srv.URL)
	ctx := context.Background()
	if _, err := m.Authenticate(ctx); err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}

	err := m.Logout(ctx)
	var authErr *AuthError
	if !errors.As(err, &authErr) || authErr.Message != MsgRevokeFailed {
		t.Fatalf("Logout() error = %v, want revoke AuthError", err)
	}
	values, _ := st.Get(ctx, store.KeyAccessToken)
	if len(values) != 0 {
		t.Fatal("store must be cleared when revoke fails")
	}
}

func TestLogoutWithoutTokenSkipsRevoke(t *testing.T) {
	id := &fakeIdentity{}
	m, _ := newTestManager(t, id, "http://unused.invalid")
	if err := m.Logout(context.Background()); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if len(id.removed) != 0 {
		t.Fatalf("revoke called without a token: %v", id.removed)
	}
}

func TestLoadRequiresCompleteSession(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name   string
		values map[string]any
	}{
		{"flag false", map[string]any{store.KeyAccessToken: "t", store.KeyUserInfo: UserInfo{Email: "a@b"}, store.KeyIsAuthenticated: false}},
		{"no user info", map[string]any{store.KeyAccessToken: "t", store.KeyIsAuthenticated: true}},
		{"no token", map[string]any{store.KeyUserInfo: UserInfo{Email: "a@b"}, store.KeyIsAuthenticated: true}},
		{"history only", map[string]any{store.KeyCategoryHistory: []string{"Work"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, st := newTestManager(t, &fakeIdentity{}, "http://unused.invalid")
			if err := st.Set(ctx, tt.values); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			sess, err := m.Load(ctx)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if sess != nil {
				t.Fatalf("Load() = %+v, want nil", sess)
			}
		})
	}
}

func TestDisplayNameFallback(t *testing.T) {
	if got := (UserInfo{}).DisplayName(); got != "User" {
		t.Fatalf("DisplayName() = %q", got)
	}
	if got := (UserInfo{Name: " Ada "}).DisplayName(); got != "Ada" {
		t.Fatalf("DisplayName() = %q", got)
	}
}
