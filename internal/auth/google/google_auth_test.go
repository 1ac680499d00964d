package google

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/router-for-me/linkmark/internal/config"
	"golang.org/x/oauth2"
)

type fakeGoogle struct {
	server      *httptest.Server
	tokenCalls  atomic.Int32
	revoked     atomic.Value
	revokeCode  int
	accessToken string
}

func newFakeGoogle(t *testing.T) *fakeGoogle {
	t.Helper()
	f := &fakeGoogle{revokeCode: http.StatusOK, accessToken: "ya29.fresh"}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls.Add(1)
		_ = r.ParseForm()
		if r.PostForm.Get("code") == "bad-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":"invalid_grant","error_description":"Bad Request"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"`+f.accessToken+`","token_type":"Bearer","refresh_token":"1//refresh","expires_in":3600}`)
	})
	mux.HandleFunc("/revoke", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		f.revoked.Store(r.PostForm.Get("token"))
		w.WriteHeader(f.revokeCode)
	})
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func newTestAuth(t *testing.T, f *fakeGoogle) *GoogleAuth {
	t.Helper()
	cfg := config.Default()
	cfg.AuthDir = t.TempDir()
	cfg.OAuth.ClientID = "client.apps.googleusercontent.com"
	cfg.OAuth.ClientSecret = "secret"
	cfg.OAuth.CallbackPort = 0
	g, err := NewGoogleAuth(cfg, f.server.Client())
	if err != nil {
		t.Fatalf("NewGoogleAuth() error = %v", err)
	}
	g.Endpoint = oauth2.Endpoint{
		AuthURL:   f.server.URL + "/auth",
		TokenURL:  f.server.URL + "/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
	g.RevokeURL = f.server.URL + "/revoke"
	g.Out = io.Discard
	g.OpenURL = nil
	return g
}

// redirectWith simulates the browser following Google's redirect back to the loopback server.
func redirectWith(t *testing.T, mutate func(q url.Values)) func(string) error {
	return func(authURL string) error {
		u, err := url.Parse(authURL)
		if err != nil {
			return err
		}
		q := url.Values{"code": {"auth-code"}, "state": {u.Query().Get("state")}}
		mutate(q)
		resp, err := http.Get(u.Query().Get("redirect_uri") + "?" + q.Encode())
		if err != nil {
			t.Errorf("callback request failed: %v", err)
			return err
		}
		return resp.Body.Close()
	}
}

func TestGetAuthTokenNonInteractiveWithoutCache(t *testing.T) {
	g := newTestAuth(t, newFakeGoogle(t))
	_, err := g.GetAuthToken(context.Background(), false)
	if !errors.Is(err, ErrInteractionRequired) {
		t.Fatalf("GetAuthToken() error = %v, want ErrInteractionRequired", err)
	}
}

func TestGetAuthTokenReturnsValidCachedToken(t *testing.T) {
	f := newFakeGoogle(t)
	g := newTestAuth(t, f)
	if err := g.cache.save(&oauth2.Token{AccessToken: "ya29.cached", Expiry: time.Now().Add(time.Hour)}); err != nil {
		t.Fatalf("save: %v", err)
	}
	tok, err := g.GetAuthToken(context.Background(), false)
	if err != nil {
		t.Fatalf("GetAuthToken() error = %v", err)
	}
	if tok != "ya29.cached" {
		t.Fatalf("token = %q", tok)
	}
	if f.tokenCalls.Load() != 0 {
		t.Fatal("valid cached token must not hit the token endpoint")
	}
}

func TestGetAuthTokenRefreshesExpiredToken(t *testing.T) {
	f := newFakeGoogle(t)
	g := newTestAuth(t, f)
	expired := &oauth2.Token{AccessToken: "ya29.old", RefreshToken: "1//refresh", Expiry: time.Now().Add(-time.Hour)}
	if err := g.cache.save(expired); err != nil {
		t.Fatalf("save: %v", err)
	}
	tok, err := g.GetAuthToken(context.Background(), false)
	if err != nil {
		t.Fatalf("GetAuthToken() error = %v", err)
	}
	if tok != "ya29.fresh" {
		t.Fatalf("token = %q, want refreshed", tok)
	}
	cached, _ := g.cache.load()
	if cached == nil || cached.AccessToken != "ya29.fresh" {
		t.Fatalf("cache not updated: %+v", cached)
	}
}

func TestGetAuthTokenInteractiveFlow(t *testing.T) {
	f := newFakeGoogle(t)
	g := newTestAuth(t, f)
	var shownURL string
	g.OnAuthURL = func(u string) { shownURL = u }
	g.OpenURL = redirectWith(t, func(url.Values) {})

	tok, err := g.GetAuthToken(context.Background(), true)
	if err != nil {
		t.Fatalf("GetAuthToken() error = %v", err)
	}
	if tok != "ya29.fresh" {
		t.Fatalf("token = %q", tok)
	}
	if shownURL == "" {
		t.Fatal("OnAuthURL was not called")
	}
	if _, err = os.Stat(g.cache.path); err != nil {
		t.Fatalf("token cache not written: %v", err)
	}
	if filepath.Base(g.cache.path) != TokenFileName {
		t.Fatalf("cache file = %s", g.cache.path)
	}
}

func TestGetAuthTokenInteractiveFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(q url.Values)
		check  func(t *testing.T, err error)
	}{
		{
			name:   "state mismatch",
			mutate: func(q url.Values) { q.Set("state", "forged") },
			check: func(t *testing.T, err error) {
				if !errors.Is(err, ErrInvalidState) {
					t.Fatalf("error = %v, want ErrInvalidState", err)
				}
			},
		},
		{
			name: "access denied",
			mutate: func(q url.Values) {
				q.Del("code")
				q.Set("error", "access_denied")
			},
			check: func(t *testing.T, err error) {
				if !IsOAuthError(err) {
					t.Fatalf("error = %v, want OAuthError", err)
				}
				if msg := GetUserFriendlyMessage(err); msg != "Sign-in was cancelled or denied." {
					t.Fatalf("friendly message = %q", msg)
				}
			},
		},
		{
			name:   "exchange rejected",
			mutate: func(q url.Values) { q.Set("code", "bad-code") },
			check: func(t *testing.T, err error) {
				var oauthErr *OAuthError
				if !errors.As(err, &oauthErr) || oauthErr.Code != "invalid_grant" {
					t.Fatalf("error = %v, want invalid_grant", err)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestAuth(t, newFakeGoogle(t))
			g.OpenURL = redirectWith(t, tt.mutate)
			_, err := g.GetAuthToken(context.Background(), true)
			if err == nil {
				t.Fatal("expected error")
			}
			tt.check(t, err)
			if cached, _ := g.cache.load(); cached != nil {
				t.Fatal("failed sign-in must not populate the cache")
			}
		})
	}
}

func TestGetAuthTokenRespectsContext(t *testing.T) {
	g := newTestAuth(t, newFakeGoogle(t))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := g.GetAuthToken(ctx, true); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want deadline exceeded", err)
	}
}

func TestRemoveCachedAuthToken(t *testing.T) {
	f := newFakeGoogle(t)
	g := newTestAuth(t, f)
	if err := g.cache.save(&oauth2.Token{AccessToken: "ya29.cached", Expiry: time.Now().Add(time.Hour)}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := g.RemoveCachedAuthToken(context.Background(), "ya29.cached"); err != nil {
		t.Fatalf("RemoveCachedAuthToken() error = %v", err)
	}
	if got, _ := f.revoked.Load().(string); got != "ya29.cached" {
		t.Fatalf("revoked token = %q", got)
	}
	if cached, _ := g.cache.load(); cached != nil {
		t.Fatal("cache still present")
	}
}

func TestRemoveCachedAuthTokenRevokeFailureStillDropsCache(t *testing.T) {
	f := newFakeGoogle(t)
	f.revokeCode = http.StatusBadRequest
	g := newTestAuth(t, f)
	if err := g.cache.save(&oauth2.Token{AccessToken: "ya29.cached"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	err := g.RemoveCachedAuthToken(context.Background(), "ya29.cached")
	if !errors.Is(err, ErrRevokeFailed) {
		t.Fatalf("error = %v, want ErrRevokeFailed", err)
	}
	if cached, _ := g.cache.load(); cached != nil {
		t.Fatal("cache must be dropped even when revoke fails")
	}
}

func TestRemoveCachedAuthTokenLocalOnly(t *testing.T) {
	f := newFakeGoogle(t)
	g := newTestAuth(t, f)
	g.revokeRemote = false
	if err := g.RemoveCachedAuthToken(context.Background(), "ya29.cached"); err != nil {
		t.Fatalf("RemoveCachedAuthToken() error = %v", err)
	}
	if f.revoked.Load() != nil {
		t.Fatal("revoke endpoint called with revoke-remote disabled")
	}
}

func TestParseCallback(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantNil   bool
		wantErr   bool
		wantCode  string
		wantState string
		wantError string
	}{
		{name: "blank", input: "  ", wantNil: true},
		{name: "full url", input: "http://localhost:8085/oauth2callback?code=abc&state=xyz", wantCode: "abc", wantState: "xyz"},
		{name: "bare query", input: "code=abc&state=xyz", wantCode: "abc", wantState: "xyz"},
		{name: "leading question mark", input: "?code=abc&state=xyz", wantCode: "abc", wantState: "xyz"},
		{name: "fragment", input: "http://localhost/cb#code=abc&state=xyz", wantCode: "abc", wantState: "xyz"},
		{name: "error only", input: "http://localhost/cb?error=access_denied", wantError: "access_denied"},
		{name: "missing code", input: "http://localhost/cb?state=xyz", wantErr: true},
		{name: "garbage", input: "hello", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCallback(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseCallback() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if tt.wantNil {
				if got != nil {
					t.Fatalf("ParseCallback() = %+v, want nil", got)
				}
				return
			}
			if got.Code != tt.wantCode || got.State != tt.wantState || got.Error != tt.wantError {
				t.Fatalf("ParseCallback() = %+v", got)
			}
		})
	}
}
