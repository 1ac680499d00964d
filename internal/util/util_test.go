package util

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/router-for-me/linkmark/internal/config"
)

func TestResolveAuthDir(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"~", filepath.Clean(home)},
		{"~/.linkmark", filepath.Join(home, ".linkmark")},
		{"/tmp/linkmark/../linkmark", "/tmp/linkmark"},
	}
	for _, tt := range tests {
		got, errResolve := ResolveAuthDir(tt.in)
		if errResolve != nil {
			t.Fatalf("ResolveAuthDir(%q) error = %v", tt.in, errResolve)
		}
		if got != tt.want {
			t.Fatalf("ResolveAuthDir(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMaskSensitiveQuery(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"untouched", "alt=json&fields=name", "alt=json&fields=name"},
		{"access token", "access_token=ya29.abcdefghijkl&alt=json", "access_token=ya29...ijkl&alt=json"},
		{"short key", "key=abc", "key=a...c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MaskSensitiveQuery(tt.in); got != tt.want {
				t.Fatalf("MaskSensitiveQuery(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestMaskURLHidesAccessToken(t *testing.T) {
	got := MaskURL("https://www.googleapis.com/oauth2/v2/userinfo?access_token=ya29.secretvalue1234")
	if strings.Contains(got, "secretvalue") {
		t.Fatalf("MaskURL leaked token: %s", got)
	}
}

func TestMaskAuthorizationHeader(t *testing.T) {
	if got := MaskAuthorizationHeader("Bearer ya29.abcdefghijkl"); got != "Bearer ya29...ijkl" {
		t.Fatalf("MaskAuthorizationHeader() = %q", got)
	}
}

func TestNewHTTPClientSetsUserAgentAndTimeout(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.RequestTimeout = 3 * time.Second
	client := NewHTTPClient(cfg)
	if client.Timeout != 3*time.Second {
		t.Fatalf("Timeout = %v, want 3s", client.Timeout)
	}
	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	_ = resp.Body.Close()
	if !strings.HasPrefix(gotUA, "linkmark/") {
		t.Fatalf("User-Agent = %q, want linkmark/ prefix", gotUA)
	}
}

func TestIsRemoteSession(t *testing.T) {
	t.Setenv("SSH_CONNECTION", "")
	t.Setenv("SSH_CLIENT", "")
	t.Setenv("SSH_TTY", "")
	if IsRemoteSession() {
		t.Fatal("expected local session")
	}
	t.Setenv("SSH_CONNECTION", "10.0.0.1 5000 10.0.0.2 22")
	if !IsRemoteSession() {
		t.Fatal("expected remote session")
	}
}
