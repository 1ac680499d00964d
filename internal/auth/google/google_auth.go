// Package google implements the identity provider used by LinkMark: a loopback
// OAuth2 authorization-code flow against Google with a local token cache,
// token refresh, and remote revocation on sign-out.
package google

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/router-for-me/linkmark/internal/browser"
	"github.com/router-for-me/linkmark/internal/config"
	"github.com/router-for-me/linkmark/internal/util"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// DefaultRevokeURL is Google's token revocation endpoint.
const DefaultRevokeURL = "https://oauth2.googleapis.com/revoke"

// Scopes requested at sign-in; the profile endpoint needs email and profile.
var Scopes = []string{
	"openid",
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/userinfo.profile",
}

const (
	callbackTimeout   = 5 * time.Minute
	manualPromptDelay = 15 * time.Second
)

// GoogleAuth obtains and revokes Google access tokens.
type GoogleAuth struct {
	clientID     string
	clientSecret string
	callbackPort int
	noBrowser    bool
	revokeRemote bool
	httpClient   *http.Client
	cache        *tokenCache

	// Endpoint defaults to google.Endpoint.
	Endpoint oauth2.Endpoint
	// RevokeURL defaults to DefaultRevokeURL.
	RevokeURL string
	// Out receives the printed authorization URL and progress lines.
	Out io.Writer
	// Prompt, when set, is offered after a short wait so the user can paste the redirect URL.
	Prompt func(string) (string, error)
	// OnAuthURL, when set, receives the authorization URL before the browser is opened.
	OnAuthURL func(string)
	// OpenURL opens the authorization URL; defaults to browser.OpenURL.
	OpenURL func(string) error
}

// NewGoogleAuth builds the provider from cfg. The token cache lives in the resolved auth dir.
func NewGoogleAuth(cfg *config.Config, httpClient *http.Client) (*GoogleAuth, error) {
	authDir, err := util.ResolveAuthDir(cfg.AuthDir)
	if err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = util.NewHTTPClient(cfg)
	}
	g := &GoogleAuth{
		clientID:     cfg.OAuth.ClientID,
		clientSecret: cfg.OAuth.ClientSecret,
		callbackPort: cfg.OAuth.CallbackPort,
		noBrowser:    cfg.OAuth.NoBrowser,
		revokeRemote: cfg.OAuth.ShouldRevokeRemote(),
		httpClient:   httpClient,
		cache:        newTokenCache(filepath.Join(authDir, TokenFileName)),
		Endpoint:     google.Endpoint,
		RevokeURL:    DefaultRevokeURL,
		Out:          os.Stdout,
	}
	if browser.IsAvailable() {
		g.OpenURL = browser.OpenURL
	} else {
		log.Debug("google: no browser available, the authorization URL will be printed")
	}
	return g, nil
}

func (g *GoogleAuth) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     g.clientID,
		ClientSecret: g.clientSecret,
		Scopes:       Scopes,
		Endpoint:     g.Endpoint,
	}
}

// GetAuthToken returns an access token. A valid cached token is returned as is and an
// expired one is refreshed. Otherwise, when interactive is true, the browser flow runs;
// when false, ErrInteractionRequired is returned.
func (g *GoogleAuth) GetAuthToken(ctx context.Context, interactive bool) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, g.httpClient)
	conf := g.oauthConfig()

	cached, err := g.cache.load()
	if err != nil {
		return "", err
	}
	if cached != nil {
		if cached.Valid() {
			return cached.AccessToken, nil
		}
		if cached.RefreshToken != "" {
			fresh, errRefresh := conf.TokenSource(ctx, cached).Token()
			if errRefresh == nil {
				if errSave := g.cache.save(fresh); errSave != nil {
					log.Warnf("google: %v", errSave)
				}
				log.Debug("google: refreshed cached access token")
				return fresh.AccessToken, nil
			}
			log.Warnf("google: token refresh failed: %v", errRefresh)
		}
	}

	if !interactive {
		return "", ErrInteractionRequired
	}
	if strings.TrimSpace(g.clientID) == "" {
		return "", fmt.Errorf("google: oauth.client-id is not configured")
	}

	tok, err := g.tokenFromWeb(ctx, conf)
	if err != nil {
		return "", err
	}
	if err = g.cache.save(tok); err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

// RemoveCachedAuthToken drops the local token cache and, when revoke-remote is on,
// revokes token at Google. The cache is dropped even when revocation fails.
func (g *GoogleAuth) RemoveCachedAuthToken(ctx context.Context, token string) error {
	if err := g.cache.remove(); err != nil {
		return err
	}
	if !g.revokeRemote || token == "" {
		return nil
	}
	return g.revoke(ctx, token)
}

func (g *GoogleAuth) revoke(ctx context.Context, token string) error {
	form := url.Values{"token": {token}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.RevokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return NewAuthenticationError(ErrRevokeFailed, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return NewAuthenticationError(ErrRevokeFailed, err)
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.Errorf("google: close revoke response body: %v", errClose)
		}
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return NewAuthenticationError(ErrRevokeFailed, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}
	log.Debug("google: token revoked")
	return nil
}

// tokenFromWeb runs the loopback authorization-code flow.
func (g *GoogleAuth) tokenFromWeb(ctx context.Context, conf *oauth2.Config) (*oauth2.Token, error) {
	srv, err := startCallbackServer(g.callbackPort)
	if err != nil {
		return nil, err
	}
	defer srv.stop(ctx)

	conf.RedirectURL = srv.redirectURL()
	state, err := generateState()
	if err != nil {
		return nil, err
	}
	authURL := conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
	g.presentAuthURL(authURL)

	timeout := time.NewTimer(callbackTimeout)
	defer timeout.Stop()

	var promptC <-chan time.Time
	if g.Prompt != nil {
		promptTimer := time.NewTimer(manualPromptDelay)
		defer promptTimer.Stop()
		promptC = promptTimer.C
	}

	var result *CallbackResult
waitForCallback:
	for {
		select {
		case result = <-srv.results:
			break waitForCallback
		case errServe := <-srv.errs:
			return nil, errServe
		case <-promptC:
			promptC = nil
			input, errPrompt := g.Prompt("Paste the redirect URL from your browser (or press Enter to keep waiting): ")
			if errPrompt != nil {
				return nil, errPrompt
			}
			parsed, errParse := ParseCallback(input)
			if errParse != nil {
				return nil, errParse
			}
			if parsed == nil {
				continue
			}
			result = parsed
			break waitForCallback
		case <-timeout.C:
			return nil, ErrCallbackTimeout
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if result.Error != "" {
		return nil, NewOAuthError(result.Error, result.ErrorDescription, http.StatusBadRequest)
	}
	if result.State != state {
		return nil, ErrInvalidState
	}

	tok, err := conf.Exchange(ctx, result.Code)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.ErrorCode != "" {
			status := 0
			if retrieveErr.Response != nil {
				status = retrieveErr.Response.StatusCode
			}
			return nil, NewOAuthError(retrieveErr.ErrorCode, retrieveErr.ErrorDescription, status)
		}
		return nil, NewAuthenticationError(ErrCodeExchangeFailed, err)
	}
	_, _ = fmt.Fprintln(g.out(), "Authentication successful.")
	return tok, nil
}

func (g *GoogleAuth) presentAuthURL(authURL string) {
	out := g.out()
	if g.OnAuthURL != nil {
		g.OnAuthURL(authURL)
	}
	if g.noBrowser || g.OpenURL == nil {
		if util.IsRemoteSession() {
			util.PrintSSHTunnelInstructions(out, g.callbackPort)
		}
		_, _ = fmt.Fprintf(out, "Open this URL in your browser to sign in:\n\n%s\n\n", authURL)
		return
	}
	_, _ = fmt.Fprintln(out, "Opening browser for authentication...")
	if err := g.OpenURL(authURL); err != nil {
		log.Warn(GetUserFriendlyMessage(NewAuthenticationError(ErrBrowserOpenFailed, err)))
		if util.IsRemoteSession() {
			util.PrintSSHTunnelInstructions(out, g.callbackPort)
		}
		_, _ = fmt.Fprintf(out, "Please manually open this URL in your browser:\n\n%s\n\n", authURL)
	}
	_, _ = fmt.Fprintln(out, "Waiting for authentication callback...")
}

func (g *GoogleAuth) out() io.Writer {
	if g.Out == nil {
		return io.Discard
	}
	return g.Out
}
