package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/router-for-me/linkmark/internal/store"
	"github.com/router-for-me/linkmark/internal/util"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/singleflight"
)

// Identity obtains and drops OAuth access tokens.
type Identity interface {
	GetAuthToken(ctx context.Context, interactive bool) (string, error)
	RemoveCachedAuthToken(ctx context.Context, token string) error
}

// Manager signs the user in and out. Bookmark saving reads the token directly
// through AccessToken and does not go through the identity provider.
type Manager struct {
	identity   Identity
	store      store.Store
	httpClient *http.Client
	profileURL string
	group      singleflight.Group
}

// NewManager wires the identity provider, the persisted store and the profile endpoint.
func NewManager(identity Identity, st store.Store, httpClient *http.Client, profileURL string) *Manager {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Manager{
		identity:   identity,
		store:      st,
		httpClient: httpClient,
		profileURL: profileURL,
	}
}

// Authenticate runs the interactive sign-in, fetches the profile and persists the
// Session in one store write. Nothing is persisted on failure. Concurrent calls
// share the same in-flight attempt.
func (m *Manager) Authenticate(ctx context.Context) (*Session, error) {
	v, err, shared := m.group.Do("authenticate", func() (any, error) {
		return m.authenticate(ctx)
	})
	if shared {
		log.Debug("session: joined in-flight authentication")
	}
	if err != nil {
		return nil, err
	}
	sess := *v.(*Session)
	return &sess, nil
}

func (m *Manager) authenticate(ctx context.Context) (*Session, error) {
	token, err := m.identity.GetAuthToken(ctx, true)
	if err != nil {
		return nil, &AuthError{Op: "authenticate", Message: MsgAuthFailed, Err: err}
	}
	if token == "" {
		return nil, &AuthError{Op: "authenticate", Message: MsgAuthFailed, Err: errors.New("identity provider returned an empty token")}
	}

	info, err := m.fetchProfile(ctx, token)
	if err != nil {
		return nil, &AuthError{Op: "authenticate", Message: MsgAuthFailed, Err: err}
	}

	sess := &Session{AccessToken: token, UserInfo: *info, IsAuthenticated: true}
	if err = m.store.Set(ctx, map[string]any{
		store.KeyAccessToken:     sess.AccessToken,
		store.KeyUserInfo:        sess.UserInfo,
		store.KeyIsAuthenticated: true,
	}); err != nil {
		return nil, &AuthError{Op: "authenticate", Message: MsgAuthFailed, Err: err}
	}
	log.Infof("signed in as %s", info.Email)
	return sess, nil
}

// fetchProfile calls GET {profileURL}?access_token=<token>.
func (m *Manager) fetchProfile(ctx context.Context, token string) (*UserInfo, error) {
	u, err := url.Parse(m.profileURL)
	if err != nil {
		return nil, fmt.Errorf("profile url: %w", err)
	}
	q := u.Query()
	q.Set("access_token", token)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("profile request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	log.Debugf("fetching profile from %s", util.MaskURL(u.String()))

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("profile request: %w", err)
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.Errorf("session: close profile response body: %v", errClose)
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("profile read: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("profile request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if !gjson.ValidBytes(body) || !gjson.ParseBytes(body).IsObject() {
		return nil, fmt.Errorf("profile response is not a JSON object")
	}
	profile := gjson.ParseBytes(body)
	return &UserInfo{
		ID:      profile.Get("id").String(),
		Name:    profile.Get("name").String(),
		Email:   profile.Get("email").String(),
		Picture: profile.Get("picture").String(),
	}, nil
}

// Logout drops the token at the identity provider and always clears the store.
// A revocation failure is reported after the clear as an *AuthError whose
// Message is MsgRevokeFailed.
func (m *Manager) Logout(ctx context.Context) error {
	var revokeErr error
	token, err := m.AccessToken(ctx)
	if err != nil {
		log.Warnf("session: reading token before logout: %v", err)
	} else if token != "" {
		if revokeErr = m.identity.RemoveCachedAuthToken(ctx, token); revokeErr != nil {
			log.Warnf("session: token revocation failed: %v", revokeErr)
		}
	}

	clearErr := m.store.Clear(ctx)
	switch {
	case clearErr != nil:
		return &AuthError{Op: "logout", Message: MsgLogoutFailed, Err: errors.Join(clearErr, revokeErr)}
	case revokeErr != nil:
		return &AuthError{Op: "logout", Message: MsgRevokeFailed, Err: revokeErr}
	}
	log.Info("signed out")
	return nil
}

// Load returns the persisted Session, or nil when the user is not signed in.
func (m *Manager) Load(ctx context.Context) (*Session, error) {
	values, err := m.store.Get(ctx, store.KeyAccessToken, store.KeyUserInfo, store.KeyIsAuthenticated)
	if err != nil {
		return nil, err
	}
	var sess Session
	if raw, ok := values[store.KeyIsAuthenticated]; !ok || json.Unmarshal(raw, &sess.IsAuthenticated) != nil || !sess.IsAuthenticated {
		return nil, nil
	}
	raw, ok := values[store.KeyUserInfo]
	if !ok || json.Unmarshal(raw, &sess.UserInfo) != nil {
		return nil, nil
	}
	if raw, ok = values[store.KeyAccessToken]; ok {
		_ = json.Unmarshal(raw, &sess.AccessToken)
	}
	if sess.AccessToken == "" {
		return nil, nil
	}
	return &sess, nil
}

// AccessToken returns the stored token, or "" when none is stored.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	values, err := m.store.Get(ctx, store.KeyAccessToken)
	if err != nil {
		return "", err
	}
	var token string
	if raw, ok := values[store.KeyAccessToken]; ok {
		if err = json.Unmarshal(raw, &token); err != nil {
			return "", fmt.Errorf("session: decode stored token: %w", err)
		}
	}
	return token, nil
}
