package bookmark

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/router-for-me/linkmark/internal/config"
	"github.com/router-for-me/linkmark/internal/logging"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// ErrNoToken is wrapped by SaveError when no access token is stored.
var ErrNoToken = errors.New("no access token found")

// SaveError reports a failed POST. StatusCode is 0 for transport failures.
type SaveError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *SaveError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("bookmark: backend returned status %d: %s", e.StatusCode, e.Body)
	case e.Err != nil:
		return fmt.Sprintf("bookmark: save failed: %v", e.Err)
	default:
		return "bookmark: save failed"
	}
}

func (e *SaveError) Unwrap() error { return e.Err }

// Client posts bookmarks to the backend.
type Client struct {
	httpClient      *http.Client
	endpoint        string
	simulateSuccess bool
}

// NewClient returns a client for cfg.BookmarksURL().
func NewClient(cfg *config.Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		httpClient:      httpClient,
		endpoint:        cfg.BookmarksURL(),
		simulateSuccess: cfg.Bookmark.SimulateSuccessOnFailure,
	}
}

// Save posts rec with the bearer token. When simulate-success-on-failure is on,
// a failure is logged and reported as success.
func (c *Client) Save(ctx context.Context, token string, rec Record) error {
	requestID := logging.GenerateRequestID()
	entry := log.WithField("request_id", requestID).WithField("category", rec.Category)

	err := c.post(logging.WithRequestID(ctx, requestID), requestID, token, rec)
	if err == nil {
		return nil
	}
	if c.simulateSuccess {
		data, _ := json.Marshal(rec)
		entry.WithError(err).Warnf("backend save failed, simulating success: %s", data)
		return nil
	}
	entry.WithError(err).Error("backend save failed")
	return err
}

func (c *Client) post(ctx context.Context, requestID, token string, rec Record) error {
	if strings.TrimSpace(token) == "" {
		return &SaveError{Err: ErrNoToken}
	}
	body, err := json.Marshal(rec)
	if err != nil {
		return &SaveError{Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return &SaveError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set(logging.RequestIDHeader, requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &SaveError{Err: err}
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.Errorf("bookmark: close response body: %v", errClose)
		}
	}()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &SaveError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}
	if id := gjson.GetBytes(respBody, "id"); id.Exists() {
		log.WithField("request_id", requestID).Debugf("bookmark stored with id %s", id.String())
	}
	return nil
}
