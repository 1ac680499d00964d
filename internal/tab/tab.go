// Package tab reads the page the user is looking at: the active Chrome tab over
// the DevTools protocol, a URL on the clipboard, or a fixed tab from the command line.
package tab

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Tab describes the active page.
type Tab struct {
	Title      string
	URL        string
	FavIconURL string
}

// ErrNoActiveTab is returned when a source has no page with an http(s) URL.
var ErrNoActiveTab = errors.New("tab: no active page")

// Source returns the active tab.
type Source interface {
	ActiveTab(ctx context.Context) (*Tab, error)
}

// StaticSource always returns the same tab.
type StaticSource struct {
	Tab Tab
}

// ActiveTab returns the configured tab, or ErrNoActiveTab when its URL is empty.
func (s StaticSource) ActiveTab(context.Context) (*Tab, error) {
	if strings.TrimSpace(s.Tab.URL) == "" {
		return nil, ErrNoActiveTab
	}
	t := s.Tab
	return &t, nil
}

// FallbackSource asks each source in order and returns the first tab with a URL.
type FallbackSource []Source

// ActiveTab returns the first usable tab, or the last error when none has one.
func (f FallbackSource) ActiveTab(ctx context.Context) (*Tab, error) {
	lastErr := ErrNoActiveTab
	for _, src := range f {
		t, err := src.ActiveTab(ctx)
		if err != nil {
			log.Debugf("tab source %T: %v", src, err)
			lastErr = err
			continue
		}
		if t != nil && t.URL != "" {
			return t, nil
		}
	}
	return nil, lastErr
}

// isWebURL accepts absolute http and https URLs.
func isWebURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// hostTitle derives a title from the URL host for sources without page titles.
func hostTitle(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}

// New builds the source named by kind: chrome, clipboard, or auto.
func New(kind, chromeURL string) (Source, error) {
	switch kind {
	case "chrome":
		return NewChromeSource(chromeURL), nil
	case "clipboard":
		return ClipboardSource{}, nil
	case "", "auto":
		return FallbackSource{NewChromeSource(chromeURL), ClipboardSource{}}, nil
	default:
		return nil, fmt.Errorf("tab: unknown source %q", kind)
	}
}
