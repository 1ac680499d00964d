package tab

import (
	"context"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
)

// ClipboardSource treats a URL on the system clipboard as the active page.
type ClipboardSource struct {
	// read defaults to clipboard.ReadAll.
	read func() (string, error)
}

// ActiveTab returns the clipboard URL with the host as title.
func (c ClipboardSource) ActiveTab(context.Context) (*Tab, error) {
	read := c.read
	if read == nil {
		read = clipboard.ReadAll
	}
	text, err := read()
	if err != nil {
		return nil, fmt.Errorf("tab: read clipboard: %w", err)
	}
	text = strings.TrimSpace(text)
	if !isWebURL(text) {
		return nil, ErrNoActiveTab
	}
	return &Tab{Title: hostTitle(text), URL: text}, nil
}
