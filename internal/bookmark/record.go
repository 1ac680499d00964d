// Package bookmark builds bookmark records, posts them to the LinkMark backend,
// and keeps the recently used categories.
package bookmark

import (
	"strings"
	"time"

	"github.com/router-for-me/linkmark/internal/tab"
)

// TimestampLayout matches JavaScript's Date.toISOString.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Messages shown for bookmark failures.
const (
	MsgCategoryRequired = "Please enter a category for this bookmark."
	MsgNoPageInfo       = "Unable to get current page information."
	MsgSaveFailed       = "Failed to save bookmark. Please try again."
)

// Record is the JSON body posted to {api-base-url}/bookmarks.
type Record struct {
	URL       string  `json:"url"`
	Title     string  `json:"title"`
	Category  string  `json:"category"`
	Notes     string  `json:"notes"`
	Favicon   *string `json:"favicon"`
	UserEmail string  `json:"userEmail"`
	Timestamp string  `json:"timestamp"`
}

// ValidationError reports invalid form input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "bookmark: " + e.Field + ": " + e.Message
}

// Validate checks that category has non-blank content.
func Validate(category string) error {
	if strings.TrimSpace(category) == "" {
		return &ValidationError{Field: "category", Message: MsgCategoryRequired}
	}
	return nil
}

// NewRecord builds the record for t. Category and notes are trimmed, an empty
// title becomes "Untitled Page", and an empty favicon is sent as null.
func NewRecord(t tab.Tab, category, notes, email string, now time.Time) Record {
	title := strings.TrimSpace(t.Title)
	if title == "" {
		title = "Untitled Page"
	}
	var favicon *string
	if icon := strings.TrimSpace(t.FavIconURL); icon != "" {
		favicon = &icon
	}
	return Record{
		URL:       t.URL,
		Title:     title,
		Category:  strings.TrimSpace(category),
		Notes:     strings.TrimSpace(notes),
		Favicon:   favicon,
		UserEmail: email,
		Timestamp: now.UTC().Format(TimestampLayout),
	}
}
