package bookmark

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/router-for-me/linkmark/internal/config"
	"github.com/router-for-me/linkmark/internal/store"
)

// History is the most-recent-first list of used categories, capped at max entries.
type History struct {
	store store.Store
	max   int
}

// NewHistory returns a history over st. limit is clamped to 1..config.MaxCategoryHistory.
func NewHistory(st store.Store, limit int) *History {
	if limit <= 0 || limit > config.MaxCategoryHistory {
		limit = config.MaxCategoryHistory
	}
	return &History{store: st, max: limit}
}

// Load returns the stored categories, newest first.
func (h *History) Load(ctx context.Context) ([]string, error) {
	values, err := h.store.Get(ctx, store.KeyCategoryHistory)
	if err != nil {
		return nil, err
	}
	raw, ok := values[store.KeyCategoryHistory]
	if !ok {
		return nil, nil
	}
	var list []string
	if err = json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("bookmark: decode category history: %w", err)
	}
	if len(list) > h.max {
		list = list[:h.max]
	}
	return list, nil
}

// Add records category. A category already present keeps its position; a new one
// is put first and the list is truncated to max. It returns the resulting list.
func (h *History) Add(ctx context.Context, category string) ([]string, error) {
	category = strings.TrimSpace(category)
	list, err := h.Load(ctx)
	if err != nil {
		return nil, err
	}
	if category == "" || slices.Contains(list, category) {
		return list, nil
	}
	list = append([]string{category}, list...)
	if len(list) > h.max {
		list = list[:h.max]
	}
	if err = h.store.Set(ctx, map[string]any{store.KeyCategoryHistory: list}); err != nil {
		return nil, err
	}
	return list, nil
}

// Suggestions returns history followed by the defaults it does not already contain.
func Suggestions(history, defaults []string) []string {
	out := make([]string, 0, len(history)+len(defaults))
	seen := make(map[string]struct{}, cap(out))
	for _, list := range [][]string{history, defaults} {
		for _, c := range list {
			if _, dup := seen[c]; dup || c == "" {
				continue
			}
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}
