// Package handlers implements the mock bookmark backend endpoints.
package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/router-for-me/linkmark/internal/bookmark"
	"github.com/router-for-me/linkmark/internal/logging"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const maxBodyBytes = 1 << 20

// BookmarkHandler keeps posted bookmarks in memory.
type BookmarkHandler struct {
	mu    sync.RWMutex
	items []json.RawMessage
	now   func() time.Time
}

// NewBookmarkHandler returns an empty handler.
func NewBookmarkHandler() *BookmarkHandler {
	return &BookmarkHandler{now: time.Now}
}

// Create stores a bookmark.
//
// Endpoint:
//
//	POST /api/bookmarks
//
// The body is a bookmark record; url and category are required. The stored record
// is returned with 201 and the generated "id" and "createdAt" fields.
func (h *BookmarkHandler) Create(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unable to read request body"})
		return
	}
	var rec bookmark.Record
	if err = json.Unmarshal(body, &rec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(rec.URL) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}
	if err = bookmark.Validate(rec.Category); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "category is required"})
		return
	}

	stored, err := sjson.SetBytes(body, "id", "bm_"+uuid.NewString())
	if err == nil {
		stored, err = sjson.SetBytes(stored, "createdAt", h.now().UTC().Format(bookmark.TimestampLayout))
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unable to store bookmark"})
		return
	}

	h.mu.Lock()
	h.items = append(h.items, json.RawMessage(stored))
	h.mu.Unlock()

	log.WithField("request_id", logging.GetGinRequestID(c)).
		WithField("category", rec.Category).
		Infof("bookmark stored: %s", rec.URL)
	c.Data(http.StatusCreated, "application/json; charset=utf-8", stored)
}

// List returns the stored bookmarks, newest first.
//
// Endpoint:
//
//	GET /api/bookmarks[?category=<name>]
func (h *BookmarkHandler) List(c *gin.Context) {
	category := strings.TrimSpace(c.Query("category"))

	h.mu.RLock()
	out := make([]json.RawMessage, 0, len(h.items))
	for i := len(h.items) - 1; i >= 0; i-- {
		item := h.items[i]
		if category != "" && gjson.GetBytes(item, "category").String() != category {
			continue
		}
		out = append(out, item)
	}
	h.mu.RUnlock()

	c.JSON(http.StatusOK, gin.H{"bookmarks": out, "count": len(out)})
}

// Health reports liveness.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
