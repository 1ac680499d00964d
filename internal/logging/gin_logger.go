// Package logging configures logrus for LinkMark and provides Gin middleware
// for the local backend: per-request logging with request IDs and panic recovery.
package logging

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/linkmark/internal/util"
	log "github.com/sirupsen/logrus"
)

// trackedPrefix marks paths that get a request ID. Health checks stay anonymous.
const trackedPrefix = "/api/"

const skipGinLogKey = "__gin_skip_request_logging__"

// GinLogrusLogger logs one line per request:
//
//	[2026-03-02 10:14:10] [1f0c9a2e] [info ] 201 |      1ms |       127.0.0.1 | POST    "/api/bookmarks"
//
// API requests reuse the caller's X-Request-ID when present so client and backend
// log lines correlate; the ID is echoed in the response header.
func GinLogrusLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := util.MaskSensitiveQuery(c.Request.URL.RawQuery)

		var requestID string
		if strings.HasPrefix(path, trackedPrefix) {
			requestID = strings.TrimSpace(c.GetHeader(RequestIDHeader))
			if requestID == "" {
				requestID = GenerateRequestID()
			}
			SetGinRequestID(c, requestID)
			c.Request = c.Request.WithContext(WithRequestID(c.Request.Context(), requestID))
			c.Header(RequestIDHeader, requestID)
		}

		c.Next()

		if shouldSkipGinRequestLogging(c) {
			return
		}
		if raw != "" {
			path = path + "?" + raw
		}

		latency := time.Since(start).Truncate(time.Millisecond)
		statusCode := c.Writer.Status()
		logLine := fmt.Sprintf("%3d | %8v | %15s | %-7s \"%s\"", statusCode, latency, c.ClientIP(), c.Request.Method, path)
		if errorMessage := c.Errors.ByType(gin.ErrorTypePrivate).String(); errorMessage != "" {
			logLine = logLine + " | " + errorMessage
		}

		entry := log.WithField("request_id", requestID)
		switch {
		case statusCode >= http.StatusInternalServerError:
			entry.Error(logLine)
		case statusCode >= http.StatusBadRequest:
			entry.Warn(logLine)
		default:
			entry.Info(logLine)
		}
	}
}

// GinLogrusRecovery recovers handler panics, logs them with the stack and
// answers 500. http.ErrAbortHandler is re-raised for net/http to handle.
func GinLogrusRecovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		if err, ok := recovered.(error); ok && errors.Is(err, http.ErrAbortHandler) {
			panic(http.ErrAbortHandler)
		}

		log.WithFields(log.Fields{
			"panic": recovered,
			"stack": string(debug.Stack()),
			"path":  c.Request.URL.Path,
		}).Error("recovered from panic")

		c.AbortWithStatus(http.StatusInternalServerError)
	})
}

// SkipGinRequestLogging suppresses the request line for c.
func SkipGinRequestLogging(c *gin.Context) {
	if c != nil {
		c.Set(skipGinLogKey, true)
	}
}

func shouldSkipGinRequestLogging(c *gin.Context) bool {
	return c != nil && c.GetBool(skipGinLogKey)
}
