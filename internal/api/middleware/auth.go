// Package middleware holds gin middleware for the mock bookmark backend.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/linkmark/internal/util"
	log "github.com/sirupsen/logrus"
)

// BearerTokenKey is the gin context key holding the caller's token.
const BearerTokenKey = "bearerToken"

// RequireBearer rejects requests without an "Authorization: Bearer <token>" header.
// Any non-empty token is accepted.
func RequireBearer() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		scheme, token, ok := strings.Cut(header, " ")
		token = strings.TrimSpace(token)
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			log.WithField("status", http.StatusUnauthorized).Debugf("rejected request without bearer token (%s)", util.MaskAuthorizationHeader(header))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		c.Set(BearerTokenKey, token)
		c.Next()
	}
}
