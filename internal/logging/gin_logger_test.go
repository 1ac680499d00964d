package logging

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestGinLogrusRecoveryRepanicsErrAbortHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	engine := gin.New()
	engine.Use(GinLogrusRecovery())
	engine.GET("/abort", func(c *gin.Context) {
		panic(http.ErrAbortHandler)
	})

	defer func() {
		err, ok := recover().(error)
		if !ok || !errors.Is(err, http.ErrAbortHandler) {
			t.Fatalf("expected ErrAbortHandler panic, got %v", err)
		}
	}()

	engine.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/abort", nil))
}

func TestGinLogrusRecoveryHandlesRegularPanic(t *testing.T) {
	gin.SetMode(gin.TestMode)

	engine := gin.New()
	engine.Use(GinLogrusRecovery())
	engine.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})

	recorder := httptest.NewRecorder()
	engine.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/panic", nil))
	if recorder.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", recorder.Code)
	}
}

func TestGinLogrusLoggerPropagatesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var seen string
	engine := gin.New()
	engine.Use(GinLogrusLogger())
	engine.POST("/api/bookmarks", func(c *gin.Context) {
		seen = GetRequestID(c.Request.Context())
		c.Status(http.StatusCreated)
	})
	engine.GET("/healthz", func(c *gin.Context) {
		seen = GetGinRequestID(c)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/bookmarks", nil)
	req.Header.Set(RequestIDHeader, "client-supplied-id")
	recorder := httptest.NewRecorder()
	engine.ServeHTTP(recorder, req)
	if seen != "client-supplied-id" {
		t.Fatalf("request id in context = %q", seen)
	}
	if got := recorder.Header().Get(RequestIDHeader); got != "client-supplied-id" {
		t.Fatalf("echoed request id = %q", got)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/bookmarks", nil)
	recorder = httptest.NewRecorder()
	engine.ServeHTTP(recorder, req)
	if recorder.Header().Get(RequestIDHeader) == "" || seen == "" {
		t.Fatal("expected generated request id")
	}

	recorder = httptest.NewRecorder()
	engine.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if seen != "" {
		t.Fatalf("health check got request id %q", seen)
	}
}

func TestShortRequestID(t *testing.T) {
	if got := ShortRequestID("1f0c9a2e-8b7d-4c3e-9f10-aa55bb66cc77"); got != "1f0c9a2e" {
		t.Fatalf("ShortRequestID() = %q", got)
	}
	if got := ShortRequestID("abc"); got != "abc" {
		t.Fatalf("ShortRequestID() = %q", got)
	}
}
