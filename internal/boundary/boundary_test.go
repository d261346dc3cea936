package boundary

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuardRecoversPanic(t *testing.T) {
	err := Guard(func() error { panic("kaboom") })
	var ure *UncaughtRuntimeError
	require.ErrorAs(t, err, &ure)
	assert.Equal(t, "kaboom", ure.Message())
	assert.NotEmpty(t, ure.Stack)
}

func TestGuardPassesErrorsThrough(t *testing.T) {
	sentinel := errors.New("plain")
	assert.Same(t, sentinel, Guard(func() error { return sentinel }))
	assert.NoError(t, Guard(func() error { return nil }))
}

func TestGuardUnwrapsPanickedError(t *testing.T) {
	sentinel := errors.New("inner")
	err := Guard(func() error { panic(sentinel) })
	assert.ErrorIs(t, err, sentinel)
}

func TestMiddlewareRendersFallback(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	var caught *UncaughtRuntimeError
	pages := r.Group("/", Middleware("page", func(c *gin.Context, err *UncaughtRuntimeError) {
		caught = err
		c.String(http.StatusInternalServerError, "fallback: "+err.Message())
	}))
	pages.GET("/boom", func(c *gin.Context) { panic("render failed") })
	pages.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "fine") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "fallback: render failed", w.Body.String())
	require.NotNil(t, caught)

	// other requests are unaffected
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMiddlewareJSONFallback(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("/api", Middleware("api", JSONFallback))
	api.GET("/x", func(c *gin.Context) { panic(errors.New("nil map")) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/x", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, w.Body.String())
}

func TestGoSurvivesPanic(t *testing.T) {
	done := make(chan struct{})
	Go("panicky", func() error {
		defer close(done)
		panic("background")
	})
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("background task never ran")
	}
}
