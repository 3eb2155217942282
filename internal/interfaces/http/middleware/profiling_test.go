package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestProfilingWithConfig(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("runs handlers under labels", func(t *testing.T) {
		called := false
		router := gin.New()
		router.Use(ProfilingWithConfig(DefaultProfilingConfig()))
		router.POST("/internal/v1/usage", func(c *gin.Context) {
			called = c.Request.Context() != nil
			c.Status(http.StatusAccepted)
		})

		w := serve(router, httptest.NewRequest(http.MethodPost, "/internal/v1/usage", nil))
		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.True(t, called)
	})

	t.Run("skips health checks", func(t *testing.T) {
		router := gin.New()
		router.Use(ProfilingWithConfig(DefaultProfilingConfig()))
		router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

		assert.Equal(t, http.StatusOK, serve(router, httptest.NewRequest(http.MethodGet, "/health", nil)).Code)
	})

	t.Run("disabled is a pass-through", func(t *testing.T) {
		router := gin.New()
		router.Use(ProfilingWithConfig(ProfilingConfig{}))
		router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

		assert.Equal(t, http.StatusOK, serve(router, httptest.NewRequest(http.MethodGet, "/test", nil)).Code)
	})
}
