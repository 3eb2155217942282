package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

// echoLength reads the whole body and reports its size, or 400 when the
// reader gives up.
func echoLength(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.String(http.StatusBadRequest, "read failed")
		return
	}
	c.String(http.StatusOK, "%d", len(body))
}

func TestBodyLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name          string
		limit         int64
		body          string
		contentLength int64
		status        int
		contains      string
	}{
		{"within limit", 64, `{"userId":"u1"}`, 15, http.StatusOK, "15"},
		{"declared length over limit", 16, strings.Repeat("x", 40), 40, http.StatusRequestEntityTooLarge, "ERR_PAYLOAD_TOO_LARGE"},
		{"chunked body over limit", 16, strings.Repeat("x", 40), -1, http.StatusBadRequest, "read failed"},
		{"limit disabled", 0, strings.Repeat("x", 40), 40, http.StatusOK, "40"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(BodyLimit(tt.limit))
			r.POST("/webhooks/stripe", echoLength)

			req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(tt.body))
			req.ContentLength = tt.contentLength

			w := serve(r, req)
			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.contains)
		})
	}

	t.Run("bodiless GET passes", func(t *testing.T) {
		r := gin.New()
		r.Use(BodyLimit(1))
		r.GET("/api/v1/billing/balance", func(c *gin.Context) { c.Status(http.StatusOK) })

		w := serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/billing/balance", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
