package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRequestIDSetsHeaderAndContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) {
		rid, ok := c.Get(RequestIDKey)
		assert.True(t, ok)
		assert.NotEmpty(t, rid)
		c.Status(http.StatusOK)
	})

	req, _ := http.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestRecoveryTurnsPanicInto500(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), Recovery(true))
	r.GET("/boom", func(c *gin.Context) {
		panic("kaboom")
	})

	req, _ := http.NewRequest("GET", "/boom", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal server error")
}

func TestSanitizeHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("Authorization", "Bearer secret")
	h.Set("X-Api-Key", "key")
	h.Set("User-Agent", "test\nagent")

	out := SanitizeHeaders(h)
	assert.Equal(t, []string{"<redacted>"}, out["Authorization"])
	assert.Equal(t, []string{"<redacted>"}, out["X-Api-Key"])
	assert.Equal(t, []string{"test agent"}, out["User-Agent"])

	assert.Nil(t, SanitizeHeaders(nil))
}

func TestSanitizePath(t *testing.T) {
	assert.Equal(t, "/api/v1/intents", SanitizePath("/api/v1/intents?secret=1"))
	assert.Equal(t, "/a b", SanitizePath("/a\nb"))
}
