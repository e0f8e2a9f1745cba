package app

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func basicAuth(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}

func metricsRouter(enabled bool) *gin.Engine {
	router := gin.New()
	router.GET("/metrics", metricsAuthMiddleware(enabled, "prometheus", "secret123"), func(c *gin.Context) {
		c.String(http.StatusOK, "metrics")
	})
	return router
}

func TestMetricsAuthMiddleware_Disabled(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	metricsRouter(false).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "metrics", w.Body.String())
}

func TestMetricsAuthMiddleware_ValidCredentials(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Authorization", basicAuth("prometheus", "secret123"))
	w := httptest.NewRecorder()
	metricsRouter(true).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "metrics", w.Body.String())
}

func TestMetricsAuthMiddleware_Rejected(t *testing.T) {
	router := metricsRouter(true)

	tests := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"wrong username", basicAuth("wronguser", "secret123")},
		{"wrong password", basicAuth("prometheus", "wrongpass")},
		{"both wrong", basicAuth("wronguser", "wrongpass")},
		{"only basic", "Basic"},
		{"invalid base64", "Basic notbase64!!!"},
		{"bearer token", "Bearer sometoken"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, metricsRealm, w.Header().Get("WWW-Authenticate"))
		})
	}
}

func TestCredentialsMatch(t *testing.T) {
	assert.True(t, credentialsMatch("a", "b", "a", "b"))
	assert.False(t, credentialsMatch("a", "x", "a", "b"))
	assert.False(t, credentialsMatch("x", "b", "a", "b"))
	assert.False(t, credentialsMatch("", "", "a", "b"))
}
