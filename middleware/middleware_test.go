package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"quizduel/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestAuthMiddleware(t *testing.T) {
	tokens := services.NewJWTManager("middleware-secret", time.Hour)
	valid, err := tokens.Generate(services.Identity{UserID: 42, DisplayName: "Dana"}, time.Now())
	require.NoError(t, err)

	router := gin.New()
	router.GET("/me", AuthMiddleware(tokens), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": c.MustGet("user_id"), "name": c.GetString("display_name")})
	})

	testCases := []struct {
		name         string
		header       string
		expectedCode int
		expectedBody string
	}{
		{name: "missing header", expectedCode: http.StatusUnauthorized, expectedBody: "Authorization header required"},
		{name: "wrong scheme", header: "Basic abc", expectedCode: http.StatusUnauthorized, expectedBody: "Authorization header required"},
		{name: "invalid token", header: "Bearer nope", expectedCode: http.StatusUnauthorized, expectedBody: "Invalid token"},
		{name: "valid token", header: "Bearer " + valid, expectedCode: http.StatusOK, expectedBody: `{"id":42,"name":"Dana"}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			res := httptest.NewRecorder()
			router.ServeHTTP(res, req)

			assert.Equal(t, tc.expectedCode, res.Code)
			assert.Contains(t, res.Body.String(), tc.expectedBody)
		})
	}
}

func TestIPRateLimiter(t *testing.T) {
	limiter := NewIPRateLimiter(1, 2)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	router := gin.New()
	router.Use(limiter.Middleware())
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	hit := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = ip + ":1234"
		res := httptest.NewRecorder()
		router.ServeHTTP(res, req)
		return res.Code
	}

	assert.Equal(t, http.StatusNoContent, hit("10.0.0.1"))
	assert.Equal(t, http.StatusNoContent, hit("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, hit("10.0.0.1"))
	assert.Equal(t, http.StatusNoContent, hit("10.0.0.2"), "buckets are per IP")

	now = now.Add(time.Second)
	assert.Equal(t, http.StatusNoContent, hit("10.0.0.1"), "bucket refills")

	now = now.Add(visitorIdle + time.Second)
	hit("10.0.0.3")
	limiter.mu.Lock()
	assert.Len(t, limiter.visitors, 1, "idle visitors are evicted")
	limiter.mu.Unlock()
}

func TestCORS(t *testing.T) {
	router := gin.New()
	router.Use(CORS([]string{"https://app.example.com"}))
	router.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	assert.Equal(t, "https://app.example.com", res.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	res = httptest.NewRecorder()
	router.ServeHTTP(res, req)
	assert.Equal(t, http.StatusForbidden, res.Code)
}
