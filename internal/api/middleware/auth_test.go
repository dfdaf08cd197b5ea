package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/dieta_server/internal/pkg/jwt"
	"github.com/qs3c/dieta_server/internal/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testJWTSecret = "test-secret-key-for-middleware"

func parseError(t *testing.T, w *httptest.ResponseRecorder) response.ErrorBody {
	var body response.ErrorBody
	err := json.Unmarshal(w.Body.Bytes(), &body)
	require.NoError(t, err)
	return body
}

func newAuthRouter() *gin.Engine {
	router := gin.New()
	router.Use(ServiceAuth(testJWTSecret))
	router.POST("/generate", func(c *gin.Context) {
		caller, ok := GetCaller(c)
		c.JSON(http.StatusOK, gin.H{"caller": caller, "ok": ok})
	})
	return router
}

func doAuth(router *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/generate", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestServiceAuth_Success(t *testing.T) {
	token, err := jwt.GenerateToken("frontend", testJWTSecret, 24)
	require.NoError(t, err)

	w := doAuth(newAuthRouter(), "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)

	var result map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "frontend", result["caller"])
	assert.Equal(t, true, result["ok"])
}

func TestServiceAuth_Rejects(t *testing.T) {
	wrongSecret, err := jwt.GenerateToken("frontend", "different-secret", 24)
	require.NoError(t, err)
	expired, err := jwt.GenerateToken("frontend", testJWTSecret, -1)
	require.NoError(t, err)

	otherScope := gojwt.NewWithClaims(gojwt.SigningMethodHS256, jwt.Claims{
		Scope: "read",
		RegisteredClaims: gojwt.RegisteredClaims{
			Subject:   "frontend",
			ExpiresAt: gojwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	otherScopeToken, err := otherScope.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"no bearer prefix", "some-token-without-bearer"},
		{"invalid token", "Bearer invalid-token"},
		{"wrong secret", "Bearer " + wrongSecret},
		{"expired", "Bearer " + expired},
		{"wrong scope", "Bearer " + otherScopeToken},
	}

	router := newAuthRouter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doAuth(router, tt.header)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.NotEmpty(t, parseError(t, w).Error)
		})
	}
}

func TestServiceAuth_EmptySecret(t *testing.T) {
	// 空密钥签出的令牌不能通过
	token, err := jwt.GenerateToken("anyone", "", 1)
	require.NoError(t, err)

	router := gin.New()
	router.Use(ServiceAuth(""))
	router.POST("/generate", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := doAuth(router, "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, parseError(t, w).Error, "not configured")
}

func TestGetCaller_NotSet(t *testing.T) {
	router := gin.New()
	router.GET("/test", func(c *gin.Context) {
		caller, ok := GetCaller(c)
		assert.False(t, ok)
		assert.Empty(t, caller)

		c.Set(CallerKey, 42)
		_, ok = GetCaller(c)
		assert.False(t, ok)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
