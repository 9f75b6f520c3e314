package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	token := SignToken("secret", "507f1f77bcf86cd799439011")

	userID, ok := VerifyToken("secret", token)
	require.True(t, ok)
	assert.Equal(t, "507f1f77bcf86cd799439011", userID)
}

func TestVerifyTokenRejectsTampering(t *testing.T) {
	token := SignToken("secret", "507f1f77bcf86cd799439011")

	cases := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "no signature", token: "507f1f77bcf86cd799439011"},
		{name: "swapped user", token: "ffffffffffffffffffffffff." + token[25:]},
		{name: "truncated signature", token: token[:len(token)-2]},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, ok := VerifyToken("secret", tc.token)
			assert.False(t, ok)
		})
	}

	_, ok := VerifyToken("other-secret", token)
	assert.False(t, ok, "token signed with a different secret must fail")
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", Middleware("secret"), func(c *gin.Context) {
		c.String(http.StatusOK, UserID(c))
	})

	// Bearer header.
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+SignToken("secret", "u1"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1", w.Body.String())

	// Query token, the WebSocket path.
	req = httptest.NewRequest(http.MethodGet, "/protected?token="+SignToken("secret", "u2"), nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u2", w.Body.String())

	// Missing token.
	req = httptest.NewRequest(http.MethodGet, "/protected", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
