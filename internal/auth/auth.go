// Package auth is the gate in front of every handler: it resolves a request
// to a verified user identity or fails the whole request. Credential
// issuance and account management live elsewhere.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const userKey = "user_id"

// SignToken mints a bearer token for userID: "<userID>.<hex hmac-sha256>".
func SignToken(secret, userID string) string {
	return userID + "." + sign(secret, userID)
}

// VerifyToken checks the token's signature and returns the user id it vouches
// for.
func VerifyToken(secret, token string) (string, bool) {
	userID, sig, ok := strings.Cut(token, ".")
	if !ok || userID == "" {
		return "", false
	}
	if !hmac.Equal([]byte(sig), []byte(sign(secret, userID))) {
		return "", false
	}
	return userID, true
}

// Middleware verifies the bearer token (Authorization header, or a token
// query parameter for WebSocket upgrades) and stores the user id on the
// context. Unauthenticated requests are aborted with 401.
func Middleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			token = c.Query("token")
		}
		userID, ok := VerifyToken(secret, token)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Set(userKey, userID)
		c.Next()
	}
}

// UserID returns the verified identity set by Middleware.
func UserID(c *gin.Context) string {
	return c.GetString(userKey)
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if strings.HasPrefix(header, prefix) {
		return strings.TrimPrefix(header, prefix)
	}
	return ""
}

func sign(secret, userID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(userID))
	return hex.EncodeToString(mac.Sum(nil))
}
