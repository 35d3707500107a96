// README: Firebase bearer-token auth middleware for the role-specific apps.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/MetricCode/yetueats-orders/internal/infra"
)

const (
	ctxKeyUID   = "auth_uid"
	ctxKeyRole  = "auth_role"
	ctxKeyName  = "auth_name"
	ctxKeyPhone = "auth_phone"
)

// Auth verifies the Authorization bearer token and stashes the caller's
// identity on the gin context. With a nil verifier (local dev, tests) the
// identity is taken from X-Debug-* headers instead.
func Auth(verifier infra.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if verifier == nil {
			c.Set(ctxKeyUID, c.GetHeader("X-Debug-UID"))
			c.Set(ctxKeyRole, c.GetHeader("X-Debug-Role"))
			c.Set(ctxKeyName, c.GetHeader("X-Debug-Name"))
			c.Set(ctxKeyPhone, c.GetHeader("X-Debug-Phone"))
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "malformed authorization header"})
			return
		}

		token, err := verifier.VerifyIDToken(c.Request.Context(), raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(ctxKeyUID, token.UID)
		c.Set(ctxKeyRole, claimString(token.Claims, "role"))
		c.Set(ctxKeyName, claimString(token.Claims, "name"))
		c.Set(ctxKeyPhone, claimString(token.Claims, "phone_number"))
		c.Next()
	}
}

func claimString(claims map[string]interface{}, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}

// CallerUID returns the authenticated caller's uid, or "" when unauthenticated.
func CallerUID(c *gin.Context) string { return c.GetString(ctxKeyUID) }

// CallerRole returns the role claim attached to the caller's token.
func CallerRole(c *gin.Context) string { return c.GetString(ctxKeyRole) }

// CallerName returns the display-name claim.
func CallerName(c *gin.Context) string { return c.GetString(ctxKeyName) }

// CallerPhone returns the phone-number claim.
func CallerPhone(c *gin.Context) string { return c.GetString(ctxKeyPhone) }
