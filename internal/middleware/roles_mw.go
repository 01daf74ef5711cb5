package middleware

import (
	"net/http"

	"user_accounts/internal/model"
	"user_accounts/internal/response"

	"github.com/gin-gonic/gin"
)

// ScopeMiddleware creates a middleware requiring an authenticated caller
// whose token carries at least one of the scopes.
func ScopeMiddleware(allowedScopes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := CallerFrom(c)
		if !ok {
			response.Abort(c, http.StatusUnauthorized, "Token not found or invalid")
			return
		}

		isAllowed := false
		for _, scope := range allowedScopes {
			if caller.Can(scope) {
				isAllowed = true
				break
			}
		}

		if !isAllowed {
			response.Abort(c, http.StatusForbidden, "You do not have permission to access this resource")
			return
		}

		c.Next()
	}
}

// UsersScopeMiddleware guards the account endpoints
func UsersScopeMiddleware() gin.HandlerFunc {
	return ScopeMiddleware(model.ScopeUsers)
}
