package middleware

import (
	"errors"
	"net/http"

	"user_accounts/internal/logging"
	"user_accounts/internal/model"
	"user_accounts/internal/response"
	"user_accounts/internal/service"
	"user_accounts/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const AuthCallerKey = "authCaller"

// TokenAuthMiddleware resolves the bearer token into a *model.Caller stored
// under AuthCallerKey. A missing or invalid token leaves no caller; routes
// that require one add ScopeMiddleware.
func TokenAuthMiddleware(tokens service.TokenService, logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Next()
			return
		}

		plainText, err := utils.StripBearerScheme(authHeader)
		if err != nil {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		caller, err := tokens.Authenticate(ctx, plainText)
		switch {
		case err == nil:
		case errors.Is(err, service.ErrUnauthorized):
			c.Next()
			return
		case errors.Is(err, service.ErrUnavailable):
			logging.FromContext(ctx, &logger).Error().Err(err).Msg("token lookup unavailable")
			response.Abort(c, http.StatusServiceUnavailable, "Service temporarily unavailable")
			return
		default:
			logging.FromContext(ctx, &logger).Error().Err(err).Msg("token lookup failed")
			response.Abort(c, http.StatusInternalServerError, "Something went wrong")
			return
		}

		// Set caller information in context
		c.Set(AuthCallerKey, caller)
		zerolog.Ctx(ctx).UpdateContext(func(zc zerolog.Context) zerolog.Context {
			return zc.Int64("user_id", caller.User.ID)
		})

		c.Next()
	}
}

// CallerFrom returns the caller resolved by TokenAuthMiddleware
func CallerFrom(c *gin.Context) (*model.Caller, bool) {
	val, exists := c.Get(AuthCallerKey)
	if !exists {
		return nil, false
	}
	caller, ok := val.(*model.Caller)
	if !ok || caller == nil {
		return nil, false
	}
	return caller, true
}
