package middleware

import (
	"slices"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORS allows the configured origins. "*" allows any origin.
func CORS(origins []string) gin.HandlerFunc {
	return cors.New(corsConfig(origins))
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	cfg.AllowHeaders = []string{
		"Origin",
		"Content-Type",
		"Accept",
		"Authorization",
		RequestIDHeader,
	}
	cfg.ExposeHeaders = []string{RequestIDHeader}
	return cfg
}
