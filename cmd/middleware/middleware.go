package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/ginext"

	"tourbook/internal/dto"
)

// Authorizer validates the raw Authorization header of a privileged request.
type Authorizer interface {
	Authorize(header string) error
}

func LoggingMiddleware(log *zerolog.Logger) gin.HandlerFunc {
	return func(c *ginext.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		ev := log.Info()
		if status >= 500 {
			ev = log.Error()
		} else if status >= 400 {
			ev = log.Warn()
		}
		ev.Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("ip", c.ClientIP()).
			Msg("request handled")
	}
}

// AdminAuth lets a request through only with a valid session token or the
// admin Basic credentials.
func AdminAuth(auth Authorizer, log *zerolog.Logger) gin.HandlerFunc {
	return func(c *ginext.Context) {
		if err := auth.Authorize(c.GetHeader("Authorization")); err != nil {
			log.Warn().Err(err).Str("path", c.Request.URL.Path).Msg("privileged request rejected")
			dto.UnauthorizedError(c)
			return
		}
		c.Next()
	}
}
