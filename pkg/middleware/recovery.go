package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	apierrors "github.com/kart-io/paperqa/pkg/utils/errors"
)

// RecoveryConfig defines the config for Recovery middleware.
type RecoveryConfig struct {
	// EnableStackTrace controls whether the panic stack is logged.
	// Default: true
	EnableStackTrace bool
}

// DefaultRecoveryConfig is the default Recovery middleware config.
var DefaultRecoveryConfig = RecoveryConfig{
	EnableStackTrace: true,
}

// Recovery returns a middleware that recovers from panics and responds
// with a JSON error body instead of an empty reply.
func Recovery() gin.HandlerFunc {
	return RecoveryWithConfig(DefaultRecoveryConfig)
}

// RecoveryWithConfig returns a Recovery middleware with custom config.
func RecoveryWithConfig(config RecoveryConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				requestID := GetRequestID(c.Request.Context())

				fields := []interface{}{
					"panic", r,
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
				}
				if requestID != "" {
					fields = append(fields, "request_id", requestID)
				}
				if config.EnableStackTrace {
					fields = append(fields, "stack", string(debug.Stack()))
				}
				logger.Errorw("HTTP handler panic recovered", fields...)

				// 流式响应可能已经写出部分数据，此时无法再发 JSON
				if c.Writer.Written() {
					c.Abort()
					return
				}

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"code":       apierrors.ErrInternal.Code,
					"message":    apierrors.ErrInternal.MessageEN,
					"request_id": requestID,
				})
			}
		}()

		c.Next()
	}
}
