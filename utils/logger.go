package utils

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"dbgateway/pkg/logger"
	"dbgateway/services/dberrors"

	"github.com/gin-gonic/gin"
)

// LoggerMiddleware logs every request with method, path, status and duration.
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)
		status := c.Writer.Status()

		// Log based on status code level
		if status >= 500 {
			logger.Errorf("HTTP %s %s - Status: %d, Duration: %v, IP: %s",
				c.Request.Method, c.Request.URL.Path, status, elapsed, c.ClientIP())
		} else if status >= 400 {
			logger.Warnf("HTTP %s %s - Status: %d, Duration: %v, IP: %s",
				c.Request.Method, c.Request.URL.Path, status, elapsed, c.ClientIP())
		} else {
			logger.Infof("HTTP %s %s - Status: %d, Duration: %v, IP: %s",
				c.Request.Method, c.Request.URL.Path, status, elapsed, c.ClientIP())
		}
	}
}

// userIDKey is the context key holding the authenticated user id.
const userIDKey = "gateway_user_id"

// UserIDMiddleware extracts the authenticated user id from the X-User-ID
// header placed by the upstream auth proxy. Authentication itself happens
// outside this service.
func UserIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("X-User-ID")
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil || id == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing or invalid X-User-ID header",
			})
			return
		}
		c.Set(userIDKey, uint(id))
		c.Next()
	}
}

// UserID returns the authenticated user id set by UserIDMiddleware.
func UserID(c *gin.Context) uint {
	return c.GetUint(userIDKey)
}

// JSONResponse sends a JSON response with the specified HTTP status code.
func JSONResponse(c *gin.Context, status int, data interface{}) {
	c.JSON(status, data)
}

// ErrorResponse logs and sends an error response. Gateway errors map to
// their taxonomy status code and stable kind tag; anything else becomes a
// plain 400.
func ErrorResponse(c *gin.Context, err error) {
	var gwErr *dberrors.GatewayError
	if errors.As(err, &gwErr) {
		if gwErr.Pattern != "" {
			logger.Errorf("API Error (%s, rule=%s): %v", gwErr.KindName(), gwErr.Pattern, err)
		} else {
			logger.Errorf("API Error (%s): %v", gwErr.KindName(), err)
		}
		c.JSON(gwErr.HTTPStatus(), gin.H{
			"error":    gwErr.KindName(),
			"category": string(gwErr.Category),
			"message":  gwErr.Message,
		})
		return
	}
	logger.Errorf("API Error: %v", err)
	c.JSON(http.StatusBadRequest, gin.H{
		"error": err.Error(),
	})
}
