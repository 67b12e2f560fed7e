package httpx

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type HTTPError struct {
	Error string `json:"error"`
}

func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader("X-Request-ID")
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set("rid", rid)
		c.Writer.Header().Set("X-Request-ID", rid)
		c.Next()
	}
}

func Logger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		rid, _ := c.Get("rid")
		log.Info("http",
			zap.Any("rid", rid),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("dur", time.Since(start)))
	}
}

// Recovery turns a handler panic into a 500 with the usual error body.
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		rid, _ := c.Get("rid")
		log.Error("panic", zap.Any("rid", rid), zap.Any("panic", recovered))
		c.AbortWithStatusJSON(http.StatusInternalServerError, HTTPError{Error: "internal error"})
	})
}

// Status maps an error to a status code through the first matching class.
type Status struct {
	Code int
	Errs []error
}

// StatusOf returns the code of the first class err belongs to, or 500.
func StatusOf(err error, classes ...Status) int {
	for _, cl := range classes {
		for _, target := range cl.Errs {
			if errors.Is(err, target) {
				return cl.Code
			}
		}
	}
	return http.StatusInternalServerError
}
