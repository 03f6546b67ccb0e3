package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"
)

// RequestLogger writes one line per request through google/logger.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Infof("%s %s %d %s tenant=%s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start), tenantOf(c))
	}
}

// NewRouter wires the handler into a gin engine. metrics may be nil.
func NewRouter(h *HTTPHandler, metrics http.Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger())

	// Register public routes (before middleware)
	h.RegisterPublicRoutes(r)
	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}

	// Group routes that require tenant identification and apply middleware
	tenantRoutes := r.Group("/")
	tenantRoutes.Use(h.TenantMiddleware())
	h.RegisterTenantRoutes(tenantRoutes)
	return r
}
