package http

import (
	"net/http"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func RegisterCacheRoutes(r *gin.Engine, handler *CacheHandler) {
	columns := r.Group("/columns")
	{
		columns.GET("", handler.ListColumns)
		columns.PUT("/:column/keys/:key", handler.Put)
		columns.GET("/:column/keys/:key", handler.Get)
		columns.DELETE("/:column", handler.DropColumn)
	}
}

// NewRouter monta las rutas de la caché, /health y /metrics.
// set son las métricas de la caché; también se exponen las del proceso.
func NewRouter(handler *CacheHandler, set *metrics.Set, log *zap.Logger) *gin.Engine {
	if log == nil {
		log = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))
	RegisterCacheRoutes(router, handler)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/metrics", func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.Status(http.StatusOK)
		if set != nil {
			set.WritePrometheus(c.Writer)
		}
		metrics.WritePrometheus(c.Writer, true)
	})

	return router
}

// requestLogger registra cada petición con zap.
func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}
