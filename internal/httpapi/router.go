package httpapi

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

type RouterConfig struct {
	Handler     *Handler
	Logger      *logrus.Entry
	ServiceName string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(cfg.ServiceName))
	if cfg.Logger != nil {
		r.Use(RequestLogger(cfg.Logger))
	}

	r.GET("/healthz", cfg.Handler.Health)

	api := r.Group("/api")
	{
		api.GET("/items", cfg.Handler.ListItems)
		api.POST("/items", cfg.Handler.CreateItem)
		api.GET("/items/:id", cfg.Handler.GetItem)
		api.POST("/items/:id/rename", cfg.Handler.RenameItem)
		api.POST("/items/:id/check-in", cfg.Handler.CheckIn)
		api.POST("/items/:id/remove", cfg.Handler.Remove)
		api.POST("/items/:id/deactivate", cfg.Handler.Deactivate)
	}

	return r
}

// RequestLogger logs every request once it has been served. Errors attached to
// the context with c.Error are logged at error level.
func RequestLogger(logger *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logger.WithContext(c.Request.Context()).WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		})
		if len(c.Errors) > 0 {
			entry.WithError(c.Errors.Last()).Error("request failed")
			return
		}
		entry.Info("request served")
	}
}
