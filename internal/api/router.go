package api

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/rs/xid"

	"github.com/miradorstack/workload-classifier/internal/config"
	"github.com/miradorstack/workload-classifier/internal/metrics"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// NewRouter registers the classifier routes and middleware on a new engine.
func NewRouter(cfg config.ServerConfig, logger *slog.Logger, h *Handlers) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}
	r := gin.New()
	r.Use(
		withRequestID(),
		accessLog(logger),
		gin.CustomRecoveryWithWriter(io.Discard, recoverPanic(logger)),
		cors.New(corsConfig(cfg.AllowedOrigins)),
	)

	r.GET("/", h.Root)
	r.GET("/health", h.Health)
	r.POST("/predict", h.Predict)
	r.GET("/model_info", h.ModelInfo)
	r.POST("/reload_model", h.ReloadModel)

	if cfg.Pprof {
		pprof.Register(r)
	}
	return r
}

func corsConfig(origins []string) cors.Config {
	conf := cors.Config{
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type", requestIDHeader},
		MaxAge:       12 * time.Hour,
	}
	allowAll := len(origins) == 0
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
	}
	if allowAll {
		conf.AllowAllOrigins = true
	} else {
		conf.AllowOrigins = origins
	}
	return conf
}

func withRequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = xid.New().String()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func requestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

func accessLog(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		elapsed := time.Since(start)
		code := c.Writer.Status()
		metrics.ObserveHTTPRequest(c.Request.Method, route, code, elapsed)

		level := slog.LevelInfo
		if code >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.LogAttrs(c.Request.Context(), level, "http request",
			slog.String("method", c.Request.Method),
			slog.String("route", route),
			slog.Int("status", code),
			slog.Duration("latency", elapsed),
			slog.String("request_id", requestID(c)))
	}
}

func recoverPanic(logger *slog.Logger) gin.RecoveryFunc {
	return func(c *gin.Context, recovered any) {
		logger.Error("panic serving request",
			slog.String("route", c.FullPath()),
			slog.String("request_id", requestID(c)),
			slog.Any("panic", recovered))
		abortWithDetail(c, http.StatusInternalServerError, "Internal server error")
	}
}
