package httptransport

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/static"
	"github.com/gin-gonic/gin"

	"caption-server-go/internal/platform/config"
	"caption-server-go/internal/platform/logging"
	"caption-server-go/internal/platform/observability"
)

// Options configures the HTTP router builder.
type Options struct {
	Config *config.Config
	Logger *logging.Logger
}

// Router bundles together the gin engine and the root route group.
type Router struct {
	Engine *gin.Engine
	API    *gin.RouterGroup
}

// Build constructs a gin engine with recovery, request IDs, logging, metrics and CORS,
// plus the health, metrics and docs endpoints.
func Build(opts Options) (*Router, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("http router requires config")
	}
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	if gin.Mode() != gin.TestMode {
		if cfg.Log.Level == "debug" {
			gin.SetMode(gin.DebugMode)
		} else {
			gin.SetMode(gin.ReleaseMode)
		}
	}

	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	engine.Use(recoveryMiddleware(logger))
	engine.Use(requestIDMiddleware())
	engine.Use(loggingMiddleware(logger))
	engine.Use(observabilityMiddleware())
	engine.Use(cors.New(corsConfig(cfg.HTTP.CORS)))

	if err := engine.SetTrustedProxies(nil); err != nil {
		return nil, err
	}

	if dir := cfg.Web.StaticDir; dir != "" {
		engine.Use(static.Serve("/", static.LocalFile(dir, false)))
		logger.InfoTag("HTTP", "静态目录已挂载: %s", dir)
	}

	engine.NoRoute(func(c *gin.Context) {
		RespondDetail(c, http.StatusNotFound, "Not Found")
	})
	engine.NoMethod(func(c *gin.Context) {
		RespondDetail(c, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	engine.GET("/health", handleHealth)
	if cfg.Observability.Enabled && cfg.Observability.Metrics {
		engine.GET("/metrics", gin.WrapH(observability.Handler()))
	}
	if cfg.Web.Docs {
		registerDocs(engine, logger)
	}

	return &Router{
		Engine: engine,
		API:    engine.Group(""),
	}, nil
}

func corsConfig(c config.CORSConfig) cors.Config {
	out := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost},
		AllowHeaders:     []string{"*"},
		ExposeHeaders:    []string{"Content-Length", RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           c.MaxAge,
	}
	for _, origin := range c.AllowOrigins {
		if origin == "*" {
			out.AllowAllOrigins = true
			return out
		}
	}
	out.AllowOrigins = c.AllowOrigins
	return out
}

// handleHealth 健康检查
// @Summary 健康检查
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func loggingMiddleware(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.InfoTag(
			"HTTP",
			"%s %s -> %d (%s) request_id=%s",
			c.Request.Method,
			c.Request.URL.Path,
			c.Writer.Status(),
			time.Since(start),
			c.GetString(requestIDKey),
		)
	}
}

func observabilityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqCtx, spanEnd := observability.StartSpan(c.Request.Context(), "http.server", c.Request.Method+" "+c.Request.URL.Path)
		c.Request = c.Request.WithContext(reqCtx)

		start := time.Now()
		c.Next()

		var spanErr error
		if len(c.Errors) > 0 {
			spanErr = c.Errors.Last().Err
		} else if status := c.Writer.Status(); status >= http.StatusInternalServerError {
			spanErr = fmt.Errorf("status %d", status)
		}
		spanEnd(spanErr)

		observability.ObserveHTTP(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}

func recoveryMiddleware(logger *logging.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered any) {
		logger.ErrorTag("HTTP", "请求处理 panic: %s %s request_id=%s err=%v",
			c.Request.Method, c.Request.URL.Path, c.GetString(requestIDKey), recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, DetailResponse{Detail: "Internal server error"})
	})
}
