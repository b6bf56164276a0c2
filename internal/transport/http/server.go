package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat/internal/auth"
	"github.com/vovakirdan/roomchat/internal/config"
	"github.com/vovakirdan/roomchat/internal/metrics"
	"github.com/vovakirdan/roomchat/internal/store"
)

// NewServer builds the document store HTTP server.
// m may be nil, in which case /metrics is not served.
func NewServer(
	st store.Store,
	authService *auth.Service,
	cfg *config.Config,
	m *metrics.Metrics,
	logger *zerolog.Logger,
) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger), m.Middleware())

	router.GET("/health", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})
	if m != nil {
		router.GET("/metrics", gin.WrapH(m.Handler()))
	}

	apiHandlers := NewAPIHandlers(authService, logger)
	router.POST("/api/token", apiHandlers.IssueToken)

	docHandlers := NewDocHandlers(st, m, logger)
	api := router.Group("/api", AuthMiddleware(authService, logger))
	{
		api.GET("/docs/*path", docHandlers.GetDocument)
		api.PUT("/docs/*path", docHandlers.SetDocument)
		api.GET("/collections/*path", docHandlers.QueryCollection)
		api.POST("/collections/*path", docHandlers.AddDocument)
	}

	wsHandler := NewWSHandler(st, cfg.WSRateLimit, m, logger)
	router.GET("/ws", AuthMiddleware(authService, logger), wsHandler.Handle)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
