package httpserver

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pscheid92/rulehub/internal/adapter/metrics"
	"github.com/pscheid92/rulehub/internal/domain"
)

func (s *Server) registerRoutes() {
	s.echo.Use(correlationMiddleware)
	s.echo.Use(s.setupRequestLoggerMiddleware())
	s.echo.Use(middleware.Recover())
	if s.httpMetrics != nil {
		s.echo.Use(s.httpMetrics.Middleware())
	}
	s.echo.Use(ErrorHandlingMiddleware(s.errorObserver()))
	s.echo.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            63072000, // 2 years; only sent over HTTPS
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		ReferrerPolicy:        "no-referrer",
	}))

	s.registerHealthRoutes()
	if s.registry != nil {
		s.echo.GET("/metrics", echo.WrapHandler(metrics.Handler(s.registry)))
	}

	s.registerItemRoutes()
}

func (s *Server) registerItemRoutes() {
	items := s.echo.Group("/items", newRateLimiter(s.config.FloodRate, s.config.FloodBurst))
	general := s.quota(domain.CategoryGeneral)

	items.GET("", s.handleListItems, general)
	items.GET("/:id", s.handleGetItem, general)
	items.GET("/:id/stats", s.handleStats, general)
	items.GET("/:id/vote", s.handleCurrentVote, general)
	items.POST("/:id/vote", s.handleVote)
	items.POST("/:id/view", s.handleTrackView)
	items.POST("/:id/copy", s.handleTrackCopy)
}

func (s *Server) setupRequestLoggerMiddleware() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
			}
			slog.InfoContext(c.Request().Context(), "Request", attrs...)
			return nil
		},
	})
}

func (s *Server) errorObserver() ErrorObserver {
	if s.httpMetrics == nil {
		return nil
	}
	return s.httpMetrics
}
