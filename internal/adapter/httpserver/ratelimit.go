package httpserver

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

const floodLimiterExpiry = 5 * time.Minute

// newRateLimiter is a per-address token bucket in front of the item routes.
// It absorbs bursts before the sliding-window quotas consult the shared store.
func newRateLimiter(ratePerSecond float64, burst int) echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(
		middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(ratePerSecond),
			Burst:     burst,
			ExpiresIn: floodLimiterExpiry,
		},
	)
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		Store: store,
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			slog.WarnContext(c.Request().Context(), "Flood limit exceeded", "path", c.Request().URL.Path)
			c.Response().Header().Set(echo.HeaderRetryAfter, "1")
			if err := c.String(http.StatusTooManyRequests, rateLimitedText); err != nil {
				return fmt.Errorf("failed to write flood limit response: %w", err)
			}
			return nil
		},
	})
}
