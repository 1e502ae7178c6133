package httpserver

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/rulehub/internal/domain"
	"github.com/pscheid92/rulehub/internal/platform/correlation"
	apperrors "github.com/pscheid92/rulehub/internal/platform/errors"
)

const (
	headerLimit     = "X-RateLimit-Limit"
	headerRemaining = "X-RateLimit-Remaining"
	headerReset     = "X-RateLimit-Reset"
	rateLimitedText = "Too many requests. Please slow down and try again later."
	msgInvalidVote  = "Invalid vote type. Must be up, down, or null"
	msgItemNotFound = "Rule not found"
	msgUnavailable  = "Service temporarily unavailable. Please retry shortly."
)

// ErrorObserver counts rendered error responses.
type ErrorObserver interface {
	ObserveError(errorType string, status int)
}

func correlationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := correlation.Accept(c.Request().Header.Get(correlation.Header))
		c.Response().Header().Set(correlation.Header, id)

		ctx := correlation.WithID(c.Request().Context(), id)
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

// ErrorHandlingMiddleware renders errors returned by handlers as JSON.
// Domain errors are mapped onto structured errors first. observer may be nil.
func ErrorHandlingMiddleware(observer ErrorObserver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			var httpErr *echo.HTTPError
			if errors.As(err, &httpErr) {
				return err
			}

			structuredErr := toStructuredError(err)
			logError(c, structuredErr)
			if observer != nil {
				observer.ObserveError(string(structuredErr.Type), structuredErr.HTTPStatus())
			}

			if err := c.JSON(structuredErr.HTTPStatus(), structuredErr.ToResponse()); err != nil {
				return fmt.Errorf("failed to write error response: %w", err)
			}
			return nil
		}
	}
}

// toStructuredError maps domain errors onto client-facing messages.
func toStructuredError(err error) *apperrors.Error {
	var (
		rejected *domain.PatternRejectedError
		limited  *domain.RateLimitedError
	)

	switch {
	case errors.As(err, &rejected):
		return apperrors.RateLimitedError(rejected.Reason)
	case errors.As(err, &limited):
		return apperrors.RateLimitedError("rate limit exceeded").WithField("category", limited.Category)
	case errors.Is(err, domain.ErrInvalidVote):
		return apperrors.ValidationError(msgInvalidVote)
	case errors.Is(err, domain.ErrItemNotFound):
		return apperrors.NotFoundError(msgItemNotFound)
	case errors.Is(err, domain.ErrStoreUnavailable):
		return apperrors.UnavailableError(msgUnavailable, err)
	default:
		return apperrors.AsStructuredError(err)
	}
}

func logError(c echo.Context, err *apperrors.Error) {
	ctx := c.Request().Context()
	attrs := []any{
		"error_type", err.Type,
		"message", err.Message,
		"path", c.Request().URL.Path,
		"method", c.Request().Method,
		"status", err.HTTPStatus(),
	}

	for k, v := range err.Context {
		attrs = append(attrs, k, v)
	}

	switch err.Type {
	case apperrors.TypeValidation:
		slog.InfoContext(ctx, "Validation error", attrs...)
	case apperrors.TypeNotFound:
		slog.InfoContext(ctx, "Not found", attrs...)
	case apperrors.TypeRateLimited:
		slog.WarnContext(ctx, "Request rejected", attrs...)
	case apperrors.TypeUnavailable:
		if err.Cause != nil {
			attrs = append(attrs, "cause", err.Cause)
		}
		slog.ErrorContext(ctx, "Store unavailable", attrs...)
	default:
		if err.Cause != nil {
			attrs = append(attrs, "cause", err.Cause)
		}
		slog.ErrorContext(ctx, "Internal error", attrs...)
	}
}

// quota checks the category's sliding-window quota before the handler runs.
func (s *Server) quota(category domain.RateLimitCategory) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			decision, err := s.app.CheckQuota(c.Request().Context(), clientOf(c), category)
			if err != nil {
				return err
			}
			if !decision.Allowed {
				return s.rateLimited(c, category, decision)
			}
			s.setQuotaHeaders(c, decision)
			return next(c)
		}
	}
}

func (s *Server) setQuotaHeaders(c echo.Context, d domain.RateLimitDecision) {
	if d.Unchecked() {
		return
	}
	h := c.Response().Header()
	h.Set(headerLimit, strconv.Itoa(d.Limit))
	h.Set(headerRemaining, strconv.Itoa(d.Remaining))
	h.Set(headerReset, strconv.FormatInt(d.ResetAt.Unix(), 10))
}

// rateLimited writes the plain-text 429 for an exhausted quota.
func (s *Server) rateLimited(c echo.Context, category domain.RateLimitCategory, d domain.RateLimitDecision) error {
	s.setQuotaHeaders(c, d)
	c.Response().Header().Set(echo.HeaderRetryAfter, strconv.Itoa(retryAfterSeconds(d.ResetAt.Sub(s.clock.Now()))))

	slog.WarnContext(c.Request().Context(), "Rate limit exceeded",
		"category", category,
		"path", c.Request().URL.Path,
	)
	if s.httpMetrics != nil {
		s.httpMetrics.ObserveError(string(apperrors.TypeRateLimited), http.StatusTooManyRequests)
	}

	if err := c.String(http.StatusTooManyRequests, rateLimitedText); err != nil {
		return fmt.Errorf("failed to write rate limit response: %w", err)
	}
	return nil
}

func retryAfterSeconds(wait time.Duration) int {
	return max(1, int(math.Ceil(wait.Seconds())))
}
