package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/rulehub/internal/app"
	"github.com/pscheid92/rulehub/internal/domain"
)

const maxVoteBodyBytes = 1 << 10

type voteRequest struct {
	VoteType *string `json:"voteType"`
}

type voteResponse struct {
	Success bool `json:"success"`
	domain.VoteResult
}

type currentVoteResponse struct {
	UserVote domain.Vote `json:"userVote"`
}

type trackResponse struct {
	Tracked bool `json:"tracked"`
}

type itemsResponse struct {
	Items []domain.Item `json:"items"`
}

// invalidVote stands in for an unreadable body. It fails vote parsing, so a
// malformed request is still rate limited before it is rejected.
var invalidVote = "invalid"

func (s *Server) handleVote(c echo.Context) error {
	ctx := c.Request().Context()
	itemID := c.Param("id")

	var req voteRequest
	dec := json.NewDecoder(http.MaxBytesReader(c.Response(), c.Request().Body, maxVoteBodyBytes))
	if err := dec.Decode(&req); err != nil {
		req.VoteType = &invalidVote
	}

	outcome, err := s.app.CastVote(ctx, clientOf(c), itemID, req.VoteType)
	if err != nil {
		var limited *domain.RateLimitedError
		if errors.As(err, &limited) {
			return s.rateLimited(c, limited.Category, limited.Decision)
		}
		return err
	}

	s.setQuotaHeaders(c, outcome.Quota)
	if err := c.JSON(http.StatusOK, voteResponse{Success: true, VoteResult: outcome.Result}); err != nil {
		return fmt.Errorf("failed to write vote response: %w", err)
	}
	return nil
}

func (s *Server) handleCurrentVote(c echo.Context) error {
	vote, err := s.app.CurrentVote(c.Request().Context(), clientOf(c), c.Param("id"))
	if err != nil {
		return err
	}
	if err := c.JSON(http.StatusOK, currentVoteResponse{UserVote: vote}); err != nil {
		return fmt.Errorf("failed to write vote response: %w", err)
	}
	return nil
}

func (s *Server) handleStats(c echo.Context) error {
	counts, err := s.app.Stats(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	if err := c.JSON(http.StatusOK, counts); err != nil {
		return fmt.Errorf("failed to write stats response: %w", err)
	}
	return nil
}

func (s *Server) handleTrackView(c echo.Context) error {
	return s.writeTracked(c, s.app.TrackView(c.Request().Context(), clientOf(c), c.Param("id")))
}

func (s *Server) handleTrackCopy(c echo.Context) error {
	return s.writeTracked(c, s.app.TrackCopy(c.Request().Context(), clientOf(c), c.Param("id")))
}

// writeTracked always answers 202; tracking failures are logged by the
// service and never reach the client.
func (s *Server) writeTracked(c echo.Context, res app.TrackResult) error {
	if err := c.JSON(http.StatusAccepted, trackResponse{Tracked: res.Tracked}); err != nil {
		return fmt.Errorf("failed to write tracking response: %w", err)
	}
	return nil
}

func (s *Server) handleListItems(c echo.Context) error {
	items, err := s.app.ListItems(c.Request().Context())
	if err != nil {
		return err
	}
	if items == nil {
		items = []domain.Item{}
	}
	if err := c.JSON(http.StatusOK, itemsResponse{Items: items}); err != nil {
		return fmt.Errorf("failed to write items response: %w", err)
	}
	return nil
}

func (s *Server) handleGetItem(c echo.Context) error {
	item, err := s.app.GetItem(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	if err := c.JSON(http.StatusOK, item); err != nil {
		return fmt.Errorf("failed to write item response: %w", err)
	}
	return nil
}
