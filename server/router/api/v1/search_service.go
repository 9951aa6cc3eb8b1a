package v1

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/renwaldo/shopsight/ai/imagepick"
	"github.com/renwaldo/shopsight/engine"
)

// TurnRunner executes one search turn.
type TurnRunner interface {
	Turn(ctx context.Context, req *engine.TurnRequest) (*engine.TurnResult, error)
}

// SearchService handles conversational search turns.
type SearchService struct {
	runner TurnRunner
}

// NewSearchService creates the search handler.
func NewSearchService(runner TurnRunner) *SearchService {
	return &SearchService{runner: runner}
}

// Register mounts search routes.
func (s *SearchService) Register(g *echo.Group) {
	g.POST("/search/turns", s.CreateTurn)
}

// CreateTurn runs one refine-retrieve-pick cycle for the caller's session.
func (s *SearchService) CreateTurn(c echo.Context) error {
	req := &engine.TurnRequest{}
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if strings.TrimSpace(req.Query) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query is required")
	}

	result, err := s.runner.Turn(c.Request().Context(), req)
	if err != nil {
		slog.Error("search turn failed", "session", req.SessionID, "error", err)
		if errors.Is(err, imagepick.ErrImageFetch) {
			return echo.NewHTTPError(http.StatusBadGateway, "product image could not be fetched")
		}
		return echo.NewHTTPError(http.StatusBadGateway, "search turn failed")
	}

	return c.JSON(http.StatusOK, result)
}
