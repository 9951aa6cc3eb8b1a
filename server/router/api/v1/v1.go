// Package v1 implements the versioned JSON API.
package v1

import (
	"github.com/labstack/echo/v4"
)

// APIV1Service groups the v1 route handlers.
type APIV1Service struct {
	SearchService *SearchService
}

// NewAPIV1Service creates the v1 API surface.
func NewAPIV1Service(runner TurnRunner) *APIV1Service {
	return &APIV1Service{
		SearchService: NewSearchService(runner),
	}
}

// Register mounts all v1 routes on the group.
func (s *APIV1Service) Register(g *echo.Group) {
	s.SearchService.Register(g)
}
