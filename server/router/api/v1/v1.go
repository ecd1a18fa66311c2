package v1

import (
	"github.com/labstack/echo/v4"

	"github.com/NikhilTirunagiri/petal-v1/internal/profile"
	"github.com/NikhilTirunagiri/petal-v1/plugin/mem0"
	"github.com/NikhilTirunagiri/petal-v1/server/ai"
	"github.com/NikhilTirunagiri/petal-v1/server/retrieval"
	"github.com/NikhilTirunagiri/petal-v1/server/service/enrichment"
	"github.com/NikhilTirunagiri/petal-v1/store"
)

// defaultUserID scopes data when no user header is supplied. The service is
// single-user today; the user id is carried through the schema so that
// multi-user support does not need a migration.
const defaultUserID = "default"

type APIV1Service struct {
	Profile *profile.Profile
	Store   *store.Store

	Summary      ai.SummaryService
	Orchestrator *enrichment.Orchestrator
	Retrieval    *retrieval.Chain
	Mem0         mem0.Service
}

func NewAPIV1Service(
	profile *profile.Profile,
	store *store.Store,
	summary ai.SummaryService,
	orchestrator *enrichment.Orchestrator,
	chain *retrieval.Chain,
	personalMemory mem0.Service,
) *APIV1Service {
	return &APIV1Service{
		Profile:      profile,
		Store:        store,
		Summary:      summary,
		Orchestrator: orchestrator,
		Retrieval:    chain,
		Mem0:         personalMemory,
	}
}

// RegisterRoutes registers all v1 routes with the given Echo instance.
func (s *APIV1Service) RegisterRoutes(echoServer *echo.Echo) {
	g := echoServer.Group("/api/v1")

	g.POST("/sessions", s.CreateSession)
	g.GET("/sessions/:userID", s.ListSessions)
	g.GET("/sessions/detail/:uid", s.GetSession)
	g.PUT("/sessions/:uid", s.UpdateSession)
	g.DELETE("/sessions/:uid", s.DeleteSession)
	g.POST("/sessions/:uid/activate", s.ActivateSession)
	g.GET("/sessions/:uid/preview", s.GetSessionPreview)
	g.GET("/sessions/:uid/memories", s.ListMemories)

	g.POST("/smart-copy", s.SmartCopy)
	g.POST("/smart-copy/async", s.SmartCopyAsync)
	g.GET("/smart-paste/:uid", s.SmartPaste)

	g.GET("/search/:uid", s.SearchMemories)
	g.DELETE("/memories/:uid", s.DeleteMemory)

	g.POST("/memory/add", s.AddPersonalMemory)
	g.GET("/memory/:userID", s.ListPersonalMemories)
	g.GET("/memory/:userID/search", s.SearchPersonalMemories)
}

// userID returns the scoping user for the request.
func (s *APIV1Service) userID(c echo.Context) string {
	if userID := c.Request().Header.Get("X-User-ID"); userID != "" {
		return userID
	}
	return defaultUserID
}
