package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/NikhilTirunagiri/petal-v1/server/retrieval"
	"github.com/NikhilTirunagiri/petal-v1/store"
)

type SearchResult struct {
	Memory Memory  `json:"memory"`
	Score  float32 `json:"score"`
}

type SearchResponse struct {
	Results []SearchResult `json:"results"`
	// Strategy names which retrieval strategy produced the results.
	Strategy string `json:"strategy"`
}

// SearchMemories searches a session's memories. The default mode runs the
// retrieval chain, semantic first with keyword fallback; mode=text forces
// keyword matching only.
func (s *APIV1Service) SearchMemories(c echo.Context) error {
	ctx := c.Request().Context()
	uid := c.Param("uid")

	query := c.QueryParam("query")
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query is required")
	}
	limit := intQueryParam(c, "limit", 10)

	var results []*store.MemoryWithScore
	var strategy string
	var err error
	switch mode := c.QueryParam("mode"); mode {
	case "", "vector":
		results, strategy, err = s.Retrieval.Search(ctx, &retrieval.Request{
			SessionUID: uid,
			Query:      query,
			Limit:      limit,
		})
	case "text":
		strategy = "keyword"
		results, err = s.Store.KeywordSearchMemories(ctx, uid, query, limit)
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "mode must be 'vector' or 'text'")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, "search failed").SetInternal(err)
	}

	response := &SearchResponse{
		Results:  make([]SearchResult, len(results)),
		Strategy: strategy,
	}
	for i, result := range results {
		response.Results[i] = SearchResult{
			Memory: *convertMemory(result.Memory),
			Score:  result.Score,
		}
	}
	return c.JSON(http.StatusOK, response)
}

type PersonalMemoryRequest struct {
	UserID string `json:"userId"`
	Text   string `json:"text"`
}

// AddPersonalMemory records a long-lived fact about the user through Mem0.
func (s *APIV1Service) AddPersonalMemory(c echo.Context) error {
	ctx := c.Request().Context()

	if !s.Mem0.IsEnabled() {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "personal memory is not configured")
	}

	request := &PersonalMemoryRequest{}
	if err := c.Bind(request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body").SetInternal(err)
	}
	if request.Text == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text is required")
	}
	userID := request.UserID
	if userID == "" {
		userID = s.userID(c)
	}

	if err := s.Mem0.Add(ctx, userID, request.Text); err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, "failed to add personal memory").SetInternal(err)
	}
	return c.NoContent(http.StatusCreated)
}

func (s *APIV1Service) SearchPersonalMemories(c echo.Context) error {
	ctx := c.Request().Context()

	if !s.Mem0.IsEnabled() {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "personal memory is not configured")
	}

	query := c.QueryParam("query")
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query is required")
	}

	memories, err := s.Mem0.Search(ctx, c.Param("userID"), query, intQueryParam(c, "limit", 10))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, "failed to search personal memories").SetInternal(err)
	}
	return c.JSON(http.StatusOK, memories)
}

func (s *APIV1Service) ListPersonalMemories(c echo.Context) error {
	ctx := c.Request().Context()

	if !s.Mem0.IsEnabled() {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "personal memory is not configured")
	}

	memories, err := s.Mem0.List(ctx, c.Param("userID"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, "failed to list personal memories").SetInternal(err)
	}
	return c.JSON(http.StatusOK, memories)
}
