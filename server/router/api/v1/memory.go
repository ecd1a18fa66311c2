package v1

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/NikhilTirunagiri/petal-v1/server/retrieval"
	"github.com/NikhilTirunagiri/petal-v1/server/service/enrichment"
	"github.com/NikhilTirunagiri/petal-v1/store"
)

type Memory struct {
	UID           string `json:"uid"`
	SessionUID    string `json:"sessionUid"`
	OriginalText  string `json:"originalText,omitempty"`
	ProcessedText string `json:"processedText"`
	Source        string `json:"source,omitempty"`
	CreatedTs     int64  `json:"createdTs"`
}

type SmartCopyRequest struct {
	SessionUID string `json:"sessionUid"`
	UserID     string `json:"userId"`
	Text       string `json:"text"`
	Source     string `json:"source"`
}

type SmartCopyResponse struct {
	Memory *Memory `json:"memory,omitempty"`
	TaskID string  `json:"taskId,omitempty"`
}

type ListMemoriesResponse struct {
	Memories []Memory `json:"memories"`
	Total    int      `json:"total"`
}

type SmartPasteResponse struct {
	Context  string   `json:"context"`
	Memories []Memory `json:"memories"`
}

// SmartCopy captures text into a session: summarize and embed, then persist.
// The request blocks on the model calls.
func (s *APIV1Service) SmartCopy(c echo.Context) error {
	ctx := c.Request().Context()

	captureRequest, err := s.bindCapture(c)
	if err != nil {
		return err
	}

	memory, err := s.Orchestrator.ProcessNow(ctx, captureRequest)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, "failed to enrich captured text").SetInternal(err)
	}
	return c.JSON(http.StatusCreated, &SmartCopyResponse{Memory: convertMemory(memory)})
}

// SmartCopyAsync schedules the capture on the background queue and returns
// the task id immediately.
func (s *APIV1Service) SmartCopyAsync(c echo.Context) error {
	captureRequest, err := s.bindCapture(c)
	if err != nil {
		return err
	}

	taskID, err := s.Orchestrator.ProcessDeferred(captureRequest)
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "capture queue is not accepting tasks").SetInternal(err)
	}
	return c.JSON(http.StatusAccepted, &SmartCopyResponse{TaskID: taskID})
}

func (s *APIV1Service) bindCapture(c echo.Context) (*enrichment.CaptureRequest, error) {
	ctx := c.Request().Context()

	request := &SmartCopyRequest{}
	if err := c.Bind(request); err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "malformed request body").SetInternal(err)
	}
	if request.Text == "" {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "text is required")
	}
	if request.SessionUID == "" {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "sessionUid is required")
	}
	if !s.Profile.IsAIEnabled() {
		return nil, echo.NewHTTPError(http.StatusServiceUnavailable, "capture requires a configured summarization provider")
	}

	session, err := s.Store.GetSession(ctx, request.SessionUID)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "failed to get session").SetInternal(err)
	}
	if session == nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, "session not found")
	}

	userID := request.UserID
	if userID == "" {
		userID = s.userID(c)
	}
	source := request.Source
	if source == "" {
		source = "smart_copy"
	}

	return &enrichment.CaptureRequest{
		SessionUID: request.SessionUID,
		UserID:     userID,
		Text:       request.Text,
		Source:     source,
	}, nil
}

func (s *APIV1Service) ListMemories(c echo.Context) error {
	ctx := c.Request().Context()
	uid := c.Param("uid")

	limit := intQueryParam(c, "limit", 50)
	offset := intQueryParam(c, "offset", 0)

	find := &store.FindMemory{
		SessionUID:           &uid,
		Limit:                &limit,
		Offset:               &offset,
		OrderByCreatedTsDesc: true,
	}
	memories, err := s.Store.ListMemories(ctx, find)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list memories").SetInternal(err)
	}
	total, err := s.Store.CountMemories(ctx, &store.FindMemory{SessionUID: &uid})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to count memories").SetInternal(err)
	}

	return c.JSON(http.StatusOK, &ListMemoriesResponse{
		Memories: convertMemories(memories),
		Total:    total,
	})
}

// SmartPaste assembles a paste-ready context block for a session. Without a
// query it uses the most recent memories, served from the memories cache
// when warm; with a query it runs the retrieval chain.
func (s *APIV1Service) SmartPaste(c echo.Context) error {
	ctx := c.Request().Context()
	uid := c.Param("uid")
	limit := intQueryParam(c, "limit", 10)

	var memories []*store.Memory
	if query := c.QueryParam("query"); query != "" {
		results, _, err := s.Retrieval.Search(ctx, &retrieval.Request{
			SessionUID: uid,
			Query:      query,
			Limit:      limit,
		})
		if err != nil {
			return echo.NewHTTPError(http.StatusBadGateway, "search failed").SetInternal(err)
		}
		memories = make([]*store.Memory, len(results))
		for i, result := range results {
			memories[i] = result.Memory
		}
	} else {
		var err error
		memories, err = s.Store.ListRecentMemories(ctx, uid, limit)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to list recent memories").SetInternal(err)
		}
	}

	return c.JSON(http.StatusOK, &SmartPasteResponse{
		Context:  formatContextBlock(memories),
		Memories: convertMemories(memories),
	})
}

func (s *APIV1Service) DeleteMemory(c echo.Context) error {
	ctx := c.Request().Context()

	if err := s.Store.DeleteMemory(ctx, &store.DeleteMemory{UID: c.Param("uid")}); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to delete memory").SetInternal(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// formatContextBlock renders memories as a numbered plain-text block suitable
// for pasting into a prompt or document.
func formatContextBlock(memories []*store.Memory) string {
	if len(memories) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Relevant context:\n\n")
	for i, memory := range memories {
		fmt.Fprintf(&b, "%d. %s\n", i+1, memory.ProcessedText)
	}
	return b.String()
}

func convertMemory(memory *store.Memory) *Memory {
	return &Memory{
		UID:           memory.UID,
		SessionUID:    memory.SessionUID,
		OriginalText:  memory.OriginalText,
		ProcessedText: memory.ProcessedText,
		Source:        memory.Source,
		CreatedTs:     memory.CreatedTs,
	}
}

func convertMemories(memories []*store.Memory) []Memory {
	list := make([]Memory, len(memories))
	for i, memory := range memories {
		list[i] = *convertMemory(memory)
	}
	return list
}

func intQueryParam(c echo.Context, name string, fallback int) int {
	if raw := c.QueryParam(name); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value >= 0 {
			return value
		}
	}
	return fallback
}
