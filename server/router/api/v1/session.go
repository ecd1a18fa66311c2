package v1

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/NikhilTirunagiri/petal-v1/store"
)

// describeMemoryLimit is how many recent memories feed the generated
// session description.
const describeMemoryLimit = 20

type Session struct {
	UID         string `json:"uid"`
	Name        string `json:"name"`
	Icon        string `json:"icon"`
	Description string `json:"description,omitempty"`
	MemoryCount int    `json:"memoryCount"`
	CreatedTs   int64  `json:"createdTs"`
	UpdatedTs   int64  `json:"updatedTs"`
}

type CreateSessionRequest struct {
	UserID      string `json:"userId"`
	Name        string `json:"name"`
	Icon        string `json:"icon"`
	Description string `json:"description"`
}

type UpdateSessionRequest struct {
	Name        *string `json:"name"`
	Icon        *string `json:"icon"`
	Description *string `json:"description"`
}

type SessionPreview struct {
	Session              *Session `json:"session"`
	GeneratedDescription string   `json:"generatedDescription"`
	RecentMemories       []Memory `json:"recentMemories"`
}

func (s *APIV1Service) ListSessions(c echo.Context) error {
	ctx := c.Request().Context()
	userID := c.Param("userID")

	sessions, err := s.Store.ListSessions(ctx, &store.FindSession{UserID: &userID})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list sessions").SetInternal(err)
	}

	response := make([]*Session, len(sessions))
	for i, session := range sessions {
		response[i] = convertSession(session)
	}
	return c.JSON(http.StatusOK, response)
}

func (s *APIV1Service) CreateSession(c echo.Context) error {
	ctx := c.Request().Context()

	request := &CreateSessionRequest{}
	if err := c.Bind(request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body").SetInternal(err)
	}
	if request.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}
	userID := request.UserID
	if userID == "" {
		userID = s.userID(c)
	}

	session, err := s.Store.CreateSession(ctx, &store.Session{
		UserID:      userID,
		Name:        request.Name,
		Icon:        request.Icon,
		Description: request.Description,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to create session").SetInternal(err)
	}
	return c.JSON(http.StatusCreated, convertSession(session))
}

func (s *APIV1Service) GetSession(c echo.Context) error {
	ctx := c.Request().Context()

	session, err := s.Store.GetSession(ctx, c.Param("uid"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to get session").SetInternal(err)
	}
	if session == nil {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	return c.JSON(http.StatusOK, convertSession(session))
}

func (s *APIV1Service) UpdateSession(c echo.Context) error {
	ctx := c.Request().Context()

	request := &UpdateSessionRequest{}
	if err := c.Bind(request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body").SetInternal(err)
	}
	if request.Name == nil && request.Icon == nil && request.Description == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "no fields to update")
	}

	session, err := s.Store.UpdateSession(ctx, &store.UpdateSession{
		UID:         c.Param("uid"),
		Name:        request.Name,
		Icon:        request.Icon,
		Description: request.Description,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to update session").SetInternal(err)
	}
	return c.JSON(http.StatusOK, convertSession(session))
}

func (s *APIV1Service) DeleteSession(c echo.Context) error {
	ctx := c.Request().Context()

	if err := s.Store.DeleteSession(ctx, &store.DeleteSession{UID: c.Param("uid")}); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to delete session").SetInternal(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// GetSessionPreview returns the session with a generated description and its
// most recent memories. The description is cached without expiry and only
// regenerated after the cache entry is invalidated by a write.
func (s *APIV1Service) GetSessionPreview(c echo.Context) error {
	ctx := c.Request().Context()
	uid := c.Param("uid")

	session, err := s.Store.GetSession(ctx, uid)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to get session").SetInternal(err)
	}
	if session == nil {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}

	memories, err := s.Store.ListRecentMemories(ctx, uid, describeMemoryLimit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list memories").SetInternal(err)
	}

	description, ok := s.Store.GetCachedDescription(ctx, uid)
	if !ok {
		texts := make([]string, len(memories))
		for i, memory := range memories {
			texts[i] = memory.ProcessedText
		}
		description, err = s.Summary.DescribeSession(ctx, texts)
		if err != nil {
			// Degrade to the stored description rather than failing the preview.
			slog.Warn("failed to generate session description", slog.String("session", uid), slog.Any("err", err))
			description = session.Description
		} else {
			s.Store.CacheDescription(ctx, uid, description)
		}
	}

	preview := &SessionPreview{
		Session:              convertSession(session),
		GeneratedDescription: description,
		RecentMemories:       convertMemories(memories),
	}
	return c.JSON(http.StatusOK, preview)
}

// ActivateSession pre-populates the session caches ahead of a client focus
// switch. Warming is best-effort; the response does not wait for it.
func (s *APIV1Service) ActivateSession(c echo.Context) error {
	uid := c.Param("uid")

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.Store.WarmSessionCache(ctx, uid); err != nil {
			slog.Warn("failed to warm session cache", slog.String("session", uid), slog.Any("err", err))
		}
	}()
	return c.NoContent(http.StatusAccepted)
}

func convertSession(session *store.Session) *Session {
	return &Session{
		UID:         session.UID,
		Name:        session.Name,
		Icon:        session.Icon,
		Description: session.Description,
		MemoryCount: session.MemoryCount,
		CreatedTs:   session.CreatedTs,
		UpdatedTs:   session.UpdatedTs,
	}
}
