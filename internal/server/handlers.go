package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"feedpulse/internal/domain"
)

const (
	defaultSavedLimit = 24
	maxSavedLimit     = 100
	minScaffoldPrompt = 10
)

type handlers struct {
	svc    Services
	logger *slog.Logger
}

type postIDRequest struct {
	PostID *int64 `json:"postId"`
}

type scaffoldRequest struct {
	PostID *int64 `json:"postId"`
	Prompt string `json:"prompt"`
}

type createSourceRequest struct {
	Type       string `json:"type"`
	Name       string `json:"name"`
	Identifier string `json:"identifier"`
}

func validationError(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, map[string]string{"error": message})
}

func (h *handlers) serverError(c echo.Context, operation string, err error) error {
	h.logger.Error("request failed", "operation", operation, "error", err)
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal server error"})
}

func (h *handlers) PollSources(c echo.Context) error {
	stats, err := h.svc.Ingest.PollAll(c.Request().Context())
	if err != nil {
		return h.serverError(c, "poll_sources", err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"message": fmt.Sprintf("Polling complete. Found %d new posts.", stats.New),
	})
}

func (h *handlers) ProcessPost(c echo.Context) error {
	var req postIDRequest
	if err := c.Bind(&req); err != nil {
		return validationError(c, "invalid request body")
	}
	if req.PostID == nil {
		return validationError(c, "postId is required")
	}

	if err := h.svc.Enrich.Process(c.Request().Context(), *req.PostID); err != nil {
		if errors.Is(err, domain.ErrPostNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "post not found"})
		}
		return h.serverError(c, "process_post", err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"message": fmt.Sprintf("Successfully processed post %d", *req.PostID),
	})
}

func (h *handlers) MarkAsRead(c echo.Context) error {
	var req postIDRequest
	if err := c.Bind(&req); err != nil {
		return validationError(c, "invalid request body")
	}
	if req.PostID == nil {
		return validationError(c, "postId is required")
	}

	if err := h.svc.Posts.MarkRead(c.Request().Context(), *req.PostID); err != nil {
		return h.serverError(c, "mark_as_read", err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"success": true})
}

func (h *handlers) SavePost(c echo.Context) error {
	var req postIDRequest
	if err := c.Bind(&req); err != nil {
		return validationError(c, "invalid request body")
	}
	if req.PostID == nil {
		return validationError(c, "postId is required")
	}

	isSaved, err := h.svc.Posts.ToggleSaved(c.Request().Context(), *req.PostID)
	if err != nil {
		if errors.Is(err, domain.ErrPostNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "post not found"})
		}
		return h.serverError(c, "save_post", err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"isSaved": isSaved,
	})
}

func (h *handlers) ListSaved(c echo.Context) error {
	limit := defaultSavedLimit
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxSavedLimit {
			return validationError(c, "limit must be an integer between 1 and 100")
		}
		limit = parsed
	}

	var cursor *int64
	if raw := c.QueryParam("cursor"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return validationError(c, "cursor must be an integer")
		}
		cursor = &parsed
	}

	posts, nextCursor, err := h.svc.Posts.ListSaved(c.Request().Context(), limit, cursor)
	if err != nil {
		return h.serverError(c, "list_saved", err)
	}
	if posts == nil {
		posts = []domain.Post{}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"posts":  posts,
		"cursor": nextCursor,
	})
}

func (h *handlers) Scaffold(c echo.Context) error {
	var req scaffoldRequest
	if err := c.Bind(&req); err != nil {
		return validationError(c, "invalid request body")
	}
	if req.PostID == nil {
		return validationError(c, "postId is required")
	}
	if len(req.Prompt) < minScaffoldPrompt {
		return validationError(c, "prompt must be at least 10 characters")
	}

	url, err := h.svc.Scaffold.Generate(c.Request().Context(), *req.PostID, req.Prompt)
	if err != nil {
		if errors.Is(err, domain.ErrPostNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "post not found"})
		}
		return h.serverError(c, "scaffold", err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success":     true,
		"scaffoldUrl": url,
	})
}

func (h *handlers) Search(c echo.Context) error {
	query := c.QueryParam("query")
	if query == "" {
		return validationError(c, "query is required")
	}

	posts, err := h.svc.Posts.Search(c.Request().Context(), query)
	if err != nil {
		return h.serverError(c, "search", err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"posts": posts})
}

func (h *handlers) CreateSource(c echo.Context) error {
	var req createSourceRequest
	if err := c.Bind(&req); err != nil {
		return validationError(c, "invalid request body")
	}
	if req.Type == "" || req.Name == "" || req.Identifier == "" {
		return validationError(c, "type, name and identifier are required")
	}

	src, err := h.svc.Sources.Create(c.Request().Context(), req.Type, req.Name, req.Identifier)
	if err != nil {
		return h.serverError(c, "create_source", err)
	}

	return c.JSON(http.StatusCreated, src)
}

func (h *handlers) ListSources(c echo.Context) error {
	sources, err := h.svc.Sources.List(c.Request().Context())
	if err != nil {
		return h.serverError(c, "list_sources", err)
	}
	if sources == nil {
		sources = []domain.Source{}
	}

	return c.JSON(http.StatusOK, sources)
}
