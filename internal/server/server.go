package server

import (
	"context"
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"feedpulse/internal/domain"
)

// Service interfaces consumed by the HTTP layer. The concrete
// implementations live in internal/service.

type IngestRunner interface {
	PollAll(ctx context.Context) (*domain.IngestStats, error)
}

type Enricher interface {
	Process(ctx context.Context, postID int64) error
}

type PostReader interface {
	MarkRead(ctx context.Context, postID int64) error
	ToggleSaved(ctx context.Context, postID int64) (bool, error)
	ListSaved(ctx context.Context, limit int, cursor *int64) ([]domain.Post, *int64, error)
	Search(ctx context.Context, query string) ([]domain.Post, error)
}

type Scaffolder interface {
	Generate(ctx context.Context, postID int64, prompt string) (string, error)
}

type SourceAdmin interface {
	Create(ctx context.Context, sourceType, name, identifier string) (*domain.Source, error)
	List(ctx context.Context) ([]domain.Source, error)
}

type Services struct {
	Ingest   IngestRunner
	Enrich   Enricher
	Posts    PostReader
	Scaffold Scaffolder
	Sources  SourceAdmin
}

// New builds the echo instance with all routes registered.
func New(svc Services, cronSecret string, logger *slog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	h := &handlers{svc: svc, logger: logger}

	cron := e.Group("/cron", RequireBearerSecret(cronSecret))
	cron.POST("/poll-sources", h.PollSources)

	posts := e.Group("/posts")
	posts.POST("/process", h.ProcessPost)
	posts.POST("/mark-as-read", h.MarkAsRead)
	posts.POST("/save", h.SavePost)
	posts.GET("/saved", h.ListSaved)

	e.POST("/scaffold", h.Scaffold)
	e.GET("/search", h.Search)

	sources := e.Group("/sources")
	sources.POST("/create", h.CreateSource)
	sources.GET("", h.ListSources)

	return e
}
