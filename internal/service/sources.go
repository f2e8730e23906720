package service

import (
	"context"
	"fmt"
	"log/slog"

	"feedpulse/internal/domain"
)

// SourceService is the admin surface for configured sources.
type SourceService struct {
	sources SourceStore
	logger  *slog.Logger
}

func NewSourceService(sources SourceStore, logger *slog.Logger) *SourceService {
	return &SourceService{sources: sources, logger: logger}
}

func (s *SourceService) Create(ctx context.Context, sourceType, name, identifier string) (*domain.Source, error) {
	src := &domain.Source{
		Type:       sourceType,
		Name:       name,
		Identifier: identifier,
	}

	if err := s.sources.Create(ctx, src); err != nil {
		return nil, fmt.Errorf("create source: %w", err)
	}

	s.logger.Info("source created", "type", src.Type, "name", src.Name, "identifier", src.Identifier)

	return src, nil
}

func (s *SourceService) List(ctx context.Context) ([]domain.Source, error) {
	return s.sources.List(ctx)
}
