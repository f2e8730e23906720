package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"feedpulse/internal/domain"
)

// IngestService polls every configured source for new items, stores them,
// advances per-source cursors and dispatches enrichment for each newly
// ingested post. A failure in one source never aborts the others.
type IngestService struct {
	sources    SourceStore
	posts      PostStore
	adapter    SourceAdapter
	dispatcher Dispatcher
	analytics  Analytics
	logger     *slog.Logger
}

func NewIngestService(
	sources SourceStore,
	posts PostStore,
	adapter SourceAdapter,
	dispatcher Dispatcher,
	analytics Analytics,
	logger *slog.Logger,
) *IngestService {
	return &IngestService{
		sources:    sources,
		posts:      posts,
		adapter:    adapter,
		dispatcher: dispatcher,
		analytics:  analytics,
		logger:     logger,
	}
}

// PollAll runs one ingestion pass over all sources.
func (s *IngestService) PollAll(ctx context.Context) (*domain.IngestStats, error) {
	startTime := time.Now()

	sources, err := s.sources.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	stats := &domain.IngestStats{Sources: len(sources)}

	for i := range sources {
		src := &sources[i]
		if src.Type != domain.SourceTypeDiscord {
			s.logger.Warn("skipping source of unknown type", "type", src.Type, "source", src.Name)
			continue
		}

		if err := s.pollSource(ctx, src, stats); err != nil {
			stats.Errors++
			s.logger.Error("failed to poll source",
				"source", src.Name,
				"identifier", src.Identifier,
				"error", err,
			)
		}
	}

	stats.Duration = time.Since(startTime)

	s.logger.Info("poll completed",
		"sources", stats.Sources,
		"fetched", stats.Fetched,
		"new", stats.New,
		"dispatched", stats.Dispatched,
		"errors", stats.Errors,
		"duration", stats.Duration,
	)

	return stats, nil
}

func (s *IngestService) pollSource(ctx context.Context, src *domain.Source, stats *domain.IngestStats) error {
	items, err := s.adapter.FetchNew(ctx, src.Identifier, src.LastCursor)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	stats.Fetched += len(items)

	if len(items) == 0 {
		return nil
	}

	externalIDs := make([]string, len(items))
	posts := make([]domain.Post, len(items))
	for i := range items {
		externalIDs[i] = items[i].ExternalID
		posts[i] = domain.Post{
			SourceID:   src.ID,
			ExternalID: &items[i].ExternalID,
			Content:    items[i].Content,
			Author:     items[i].Author,
			Timestamp:  items[i].Timestamp,
		}
	}

	// The bulk insert does not report which rows survived the conflict
	// clause, so the set of genuinely new posts is re-derived around it.
	existing, err := s.posts.ExistingExternalIDs(ctx, externalIDs)
	if err != nil {
		return fmt.Errorf("check existing posts: %w", err)
	}

	if err := s.posts.InsertBatch(ctx, posts); err != nil {
		return fmt.Errorf("insert posts: %w", err)
	}

	// Items arrive newest-first, so index 0 carries the newest external ID.
	if err := s.sources.AdvanceCursor(ctx, src.ID, items[0].ExternalID); err != nil {
		return fmt.Errorf("advance cursor: %w", err)
	}

	stored, err := s.posts.GetByExternalIDs(ctx, externalIDs)
	if err != nil {
		return fmt.Errorf("load ingested posts: %w", err)
	}

	newCount := 0
	for i := range stored {
		post := &stored[i]
		if post.ExternalID == nil || existing[*post.ExternalID] {
			continue
		}
		newCount++

		if err := s.dispatcher.Dispatch(ctx, post.ID); err != nil {
			s.logger.Error("failed to dispatch enrichment",
				"post_id", post.ID,
				"source", src.Name,
				"error", err,
			)
			continue
		}
		stats.Dispatched++
	}
	stats.New += newCount

	s.analytics.Record(ctx, "post_ingested", map[string]interface{}{
		"source_type": src.Type,
		"source_name": src.Name,
		"post_count":  newCount,
	})

	s.logger.Info("ingested batch",
		"source", src.Name,
		"fetched", len(items),
		"new", newCount,
	)

	return nil
}
