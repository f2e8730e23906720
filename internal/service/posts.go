package service

import (
	"context"
	"fmt"
	"log/slog"

	"feedpulse/internal/domain"
)

const searchTopK = 10

// PostService is the read/update surface over stored posts: saved-state
// toggling, read marking, saved listing and semantic search.
type PostService struct {
	posts    PostStore
	sources  SourceStore
	tags     TagStore
	vectors  VectorIndex
	embedder Embedder
	logger   *slog.Logger
}

func NewPostService(
	posts PostStore,
	sources SourceStore,
	tags TagStore,
	vectors VectorIndex,
	embedder Embedder,
	logger *slog.Logger,
) *PostService {
	return &PostService{
		posts:    posts,
		sources:  sources,
		tags:     tags,
		vectors:  vectors,
		embedder: embedder,
		logger:   logger,
	}
}

func (s *PostService) MarkRead(ctx context.Context, postID int64) error {
	return s.posts.MarkRead(ctx, postID)
}

// ToggleSaved flips the saved flag and returns the new value.
func (s *PostService) ToggleSaved(ctx context.Context, postID int64) (bool, error) {
	return s.posts.ToggleSaved(ctx, postID)
}

// ListSaved returns one page of saved posts in descending id order, and the
// cursor for the next page. A nil cursor means the listing is exhausted.
func (s *PostService) ListSaved(ctx context.Context, limit int, cursor *int64) ([]domain.Post, *int64, error) {
	posts, err := s.posts.ListSaved(ctx, limit, cursor)
	if err != nil {
		return nil, nil, fmt.Errorf("list saved posts: %w", err)
	}

	if err := s.hydrate(ctx, posts); err != nil {
		return nil, nil, err
	}

	var nextCursor *int64
	if len(posts) == limit {
		last := posts[len(posts)-1].ID
		nextCursor = &last
	}

	return posts, nextCursor, nil
}

// Search embeds the query, asks the vector index for the nearest posts and
// returns them in similarity-rank order. Ranked IDs without a stored post
// are silently dropped.
func (s *PostService) Search(ctx context.Context, query string) ([]domain.Post, error) {
	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	ids, err := s.vectors.Query(ctx, vector, searchTopK)
	if err != nil {
		return nil, fmt.Errorf("query vector index: %w", err)
	}

	if len(ids) == 0 {
		return []domain.Post{}, nil
	}

	posts, err := s.posts.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load posts: %w", err)
	}

	byID := make(map[int64]domain.Post, len(posts))
	for _, p := range posts {
		byID[p.ID] = p
	}

	ordered := make([]domain.Post, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			ordered = append(ordered, p)
		}
	}

	if err := s.hydrate(ctx, ordered); err != nil {
		return nil, err
	}

	return ordered, nil
}

// hydrate attaches source and tag records to each post.
func (s *PostService) hydrate(ctx context.Context, posts []domain.Post) error {
	if len(posts) == 0 {
		return nil
	}

	sources, err := s.sources.List(ctx)
	if err != nil {
		return fmt.Errorf("load sources: %w", err)
	}
	byID := make(map[int64]*domain.Source, len(sources))
	for i := range sources {
		byID[sources[i].ID] = &sources[i]
	}

	for i := range posts {
		posts[i].Source = byID[posts[i].SourceID]

		tags, err := s.tags.GetByPostID(ctx, posts[i].ID)
		if err != nil {
			return fmt.Errorf("load tags for post %d: %w", posts[i].ID, err)
		}
		posts[i].Tags = tags
	}

	return nil
}
