package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"feedpulse/internal/domain"
)

type SourceStore interface {
	List(ctx context.Context) ([]domain.Source, error)
	Create(ctx context.Context, src *domain.Source) error
	AdvanceCursor(ctx context.Context, sourceID int64, cursor string) error
}

type PostStore interface {
	Get(ctx context.Context, id int64) (*domain.Post, error)
	InsertBatch(ctx context.Context, posts []domain.Post) error
	ExistingExternalIDs(ctx context.Context, ids []string) (map[string]bool, error)
	GetByExternalIDs(ctx context.Context, ids []string) ([]domain.Post, error)
	GetByIDs(ctx context.Context, ids []int64) ([]domain.Post, error)
	ListSaved(ctx context.Context, limit int, cursor *int64) ([]domain.Post, error)
	MarkRead(ctx context.Context, id int64) error
	ToggleSaved(ctx context.Context, id int64) (bool, error)
	SetSummary(ctx context.Context, id int64, summary string) error
	SetPodcastPath(ctx context.Context, id int64, path string) error
	SetScaffoldPath(ctx context.Context, id int64, path string) error
}

type TagStore interface {
	GetOrCreate(ctx context.Context, name string) (*domain.Tag, error)
	LinkToPost(ctx context.Context, postID int64, tagIDs []int64) error
	GetByPostID(ctx context.Context, postID int64) ([]domain.Tag, error)
}

type VectorIndex interface {
	Upsert(ctx context.Context, postID int64, vector []float32) (bool, error)
	Query(ctx context.Context, vector []float32, topK int) ([]int64, error)
}

type SourceAdapter interface {
	FetchNew(ctx context.Context, channelID string, after *string) ([]domain.RawItem, error)
}

type ChatModel interface {
	CompleteJSON(ctx context.Context, prompt string) ([]byte, error)
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

type BlobStore interface {
	Put(ctx context.Context, path string, data []byte, contentType string) (string, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, postID int64) error
	Close() error
}

type Analytics interface {
	Record(ctx context.Context, event string, fields map[string]interface{})
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
