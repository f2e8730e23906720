//go:build integration

package postgres

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"feedpulse/internal/domain"
)

type PostgresIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *postgres.PostgresContainer
	db        *sqlx.DB
}

func (s *PostgresIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()

	migrationsPath, err := filepath.Abs("../../../migrations")
	s.Require().NoError(err)

	// The pgvector image ships postgres with the vector extension available.
	container, err := postgres.Run(s.ctx,
		"pgvector/pgvector:pg16",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		postgres.WithInitScripts(
			filepath.Join(migrationsPath, "001_init.up.sql"),
			filepath.Join(migrationsPath, "002_post_embeddings.up.sql"),
		),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	connStr, err := container.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)

	db, err := sqlx.Connect("postgres", connStr)
	s.Require().NoError(err)
	s.db = db
}

func (s *PostgresIntegrationSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *PostgresIntegrationSuite) SetupTest() {
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM post_embeddings")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM post_tags")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM tags")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM posts")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM sources")
}

func TestPostgresIntegrationSuite(t *testing.T) {
	suite.Run(t, new(PostgresIntegrationSuite))
}

func ptr[T any](v T) *T { return &v }

func (s *PostgresIntegrationSuite) createSource() *domain.Source {
	src := &domain.Source{
		Type:       domain.SourceTypeDiscord,
		Name:       "go-news",
		Identifier: "111222333",
	}
	s.Require().NoError(NewSourceStore(s.db).Create(s.ctx, src))
	return src
}

func (s *PostgresIntegrationSuite) insertPosts(sourceID int64, externalIDs ...string) []domain.Post {
	store := NewPostStore(s.db)
	now := time.Now().Truncate(time.Microsecond)

	posts := make([]domain.Post, len(externalIDs))
	for i, id := range externalIDs {
		posts[i] = domain.Post{
			SourceID:   sourceID,
			ExternalID: ptr(id),
			Content:    "content " + id,
			Author:     "alice#0001",
			Timestamp:  now,
		}
	}
	s.Require().NoError(store.InsertBatch(s.ctx, posts))

	stored, err := store.GetByExternalIDs(s.ctx, externalIDs)
	s.Require().NoError(err)

	// Return rows in the order the external IDs were given.
	byExternalID := make(map[string]domain.Post, len(stored))
	for _, p := range stored {
		byExternalID[*p.ExternalID] = p
	}
	ordered := make([]domain.Post, 0, len(externalIDs))
	for _, id := range externalIDs {
		if p, ok := byExternalID[id]; ok {
			ordered = append(ordered, p)
		}
	}
	return ordered
}

func (s *PostgresIntegrationSuite) TestPostStore_InsertBatch_Idempotent() {
	src := s.createSource()
	store := NewPostStore(s.db)

	s.insertPosts(src.ID, "901", "902")

	// Re-inserting the same external IDs must not create duplicates.
	s.insertPosts(src.ID, "901", "902", "903")

	var count int
	s.Require().NoError(s.db.GetContext(s.ctx, &count, "SELECT COUNT(*) FROM posts"))
	s.Equal(3, count)

	existing, err := store.ExistingExternalIDs(s.ctx, []string{"901", "903", "999"})
	s.Require().NoError(err)
	s.True(existing["901"])
	s.True(existing["903"])
	s.False(existing["999"])
}

func (s *PostgresIntegrationSuite) TestPostStore_ToggleSaved() {
	src := s.createSource()
	stored := s.insertPosts(src.ID, "901")
	store := NewPostStore(s.db)

	saved, err := store.ToggleSaved(s.ctx, stored[0].ID)
	s.Require().NoError(err)
	s.True(saved)

	saved, err = store.ToggleSaved(s.ctx, stored[0].ID)
	s.Require().NoError(err)
	s.False(saved)

	_, err = store.ToggleSaved(s.ctx, 99999)
	s.ErrorIs(err, domain.ErrPostNotFound)
}

func (s *PostgresIntegrationSuite) TestPostStore_ListSaved_Pagination() {
	src := s.createSource()
	stored := s.insertPosts(src.ID, "901", "902", "903")
	store := NewPostStore(s.db)

	for _, p := range stored {
		_, err := store.ToggleSaved(s.ctx, p.ID)
		s.Require().NoError(err)
	}

	page, err := store.ListSaved(s.ctx, 2, nil)
	s.Require().NoError(err)
	s.Require().Len(page, 2)
	s.Greater(page[0].ID, page[1].ID)

	cursor := page[1].ID
	page, err = store.ListSaved(s.ctx, 2, &cursor)
	s.Require().NoError(err)
	s.Require().Len(page, 1)
	s.Less(page[0].ID, cursor)
}

func (s *PostgresIntegrationSuite) TestPostStore_EnrichmentColumns() {
	src := s.createSource()
	stored := s.insertPosts(src.ID, "901")
	store := NewPostStore(s.db)
	id := stored[0].ID

	s.Require().NoError(store.SetSummary(s.ctx, id, "A summary."))
	s.Require().NoError(store.SetPodcastPath(s.ctx, id, "https://cdn/podcasts/1.mp3"))
	s.Require().NoError(store.SetScaffoldPath(s.ctx, id, "https://cdn/scaffolds/1.zip"))
	s.Require().NoError(store.MarkRead(s.ctx, id))

	post, err := store.Get(s.ctx, id)
	s.Require().NoError(err)
	s.Equal("A summary.", *post.Summary)
	s.Equal("https://cdn/podcasts/1.mp3", *post.PodcastPath)
	s.Equal("https://cdn/scaffolds/1.zip", *post.ScaffoldPath)
	s.True(post.IsRead)

	_, err = store.Get(s.ctx, 99999)
	s.ErrorIs(err, domain.ErrPostNotFound)
}

func (s *PostgresIntegrationSuite) TestSourceStore_AdvanceCursor_Monotonic() {
	src := s.createSource()
	store := NewSourceStore(s.db)

	s.Require().NoError(store.AdvanceCursor(s.ctx, src.ID, "900"))

	// An older message ID must not regress the cursor.
	s.Require().NoError(store.AdvanceCursor(s.ctx, src.ID, "850"))

	sources, err := store.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(sources, 1)
	s.Require().NotNil(sources[0].LastCursor)
	s.Equal("900", *sources[0].LastCursor)

	s.Require().NoError(store.AdvanceCursor(s.ctx, src.ID, "950"))

	sources, err = store.List(s.ctx)
	s.Require().NoError(err)
	s.Equal("950", *sources[0].LastCursor)
}

func (s *PostgresIntegrationSuite) TestTagStore_GetOrCreateAndLink() {
	src := s.createSource()
	stored := s.insertPosts(src.ID, "901")
	store := NewTagStore(s.db)

	golang, err := store.GetOrCreate(s.ctx, "golang")
	s.Require().NoError(err)
	s.NotZero(golang.ID)

	again, err := store.GetOrCreate(s.ctx, "golang")
	s.Require().NoError(err)
	s.Equal(golang.ID, again.ID)

	release, err := store.GetOrCreate(s.ctx, "release")
	s.Require().NoError(err)

	s.Require().NoError(store.LinkToPost(s.ctx, stored[0].ID, []int64{golang.ID, release.ID}))
	// Re-linking is a no-op.
	s.Require().NoError(store.LinkToPost(s.ctx, stored[0].ID, []int64{golang.ID}))

	tags, err := store.GetByPostID(s.ctx, stored[0].ID)
	s.Require().NoError(err)
	s.Require().Len(tags, 2)
	s.Equal("golang", tags[0].Name)
	s.Equal("release", tags[1].Name)
}

func (s *PostgresIntegrationSuite) TestTagStore_LinkInTransaction() {
	src := s.createSource()
	stored := s.insertPosts(src.ID, "901")
	tags := NewTagStore(s.db)
	tm := NewTransactionManager(s.db)

	err := tm.WithTransaction(s.ctx, func(txCtx context.Context) error {
		tag, err := tags.GetOrCreate(txCtx, "tx-tag")
		if err != nil {
			return err
		}
		return tags.LinkToPost(txCtx, stored[0].ID, []int64{tag.ID})
	})
	s.Require().NoError(err)

	linked, err := tags.GetByPostID(s.ctx, stored[0].ID)
	s.Require().NoError(err)
	s.Len(linked, 1)
}

func (s *PostgresIntegrationSuite) TestVectorIndex_UpsertAndQuery() {
	src := s.createSource()
	stored := s.insertPosts(src.ID, "901", "902")
	index := NewVectorIndex(s.db)

	vec := func(first float32) []float32 {
		v := make([]float32, 1536)
		v[0] = first
		v[1] = 1
		return v
	}

	inserted, err := index.Upsert(s.ctx, stored[0].ID, vec(1))
	s.Require().NoError(err)
	s.True(inserted)

	// Replacing an existing embedding reports inserted=false.
	inserted, err = index.Upsert(s.ctx, stored[0].ID, vec(0.9))
	s.Require().NoError(err)
	s.False(inserted)

	inserted, err = index.Upsert(s.ctx, stored[1].ID, vec(-1))
	s.Require().NoError(err)
	s.True(inserted)

	ids, err := index.Query(s.ctx, vec(1), 2)
	s.Require().NoError(err)
	s.Require().Len(ids, 2)
	s.Equal(stored[0].ID, ids[0])
	s.Equal(stored[1].ID, ids[1])

	ids, err = index.Query(s.ctx, vec(1), 1)
	s.Require().NoError(err)
	s.Len(ids, 1)
}
