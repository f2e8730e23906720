package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"feedpulse/internal/domain"
)

type PostStore struct {
	db *sqlx.DB
}

func NewPostStore(db *sqlx.DB) *PostStore {
	return &PostStore{db: db}
}

func (s *PostStore) Get(ctx context.Context, id int64) (*domain.Post, error) {
	var post domain.Post
	query := `
		SELECT id, source_id, external_id, content, author, timestamp,
		       summary, podcast_path, scaffold_path, is_read, is_saved
		FROM posts
		WHERE id = $1`

	err := s.db.GetContext(ctx, &post, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrPostNotFound
	}
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// InsertBatch inserts posts in one statement. Rows conflicting on
// external_id are silently skipped, so re-ingesting an already stored
// item is a no-op.
func (s *PostStore) InsertBatch(ctx context.Context, posts []domain.Post) error {
	if len(posts) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO posts (source_id, external_id, content, author, timestamp) VALUES ")
	valueArgs := make([]interface{}, 0, len(posts)*5)

	for i, p := range posts {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for j := 0; j < 5; j++ {
			if j > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("$")
			sb.WriteString(strconv.Itoa(i*5 + j + 1))
		}
		sb.WriteString(")")
		valueArgs = append(valueArgs, p.SourceID, p.ExternalID, p.Content, p.Author, p.Timestamp)
	}
	sb.WriteString(" ON CONFLICT (external_id) DO NOTHING")

	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, sb.String(), valueArgs...)
	return err
}

// ExistingExternalIDs reports which of the given external IDs are already stored.
func (s *PostStore) ExistingExternalIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	if len(ids) == 0 {
		return make(map[string]bool), nil
	}

	query := `SELECT external_id FROM posts WHERE external_id = ANY($1)`

	var found []string
	if err := s.db.SelectContext(ctx, &found, query, pq.Array(ids)); err != nil {
		return nil, err
	}

	result := make(map[string]bool, len(found))
	for _, id := range found {
		result[id] = true
	}
	return result, nil
}

func (s *PostStore) GetByExternalIDs(ctx context.Context, ids []string) ([]domain.Post, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, source_id, external_id, content, author, timestamp,
		       summary, podcast_path, scaffold_path, is_read, is_saved
		FROM posts
		WHERE external_id = ANY($1)`

	var posts []domain.Post
	err := s.db.SelectContext(ctx, &posts, query, pq.Array(ids))
	return posts, err
}

func (s *PostStore) GetByIDs(ctx context.Context, ids []int64) ([]domain.Post, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, source_id, external_id, content, author, timestamp,
		       summary, podcast_path, scaffold_path, is_read, is_saved
		FROM posts
		WHERE id = ANY($1)`

	var posts []domain.Post
	err := s.db.SelectContext(ctx, &posts, query, pq.Array(ids))
	return posts, err
}

// ListSaved returns saved posts in descending id order. A non-nil cursor
// restricts results to ids strictly below it.
func (s *PostStore) ListSaved(ctx context.Context, limit int, cursor *int64) ([]domain.Post, error) {
	query := `
		SELECT id, source_id, external_id, content, author, timestamp,
		       summary, podcast_path, scaffold_path, is_read, is_saved
		FROM posts
		WHERE is_saved = TRUE`

	args := []interface{}{}
	if cursor != nil {
		query += " AND id < $1"
		args = append(args, *cursor)
	}
	query += " ORDER BY id DESC LIMIT $" + strconv.Itoa(len(args)+1)
	args = append(args, limit)

	var posts []domain.Post
	err := s.db.SelectContext(ctx, &posts, query, args...)
	return posts, err
}

func (s *PostStore) MarkRead(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "UPDATE posts SET is_read = TRUE WHERE id = $1", id)
	return err
}

// ToggleSaved flips the saved flag in a single statement so concurrent
// toggles cannot lose an update. Returns the new value.
func (s *PostStore) ToggleSaved(ctx context.Context, id int64) (bool, error) {
	var isSaved bool
	err := s.db.QueryRowContext(ctx,
		"UPDATE posts SET is_saved = NOT is_saved WHERE id = $1 RETURNING is_saved",
		id,
	).Scan(&isSaved)
	if errors.Is(err, sql.ErrNoRows) {
		return false, domain.ErrPostNotFound
	}
	return isSaved, err
}

func (s *PostStore) SetSummary(ctx context.Context, id int64, summary string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE posts SET summary = $2 WHERE id = $1", id, summary)
	return err
}

func (s *PostStore) SetPodcastPath(ctx context.Context, id int64, path string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE posts SET podcast_path = $2 WHERE id = $1", id, path)
	return err
}

func (s *PostStore) SetScaffoldPath(ctx context.Context, id int64, path string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE posts SET scaffold_path = $2 WHERE id = $1", id, path)
	return err
}
