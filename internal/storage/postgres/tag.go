package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"

	"feedpulse/internal/domain"
)

type TagStore struct {
	db *sqlx.DB
}

func NewTagStore(db *sqlx.DB) *TagStore {
	return &TagStore{db: db}
}

// GetOrCreate resolves a tag by exact name, creating it if absent.
// Concurrent creation of the same name is resolved by the unique
// constraint plus a re-read.
func (s *TagStore) GetOrCreate(ctx context.Context, name string) (*domain.Tag, error) {
	exec := GetExecutor(ctx, s.db)

	var tag domain.Tag
	err := sqlx.GetContext(ctx, exec, &tag, "SELECT id, name FROM tags WHERE name = $1", name)
	if err == nil {
		return &tag, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	err = exec.QueryRowxContext(ctx,
		"INSERT INTO tags (name) VALUES ($1) ON CONFLICT (name) DO NOTHING RETURNING id, name",
		name,
	).Scan(&tag.ID, &tag.Name)
	if errors.Is(err, sql.ErrNoRows) {
		// Another writer inserted the same name first.
		err = sqlx.GetContext(ctx, exec, &tag, "SELECT id, name FROM tags WHERE name = $1", name)
	}
	if err != nil {
		return nil, err
	}

	return &tag, nil
}

// LinkToPost associates tags with a post. Existing associations are kept;
// duplicate links are a no-op.
func (s *TagStore) LinkToPost(ctx context.Context, postID int64, tagIDs []int64) error {
	if len(tagIDs) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO post_tags (post_id, tag_id) VALUES ")
	valueArgs := make([]interface{}, 0, len(tagIDs)+1)
	valueArgs = append(valueArgs, postID)

	for i, tagID := range tagIDs {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("($1, $")
		sb.WriteString(strconv.Itoa(i + 2))
		sb.WriteString(")")
		valueArgs = append(valueArgs, tagID)
	}
	sb.WriteString(" ON CONFLICT DO NOTHING")

	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, sb.String(), valueArgs...)
	return err
}

func (s *TagStore) GetByPostID(ctx context.Context, postID int64) ([]domain.Tag, error) {
	query := `
		SELECT t.id, t.name
		FROM tags t
		INNER JOIN post_tags pt ON pt.tag_id = t.id
		WHERE pt.post_id = $1
		ORDER BY t.name`

	var tags []domain.Tag
	err := s.db.SelectContext(ctx, &tags, query, postID)
	return tags, err
}
