package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"feedpulse/internal/domain"
)

type SourceStore struct {
	db *sqlx.DB
}

func NewSourceStore(db *sqlx.DB) *SourceStore {
	return &SourceStore{db: db}
}

func (s *SourceStore) List(ctx context.Context) ([]domain.Source, error) {
	var sources []domain.Source
	query := `
		SELECT id, type, name, identifier, created_at, last_cursor
		FROM sources
		ORDER BY created_at DESC`

	err := s.db.SelectContext(ctx, &sources, query)
	return sources, err
}

func (s *SourceStore) Create(ctx context.Context, src *domain.Source) error {
	query := `
		INSERT INTO sources (type, name, identifier)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	return s.db.QueryRowContext(ctx, query, src.Type, src.Name, src.Identifier).
		Scan(&src.ID, &src.CreatedAt)
}

// AdvanceCursor moves a source's cursor forward. The update is guarded so
// a stale run carrying an older message ID cannot regress the cursor.
// Discord snowflake IDs are numeric strings, so numeric comparison is
// well-defined.
func (s *SourceStore) AdvanceCursor(ctx context.Context, sourceID int64, cursor string) error {
	query := `
		UPDATE sources
		SET last_cursor = $2
		WHERE id = $1
		  AND (last_cursor IS NULL OR last_cursor::numeric < $2::numeric)`

	_, err := s.db.ExecContext(ctx, query, sourceID, cursor)
	return err
}
