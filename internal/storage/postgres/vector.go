package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pgvector/pgvector-go"
)

// VectorIndex stores post embeddings in a pgvector table and answers
// nearest-neighbor queries by cosine distance.
type VectorIndex struct {
	db *sqlx.DB
}

func NewVectorIndex(db *sqlx.DB) *VectorIndex {
	return &VectorIndex{db: db}
}

// Upsert writes the embedding for a post, replacing any previous one.
// The returned flag reports whether a new row was inserted (as opposed
// to an existing row being updated).
func (s *VectorIndex) Upsert(ctx context.Context, postID int64, vector []float32) (bool, error) {
	query := `
		INSERT INTO post_embeddings (post_id, embedding)
		VALUES ($1, $2)
		ON CONFLICT (post_id) DO UPDATE SET embedding = EXCLUDED.embedding
		RETURNING (xmax = 0) AS inserted`

	var inserted bool
	err := s.db.QueryRowContext(ctx, query, postID, pgvector.NewVector(vector)).Scan(&inserted)
	if err != nil {
		return false, err
	}
	return inserted, nil
}

// Query returns the post IDs of the topK nearest embeddings, closest first.
func (s *VectorIndex) Query(ctx context.Context, vector []float32, topK int) ([]int64, error) {
	query := `
		SELECT post_id
		FROM post_embeddings
		ORDER BY embedding <=> $1
		LIMIT $2`

	var ids []int64
	err := s.db.SelectContext(ctx, &ids, query, pgvector.NewVector(vector), topK)
	return ids, err
}
