package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/pgvector/pgvector-go"

	"finance-copilot/internal/domain/model"
	"finance-copilot/internal/domain/ports/repository"
)

var _ repository.VectorIndex = (*VectorIndex)(nil)

// VectorIndex keeps document embeddings in a pgvector column and ranks by
// cosine distance.
type VectorIndex struct {
	pool *pgxpool.Pool
}

func NewVectorIndex(pool *pgxpool.Pool) *VectorIndex {
	return &VectorIndex{pool: pool}
}

func (v *VectorIndex) Upsert(ctx context.Context, d *model.Document, embedding []float32) error {
	const q = `
INSERT INTO document_embeddings (document_id, owner_id, title, content, embedding, updated_at)
VALUES ($1, $2, $3, $4, $5::vector, NOW())
ON CONFLICT (document_id) DO UPDATE SET
  owner_id = EXCLUDED.owner_id,
  title = EXCLUDED.title,
  content = EXCLUDED.content,
  embedding = EXCLUDED.embedding,
  updated_at = NOW();`
	if _, err := v.pool.Exec(ctx, q, d.ID, d.OwnerID, d.Title, d.Content, pgvector.NewVector(embedding)); err != nil {
		return fmt.Errorf("upsert embedding: %w", err)
	}
	return nil
}

func (v *VectorIndex) Search(ctx context.Context, embedding []float32, k int) ([]model.VectorMatch, error) {
	if k <= 0 {
		return nil, nil
	}
	const q = `
SELECT document_id, owner_id, title, content, embedding <=> $1::vector AS distance
  FROM document_embeddings
 ORDER BY embedding <=> $1::vector
 LIMIT $2;`
	rows, err := v.pool.Query(ctx, q, pgvector.NewVector(embedding), k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()
	var out []model.VectorMatch
	for rows.Next() {
		var m model.VectorMatch
		if err := rows.Scan(&m.DocumentID, &m.OwnerID, &m.Title, &m.Content, &m.Distance); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (v *VectorIndex) Delete(ctx context.Context, documentID string) error {
	_, err := v.pool.Exec(ctx, `DELETE FROM document_embeddings WHERE document_id = $1`, documentID)
	return err
}
