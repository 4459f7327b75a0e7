package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"finance-copilot/internal/domain/model"
	"finance-copilot/internal/domain/ports/repository"
)

var _ repository.DocumentRepository = (*DocumentRepo)(nil)

type DocumentRepo struct {
	pool *pgxpool.Pool
}

func NewDocumentRepo(pool *pgxpool.Pool) *DocumentRepo {
	return &DocumentRepo{pool: pool}
}

const documentColumns = `id, owner_id, title, content, source, metadata, indexed, created_at`

func (r *DocumentRepo) Save(ctx context.Context, tx repository.Tx, d *model.Document) error {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	meta, err := json.Marshal(d.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	const q = `
INSERT INTO documents (` + documentColumns + `)
VALUES ($1,$2,$3,$4,$5,$6::jsonb,$7,$8)
ON CONFLICT (id) DO UPDATE SET
  title = EXCLUDED.title,
  content = EXCLUDED.content,
  source = EXCLUDED.source,
  metadata = EXCLUDED.metadata,
  indexed = EXCLUDED.indexed;`
	if _, err := exec.Exec(ctx, q, d.ID, d.OwnerID, d.Title, d.Content, d.Source, string(meta), d.Indexed, d.CreatedAt); err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	return nil
}

func (r *DocumentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Document, error) {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	d, err := scanDocument(exec.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return d, nil
}

func (r *DocumentRepo) ListByOwner(ctx context.Context, tx repository.Tx, ownerID string, limit int) ([]*model.Document, error) {
	const q = `SELECT ` + documentColumns + ` FROM documents WHERE owner_id = $1 ORDER BY created_at DESC LIMIT $2`
	return r.list(ctx, tx, q, ownerID, clampLimit(limit))
}

func (r *DocumentRepo) SearchText(ctx context.Context, tx repository.Tx, query, userID string, limit int) ([]*model.Document, error) {
	const q = `
SELECT ` + documentColumns + `
  FROM documents
 WHERE (owner_id = $1 OR owner_id IS NULL)
   AND (title ILIKE $2 OR content ILIKE $2)
 ORDER BY created_at DESC
 LIMIT $3;`
	return r.list(ctx, tx, q, userID, "%"+escapeLike(query)+"%", clampLimit(limit))
}

func (r *DocumentRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	_, err = exec.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	return err
}

func (r *DocumentRepo) SetIndexed(ctx context.Context, tx repository.Tx, id string, indexed bool) error {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	_, err = exec.Exec(ctx, `UPDATE documents SET indexed = $2 WHERE id = $1`, id, indexed)
	return err
}

func (r *DocumentRepo) ListUnindexed(ctx context.Context, tx repository.Tx, limit int) ([]*model.Document, error) {
	const q = `SELECT ` + documentColumns + ` FROM documents WHERE indexed = FALSE ORDER BY created_at ASC LIMIT $1`
	return r.list(ctx, tx, q, clampLimit(limit))
}

func (r *DocumentRepo) list(ctx context.Context, tx repository.Tx, q string, args ...any) ([]*model.Document, error) {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	rows, err := exec.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()
	var out []*model.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanDocument(row pgx.Row) (*model.Document, error) {
	var (
		d    model.Document
		meta []byte
	)
	if err := row.Scan(&d.ID, &d.OwnerID, &d.Title, &d.Content, &d.Source, &meta, &d.Indexed, &d.CreatedAt); err != nil {
		return nil, err
	}
	d.Metadata = map[string]any{}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &d.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return &d, nil
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 100
	}
	return limit
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
