package repository

import (
	"context"

	"finance-copilot/internal/domain/model"
)

// -----------------------------
// Knowledge documents
// -----------------------------

type DocumentRepository interface {
	Save(ctx context.Context, tx Tx, d *model.Document) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Document, error)
	// ListByOwner returns only documents owned by ownerID, newest first.
	ListByOwner(ctx context.Context, tx Tx, ownerID string, limit int) ([]*model.Document, error)
	// SearchText is a case-insensitive substring match over title and content
	// restricted to documents owned by userID or public.
	SearchText(ctx context.Context, tx Tx, query, userID string, limit int) ([]*model.Document, error)
	Delete(ctx context.Context, tx Tx, id string) error
	SetIndexed(ctx context.Context, tx Tx, id string, indexed bool) error
	ListUnindexed(ctx context.Context, tx Tx, limit int) ([]*model.Document, error)
}

// VectorIndex stores one embedding per document alongside a copy of the
// fields needed to answer a query without the primary store.
type VectorIndex interface {
	Upsert(ctx context.Context, d *model.Document, embedding []float32) error
	// Search returns the k nearest documents by cosine distance, ascending.
	Search(ctx context.Context, embedding []float32, k int) ([]model.VectorMatch, error)
	Delete(ctx context.Context, documentID string) error
}
