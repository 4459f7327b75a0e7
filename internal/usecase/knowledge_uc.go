package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"finance-copilot/internal/domain"
	"finance-copilot/internal/domain/model"
	"finance-copilot/internal/domain/ports/adapter"
	"finance-copilot/internal/domain/ports/repository"
	"finance-copilot/internal/infra/logging"
)

// Compile-time check
var _ KnowledgeUseCase = (*knowledgeUC)(nil)

// KnowledgeUseCase stores documents and retrieves the ones relevant to a
// query. A nil owner makes a document public.
type KnowledgeUseCase interface {
	AddDocument(ctx context.Context, ownerID *string, title, content string, source *string, meta map[string]any) (*model.Document, error)
	UploadDocument(ctx context.Context, userID, filename string, data []byte) (*model.Document, error)
	Search(ctx context.Context, query, userID string, limit int) ([]model.SearchHit, error)
	RelevantContext(ctx context.Context, query, userID string) (string, error)
	ListDocuments(ctx context.Context, userID string, limit int) ([]*model.Document, error)
	DeleteDocument(ctx context.Context, id, userID string) error

	// PendingIndex and Index are used by the embedding backfill.
	PendingIndex(ctx context.Context, limit int) ([]*model.Document, error)
	Index(ctx context.Context, d *model.Document) error
}

const (
	defaultSearchLimit   = 5
	defaultDocumentLimit = 50
	contextSnippets      = 3
	uploadTitle          = "Uploaded Document"
	uploadSource         = "upload"
)

type knowledgeUC struct {
	docs     repository.DocumentRepository
	index    repository.VectorIndex // nil disables vector search
	embedder adapter.Embedder
	log      *zerolog.Logger
}

func NewKnowledgeUseCase(docs repository.DocumentRepository, index repository.VectorIndex, embedder adapter.Embedder, logger *zerolog.Logger) *knowledgeUC {
	return &knowledgeUC{docs: docs, index: index, embedder: embedder, log: logger}
}

func (k *knowledgeUC) vectorEnabled() bool { return k.index != nil && k.embedder != nil }

// AddDocument persists first; indexing is best-effort and a failure leaves
// the document reachable through text search.
func (k *knowledgeUC) AddDocument(ctx context.Context, ownerID *string, title, content string, source *string, meta map[string]any) (*model.Document, error) {
	defer logging.TraceDuration(k.log, "KnowledgeUC.AddDocument")()
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, domain.NewValidationError("Title is required")
	}
	if strings.TrimSpace(content) == "" {
		return nil, domain.NewValidationError("Content is required")
	}
	d := model.NewDocument(ownerID, title, content, source, meta)
	if err := k.docs.Save(ctx, nil, d); err != nil {
		return nil, err
	}
	if err := k.Index(ctx, d); err != nil {
		logging.With(ctx, k.log).Warn().Err(err).Str("document_id", d.ID).Msg("document indexing failed; left for backfill")
	}
	return d, nil
}

func (k *knowledgeUC) UploadDocument(ctx context.Context, userID, filename string, data []byte) (*model.Document, error) {
	defer logging.TraceDuration(k.log, "KnowledgeUC.UploadDocument")()
	if !utf8.Valid(data) {
		return nil, domain.NewValidationError("Only UTF-8 text files are supported")
	}
	title := strings.TrimSpace(filename)
	if title == "" {
		title = uploadTitle
	}
	src := uploadSource
	owner := userID
	return k.AddDocument(ctx, &owner, title, string(data), &src, map[string]any{"filename": filename})
}

// Index embeds the full content and marks the document indexed.
func (k *knowledgeUC) Index(ctx context.Context, d *model.Document) error {
	if !k.vectorEnabled() {
		return nil
	}
	vec, err := k.embedder.Embed(ctx, d.Content)
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}
	if err := k.index.Upsert(ctx, d, vec); err != nil {
		return fmt.Errorf("vector upsert: %w", err)
	}
	if err := k.docs.SetIndexed(ctx, nil, d.ID, true); err != nil {
		return err
	}
	d.Indexed = true
	return nil
}

func (k *knowledgeUC) PendingIndex(ctx context.Context, limit int) ([]*model.Document, error) {
	if !k.vectorEnabled() {
		return nil, nil
	}
	return k.docs.ListUnindexed(ctx, nil, limit)
}

// Search prefers the vector index and falls back to substring matching when
// the index is absent or fails.
func (k *knowledgeUC) Search(ctx context.Context, query, userID string, limit int) ([]model.SearchHit, error) {
	defer logging.TraceDuration(k.log, "KnowledgeUC.Search")()
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.NewValidationError("Query is required")
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if k.vectorEnabled() {
		hits, err := k.vectorSearch(ctx, query, userID, limit)
		if err == nil {
			return hits, nil
		}
		logging.With(ctx, k.log).Warn().Err(err).Msg("vector search failed; using text search")
	}
	return k.textSearch(ctx, query, userID, limit)
}

func (k *knowledgeUC) vectorSearch(ctx context.Context, query, userID string, limit int) ([]model.SearchHit, error) {
	vec, err := k.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	matches, err := k.index.Search(ctx, vec, limit*2)
	if err != nil {
		return nil, err
	}
	out := make([]model.SearchHit, 0, limit)
	for _, m := range matches {
		if len(out) == limit {
			break
		}
		if m.OwnerID != nil && *m.OwnerID != userID {
			continue
		}
		hit := model.SearchHit{DocumentID: m.DocumentID, Title: m.Title, Content: m.Content, Score: 1 - m.Distance}
		d, err := k.docs.FindByID(ctx, nil, m.DocumentID)
		switch {
		case err == nil:
			if !d.VisibleTo(userID) {
				continue
			}
			hit.Title, hit.Content, hit.Source, hit.Metadata = d.Title, d.Content, d.Source, d.Metadata
		case errors.Is(err, domain.ErrNotFound):
			// serve the index copy
		default:
			return nil, err
		}
		out = append(out, hit)
	}
	return out, nil
}

func (k *knowledgeUC) textSearch(ctx context.Context, query, userID string, limit int) ([]model.SearchHit, error) {
	docs, err := k.docs.SearchText(ctx, nil, query, userID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]model.SearchHit, 0, len(docs))
	for _, d := range docs {
		out = append(out, model.SearchHit{
			DocumentID: d.ID, Title: d.Title, Content: d.Content,
			Source: d.Source, Metadata: d.Metadata, Score: model.TextSearchScore,
		})
	}
	return out, nil
}

// RelevantContext formats the top hits for direct prompt insertion.
func (k *knowledgeUC) RelevantContext(ctx context.Context, query, userID string) (string, error) {
	hits, err := k.Search(ctx, query, userID, contextSnippets)
	if err != nil {
		return "", err
	}
	return FormatSnippets(hits), nil
}

// FormatSnippets renders hits as "Title / Content" blocks.
func FormatSnippets(hits []model.SearchHit) string {
	parts := make([]string, 0, len(hits))
	for _, h := range hits {
		parts = append(parts, fmt.Sprintf("Title: %s\nContent: %s", h.Title, model.Preview(h.Content, model.PreviewRunes)))
	}
	return strings.Join(parts, "\n\n")
}

func (k *knowledgeUC) ListDocuments(ctx context.Context, userID string, limit int) ([]*model.Document, error) {
	defer logging.TraceDuration(k.log, "KnowledgeUC.ListDocuments")()
	if limit <= 0 {
		limit = defaultDocumentLimit
	}
	docs, err := k.docs.ListByOwner(ctx, nil, userID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*model.Document, 0, len(docs))
	for _, d := range docs {
		cp := *d
		cp.Content = model.Preview(d.Content, model.PreviewRunes)
		out = append(out, &cp)
	}
	return out, nil
}

func (k *knowledgeUC) DeleteDocument(ctx context.Context, id, userID string) error {
	defer logging.TraceDuration(k.log, "KnowledgeUC.DeleteDocument")()
	if !model.ValidID(id) {
		return domain.ErrNotFound
	}
	d, err := k.docs.FindByID(ctx, nil, id)
	if err != nil {
		return err
	}
	if !d.OwnedBy(userID) {
		return domain.ErrNotFound
	}
	if k.index != nil {
		if err := k.index.Delete(ctx, id); err != nil {
			logging.With(ctx, k.log).Warn().Err(err).Str("document_id", id).Msg("vector delete failed")
		}
	}
	return k.docs.Delete(ctx, nil, id)
}
