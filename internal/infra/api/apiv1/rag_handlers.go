package apiv1

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"finance-copilot/internal/domain/model"
	"finance-copilot/internal/infra/api"
)

const (
	maxUploadBytes     = 5 << 20
	uploadPreviewRunes = 500
	defaultListLimit   = 50
)

func (s *Server) ragAdd(w http.ResponseWriter, r *http.Request) {
	var req documentCreateRequest
	if !s.decode(w, r, &req) {
		return
	}
	ctx := r.Context()
	uid := api.UserID(ctx)
	d, err := s.knowledge.AddDocument(ctx, &uid, req.Title, req.Content, req.Source, req.Metadata)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, toDocument(d))
}

func (s *Server) ragUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, hdr, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			api.WriteDetail(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		api.WriteDetail(w, http.StatusBadRequest, "Multipart field 'file' is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		api.WriteDetail(w, http.StatusBadRequest, "Error uploading document: "+err.Error())
		return
	}
	ctx := r.Context()
	d, err := s.knowledge.UploadDocument(ctx, api.UserID(ctx), hdr.Filename, data)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := toDocument(d)
	out.Content = model.Preview(out.Content, uploadPreviewRunes)
	api.WriteJSON(w, http.StatusOK, out)
}

func (s *Server) ragSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !s.decode(w, r, &req) {
		return
	}
	limit := 0
	if req.Limit != nil {
		limit = *req.Limit
	}
	ctx := r.Context()
	hits, err := s.knowledge.Search(ctx, req.Query, api.UserID(ctx), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]searchResultResponse, 0, len(hits))
	for _, h := range hits {
		out = append(out, searchResultResponse{
			Content:  h.Content,
			Title:    h.Title,
			Source:   h.Source,
			Score:    h.Score,
			Metadata: h.Metadata,
		})
	}
	api.WriteJSON(w, http.StatusOK, out)
}

func (s *Server) ragList(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if !queryParam(w, r, "limit", &limit) {
		return
	}
	ctx := r.Context()
	docs, err := s.knowledge.ListDocuments(ctx, api.UserID(ctx), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]documentResponse, 0, len(docs))
	for _, d := range docs {
		out = append(out, toDocument(d))
	}
	api.WriteJSON(w, http.StatusOK, out)
}

func (s *Server) ragDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.knowledge.DeleteDocument(ctx, chi.URLParam(r, "id"), api.UserID(ctx)); err != nil {
		s.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, messageResponse{Message: "Document deleted successfully"})
}
