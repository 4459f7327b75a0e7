package apiv1

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"finance-copilot/internal/domain/model"
	"finance-copilot/internal/infra/api"
)

func (s *Server) watchlistAdd(w http.ResponseWriter, r *http.Request) {
	var req watchlistAddRequest
	if !s.decode(w, r, &req) {
		return
	}
	ctx := r.Context()
	it, err := s.watchlist.Add(ctx, api.UserID(ctx), req.Symbol, req.Name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, toWatchlistItem(it))
}

func (s *Server) watchlistRemove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sym := model.NormalizeSymbol(chi.URLParam(r, "symbol"))
	if err := s.watchlist.Remove(ctx, api.UserID(ctx), sym); err != nil {
		s.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, messageResponse{Message: sym + " removed from watchlist"})
}

func (s *Server) watchlistAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	items, err := s.watchlist.List(ctx, api.UserID(ctx))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]watchlistItemResponse, 0, len(items))
	for _, p := range items {
		it := toWatchlistItem(p.Item)
		it.Stale = p.Freshness == model.Stale
		out = append(out, it)
	}
	api.WriteJSON(w, http.StatusOK, out)
}

func (s *Server) watchlistCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ok, err := s.watchlist.Contains(ctx, api.UserID(ctx), chi.URLParam(r, "symbol"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]bool{"in_watchlist": ok})
}
