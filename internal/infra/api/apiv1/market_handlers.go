package apiv1

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	"finance-copilot/internal/infra/api"
)

const (
	defaultCandleDays   = 30
	defaultNewsDays     = 7
	defaultNewsCategory = "general"
)

// queryParam binds an optional form-style query parameter into dst,
// leaving dst untouched when absent.
func queryParam(w http.ResponseWriter, r *http.Request, name string, dst any) bool {
	if err := runtime.BindQueryParameter("form", true, false, name, r.URL.Query(), dst); err != nil {
		api.WriteDetail(w, http.StatusBadRequest, "Invalid format for parameter "+name)
		return false
	}
	return true
}

func requiredQueryParam(w http.ResponseWriter, r *http.Request, name string, dst any) bool {
	if err := runtime.BindQueryParameter("form", true, true, name, r.URL.Query(), dst); err != nil {
		api.WriteDetail(w, http.StatusBadRequest, "Query parameter "+name+" is required")
		return false
	}
	return true
}

func (s *Server) quote(w http.ResponseWriter, r *http.Request) {
	q, err := s.market.Quote(r.Context(), chi.URLParam(r, "symbol"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, q)
}

func (s *Server) candles(w http.ResponseWriter, r *http.Request) {
	resolution, days := "D", defaultCandleDays
	if !queryParam(w, r, "resolution", &resolution) || !queryParam(w, r, "days", &days) {
		return
	}
	c, err := s.market.Candles(r.Context(), chi.URLParam(r, "symbol"), resolution, days)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, c)
}

func (s *Server) metrics(w http.ResponseWriter, r *http.Request) {
	m, err := s.market.Metrics(r.Context(), chi.URLParam(r, "symbol"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, m)
}

func (s *Server) searchSymbols(w http.ResponseWriter, r *http.Request) {
	var q string
	if !requiredQueryParam(w, r, "q", &q) {
		return
	}
	res, err := s.market.SearchSymbols(r.Context(), q)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, res)
}

func (s *Server) companyNews(w http.ResponseWriter, r *http.Request) {
	days := defaultNewsDays
	if !queryParam(w, r, "days", &days) {
		return
	}
	items, err := s.market.CompanyNews(r.Context(), chi.URLParam(r, "symbol"), days)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, items)
}

func (s *Server) generalNews(w http.ResponseWriter, r *http.Request) {
	category := defaultNewsCategory
	if !queryParam(w, r, "category", &category) {
		return
	}
	items, err := s.market.GeneralNews(r.Context(), category)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, items)
}

func (s *Server) insight(w http.ResponseWriter, r *http.Request) {
	in, err := s.insights.Insight(r.Context(), chi.URLParam(r, "symbol"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, in)
}

func (s *Server) companyAnalysis(w http.ResponseWriter, r *http.Request) {
	a, err := s.insights.CompanyAnalysis(r.Context(), chi.URLParam(r, "symbol"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, a)
}
