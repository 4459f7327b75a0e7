package apiv1

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"finance-copilot/internal/domain"
	"finance-copilot/internal/infra/api"
	"finance-copilot/internal/infra/logging"
	"finance-copilot/internal/usecase"
)

// maxBodyBytes bounds JSON bodies; uploads have their own limit.
const maxBodyBytes = 1 << 20

// Options carries the optional collaborators and knobs of the router.
type Options struct {
	// Limiter enables the per-user chat rate limit when non-nil.
	Limiter       api.Limiter
	LimiterKey    func(userID, action string) string
	ChatPerMinute int

	// RequestTimeout applies to every route except chat, which has its own
	// agent deadline.
	RequestTimeout time.Duration

	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
}

// Server holds the use cases behind the /api routes.
type Server struct {
	auth      usecase.AuthUseCase
	market    usecase.MarketUseCase
	insights  usecase.InsightUseCase
	watchlist usecase.WatchlistUseCase
	chat      usecase.ChatUseCase
	knowledge usecase.KnowledgeUseCase

	opts     Options
	validate *validator.Validate
	log      *zerolog.Logger
}

func NewServer(
	auth usecase.AuthUseCase,
	market usecase.MarketUseCase,
	insights usecase.InsightUseCase,
	watchlist usecase.WatchlistUseCase,
	chat usecase.ChatUseCase,
	knowledge usecase.KnowledgeUseCase,
	opts Options,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		auth:      auth,
		market:    market,
		insights:  insights,
		watchlist: watchlist,
		chat:      chat,
		knowledge: knowledge,
		opts:      opts,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		log:       logger,
	}
}

// NewRouter registers every route on a fresh chi router.
func NewRouter(s *Server) chi.Router {
	r := chi.NewRouter()
	r.Use(api.RequestLog(s.log))

	if s.opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.opts.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.health)

		r.Group(func(r chi.Router) {
			r.Use(api.Timeout(s.opts.RequestTimeout))
			r.Post("/auth/register", s.register)
			r.Post("/auth/verify-email", s.verifyEmail)
			r.Post("/auth/login", s.login)
		})

		r.Group(func(r chi.Router) {
			r.Use(api.Auth(api.AuthenticatorFunc(s.authenticate), s.log))

			r.Group(func(r chi.Router) {
				r.Use(api.Timeout(s.opts.RequestTimeout))

				r.Post("/auth/logout", s.logout)
				r.Post("/auth/logout-all", s.logoutAll)
				r.Get("/auth/sessions", s.authSessions)
				r.Get("/auth/me", s.me)

				r.Get("/stock/quote/{symbol}", s.quote)
				r.Get("/stock/candle/{symbol}", s.candles)
				r.Get("/stock/metrics/{symbol}", s.metrics)
				r.Get("/stock/search", s.searchSymbols)

				r.Get("/news/company/{symbol}", s.companyNews)
				r.Get("/news/general", s.generalNews)

				r.Get("/insights/{symbol}", s.insight)
				r.Get("/company/analysis/{symbol}", s.companyAnalysis)

				r.Post("/watchlist/add", s.watchlistAdd)
				r.Delete("/watchlist/remove/{symbol}", s.watchlistRemove)
				r.Get("/watchlist/all", s.watchlistAll)
				r.Get("/watchlist/check/{symbol}", s.watchlistCheck)

				r.Get("/chatbot/sessions", s.chatSessions)
				r.Post("/chatbot/sessions", s.chatCreateSession)
				r.Get("/chatbot/sessions/{id}", s.chatGetSession)
				r.Delete("/chatbot/sessions/{id}", s.chatDeleteSession)

				r.Post("/rag/documents", s.ragAdd)
				r.Post("/rag/documents/upload", s.ragUpload)
				r.Post("/rag/search", s.ragSearch)
				r.Get("/rag/documents", s.ragList)
				r.Delete("/rag/documents/{id}", s.ragDelete)
			})

			key := s.opts.LimiterKey
			if key == nil {
				key = defaultLimiterKey
			}
			r.With(api.RateLimit(s.opts.Limiter, "chat", s.opts.ChatPerMinute, key, s.log)).
				Post("/chatbot/chat", s.chatSend)
		})
	})
	return r
}

func defaultLimiterKey(userID, action string) string {
	return "rate_limit:" + userID + ":" + action
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// decode reads a JSON body into dst and runs struct validation.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		api.WriteDetail(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		api.WriteDetail(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		switch fe.Tag() {
		case "required":
			return "Field '" + fe.Field() + "' is required"
		case "email":
			return "Field '" + fe.Field() + "' must be a valid email address"
		default:
			return "Field '" + fe.Field() + "' is invalid"
		}
	}
	return "Invalid request body"
}

// fail maps a use case error onto the HTTP status table. Unauthorized and
// Forbidden are checked first because their validation errors also match
// ErrInvalidArgument.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var verr *domain.ValidationError
	hasReason := errors.As(err, &verr)
	msg := func(fallback string) string {
		if hasReason {
			return verr.Reason
		}
		return fallback
	}

	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		w.Header().Set("WWW-Authenticate", "Bearer")
		api.WriteDetail(w, http.StatusUnauthorized, msg("Could not validate credentials"))
	case errors.Is(err, domain.ErrForbidden):
		api.WriteDetail(w, http.StatusForbidden, msg("Forbidden"))
	case errors.Is(err, domain.ErrInvalidArgument):
		api.WriteDetail(w, http.StatusBadRequest, msg("Invalid argument"))
	case errors.Is(err, domain.ErrNotFound):
		api.WriteDetail(w, http.StatusNotFound, "Not found")
	case errors.Is(err, domain.ErrAlreadyExists):
		api.WriteDetail(w, http.StatusConflict, "Already exists")
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		api.WriteDetail(w, http.StatusBadGateway, err.Error())
	default:
		logging.With(r.Context(), s.log).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		api.WriteDetail(w, http.StatusInternalServerError, "Internal server error")
	}
}
