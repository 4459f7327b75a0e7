package apiv1

import (
	"context"
	"net/http"

	"finance-copilot/internal/infra/api"
	"finance-copilot/internal/infra/logging"
	"finance-copilot/internal/usecase"
)

const tokenType = "bearer"

// authenticate backs the Auth middleware: a valid JWT with a live session
// for an active user.
func (s *Server) authenticate(ctx context.Context, token string) (string, error) {
	u, err := s.auth.Authenticate(ctx, token)
	if err != nil {
		return "", err
	}
	return u.ID, nil
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !s.decode(w, r, &req) {
		return
	}
	u, err := s.auth.Register(r.Context(), usecase.RegisterInput{
		Email:           req.Email,
		Username:        req.Username,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		FullName:        req.FullName,
		Age:             req.Age,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, toUser(u))
}

func (s *Server) verifyEmail(w http.ResponseWriter, r *http.Request) {
	var req verifyEmailRequest
	if !s.decode(w, r, &req) {
		return
	}
	if _, err := s.auth.VerifyEmail(r.Context(), req.Token); err != nil {
		s.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"message": "Email verified successfully", "verified": true})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, tokenResponse{
		AccessToken: res.Token,
		TokenType:   tokenType,
		ExpiresAt:   res.ExpiresAt,
		User:        toUser(res.User),
	})
}

// logout never fails the caller once authenticated; a session that is
// already gone still counts as logged out.
func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.auth.Logout(ctx, api.UserID(ctx), api.Token(ctx)); err != nil {
		logging.With(ctx, s.log).Warn().Err(err).Msg("logout: session invalidation failed")
	}
	api.WriteJSON(w, http.StatusOK, messageResponse{Message: "Logged out successfully"})
}

func (s *Server) logoutAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	n, err := s.auth.LogoutAll(ctx, api.UserID(ctx))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, messageResponse{
		Message:             "Logged out from all devices successfully",
		SessionsInvalidated: &n,
	})
}

func (s *Server) authSessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessions, err := s.auth.Sessions(ctx, api.UserID(ctx))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := toAuthSessions(sessions)
	api.WriteJSON(w, http.StatusOK, map[string]any{"sessions": out, "count": len(out)})
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u, err := s.auth.Me(ctx, api.UserID(ctx))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, toUser(u))
}
