package apiv1

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"finance-copilot/internal/infra/api"
	"finance-copilot/internal/infra/logging"
)

func (s *Server) chatSend(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !s.decode(w, r, &req) {
		return
	}
	ctx := r.Context()
	sid := ""
	if req.SessionID != nil {
		sid = *req.SessionID
		ctx = logging.WithSessID(ctx, sid)
	}
	reply, err := s.chat.Chat(ctx, api.UserID(ctx), req.Message, sid)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, toChatReply(reply))
}

func (s *Server) chatSessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessions, err := s.chat.ListSessions(ctx, api.UserID(ctx))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]chatSessionResponse, 0, len(sessions))
	for _, cs := range sessions {
		out = append(out, toChatSession(cs))
	}
	api.WriteJSON(w, http.StatusOK, out)
}

func (s *Server) chatCreateSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cs, err := s.chat.CreateSession(ctx, api.UserID(ctx))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, toChatSession(cs))
}

func (s *Server) chatGetSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	d, err := s.chat.GetSession(ctx, api.UserID(ctx), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := chatSessionDetailResponse{
		Session:  toChatSession(d.Session),
		Messages: make([]chatMessageResponse, 0, len(d.Messages)),
	}
	for _, m := range d.Messages {
		out.Messages = append(out.Messages, chatMessageResponse{
			Role:      m.Role,
			Content:   m.Content,
			Timestamp: m.CreatedAt,
			SessionID: m.SessionID,
		})
	}
	api.WriteJSON(w, http.StatusOK, out)
}

func (s *Server) chatDeleteSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.chat.DeleteSession(ctx, api.UserID(ctx), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, messageResponse{Message: "Session deleted successfully"})
}
