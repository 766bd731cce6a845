package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"mindfulbot/internal/domain"
	"mindfulbot/internal/domain/model"
	"mindfulbot/internal/infra/i18n"
	"mindfulbot/internal/infra/logging"
)

// maxBodyBytes bounds a message post; any text the widget can produce fits.
const maxBodyBytes = 1 << 20

type createSessionResponse struct {
	Session    *model.Conversation `json:"session"`
	Token      string              `json:"token"`
	Disclaimer string              `json:"disclaimer"`
}

type sessionResponse struct {
	Session *model.Conversation `json:"session"`
}

type postMessageRequest struct {
	Text string `json:"text"`
}

type messageResponse struct {
	Message *model.Message `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	conv, err := s.chat.StartChat(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	token, err := s.auth.Mint(conv.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, createSessionResponse{
		Session:    conv,
		Token:      token,
		Disclaimer: s.tr.T(i18n.Disclaimer),
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	conv, err := s.chat.Timeline(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Session: conv})
}

func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	var req postMessageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	msg, err := s.chat.Submit(r.Context(), chi.URLParam(r, "id"), req.Text)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if msg == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusAccepted, messageResponse{Message: msg})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.chat.EndChat(r.Context(), chi.URLParam(r, "id")); err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// fail maps domain errors to status codes; anything unexpected is a 500
// with a generic body.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, domain.ErrReplyPending), errors.Is(err, domain.ErrBusy):
		writeError(w, http.StatusConflict, s.tr.T(i18n.ReplyPending))
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, s.tr.T(i18n.RateLimited))
	case errors.Is(err, domain.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		l := logging.With(r.Context(), s.log)
		l.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}
