package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/tailored-agentic-units/lifeline/session"
)

const maxBodyBytes = 64 << 10

type textRequest struct {
	Text string `json:"text"`
}

type transcriptResponse struct {
	SessionID string            `json:"session_id"`
	State     session.State     `json:"state"`
	Messages  []session.Message `json:"messages"`
}

type handoffsResponse struct {
	Sessions []string `json:"sessions"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// POST /api/sessions/{id}/messages
func (s *Server) submitMessage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req textRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if !s.allow(id) {
		writeError(w, ErrRateLimited)
		return
	}

	reply, err := s.kernel.HandleMessage(r.Context(), id, req.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

// GET /api/sessions/{id}/messages
func (s *Server) transcript(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	conv, err := s.kernel.Conversation(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	msgs, err := s.kernel.Transcript(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if msgs == nil {
		msgs = []session.Message{}
	}

	writeJSON(w, http.StatusOK, transcriptResponse{
		SessionID: id,
		State:     conv.State,
		Messages:  msgs,
	})
}

// POST /api/sessions/{id}/handoff
func (s *Server) requestHuman(w http.ResponseWriter, r *http.Request) {
	tr, err := s.kernel.RequestHuman(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tr)
}

// DELETE /api/sessions/{id}/handoff
func (s *Server) closeHandoff(w http.ResponseWriter, r *http.Request) {
	tr, err := s.kernel.CloseHandoff(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tr)
}

// POST /api/sessions/{id}/operator-messages
func (s *Server) operatorMessage(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	msg, err := s.kernel.SendOperatorMessage(r.Context(), mux.Vars(r)["id"], req.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// GET /api/handoffs
func (s *Server) handoffs(w http.ResponseWriter, r *http.Request) {
	ids, err := s.kernel.HandoffSessions(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, handoffsResponse{Sessions: ids})
}

// GET /healthz
func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errInvalidBody
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := httpStatus(err)
	if status == http.StatusInternalServerError {
		err = errInternal
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
