package server

import (
	"io"
	"net/http"

	"github.com/viant/mcpb/internal/metrics"
	"github.com/viant/mcpb/schema"
)

const maxMessageSize = 16 * 1024 * 1024

// handleMessage writes a submitted message to the backend of its session
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get(s.sessionKey)
	if id == "" {
		s.respond(w, http.StatusBadRequest, s.sessionKey+" is required")
		return
	}
	sess, ok := s.sessions.Get(id)
	if !ok {
		s.respond(w, http.StatusNotFound, "Could not find session")
		return
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxMessageSize))
	if err != nil {
		s.respond(w, http.StatusBadRequest, "failed to read body")
		return
	}
	message, err := schema.Decode(data)
	if err != nil {
		s.respond(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	line, err := message.Encode()
	if err != nil {
		s.respond(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if err = sess.submit(r.Context(), message, line); err != nil {
		sess.logger.Warn().Err(err).Str("method", message.Method).Msg("failed to write to backend")
		s.respond(w, http.StatusServiceUnavailable, "backend unavailable")
		return
	}
	s.respond(w, http.StatusAccepted, "Accepted")
}

func (s *Server) respond(w http.ResponseWriter, code int, text string) {
	metrics.RecordRelayMessage(code)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(text))
}
