package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/viant/mcpb/internal/metrics"
	"github.com/viant/mcpb/internal/sse"
)

// handleStream opens a session with its own backend and streams the backend output
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	ctx := r.Context()
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	b, err := s.factory(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("session", id).Msg("failed to start backend")
		http.Error(w, "failed to start backend", http.StatusBadGateway)
		return
	}
	sess := newSession(id, b, s.logger)
	if _, stored := s.sessions.PutIfAbsent(id, sess); !stored {
		_ = b.Close()
		http.Error(w, "session id collision", http.StatusInternalServerError)
		return
	}
	metrics.RelaySessionOpened()
	sess.logger.Info().Str("remote", r.RemoteAddr).Msg("session opened")
	defer func() {
		s.sessions.Delete(id)
		sess.close()
		metrics.RelaySessionClosed()
		sess.logger.Info().Msg("session closed")
	}()

	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	writer := sse.NewWriter(w)
	endpoint := s.messageURI + "?" + s.sessionKey + "=" + id
	if err = writer.Write(&sse.Event{Event: "endpoint", Data: endpoint}); err != nil {
		return
	}
	go sess.pump()

	var heartbeat <-chan time.Time
	if s.heartbeat > 0 {
		ticker := time.NewTicker(s.heartbeat)
		defer ticker.Stop()
		heartbeat = ticker.C
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat:
			if err = writer.Comment("ping"); err != nil {
				return
			}
		case line, ok := <-sess.out:
			if !ok {
				sess.logger.Info().Msg("backend stopped")
				return
			}
			if err = writer.Write(&sse.Event{Event: "message", Data: string(line)}); err != nil {
				sess.logger.Debug().Err(err).Msg("stream write failed")
				return
			}
		}
	}
}
