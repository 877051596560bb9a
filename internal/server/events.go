package server

import (
	"log/slog"
	"net/http"

	"github.com/54b3r/ragchat-go/internal/logging"
	"github.com/54b3r/ragchat-go/internal/rag"
)

// handleEvents handles GET /ws/events. It upgrades the connection to a
// WebSocket over which a client may run any number of concurrent queries:
// each inbound frame is a chatRequest, each outbound frame a rag.Tokens
// value. Responses interleave freely; clients demultiplex on queryId and
// treat the frame with complete=true as the end of that query's answer.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		log.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}
	ws := &wsConn{conn: conn}
	defer conn.Close()

	s.metrics.wsConnectionsActive.Inc()
	defer s.metrics.wsConnectionsActive.Dec()
	log.Info("events socket opened", slog.String("remote", r.RemoteAddr))

	ctx := r.Context()
	for {
		var req chatRequest
		if err := conn.ReadJSON(&req); err != nil {
			// Covers clean closes, protocol errors, and malformed JSON alike;
			// the socket is not recoverable after a read error.
			log.Debug("events socket closed", slog.Any("error", err))
			return
		}
		if req.Message == "" {
			continue
		}

		query := rag.Query{ID: parseOrNewQueryID(req.QueryID), Question: req.Message}

		sink := func(t rag.Tokens) {
			if err := ws.writeJSON(t); err != nil {
				log.Warn("events socket write failed",
					slog.String("query_id", t.QueryID.String()),
					slog.Any("error", err),
				)
			}
			if !t.Complete {
				s.metrics.chatTokensStreamedTotal.Inc()
			}
		}

		// Chat returns once the stream is issued, so the read loop keeps
		// accepting new queries while earlier answers are still streaming.
		if err := s.chat.Chat(ctx, query, sink); err != nil {
			log.Error("chat failed",
				slog.String("query_id", query.ID.String()),
				slog.Any("error", err),
			)
			s.metrics.chatRequestsTotal.WithLabelValues("error").Inc()
			if werr := ws.writeJSON(wsErrorFrame{QueryID: query.ID.String(), Error: err.Error()}); werr != nil {
				log.Warn("events socket write failed", slog.Any("error", werr))
			}
			continue
		}
		s.metrics.chatRequestsTotal.WithLabelValues("ok").Inc()
	}
}

// writeJSON sends one JSON frame, serialized against concurrent streams.
func (c *wsConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}
