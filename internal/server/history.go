package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/54b3r/ragchat-go/internal/logging"
)

// defaultHistoryLimit is the number of messages returned by GET /api/history
// when no explicit limit is requested.
const defaultHistoryLimit = 50

// maxHistoryLimit caps the limit query parameter so one request cannot pull
// the whole table.
const maxHistoryLimit = 500

// handleHistory handles GET /api/history. It returns the most recent
// conversation messages across all queries, oldest-first. The optional
// `limit` query parameter bounds the result size.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	if s.history == nil {
		http.Error(w, "history is disabled", http.StatusNotFound)
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	msgs, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		log.Error("history query failed", slog.Any("error", err))
		http.Error(w, "failed to read history", http.StatusInternalServerError)
		return
	}

	resp := historyResponse{Messages: make([]historyMessage, 0, len(msgs))}
	for _, m := range msgs {
		resp.Messages = append(resp.Messages, historyMessage{
			QueryID:   m.Conversation,
			Role:      string(m.Role),
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error("history encode error", slog.Any("error", err))
	}
}
