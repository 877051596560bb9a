package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/54b3r/ragchat-go/internal/logging"
	"github.com/54b3r/ragchat-go/internal/rag"
)

// handleChat handles POST /api/chat requests. It streams the answer using
// Server-Sent Events (SSE) so clients render tokens as they arrive. Each
// token arrives as a data frame; the stream ends with an `event: done` frame
// once the terminal token is observed.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}

	query := rag.Query{ID: parseOrNewQueryID(req.QueryID), Question: req.Message}
	log = log.With(slog.String("query_id", query.ID.String()))

	// Set SSE headers so the client receives a streaming response.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	s.metrics.chatActiveStreams.Inc()
	defer s.metrics.chatActiveStreams.Dec()
	start := time.Now()

	ctx := r.Context()

	// The sink runs on the generator's goroutine; the select keeps it from
	// blocking forever once the client disconnects.
	frames := make(chan rag.Tokens, 64)
	sink := func(t rag.Tokens) {
		select {
		case frames <- t:
		case <-ctx.Done():
		}
	}

	if err := s.chat.Chat(ctx, query, sink); err != nil {
		log.Error("chat failed", slog.Any("error", err))
		fmt.Fprintf(w, "event: error\ndata: %s\n\n", err.Error())
		flusher.Flush()
		s.finishChat("error", start)
		return
	}

	sw := &sseWriter{w: w, flusher: flusher}
	idle := time.NewTimer(s.cfg.StreamIdleTimeout)
	defer idle.Stop()

	for {
		select {
		case t := <-frames:
			if t.Complete {
				fmt.Fprintf(w, "event: done\ndata: [DONE]\n\n")
				flusher.Flush()
				s.finishChat("ok", start)
				return
			}
			if _, err := sw.Write([]byte(t.Text)); err != nil {
				log.Warn("client write failed", slog.Any("error", err))
				s.finishChat("error", start)
				return
			}
			s.metrics.chatTokensStreamedTotal.Inc()
			if !idle.Stop() {
				<-idle.C
			}
			idle.Reset(s.cfg.StreamIdleTimeout)

		case <-idle.C:
			// No terminal frame: the generator died mid-stream or stalled.
			log.Warn("chat stream idle timeout")
			fmt.Fprintf(w, "event: error\ndata: stream timed out\n\n")
			flusher.Flush()
			s.finishChat("timeout", start)
			return

		case <-ctx.Done():
			log.Debug("client disconnected")
			s.finishChat("cancelled", start)
			return
		}
	}
}

// finishChat records the outcome metrics for one chat request.
func (s *Server) finishChat(outcome string, start time.Time) {
	s.metrics.chatRequestsTotal.WithLabelValues(outcome).Inc()
	s.metrics.chatDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}

// parseOrNewQueryID parses the client-supplied query ID, generating a fresh
// one when the field is empty or not a valid UUID.
func parseOrNewQueryID(raw string) uuid.UUID {
	if raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			return id
		}
	}
	return uuid.New()
}

// sseWriter wraps an http.ResponseWriter to emit Server-Sent Event data frames.
type sseWriter struct {
	// w is the underlying response writer.
	w http.ResponseWriter

	// flusher flushes buffered data to the client after each write.
	flusher http.Flusher
}

// Write formats p as one or more SSE data lines and flushes to the client.
// Each newline in p is prefixed with "data: " so multi-line chunks never
// break the SSE frame boundary.
func (s *sseWriter) Write(p []byte) (n int, err error) {
	chunk := strings.TrimRight(string(bytes.Clone(p)), "\n")
	lines := strings.Split(chunk, "\n")
	var buf strings.Builder
	for _, line := range lines {
		buf.WriteString("data: ")
		buf.WriteString(line)
		buf.WriteString("\n")
	}
	buf.WriteString("\n")
	if _, err = fmt.Fprint(s.w, buf.String()); err != nil {
		return 0, err
	}
	s.flusher.Flush()
	return len(p), nil
}
