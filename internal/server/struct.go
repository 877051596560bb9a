package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/ragchat-go/internal/rag"
	"github.com/54b3r/ragchat-go/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	// Must be long enough for streaming responses.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// StreamIdleTimeout is the maximum silence between tokens on a chat
	// stream before the server gives up on it. Defaults to 2 minutes.
	StreamIdleTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [slog.Default] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// History is the optional conversation store behind GET /api/history.
	// If nil, the endpoint returns 404.
	History store.ConversationStore
	// Registry receives the server's Prometheus metrics. If nil, a private
	// registry is created; either way /metrics serves it.
	Registry *prometheus.Registry
}

// chatter is the interface the transport handlers call to answer a query.
// *rag.Service satisfies it; tests inject a fake.
type chatter interface {
	// Chat streams the answer for query, delivering every fragment to
	// onTokens tagged with the query ID.
	Chat(ctx context.Context, query rag.Query, onTokens func(rag.Tokens)) error
}

// Server is the HTTP server that exposes the RAG service.
type Server struct {
	// chat is the RAG service answering queries.
	chat chatter
	// history is the optional conversation store for GET /api/history.
	history store.ConversationStore
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// metrics holds the Prometheus instruments owned by this server.
	metrics *serverMetrics
	// registry is the Prometheus registry served at GET /metrics.
	registry *prometheus.Registry
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// upgrader performs the HTTP -> WebSocket upgrade for GET /ws/events.
	upgrader websocket.Upgrader
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// chatRequest is the JSON body for POST /api/chat and the inbound frame
// format on the /ws/events socket.
type chatRequest struct {
	// QueryID correlates the streamed response frames with this question.
	// Optional: the server generates one when absent or unparsable.
	QueryID string `json:"queryId"`
	// Message is the user's question.
	Message string `json:"message"`
}

// wsErrorFrame is sent on the events socket when a query fails before its
// stream starts. Streams that die mid-flight are only logged; the client
// notices the missing terminal frame.
type wsErrorFrame struct {
	// QueryID identifies the failed query.
	QueryID string `json:"queryId"`
	// Error is the failure description.
	Error string `json:"error"`
}

// wsConn wraps a websocket connection with a write mutex, since concurrent
// streams share one socket and gorilla/websocket allows only one writer.
type wsConn struct {
	// mu serializes writes to the socket.
	mu sync.Mutex
	// conn is the underlying websocket connection.
	conn *websocket.Conn
}

// historyMessage is one element of the GET /api/history response.
type historyMessage struct {
	// QueryID is the query this message belongs to.
	QueryID string `json:"queryId"`
	// Role is "user" or "assistant".
	Role string `json:"role"`
	// Content is the message text.
	Content string `json:"content"`
	// CreatedAt is when the message was persisted.
	CreatedAt time.Time `json:"createdAt"`
}

// historyResponse is the JSON response for GET /api/history.
type historyResponse struct {
	// Messages is the recent conversation tail, oldest-first.
	Messages []historyMessage `json:"messages"`
}
