// ABOUTME: Streamable HTTP transport for the MCP tool server.
// ABOUTME: Maps Mcp-Session-Id headers to dispatcher sessions held in a TTL cache.

package mcp

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/2389/finmcp/internal/metrics"
	"github.com/2389/finmcp/internal/session"
)

// DefaultSessionTTL is how long an idle HTTP session is kept.
const DefaultSessionTTL = 30 * time.Minute

// DefaultMaxSessions bounds the number of live HTTP sessions.
const DefaultMaxSessions = 1024

// HTTPConfig holds configuration for the HTTP transport.
type HTTPConfig struct {
	Dispatcher  *Dispatcher
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
	MetricsPath string // served only when Metrics is set
	SessionTTL  time.Duration
	MaxSessions int
	MaxBodySize int64
}

// HTTPServer implements MCP-compatible HTTP endpoints over the shared dispatcher.
type HTTPServer struct {
	dispatcher  *Dispatcher
	logger      *slog.Logger
	metrics     *metrics.Metrics
	metricsPath string
	maxBodySize int64
	sessions    *session.Cache[*Session]
}

// NewHTTPServer creates a new HTTP transport with the given configuration.
func NewHTTPServer(cfg HTTPConfig) (*HTTPServer, error) {
	if cfg.Dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	maxSessions := cfg.MaxSessions
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	maxBody := cfg.MaxBodySize
	if maxBody <= 0 {
		maxBody = MaxRequestBodySize
	}
	metricsPath := cfg.MetricsPath
	if metricsPath == "" {
		metricsPath = "/metrics"
	}

	return &HTTPServer{
		dispatcher:  cfg.Dispatcher,
		logger:      logger.With("component", "http"),
		metrics:     cfg.Metrics,
		metricsPath: metricsPath,
		maxBodySize: maxBody,
		sessions:    session.New[*Session](ttl, maxSessions),
	}, nil
}

// RegisterRoutes registers the MCP, health, and metrics endpoints on the given ServeMux.
func (s *HTTPServer) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/mcp", s.handleMCP)
	mux.HandleFunc("/health", s.handleHealth)
	if s.metrics != nil {
		mux.Handle(s.metricsPath, s.metrics.Handler())
	}
}

// Handler returns a ServeMux with every route registered.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return mux
}

// Close stops the session cache sweeper.
func (s *HTTPServer) Close() {
	s.sessions.Close()
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// handleMCP is the single MCP endpoint supporting POST and DELETE.
func (s *HTTPServer) handleMCP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handlePost(w, r)
	case http.MethodGet:
		// We don't support server-initiated SSE streams
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	case http.MethodDelete:
		s.handleDelete(w, r)
	default:
		w.Header().Set("Allow", "POST, GET, DELETE")
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	}
}

// handleDelete terminates a session.
func (s *HTTPServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get("Mcp-Session-Id")
	if sessionID == "" {
		http.Error(w, "Bad Request: missing Mcp-Session-Id", http.StatusBadRequest)
		return
	}

	if !s.sessions.Delete(sessionID) {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	s.logger.Info("MCP session terminated", "session_id", sessionID)
	w.WriteHeader(http.StatusNoContent)
}

// handlePost processes one JSON-RPC message sent via HTTP POST.
func (s *HTTPServer) handlePost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, s.maxBodySize+1))
	if err != nil {
		s.writeJSON(w, errorResponse(nil, JSONRPCParseError, "failed to read request body"))
		return
	}
	if int64(len(body)) > s.maxBodySize {
		s.writeJSON(w, errorResponse(nil, JSONRPCInvalidRequest, "message too large"))
		return
	}

	sessionID := r.Header.Get("Mcp-Session-Id")
	var sess *Session
	newSession := false
	if sessionID != "" {
		var ok bool
		sess, ok = s.sessions.Get(sessionID)
		if !ok {
			// Session expired or invalid - client must re-initialize
			http.Error(w, "Not Found", http.StatusNotFound)
			return
		}
	} else {
		// Requests without a session run against a throwaway one.
		sess = NewSession()
		newSession = isInitialize(body)
	}

	resp := s.dispatcher.HandleMessage(r.Context(), sess, body)

	if newSession && resp != nil && resp.Error == nil {
		sessionID = s.sessions.Create(sess)
		w.Header().Set("Mcp-Session-Id", sessionID)
		s.logger.Info("MCP session created",
			"session_id", sessionID,
			"client", sess.ClientName(),
			"protocol_version", sess.ProtocolVersion(),
		)
	}

	// Notifications: accept and return HTTP 202 with no body
	if resp == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	s.writeJSON(w, resp)
}

// isInitialize peeks at the method without fully dispatching the message.
func isInitialize(body []byte) bool {
	var peek struct {
		Method string `json:"method"`
	}
	if err := json.Unmarshal(body, &peek); err != nil {
		return false
	}
	return peek.Method == "initialize"
}

func (s *HTTPServer) writeJSON(w http.ResponseWriter, resp *JSONRPCResponse) {
	data, err := encodeResponse(resp)
	if err != nil {
		s.logger.Warn("failed to encode JSON-RPC response", "error", err)
		data, _ = encodeResponse(errorResponse(resp.ID, JSONRPCInternalError, "internal error"))
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}
