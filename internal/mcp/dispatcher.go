// ABOUTME: Transport-independent JSON-RPC dispatcher for the MCP tool server.
// ABOUTME: Owns the initialize handshake, method routing, and the error code taxonomy.

package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/finmcp/internal/metrics"
	"github.com/2389/finmcp/internal/packs"
)

// Session is the protocol state of one client connection.
// It moves from uninitialized to ready on the first successful initialize.
type Session struct {
	mu              sync.Mutex
	initialized     bool
	clientName      string
	protocolVersion string
	createdAt       time.Time
}

// NewSession creates an uninitialized session.
func NewSession() *Session {
	return &Session{createdAt: time.Now()}
}

// Initialized reports whether the handshake has completed.
func (s *Session) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

// ClientName returns the name the client gave in initialize.
func (s *Session) ClientName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clientName
}

// ProtocolVersion returns the negotiated protocol version, empty before initialize.
func (s *Session) ProtocolVersion() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.protocolVersion
}

func (s *Session) markReady(clientName, version string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialized = true
	s.clientName = clientName
	s.protocolVersion = version
}

// Config holds configuration for the dispatcher.
type Config struct {
	Registry      *packs.Registry
	Router        *packs.Router
	Logger        *slog.Logger
	Metrics       *metrics.Metrics
	ServerName    string
	ServerVersion string
	// Strict rejects everything except initialize, ping, and notifications
	// until the session has been initialized. The default serves requests
	// from clients that skip the handshake.
	Strict bool
}

// Dispatcher turns JSON-RPC messages into responses. It holds no per-client
// state; that lives in the Session passed to each call.
type Dispatcher struct {
	registry      *packs.Registry
	router        *packs.Router
	logger        *slog.Logger
	metrics       *metrics.Metrics
	serverName    string
	serverVersion string
	strict        bool
}

// NewDispatcher creates a dispatcher with the given configuration.
func NewDispatcher(cfg Config) (*Dispatcher, error) {
	if cfg.Registry == nil {
		return nil, errors.New("registry is required")
	}
	if cfg.Router == nil {
		return nil, errors.New("router is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	name := cfg.ServerName
	if name == "" {
		name = "finmcp"
	}
	version := cfg.ServerVersion
	if version == "" {
		version = "dev"
	}

	return &Dispatcher{
		registry:      cfg.Registry,
		router:        cfg.Router,
		logger:        logger.With("component", "mcp"),
		metrics:       cfg.Metrics,
		serverName:    name,
		serverVersion: version,
		strict:        cfg.Strict,
	}, nil
}

// HandleMessage parses one raw message and dispatches it.
// Returns nil when no response must be sent (notifications).
func (d *Dispatcher) HandleMessage(ctx context.Context, sess *Session, data []byte) *JSONRPCResponse {
	if !json.Valid(data) {
		d.metrics.ObserveRequest("invalid", JSONRPCParseError)
		d.logger.Debug("rejected malformed message", "bytes", len(data))
		return errorResponse(nil, JSONRPCParseError, "parse error")
	}

	var req JSONRPCRequest
	if err := json.Unmarshal(data, &req); err != nil {
		d.metrics.ObserveRequest("invalid", JSONRPCInvalidRequest)
		return errorResponse(nil, JSONRPCInvalidRequest, "invalid request")
	}

	return d.Handle(ctx, sess, &req)
}

// Handle dispatches a parsed request. Returns nil for notifications.
func (d *Dispatcher) Handle(ctx context.Context, sess *Session, req *JSONRPCRequest) *JSONRPCResponse {
	result, rpcErr := d.dispatch(ctx, sess, req)

	code := 0
	if rpcErr != nil {
		code = rpcErr.Code
	}
	d.metrics.ObserveRequest(d.methodLabel(req.Method), code)

	if req.IsNotification() {
		if rpcErr != nil {
			d.logger.Debug("dropped error for notification",
				"method", req.Method,
				"code", rpcErr.Code,
				"error", rpcErr.Message,
			)
		}
		return nil
	}

	if rpcErr != nil {
		id := req.ID
		if !validID(id) {
			// An unusable id cannot be echoed back.
			id = nil
		}
		return &JSONRPCResponse{JSONRPC: "2.0", ID: id, Error: rpcErr}
	}
	return &JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: result}
}

func (d *Dispatcher) dispatch(ctx context.Context, sess *Session, req *JSONRPCRequest) (any, *JSONRPCError) {
	if req.JSONRPC != "2.0" {
		return nil, rpcError(JSONRPCInvalidRequest, "invalid JSON-RPC version")
	}
	if req.Method == "" {
		return nil, rpcError(JSONRPCInvalidRequest, "method is required")
	}
	if !validID(req.ID) {
		return nil, rpcError(JSONRPCInvalidRequest, "id must be a string, number, or null")
	}

	isNotificationMethod := strings.HasPrefix(req.Method, "notifications/")
	if d.strict && !sess.Initialized() && req.Method != "initialize" && req.Method != "ping" && !isNotificationMethod {
		return nil, rpcError(JSONRPCInvalidRequest, "server not initialized")
	}

	d.logger.Debug("MCP request",
		"method", req.Method,
		"is_notification", req.IsNotification(),
	)

	switch req.Method {
	case "initialize":
		return d.handleInitialize(sess, req)
	case "ping":
		return struct{}{}, nil
	case "tools/list":
		return d.handleToolsList(), nil
	case "tools/call":
		return d.handleToolsCall(ctx, sess, req)
	}

	if isNotificationMethod {
		d.logger.Debug("accepted MCP notification", "method", req.Method)
		return struct{}{}, nil
	}
	return nil, rpcError(JSONRPCMethodNotFound, "method not found: "+req.Method)
}

// handleInitialize completes the handshake and marks the session ready.
func (d *Dispatcher) handleInitialize(sess *Session, req *JSONRPCRequest) (any, *JSONRPCError) {
	var params InitializeParams
	if len(bytes.TrimSpace(req.Params)) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, rpcError(JSONRPCInvalidParams, "invalid params: initialize expects an object")
		}
	}

	version := negotiateVersion(params.ProtocolVersion)
	wasReady := sess.Initialized()
	sess.markReady(params.ClientInfo.Name, version)

	if wasReady {
		d.logger.Debug("session re-initialized", "client", params.ClientInfo.Name)
	} else {
		d.logger.Info("MCP session initialized",
			"client", params.ClientInfo.Name,
			"client_version", params.ClientInfo.Version,
			"requested_version", params.ProtocolVersion,
			"protocol_version", version,
		)
	}

	return InitializeResult{
		ProtocolVersion: version,
		ServerInfo: ServerInfo{
			Name:    d.serverName,
			Version: d.serverVersion,
		},
	}, nil
}

// handleToolsList returns every registered tool in declaration order.
func (d *Dispatcher) handleToolsList() MCPListToolsResult {
	defs := d.registry.ListTools()
	result := MCPListToolsResult{
		Tools: make([]MCPToolInfo, len(defs)),
	}
	for i, def := range defs {
		result.Tools[i] = MCPToolInfo{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: json.RawMessage(def.InputSchemaJSON),
		}
	}

	d.logger.Debug("tools/list", "count", len(defs))
	return result
}

// handleToolsCall routes a tool call and wraps its outcome in an MCP result.
func (d *Dispatcher) handleToolsCall(ctx context.Context, sess *Session, req *JSONRPCRequest) (any, *JSONRPCError) {
	var params MCPCallToolParams
	if len(bytes.TrimSpace(req.Params)) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, rpcError(JSONRPCInvalidParams, "invalid params: tools/call expects {name, arguments}")
		}
	}
	if params.Name == "" {
		return nil, rpcError(JSONRPCInvalidParams, "invalid params: name is required")
	}

	// Generate request ID for correlation
	requestID := uuid.New().String()

	d.logger.Debug("tools/call",
		"tool_name", params.Name,
		"request_id", requestID,
	)

	res, err := d.router.RouteToolCall(ctx, params.Name, params.Arguments, requestID, sess.ClientName())
	if err != nil {
		return nil, d.toolError(params.Name, requestID, err)
	}

	result := MCPCallToolResult{
		Content: []MCPContent{{Type: "text", Text: res.Text()}},
		IsError: res.IsFailure(),
	}

	d.logger.Debug("tools/call complete",
		"tool_name", params.Name,
		"request_id", requestID,
		"is_error", result.IsError,
	)
	return result, nil
}

// toolError maps a routing error to a JSON-RPC error with a message that is
// safe to show the caller. The raw error is only logged.
func (d *Dispatcher) toolError(toolName, requestID string, err error) *JSONRPCError {
	var paramErr *packs.ParamError
	if errors.As(err, &paramErr) {
		return rpcError(JSONRPCInvalidParams, paramErr.Error())
	}
	if errors.Is(err, packs.ErrToolNotFound) {
		return rpcError(JSONRPCMethodNotFound, "unknown tool: "+toolName)
	}

	d.logger.Warn("tool execution failed",
		"tool_name", toolName,
		"request_id", requestID,
		"error", err,
	)

	message := "tool execution failed"
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		message = "tool execution timed out"
	case errors.Is(err, context.Canceled):
		message = "request cancelled"
	case errors.Is(err, packs.ErrToolPanic):
		message = "internal error"
	}
	return rpcError(JSONRPCInternalError, message)
}

// methodLabel bounds metric label cardinality to known methods.
func (d *Dispatcher) methodLabel(method string) string {
	switch method {
	case "initialize", "ping", "tools/list", "tools/call":
		return method
	}
	if strings.HasPrefix(method, "notifications/") {
		return "notifications"
	}
	return "unknown"
}

func rpcError(code int, message string) *JSONRPCError {
	return &JSONRPCError{Code: code, Message: message}
}

func errorResponse(id json.RawMessage, code int, message string) *JSONRPCResponse {
	return &JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   rpcError(code, message),
	}
}

// encodeResponse marshals a response as a single line without a trailing newline.
func encodeResponse(resp *JSONRPCResponse) ([]byte, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("encoding response: %w", err)
	}
	return data, nil
}
