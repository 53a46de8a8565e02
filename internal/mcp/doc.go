// Package mcp implements the Model Context Protocol server for the finance tools.
//
// # Overview
//
// A Dispatcher turns JSON-RPC 2.0 messages into responses. It is shared by two
// transports:
//
//   - StdioServer: one JSON object per line on stdin/stdout, flushed per response
//   - HTTPServer: POST /mcp with Mcp-Session-Id session headers
//
// # Methods
//
//   - initialize: negotiate the protocol version and mark the session ready
//   - ping: liveness check, returns {}
//   - tools/list: every registered tool in declaration order
//   - tools/call: run a tool and return its JSON result as a text content block
//   - notifications/*: accepted without a response
//
// # Handshake
//
// Sessions start uninitialized and become ready after initialize. By default
// requests from a client that skipped the handshake are still served. With
// Config.Strict set, anything other than initialize, ping, and notifications is
// rejected with -32600 until the handshake completes.
//
// # Errors
//
//	-32700  the message is not valid JSON (id is null)
//	-32600  wrong jsonrpc version, missing method, oversized message, or strict handshake
//	-32601  unknown method or unknown tool
//	-32602  tool arguments fail the tool's input schema; the message names the field
//	-32603  handler or store failure, timeout, or cancellation, with a generic message
//
// A tool that rejects an operation (for example an unknown customer) is not a
// protocol error: the result is returned normally with isError set and a text
// block of {"success":false,"error":"..."}.
//
// Requests without an id are notifications and never receive a response.
package mcp
